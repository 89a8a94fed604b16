package question

import "fmt"

// Type tags the closed set of question variants the bank supports.
type Type string

const (
	TypeMatching           Type = "matching"
	TypeCategorization     Type = "categorization"
	TypeSelectAllThatApply Type = "select_all_that_apply"
	TypeEssay              Type = "essay"
	TypeUpload             Type = "upload"
	TypeBowTie             Type = "bow_tie"
	TypeStimulusCaseStudy  Type = "stimulus_case_study"
)

// Family groups variants that share import columns and export machinery.
type Family string

const (
	// FamilyPair: LEFT_n/RIGHT_n columns, pair-shaped data, QTI resprocessing.
	FamilyPair Family = "pair"
	// FamilyMarkdown: TEXT/TEXT_n columns concatenated into a markdown prompt.
	FamilyMarkdown Family = "markdown"
	// FamilyComposite: holds child questions in presentation order.
	FamilyComposite Family = "composite"
	// FamilyOther: stored and validated generically, no CSV import or QTI item.
	FamilyOther Family = "other"
)

// Config is the per-variant switchboard the parser, validator and encoder
// dispatch on.
type Config struct {
	Family Family

	// ChoiceCardinalityMultiple: may one answer slot list more than one
	// correct choice (RIGHT_n with commas).
	ChoiceCardinalityMultiple bool

	// ResponseCardinalityMultiple: emit rcardinality="Multiple" on the
	// exported response_lid. A config flag, never inferred from data.
	ResponseCardinalityMultiple bool

	// FieldEntry is the literal placed in the QTI qtimetadata fieldentry tag.
	// Empty means the variant has no QTI item form of its own.
	FieldEntry string
}

var configs = map[Type]Config{
	TypeMatching: {
		Family:     FamilyPair,
		FieldEntry: "matching_question",
	},
	TypeCategorization: {
		Family:                      FamilyPair,
		ChoiceCardinalityMultiple:   true,
		ResponseCardinalityMultiple: true,
		FieldEntry:                  "categorization_question",
	},
	TypeSelectAllThatApply: {
		Family:                      FamilyPair,
		ChoiceCardinalityMultiple:   true,
		ResponseCardinalityMultiple: true,
		FieldEntry:                  "multiple_answers_question",
	},
	TypeEssay: {
		Family:     FamilyMarkdown,
		FieldEntry: "essay_question",
	},
	TypeUpload: {
		Family:     FamilyMarkdown,
		FieldEntry: "file_upload_question",
	},
	TypeBowTie: {
		Family: FamilyOther,
	},
	TypeStimulusCaseStudy: {
		Family: FamilyComposite,
	},
}

// Valid reports whether t is a known variant tag.
func (t Type) Valid() bool {
	_, ok := configs[t]
	return ok
}

// Config returns the variant configuration. Unknown types get a zero Config;
// callers are expected to check Valid first.
func (t Type) Config() Config {
	return configs[t]
}

// ParseType converts a user-supplied type selector into a Type.
func ParseType(s string) (Type, error) {
	t := Type(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown question type %q", s)
	}
	return t, nil
}
