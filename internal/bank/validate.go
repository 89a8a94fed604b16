package bank

import (
	"fmt"
	"strings"

	"github.com/notch8/viva-sub001/internal/question"
)

// ValidateRow runs the structural checks for d under typ's configuration.
// All applicable checks run; the result is either nil or a ValidationError
// carrying every violated rule at once.
func ValidateRow(d RowDatum, typ question.Type) error {
	if d.Family != question.FamilyPair {
		return nil
	}
	cfg := typ.Config()
	var msgs []string
	msgs = append(msgs, symmetryMessages(d.Pairs)...)
	msgs = append(msgs, duplicateChoiceMessages(d.Pairs)...)
	if !cfg.ChoiceCardinalityMultiple {
		msgs = append(msgs, cardinalityMessages(d.Pairs, typ)...)
	}
	if len(msgs) == 0 {
		return nil
	}
	return &ValidationError{Messages: msgs}
}

// symmetryMessages names exactly the columns whose counterpart is missing.
func symmetryMessages(pairs []PairDatum) []string {
	var msgs []string
	for _, p := range pairs {
		switch {
		case p.LeftCol != "" && p.RightCol == "":
			msgs = append(msgs, fmt.Sprintf("%s has no matching RIGHT_%d", p.LeftCol, p.Index))
		case p.RightCol != "" && p.LeftCol == "":
			msgs = append(msgs, fmt.Sprintf("%s has no matching LEFT_%d", p.RightCol, p.Index))
		}
	}
	return msgs
}

// duplicateChoiceMessages flattens every RIGHT_n list and reports each
// repeated value exactly once, however often it repeats.
func duplicateChoiceMessages(pairs []PairDatum) []string {
	seen := map[string]int{}
	var dups []string
	for _, p := range pairs {
		for _, c := range p.Correct {
			seen[c]++
			if seen[c] == 2 {
				dups = append(dups, c)
			}
		}
	}
	if len(dups) == 0 {
		return nil
	}
	return []string{fmt.Sprintf("duplicate correct choices: %s", strings.Join(dups, ", "))}
}

func cardinalityMessages(pairs []PairDatum, typ question.Type) []string {
	var cols []string
	for _, p := range pairs {
		if len(p.Correct) > 1 {
			cols = append(cols, p.RightCol)
		}
	}
	if len(cols) == 0 {
		return nil
	}
	return []string{fmt.Sprintf("type %q allows one correct choice per answer; columns with multiple: %s",
		typ, strings.Join(cols, ", "))}
}
