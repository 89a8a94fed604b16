package qti

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/notch8/viva-sub001/internal/question"
)

func pairQuestion(t *testing.T, id string, typ question.Type, pairs []question.Pair) question.Question {
	t.Helper()
	raw, err := json.Marshal(pairs)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return question.Question{ID: id, UserID: "u1", Text: "Match them", Type: typ, Data: raw}
}

func TestResponseConditions_IdentsAndWeights(t *testing.T) {
	pairs := []question.Pair{
		{Answer: "Paris", Correct: []string{"France"}},
		{Answer: "Rome", Correct: []string{"Italy"}},
	}
	conds := ResponseConditions("item-q1", pairs, 100)
	if len(conds) != 2 {
		t.Fatalf("got %d conditions, want 2", len(conds))
	}
	if conds[0].Response.Ident != "item-q1-r-0" || conds[1].Response.Ident != "item-q1-r-1" {
		t.Fatalf("response idents: %q, %q", conds[0].Response.Ident, conds[1].Response.Ident)
	}
	if conds[0].Choices[0].Ident != "item-q1-c-0" || conds[1].Choices[0].Ident != "item-q1-c-1" {
		t.Fatalf("choice idents: %q, %q", conds[0].Choices[0].Ident, conds[1].Choices[0].Ident)
	}
	for _, rc := range conds {
		if rc.Value != "50.00" {
			t.Fatalf("value = %q, want 50.00", rc.Value)
		}
	}
}

func TestResponseConditions_UnevenSplitIsTruncatedNotRedistributed(t *testing.T) {
	pairs := []question.Pair{
		{Answer: "a", Correct: []string{"1"}},
		{Answer: "b", Correct: []string{"2"}},
		{Answer: "c", Correct: []string{"3"}},
	}
	for _, rc := range ResponseConditions("item-q1", pairs, 100) {
		if rc.Value != "33.33" {
			t.Fatalf("value = %q, want 33.33 on every pair", rc.Value)
		}
	}
}

func TestResponseConditions_ChoiceCounterSpansPairs(t *testing.T) {
	// repeated choice text must still get distinct idents
	pairs := []question.Pair{
		{Answer: "a", Correct: []string{"X", "X"}},
		{Answer: "b", Correct: []string{"X"}},
	}
	conds := ResponseConditions("item-q1", pairs, 100)
	seen := map[string]bool{}
	n := 0
	for _, rc := range conds {
		for _, c := range rc.Choices {
			if seen[c.Ident] {
				t.Fatalf("ident %q issued twice", c.Ident)
			}
			seen[c.Ident] = true
			n++
		}
	}
	if n != 3 {
		t.Fatalf("got %d choice idents, want 3", n)
	}
	if conds[1].Choices[0].Ident != "item-q1-c-2" {
		t.Fatalf("counter reset between pairs: %q", conds[1].Choices[0].Ident)
	}
}

func TestCache_ConditionsAreStablePerQuestion(t *testing.T) {
	q := pairQuestion(t, "q1", question.TypeMatching, []question.Pair{
		{Answer: "Paris", Correct: []string{"France"}},
	})
	cache := NewCache()
	first, err := cache.Conditions(q, 100)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := cache.Conditions(q, 100)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("re-encode changed conditions: %+v vs %+v", first, second)
	}
}

func TestCache_IdentsDisjointAcrossQuestions(t *testing.T) {
	pairs := []question.Pair{{Answer: "a", Correct: []string{"1"}}}
	cache := NewCache()
	c1, err := cache.Conditions(pairQuestion(t, "q1", question.TypeMatching, pairs), 100)
	if err != nil {
		t.Fatalf("q1: %v", err)
	}
	c2, err := cache.Conditions(pairQuestion(t, "q2", question.TypeMatching, pairs), 100)
	if err != nil {
		t.Fatalf("q2: %v", err)
	}
	if c1[0].Response.Ident == c2[0].Response.Ident {
		t.Fatalf("response idents collide: %q", c1[0].Response.Ident)
	}
	if c1[0].Choices[0].Ident == c2[0].Choices[0].Ident {
		t.Fatalf("choice idents collide: %q", c1[0].Choices[0].Ident)
	}
}

func TestCache_RejectsMalformedPayload(t *testing.T) {
	q := question.Question{ID: "q1", Type: question.TypeMatching,
		Data: json.RawMessage(`[{"answer": 7}]`)}
	cache := NewCache()
	_, err := cache.Conditions(q, 100)
	var enc *EncodingError
	if !errors.As(err, &enc) {
		t.Fatalf("want EncodingError, got %v", err)
	}
	if enc.QuestionID != "q1" {
		t.Fatalf("question id = %q", enc.QuestionID)
	}
}

func TestEncodeItem_MatchingHasSingleCardinality(t *testing.T) {
	q := pairQuestion(t, "q1", question.TypeMatching, []question.Pair{
		{Answer: "Paris", Correct: []string{"France"}},
	})
	out, err := EncodeItem(q, 100, nil)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if strings.Contains(out, `rcardinality="Multiple"`) {
		t.Fatalf("matching must not emit multiple cardinality:\n%s", out)
	}
	for _, want := range []string{
		`<item ident="item-q1"`,
		`<fieldentry>matching_question</fieldentry>`,
		`<fieldentry>100</fieldentry>`,
		`<response_lid ident="item-q1-r-0">`,
		`<response_label ident="item-q1-c-0">`,
		`<varequal respident="item-q1-r-0">item-q1-c-0</varequal>`,
		`<setvar action="Add" varname="SCORE">100.00</setvar>`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}

func TestEncodeItem_CategorizationEmitsMultipleAndAnd(t *testing.T) {
	q := pairQuestion(t, "q1", question.TypeCategorization, []question.Pair{
		{Answer: "Fruit", Correct: []string{"apple", "pear"}},
	})
	out, err := EncodeItem(q, 100, nil)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !strings.Contains(out, `rcardinality="Multiple"`) {
		t.Fatalf("categorization must emit multiple cardinality:\n%s", out)
	}
	if !strings.Contains(out, "<and>") {
		t.Fatalf("multi-choice condition must be wrapped in <and>:\n%s", out)
	}
	if !strings.Contains(out, `<fieldentry>categorization_question</fieldentry>`) {
		t.Fatalf("wrong fieldentry:\n%s", out)
	}
}

func TestEncodeItem_EscapesFreeText(t *testing.T) {
	q := pairQuestion(t, "q1", question.TypeMatching, []question.Pair{
		{Answer: "a < b & c", Correct: []string{`"quoted"`}},
	})
	q.Text = "<script>alert(1)</script>"
	out, err := EncodeItem(q, 100, nil)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if strings.Contains(out, "<script>") {
		t.Fatalf("prompt not escaped:\n%s", out)
	}
	if !strings.Contains(out, "a &lt; b &amp; c") {
		t.Fatalf("answer text not escaped:\n%s", out)
	}
}

func TestEncodeItem_EssayAndUpload(t *testing.T) {
	essay := question.Question{ID: "q1", Text: "Discuss.", Type: question.TypeEssay}
	out, err := EncodeItem(essay, 100, nil)
	if err != nil {
		t.Fatalf("essay: %v", err)
	}
	if !strings.Contains(out, "<response_str") || !strings.Contains(out, "essay_question") {
		t.Fatalf("essay item:\n%s", out)
	}

	upload := question.Question{ID: "q2", Text: "Attach your work.", Type: question.TypeUpload}
	out, err = EncodeItem(upload, 100, nil)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if strings.Contains(out, "<response_str") {
		t.Fatalf("upload must not carry a response_str:\n%s", out)
	}
	if !strings.Contains(out, "file_upload_question") {
		t.Fatalf("upload item:\n%s", out)
	}
}

func TestEncodeItem_UnsupportedTypes(t *testing.T) {
	for _, typ := range []question.Type{question.TypeBowTie, question.TypeStimulusCaseStudy} {
		_, err := EncodeItem(question.Question{ID: "q1", Type: typ}, 100, nil)
		var enc *EncodingError
		if !errors.As(err, &enc) {
			t.Fatalf("%s: want EncodingError, got %v", typ, err)
		}
	}
}
