package qti

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"github.com/notch8/viva-sub001/internal/question"
)

// Response is one exported answer slot; Choice one of its correct choices.
// Both are owned by a single encode call and never persisted.
type Response struct {
	Ident string
	Text  string
}

type Choice struct {
	Ident string
	Text  string
}

// ResponseCondition groups a Response, its Choices and the scoring weight
// for one pair of the question's data.
type ResponseCondition struct {
	Response Response
	Choices  []Choice
	Value    string
}

// EncodingError: a question cannot be rendered as a QTI item. Fatal to that
// one item, never to a batch.
type EncodingError struct {
	QuestionID string
	Msg        string
	Err        error
}

func (e *EncodingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("qti encode %s: %s: %v", e.QuestionID, e.Msg, e.Err)
	}
	return fmt.Sprintf("qti encode %s: %s", e.QuestionID, e.Msg)
}

func (e *EncodingError) Unwrap() error { return e.Err }

// ItemIdent derives the item wrapper ident for a question.
func ItemIdent(q question.Question) string { return "item-" + q.ID }

// ResponseConditions computes the ordered condition list for a pair-family
// payload. The weight is maxScore split uniformly across pairs, fixed at
// two decimals; an uneven split is truncated per pair, not redistributed.
// The choice counter is global across the whole question so idents stay
// unique even when choice texts repeat; it is local to this call, so
// concurrent encodes and distinct questions never share state.
func ResponseConditions(itemIdent string, pairs []question.Pair, maxScore float64) []ResponseCondition {
	value := fmt.Sprintf("%.2f", maxScore/float64(len(pairs)))
	out := make([]ResponseCondition, 0, len(pairs))
	counter := 0
	for i, p := range pairs {
		rc := ResponseCondition{
			Response: Response{
				Ident: fmt.Sprintf("%s-r-%d", itemIdent, i),
				Text:  p.Answer,
			},
			Value: value,
		}
		for _, c := range p.Correct {
			rc.Choices = append(rc.Choices, Choice{
				Ident: fmt.Sprintf("%s-c-%d", itemIdent, counter),
				Text:  c,
			})
			counter++
		}
		out = append(out, rc)
	}
	return out
}

// Cache memoizes response conditions for the lifetime of one export call.
// It is created per request and must not be shared across exports.
type Cache struct {
	m map[string][]ResponseCondition
}

func NewCache() *Cache { return &Cache{m: map[string][]ResponseCondition{}} }

// Conditions re-verifies the data shape (a question may have been created
// by a path other than import) and computes or replays the condition list.
func (c *Cache) Conditions(q question.Question, maxScore float64) ([]ResponseCondition, error) {
	if conds, ok := c.m[q.ID]; ok {
		return conds, nil
	}
	if err := question.ValidatePairData(q.Data); err != nil {
		return nil, &EncodingError{QuestionID: q.ID, Msg: "invalid data payload", Err: err}
	}
	pairs, err := q.Pairs()
	if err != nil {
		return nil, &EncodingError{QuestionID: q.ID, Msg: "decoding data payload", Err: err}
	}
	conds := ResponseConditions(ItemIdent(q), pairs, maxScore)
	c.m[q.ID] = conds
	return conds, nil
}

// EncodeItem serializes one question into a QTI item fragment. cache may be
// nil for one-off encodes.
func EncodeItem(q question.Question, maxScore float64, cache *Cache) (string, error) {
	cfg := q.Type.Config()
	switch cfg.Family {
	case question.FamilyPair:
		if cache == nil {
			cache = NewCache()
		}
		conds, err := cache.Conditions(q, maxScore)
		if err != nil {
			return "", err
		}
		return pairItemXML(q, cfg, conds, maxScore), nil
	case question.FamilyMarkdown:
		return markdownItemXML(q, cfg, maxScore), nil
	default:
		return "", &EncodingError{QuestionID: q.ID,
			Msg: fmt.Sprintf("type %q has no QTI item form", q.Type)}
	}
}

func pairItemXML(q question.Question, cfg question.Config, conds []ResponseCondition, maxScore float64) string {
	ident := ItemIdent(q)
	var b strings.Builder
	fmt.Fprintf(&b, "<item ident=%q title=\"Question %s\">\n", ident, escape(q.ID))
	writeMetadata(&b, cfg.FieldEntry, maxScore)

	b.WriteString("  <presentation>\n")
	fmt.Fprintf(&b, "    <material>\n      <mattext texttype=\"text/html\">%s</mattext>\n    </material>\n", escape(q.Text))
	rcard := ""
	if cfg.ResponseCardinalityMultiple {
		rcard = ` rcardinality="Multiple"`
	}
	for _, rc := range conds {
		fmt.Fprintf(&b, "    <response_lid ident=%q%s>\n", rc.Response.Ident, rcard)
		fmt.Fprintf(&b, "      <material>\n        <mattext texttype=\"text/plain\">%s</mattext>\n      </material>\n", escape(rc.Response.Text))
		b.WriteString("      <render_choice>\n")
		for _, c := range rc.Choices {
			fmt.Fprintf(&b, "        <response_label ident=%q>\n          <material>\n            <mattext texttype=\"text/plain\">%s</mattext>\n          </material>\n        </response_label>\n",
				c.Ident, escape(c.Text))
		}
		b.WriteString("      </render_choice>\n")
		b.WriteString("    </response_lid>\n")
	}
	b.WriteString("  </presentation>\n")

	b.WriteString("  <resprocessing>\n")
	fmt.Fprintf(&b, "    <outcomes>\n      <decvar maxvalue=%q minvalue=\"0\" varname=\"SCORE\" vartype=\"Decimal\"/>\n    </outcomes>\n",
		formatScore(maxScore))
	for _, rc := range conds {
		b.WriteString("    <respcondition continue=\"Yes\">\n      <conditionvar>\n")
		if len(rc.Choices) > 1 {
			b.WriteString("        <and>\n")
			for _, c := range rc.Choices {
				fmt.Fprintf(&b, "          <varequal respident=%q>%s</varequal>\n", rc.Response.Ident, escape(c.Ident))
			}
			b.WriteString("        </and>\n")
		} else {
			for _, c := range rc.Choices {
				fmt.Fprintf(&b, "        <varequal respident=%q>%s</varequal>\n", rc.Response.Ident, escape(c.Ident))
			}
		}
		b.WriteString("      </conditionvar>\n")
		fmt.Fprintf(&b, "      <setvar action=\"Add\" varname=\"SCORE\">%s</setvar>\n", rc.Value)
		b.WriteString("    </respcondition>\n")
	}
	b.WriteString("  </resprocessing>\n")
	b.WriteString("</item>")
	return b.String()
}

func markdownItemXML(q question.Question, cfg question.Config, maxScore float64) string {
	ident := ItemIdent(q)
	var b strings.Builder
	fmt.Fprintf(&b, "<item ident=%q title=\"Question %s\">\n", ident, escape(q.ID))
	writeMetadata(&b, cfg.FieldEntry, maxScore)
	b.WriteString("  <presentation>\n")
	fmt.Fprintf(&b, "    <material>\n      <mattext texttype=\"text/html\">%s</mattext>\n    </material>\n", escape(q.Text))
	if q.Type == question.TypeEssay {
		fmt.Fprintf(&b, "    <response_str ident=\"%s-r-0\" rcardinality=\"Single\">\n      <render_fib>\n        <response_label ident=\"%s-c-0\" rshuffle=\"No\"/>\n      </render_fib>\n    </response_str>\n",
			ident, ident)
	}
	b.WriteString("  </presentation>\n")
	b.WriteString("</item>")
	return b.String()
}

func writeMetadata(b *strings.Builder, fieldEntry string, maxScore float64) {
	b.WriteString("  <itemmetadata>\n    <qtimetadata>\n")
	fmt.Fprintf(b, "      <qtimetadatafield>\n        <fieldlabel>question_type</fieldlabel>\n        <fieldentry>%s</fieldentry>\n      </qtimetadatafield>\n", fieldEntry)
	fmt.Fprintf(b, "      <qtimetadatafield>\n        <fieldlabel>points_possible</fieldlabel>\n        <fieldentry>%s</fieldentry>\n      </qtimetadatafield>\n", formatScore(maxScore))
	b.WriteString("    </qtimetadata>\n  </itemmetadata>\n")
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// escape makes free text safe for embedding in markup.
func escape(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}
