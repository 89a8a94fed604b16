package question

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// pairDataSchema is the shape contract for pair-family data payloads: a
// non-empty array of {answer, correct} objects, answer a non-empty string,
// correct a non-empty array of non-empty strings, nothing else.
const pairDataSchema = `{
  "type": "array",
  "minItems": 1,
  "items": {
    "type": "object",
    "required": ["answer", "correct"],
    "additionalProperties": false,
    "properties": {
      "answer": {"type": "string", "minLength": 1},
      "correct": {
        "type": "array",
        "minItems": 1,
        "items": {"type": "string", "minLength": 1}
      }
    }
  }
}`

var pairSchema = mustCompileSchema(pairDataSchema)

func mustCompileSchema(src string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic("question: bad pair data schema: " + err.Error())
	}
	return s
}

// ValidatePairData checks a data payload against the pair-family shape
// contract. The returned error carries both the violated rules and the
// observed payload so row-level reports are self-explanatory.
func ValidatePairData(raw json.RawMessage) error {
	if len(raw) == 0 {
		return fmt.Errorf("data is empty, want a non-empty array of {answer, correct} pairs")
	}
	res, err := pairSchema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("data is not valid JSON: %w", err)
	}
	if res.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		msgs = append(msgs, fmt.Sprintf("%s: %s", e.Field(), e.Description()))
	}
	return fmt.Errorf("data has invalid shape (%s), got %s",
		strings.Join(msgs, "; "), truncateJSON(raw, 200))
}

func truncateJSON(raw json.RawMessage, max int) string {
	s := string(raw)
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
