package question

import (
	"encoding/json"
	"strconv"
	"sync/atomic"
	"time"
)

// Pair is one answer slot of a pair-family question: the left-hand answer
// text and its correct choices in original order.
type Pair struct {
	Answer  string   `json:"answer"`
	Correct []string `json:"correct"`
}

// Image is an attachment stored in the blob store. Position preserves
// submission order as display order.
type Image struct {
	Key      string `json:"key"`
	Name     string `json:"name"`
	Position int    `json:"position"`
}

type Question struct {
	ID     string          `json:"id"`
	UserID string          `json:"user_id"`
	Text   string          `json:"text"`
	Type   Type            `json:"type"`
	Data   json.RawMessage `json:"data,omitempty"`

	Categories []string `json:"categories,omitempty"`
	Keywords   []string `json:"keywords,omitempty"`
	Subjects   []string `json:"subjects,omitempty"`

	Images []Image `json:"images,omitempty"`

	// Children of composite variants, ordered by PresentationOrder.
	Children []Question `json:"children,omitempty"`

	PresentationOrder int   `json:"presentation_order,omitempty"`
	CreatedAt         int64 `json:"created_at,omitempty"`
}

// Pairs decodes the data payload of a pair-family question. Decoding is
// strict: callers that need shape guarantees run ValidatePairData first.
func (q Question) Pairs() ([]Pair, error) {
	var pairs []Pair
	if err := json.Unmarshal(q.Data, &pairs); err != nil {
		return nil, err
	}
	return pairs, nil
}

var idSeq atomic.Int64

// NewID returns a time-ordered identifier for a new question. The counter
// suffix keeps IDs distinct within one nanosecond tick.
func NewID() string {
	return "q-" + strconv.FormatInt(time.Now().UnixNano(), 36) +
		"-" + strconv.FormatInt(idSeq.Add(1), 36)
}
