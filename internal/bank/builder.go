package bank

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/notch8/viva-sub001/internal/question"
	"github.com/notch8/viva-sub001/internal/storage"
)

// ImageUpload is an attachment submitted with an upload, in submission
// order. Contents are buffered so one upload can attach to every question
// the import produces.
type ImageUpload struct {
	Name string
	Data []byte
}

// BuildInput carries the row-independent attributes of an import: the
// owning user supplied by the calling context, the target type and any
// taxonomy names the upload came with.
type BuildInput struct {
	UserID     string
	Type       question.Type
	Text       string
	Categories []string
	Keywords   []string
	Subjects   []string
}

// BuildQuestion converts a parsed row into the canonical Question record
// and runs the schema-level shape check on the assembled data payload.
// It is pure: persistence happens in PersistQuestion.
func BuildQuestion(in BuildInput, d RowDatum) (question.Question, error) {
	q := question.Question{
		ID:         question.NewID(),
		UserID:     in.UserID,
		Text:       in.Text,
		Type:       in.Type,
		Categories: in.Categories,
		Keywords:   in.Keywords,
		Subjects:   in.Subjects,
	}

	switch d.Family {
	case question.FamilyMarkdown:
		q.Text = d.Text
	case question.FamilyPair:
		pairs := make([]question.Pair, 0, len(d.Pairs))
		for _, p := range d.Pairs {
			pairs = append(pairs, question.Pair{Answer: p.Answer, Correct: p.Correct})
		}
		raw, err := json.Marshal(pairs)
		if err != nil {
			return q, &ValidationError{Messages: []string{err.Error()}}
		}
		q.Data = raw
		if err := question.ValidatePairData(raw); err != nil {
			return q, &ValidationError{Messages: []string{err.Error()}}
		}
	}
	return q, nil
}

// PersistQuestion resolves references, stores image blobs in submission
// order and writes the record. Failures map to the row-level taxonomy:
// unresolved references and store rejections become PersistenceError,
// unique-name races become DuplicateResourceError.
func PersistQuestion(ctx context.Context, st question.Store, bs storage.BlobStore, q question.Question, images []ImageUpload) (question.Question, error) {
	ok, err := st.UserExists(ctx, q.UserID)
	if err != nil {
		return question.Question{}, &PersistenceError{Msg: "resolving user", Err: err}
	}
	if !ok {
		return question.Question{}, &PersistenceError{Msg: fmt.Sprintf("user %q cannot be resolved", q.UserID)}
	}

	for i, img := range images {
		if bs == nil {
			return question.Question{}, &PersistenceError{Msg: "no blob store configured for image uploads"}
		}
		key := fmt.Sprintf("questions/%s/%d-%s", q.ID, i, img.Name)
		stored, err := bs.Put(key, bytes.NewReader(img.Data))
		if err != nil {
			return question.Question{}, &PersistenceError{Msg: "storing image " + img.Name, Err: err}
		}
		q.Images = append(q.Images, question.Image{Key: stored, Name: img.Name, Position: i})
	}

	saved, err := st.PutQuestion(ctx, q)
	if err != nil {
		if errors.Is(err, question.ErrDuplicate) {
			return question.Question{}, &DuplicateResourceError{Resource: "question " + q.ID, Err: err}
		}
		return question.Question{}, &PersistenceError{Msg: "saving question", Err: err}
	}
	return saved, nil
}
