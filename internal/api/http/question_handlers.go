package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/notch8/viva-sub001/internal/question"
	"github.com/notch8/viva-sub001/internal/storage"
)

// GET /api/questions?type=&user_id=&limit=&offset=
func ListQuestionsHandler(store question.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f := question.Filter{
			Type:   question.Type(r.URL.Query().Get("type")),
			UserID: r.URL.Query().Get("user_id"),
		}
		if v := r.URL.Query().Get("limit"); v != "" {
			f.Limit, _ = strconv.Atoi(v)
		}
		if v := r.URL.Query().Get("offset"); v != "" {
			f.Offset, _ = strconv.Atoi(v)
		}
		qs, err := store.ListQuestions(r.Context(), f)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if qs == nil {
			qs = []question.Question{}
		}
		_ = json.NewEncoder(w).Encode(qs)
	}
}

// GET /api/questions/{id}
func GetQuestionHandler(store question.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := store.GetQuestion(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			if errors.Is(err, question.ErrNotFound) {
				http.Error(w, "not found", http.StatusNotFound)
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(q)
	}
}

// DELETE /api/questions/{id} — removes the record and its image blobs.
func DeleteQuestionHandler(store question.Store, bs storage.BlobStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		q, err := store.GetQuestion(r.Context(), id)
		if err != nil {
			if errors.Is(err, question.ErrNotFound) {
				http.Error(w, "not found", http.StatusNotFound)
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if err := store.DeleteQuestion(r.Context(), id); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if bs != nil {
			for _, img := range q.Images {
				_ = bs.Delete(img.Key)
			}
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
