package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/notch8/viva-sub001/internal/question"
	"github.com/notch8/viva-sub001/internal/storage"
)

// MountAssets wires image-blob routes onto r.
func MountAssets(r chi.Router, store question.Store, bs storage.BlobStore) {
	// POST /assets/{questionID}  (multipart: file)
	// Stores the blob and appends it to the question's image list, so
	// Position reflects submission order.
	r.Post("/{questionID}", func(w http.ResponseWriter, r *http.Request) {
		questionID := chi.URLParam(r, "questionID")
		q, err := store.GetQuestion(r.Context(), questionID)
		if err != nil {
			if errors.Is(err, question.ErrNotFound) {
				http.Error(w, "not found", http.StatusNotFound)
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		f, hdr, err := r.FormFile("file")
		if err != nil {
			http.Error(w, "file required", http.StatusBadRequest)
			return
		}
		defer f.Close()

		name := filepath.Base(hdr.Filename)
		key := fmt.Sprintf("questions/%s/%d-%s", questionID, len(q.Images), name)
		stored, err := bs.Put(key, f)
		if err != nil {
			http.Error(w, "store error: "+err.Error(), http.StatusInternalServerError)
			return
		}
		q.Images = append(q.Images, question.Image{Key: stored, Name: name, Position: len(q.Images)})
		if _, err := store.PutQuestion(r.Context(), q); err != nil {
			http.Error(w, "store error: "+err.Error(), http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"key": stored})
	})

	// GET /assets/*   -> returns the blob at whatever follows /assets/
	r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
		rc, err := bs.Get(key)
		if err != nil {
			http.Error(w, "not found: "+err.Error(), http.StatusNotFound)
			return
		}
		defer rc.Close()
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = io.Copy(w, rc)
	})
}
