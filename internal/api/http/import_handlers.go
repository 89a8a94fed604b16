package http

import (
	"encoding/json"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	auth "github.com/notch8/viva-sub001/internal/auth/middleware"
	"github.com/notch8/viva-sub001/internal/bank"
	"github.com/notch8/viva-sub001/internal/question"
)

// POST /api/questions/import
// multipart: file=<bank.csv|bank.xlsx|bank.zip>, type=<question type>,
// optional text, categories, keywords, subjects (comma-separated) and
// repeated images=<file> parts attached to every imported question.
func ImportHandler(p *bank.Pipeline) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, hdr, err := r.FormFile("file")
		if err != nil {
			http.Error(w, "file required", http.StatusBadRequest)
			return
		}
		defer f.Close()

		typ, err := question.ParseType(r.FormValue("type"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		images, err := imageUploads(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		opts := bank.Options{
			UserID:     auth.UserIDFromContext(r.Context()),
			Type:       typ,
			Text:       r.FormValue("text"),
			Categories: splitList(r.FormValue("categories")),
			Keywords:   splitList(r.FormValue("keywords")),
			Subjects:   splitList(r.FormValue("subjects")),
			Images:     images,
		}

		res, err := p.Import(r.Context(), f, hdr.Filename, opts)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(res)
	}
}

// imageUploads buffers the repeated "images" form parts, keeping their
// submission order.
func imageUploads(r *http.Request) ([]bank.ImageUpload, error) {
	if r.MultipartForm == nil || len(r.MultipartForm.File["images"]) == 0 {
		return nil, nil
	}
	var out []bank.ImageUpload
	for _, hdr := range r.MultipartForm.File["images"] {
		f, err := hdr.Open()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, err
		}
		out = append(out, bank.ImageUpload{Name: filepath.Base(hdr.Filename), Data: data})
	}
	return out, nil
}

func splitList(v string) []string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
