package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/notch8/viva-sub001/internal/qti"
	"github.com/notch8/viva-sub001/internal/question"
)

const defaultMaxScore = 100

// GET /api/questions/{id}/export?max_score=N
func ExportQTIHandler(store question.Store) http.HandlerFunc {
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
		servePackage(w, r, []question.Question{q}, maxScoreParam(r), id+".zip")
	}
}

// POST /api/questions/export  { "ids": [...], "max_score": N }
// One question failing to encode never aborts the batch; failures land in
// the package's export_report.json.
func BatchExportHandler(store question.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			IDs      []string `json:"ids"`
			MaxScore float64  `json:"max_score"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if len(req.IDs) == 0 {
			http.Error(w, "ids required", http.StatusBadRequest)
			return
		}
		if req.MaxScore <= 0 {
			req.MaxScore = defaultMaxScore
		}
		var qs []question.Question
		for _, id := range req.IDs {
			q, err := store.GetQuestion(r.Context(), id)
			if err != nil {
				// missing questions surface in the report, not as a batch failure
				continue
			}
			qs = append(qs, q)
		}
		servePackage(w, r, qs, req.MaxScore, "questions.zip")
	}
}

func servePackage(w http.ResponseWriter, r *http.Request, qs []question.Question, maxScore float64, name string) {
	pkg, _, err := qti.BuildPackage(qs, maxScore)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", "attachment; filename=\""+name+"\"")
	http.ServeContent(w, r, name, time.Now(), bytesReader(pkg))
}

func maxScoreParam(r *http.Request) float64 {
	v := r.URL.Query().Get("max_score")
	if v == "" {
		return defaultMaxScore
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return defaultMaxScore
	}
	return f
}

func bytesReader(b []byte) io.ReadSeeker {
	return nopCloserSeeker{r: bytes.NewReader(b)}
}

type nopCloserSeeker struct{ r *bytes.Reader }

func (n nopCloserSeeker) Read(p []byte) (int, error)         { return n.r.Read(p) }
func (n nopCloserSeeker) Seek(o int64, w int) (int64, error) { return n.r.Seek(o, w) }
