package bank

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"reflect"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/notch8/viva-sub001/internal/question"
)

func newTestPipeline(users ...string) (*Pipeline, question.Store) {
	st := question.NewInMemoryStore(users...)
	return NewPipeline(st, nil, nil), st
}

// memBlobs records Put order so tests can assert submission order.
type memBlobs struct {
	keys []string
	data map[string][]byte
}

func newMemBlobs() *memBlobs { return &memBlobs{data: map[string][]byte{}} }

func (m *memBlobs) Put(key string, r io.Reader) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.keys = append(m.keys, key)
	m.data[key] = b
	return key, nil
}

func (m *memBlobs) Get(key string) (io.ReadCloser, error) {
	b, ok := m.data[key]
	if !ok {
		return nil, errors.New("no blob " + key)
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (m *memBlobs) Delete(key string) error {
	delete(m.data, key)
	return nil
}

func (m *memBlobs) SignedURL(key string) (string, error) { return "file://" + key, nil }

func TestImport_MatchingCSV(t *testing.T) {
	csvData := "LEFT_1,RIGHT_1,LEFT_2,RIGHT_2\nParis,France,Rome,Italy\n"
	p, st := newTestPipeline("u1")

	res, err := p.Import(context.Background(), strings.NewReader(csvData), "bank.csv", Options{
		UserID: "u1",
		Type:   question.TypeMatching,
		Text:   "Match the capital to its country",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ImportedCount != 1 || len(res.Failures) != 0 {
		t.Fatalf("result = %+v", res)
	}

	qs, err := st.ListQuestions(context.Background(), question.Filter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(qs) != 1 {
		t.Fatalf("got %d questions, want 1", len(qs))
	}
	var pairs []question.Pair
	if err := json.Unmarshal(qs[0].Data, &pairs); err != nil {
		t.Fatalf("data: %v", err)
	}
	want := []question.Pair{
		{Answer: "Paris", Correct: []string{"France"}},
		{Answer: "Rome", Correct: []string{"Italy"}},
	}
	if !reflect.DeepEqual(pairs, want) {
		t.Fatalf("pairs = %+v, want %+v", pairs, want)
	}
	if qs[0].UserID != "u1" || qs[0].Type != question.TypeMatching {
		t.Fatalf("question = %+v", qs[0])
	}
}

func TestImport_EssayCSVConcatenatesText(t *testing.T) {
	csvData := "TEXT,TEXT_1,TEXT_2\nintro,middle,outro\n"
	p, st := newTestPipeline("u1")

	res, err := p.Import(context.Background(), strings.NewReader(csvData), "essays.csv", Options{
		UserID: "u1", Type: question.TypeEssay,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ImportedCount != 1 {
		t.Fatalf("result = %+v", res)
	}
	qs, _ := st.ListQuestions(context.Background(), question.Filter{})
	if qs[0].Text != "intro\nmiddle\noutro" {
		t.Fatalf("text = %q", qs[0].Text)
	}
}

func TestImport_BadRowDoesNotAbortBatch(t *testing.T) {
	csvData := "LEFT_1,RIGHT_1,LEFT_2,RIGHT_2\n" +
		"Paris,France,Rome,Italy\n" + // line 2: fine
		"Oslo,,Bern,\n" + // line 3: one-sided values
		"Kyiv,Ukraine,Lima,Peru\n" // line 4: fine
	p, _ := newTestPipeline("u1")

	res, err := p.Import(context.Background(), strings.NewReader(csvData), "bank.csv", Options{
		UserID: "u1", Type: question.TypeMatching,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ImportedCount != 2 {
		t.Fatalf("imported = %d, want 2 (failures: %+v)", res.ImportedCount, res.Failures)
	}
	if len(res.Failures) != 1 || res.Failures[0].RowNumber != 3 {
		t.Fatalf("failures = %+v", res.Failures)
	}
	if len(res.Failures[0].Messages) == 0 {
		t.Fatalf("failure carries no messages")
	}
}

func TestImport_UnresolvedUserIsRowLevel(t *testing.T) {
	csvData := "LEFT_1,RIGHT_1\nParis,France\n"
	p, _ := newTestPipeline() // no users at all

	res, err := p.Import(context.Background(), strings.NewReader(csvData), "bank.csv", Options{
		UserID: "ghost", Type: question.TypeMatching,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ImportedCount != 0 || len(res.Failures) != 1 {
		t.Fatalf("result = %+v", res)
	}
	if !strings.Contains(res.Failures[0].Messages[0], `user "ghost"`) {
		t.Fatalf("messages = %v", res.Failures[0].Messages)
	}
}

func TestImport_ZipArchiveProcessesEveryFile(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range map[string]string{
		"a.csv":      "LEFT_1,RIGHT_1\nParis,France\n",
		"b.csv":      "LEFT_1,RIGHT_1\nRome,Italy\n",
		"readme.txt": "not a bank",
	} {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip: %v", err)
		}
		w.Write([]byte(content))
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}

	p, st := newTestPipeline("u1")
	res, err := p.Import(context.Background(), &buf, "banks.zip", Options{
		UserID: "u1", Type: question.TypeMatching,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ImportedCount != 2 {
		t.Fatalf("imported = %d, want 2 (failures: %+v)", res.ImportedCount, res.Failures)
	}
	qs, _ := st.ListQuestions(context.Background(), question.Filter{})
	if len(qs) != 2 {
		t.Fatalf("got %d questions, want 2", len(qs))
	}
}

func TestImport_XLSXWorkbook(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	_ = f.SetSheetRow(sheet, "A1", &[]interface{}{"LEFT_1", "RIGHT_1"})
	_ = f.SetSheetRow(sheet, "A2", &[]interface{}{"Paris", "France"})
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("xlsx: %v", err)
	}

	p, _ := newTestPipeline("u1")
	res, err := p.Import(context.Background(), buf, "bank.xlsx", Options{
		UserID: "u1", Type: question.TypeMatching,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ImportedCount != 1 || len(res.Failures) != 0 {
		t.Fatalf("result = %+v", res)
	}
}

func TestImport_AttachesImagesInSubmissionOrder(t *testing.T) {
	st := question.NewInMemoryStore("u1")
	blobs := newMemBlobs()
	p := NewPipeline(st, blobs, nil)

	res, err := p.Import(context.Background(),
		strings.NewReader("LEFT_1,RIGHT_1\nParis,France\n"), "bank.csv", Options{
			UserID: "u1",
			Type:   question.TypeMatching,
			Images: []ImageUpload{
				{Name: "map.png", Data: []byte("map-bytes")},
				{Name: "flag.png", Data: []byte("flag-bytes")},
			},
		})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ImportedCount != 1 {
		t.Fatalf("result = %+v", res)
	}

	qs, _ := st.ListQuestions(context.Background(), question.Filter{})
	imgs := qs[0].Images
	if len(imgs) != 2 {
		t.Fatalf("got %d images, want 2: %+v", len(imgs), imgs)
	}
	if imgs[0].Name != "map.png" || imgs[0].Position != 0 {
		t.Fatalf("first image = %+v", imgs[0])
	}
	if imgs[1].Name != "flag.png" || imgs[1].Position != 1 {
		t.Fatalf("second image = %+v", imgs[1])
	}
	if len(blobs.keys) != 2 ||
		!strings.HasSuffix(blobs.keys[0], "/0-map.png") ||
		!strings.HasSuffix(blobs.keys[1], "/1-flag.png") {
		t.Fatalf("blob keys = %v", blobs.keys)
	}
	if string(blobs.data[imgs[0].Key]) != "map-bytes" {
		t.Fatalf("blob contents = %q", blobs.data[imgs[0].Key])
	}
}

func TestImport_UnsupportedExtension(t *testing.T) {
	p, _ := newTestPipeline("u1")
	_, err := p.Import(context.Background(), strings.NewReader("x"), "bank.pdf", Options{
		UserID: "u1", Type: question.TypeMatching,
	})
	if err == nil {
		t.Fatalf("expected error for unsupported extension")
	}
}

func TestImport_UnknownType(t *testing.T) {
	p, _ := newTestPipeline("u1")
	_, err := p.Import(context.Background(), strings.NewReader("x"), "bank.csv", Options{
		UserID: "u1", Type: question.Type("riddle"),
	})
	if err == nil {
		t.Fatalf("expected error for unknown type")
	}
}
