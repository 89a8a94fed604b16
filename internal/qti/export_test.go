package qti

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"testing"

	"github.com/notch8/viva-sub001/internal/question"
)

func readZip(t *testing.T, pkg []byte) map[string]string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(pkg), int64(len(pkg)))
	if err != nil {
		t.Fatalf("unzip: %v", err)
	}
	out := map[string]string{}
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", f.Name, err)
		}
		b, _ := io.ReadAll(rc)
		rc.Close()
		out[f.Name] = string(b)
	}
	return out
}

func TestBuildPackage_Contents(t *testing.T) {
	q := pairQuestion(t, "q1", question.TypeMatching, []question.Pair{
		{Answer: "Paris", Correct: []string{"France"}},
	})
	pkg, failures, err := BuildPackage([]question.Question{q}, 100)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(failures) != 0 {
		t.Fatalf("failures = %+v", failures)
	}
	files := readZip(t, pkg)

	item, ok := files["q1.xml"]
	if !ok {
		t.Fatalf("missing q1.xml, got %v", keys(files))
	}
	if !strings.Contains(item, "<questestinterop>") || !strings.Contains(item, `<item ident="item-q1"`) {
		t.Fatalf("item file:\n%s", item)
	}

	mf, ok := files["imsmanifest.xml"]
	if !ok {
		t.Fatalf("missing imsmanifest.xml")
	}
	if !strings.Contains(mf, `identifier="item-q1"`) || !strings.Contains(mf, `type="imsqti_xmlv1p2"`) {
		t.Fatalf("manifest:\n%s", mf)
	}

	var report struct {
		Exported int           `json:"exported"`
		Failures []ItemFailure `json:"failures"`
	}
	if err := json.Unmarshal([]byte(files["export_report.json"]), &report); err != nil {
		t.Fatalf("report: %v", err)
	}
	if report.Exported != 1 || len(report.Failures) != 0 {
		t.Fatalf("report = %+v", report)
	}
}

func TestBuildPackage_BadItemDoesNotAbortBatch(t *testing.T) {
	good := pairQuestion(t, "q1", question.TypeMatching, []question.Pair{
		{Answer: "Paris", Correct: []string{"France"}},
	})
	bad := question.Question{ID: "q2", Type: question.TypeBowTie}

	pkg, failures, err := BuildPackage([]question.Question{good, bad}, 100)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(failures) != 1 || failures[0].QuestionID != "q2" {
		t.Fatalf("failures = %+v", failures)
	}
	files := readZip(t, pkg)
	if _, ok := files["q1.xml"]; !ok {
		t.Fatalf("good item missing from package")
	}
	if _, ok := files["q2.xml"]; ok {
		t.Fatalf("failed item must not appear in package")
	}
}

func TestBuildPackage_CompositeChildrenInPresentationOrder(t *testing.T) {
	second := pairQuestion(t, "c2", question.TypeMatching, []question.Pair{
		{Answer: "Rome", Correct: []string{"Italy"}},
	})
	second.PresentationOrder = 2
	first := pairQuestion(t, "c1", question.TypeMatching, []question.Pair{
		{Answer: "Paris", Correct: []string{"France"}},
	})
	first.PresentationOrder = 1

	caseStudy := question.Question{
		ID:       "cs",
		Type:     question.TypeStimulusCaseStudy,
		Children: []question.Question{second, first}, // stored out of order
	}
	flat := flattenForExport([]question.Question{caseStudy})
	if len(flat) != 2 || flat[0].ID != "c1" || flat[1].ID != "c2" {
		t.Fatalf("flattened order: %+v", flat)
	}

	pkg, failures, err := BuildPackage([]question.Question{caseStudy}, 100)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(failures) != 0 {
		t.Fatalf("failures = %+v", failures)
	}
	files := readZip(t, pkg)
	for _, name := range []string{"c1.xml", "c2.xml"} {
		if _, ok := files[name]; !ok {
			t.Fatalf("missing %s, got %v", name, keys(files))
		}
	}
}

func keys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
