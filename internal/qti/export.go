package qti

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"sort"

	"github.com/notch8/viva-sub001/internal/metrics"
	"github.com/notch8/viva-sub001/internal/question"
)

// ItemFailure reports one question that could not be encoded. A failed item
// never aborts the rest of the batch.
type ItemFailure struct {
	QuestionID string `json:"question_id"`
	Message    string `json:"message"`
}

// BuildPackage writes a QTI content package: one item file per exportable
// question plus imsmanifest.xml and an export report. Composite questions
// contribute their children in presentation order. All memoized encode
// state lives in a cache scoped to this call.
func BuildPackage(qs []question.Question, maxScore float64) ([]byte, []ItemFailure, error) {
	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)
	cache := NewCache()

	mf := imsManifest{Resources: []imsResource{}}
	var failures []ItemFailure
	exported := 0

	for _, q := range flattenForExport(qs) {
		itemXML, err := EncodeItem(q, maxScore, cache)
		if err != nil {
			metrics.ExportFailures.Inc()
			failures = append(failures, ItemFailure{QuestionID: q.ID, Message: err.Error()})
			continue
		}
		itemName := fmt.Sprintf("%s.xml", q.ID)
		mf.Resources = append(mf.Resources, imsResource{
			Identifier: ItemIdent(q),
			Type:       "imsqti_xmlv1p2",
			Href:       itemName,
			Files:      []imsFile{{Href: itemName}},
		})
		w, err := zw.Create(itemName)
		if err != nil {
			return nil, nil, err
		}
		for _, s := range []string{xml.Header, "<questestinterop>\n", itemXML, "\n</questestinterop>\n"} {
			if _, err := io.WriteString(w, s); err != nil {
				return nil, nil, err
			}
		}
		metrics.ItemsExported.Inc()
		exported++
	}

	mfw, err := zw.Create("imsmanifest.xml")
	if err != nil {
		return nil, nil, err
	}
	b, err := xml.MarshalIndent(mf, "", "  ")
	if err != nil {
		return nil, nil, err
	}
	if _, err := mfw.Write([]byte(xml.Header)); err != nil {
		return nil, nil, err
	}
	if _, err := mfw.Write(b); err != nil {
		return nil, nil, err
	}

	rw, err := zw.Create("export_report.json")
	if err != nil {
		return nil, nil, err
	}
	_ = json.NewEncoder(rw).Encode(map[string]interface{}{
		"exported": exported,
		"failures": failures,
	})

	if err := zw.Close(); err != nil {
		return nil, nil, err
	}
	return buf.Bytes(), failures, nil
}

// flattenForExport expands composite questions into their children, ordered
// by presentation order; everything else passes through as-is.
func flattenForExport(qs []question.Question) []question.Question {
	var out []question.Question
	for _, q := range qs {
		if q.Type.Config().Family != question.FamilyComposite {
			out = append(out, q)
			continue
		}
		children := append([]question.Question(nil), q.Children...)
		sort.SliceStable(children, func(i, j int) bool {
			return children[i].PresentationOrder < children[j].PresentationOrder
		})
		out = append(out, children...)
	}
	return out
}

// --- mini XML model for the manifest (export only) ---

type imsManifest struct {
	XMLName   xml.Name      `xml:"manifest"`
	Xmlns     string        `xml:"xmlns,attr,omitempty"`
	Resources []imsResource `xml:"resources>resource"`
}
type imsResource struct {
	Identifier string    `xml:"identifier,attr"`
	Type       string    `xml:"type,attr"`
	Href       string    `xml:"href,attr"`
	Files      []imsFile `xml:"file"`
}
type imsFile struct {
	Href string `xml:"href,attr"`
}
