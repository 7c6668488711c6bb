package pdf

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	billing "billing-relay/internal/billing/domain"
)

// PlaceholderText is the body of the fallback document.
const PlaceholderText = "No data available for this category."

// placeholderDate pins the placeholder metadata so repeated runs produce identical bytes.
var placeholderDate = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

// Merger merges PDF buffers in memory.
type Merger struct{}

// NewMerger constructs a Merger.
func NewMerger() *Merger {
	// no pdfcpu config dir under $HOME
	api.DisableConfigDir()
	return &Merger{}
}

// Merge appends every page of every non-empty buffer, in input order, to a
// new document. Any unreadable buffer fails the whole merge.
func (m *Merger) Merge(buffers [][]byte) ([]byte, error) {
	readers := make([]io.ReadSeeker, 0, len(buffers))
	for _, buf := range buffers {
		if len(buf) == 0 {
			continue
		}
		readers = append(readers, bytes.NewReader(buf))
	}
	if len(readers) == 0 {
		return nil, billing.ErrNoPages
	}

	var out bytes.Buffer
	if err := api.MergeRaw(readers, &out, false, newConfiguration()); err != nil {
		return nil, fmt.Errorf("pdf merger: %w", err)
	}
	pages, err := PageCount(out.Bytes())
	if err != nil {
		return nil, fmt.Errorf("pdf merger: count pages: %w", err)
	}
	if pages == 0 {
		return nil, billing.ErrNoPages
	}
	return out.Bytes(), nil
}

// Placeholder renders the single-page "no data" document.
func (m *Merger) Placeholder() ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetCreationDate(placeholderDate)
	pdf.SetCatalogSort(true)
	pdf.SetFont("Arial", "", 14)
	pdf.AddPage()
	pdf.Cell(0, 10, PlaceholderText)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("pdf placeholder: %w", err)
	}
	return buf.Bytes(), nil
}

// PageCount returns the number of pages in doc.
func PageCount(doc []byte) (int, error) {
	return api.PageCount(bytes.NewReader(doc), newConfiguration())
}

func newConfiguration() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}
