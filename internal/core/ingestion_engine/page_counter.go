package ingestion_engine

import (
	"bytes"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/markdave123-py/docpipe/internal/core"
)

// PdfcpuCounter reads the page count from the PDF cross-reference table.
type PdfcpuCounter struct{}

var _ core.PageCounter = PdfcpuCounter{}

func (PdfcpuCounter) PageCount(data []byte) (int, error) {
	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed
	n, err := api.PageCount(bytes.NewReader(data), cfg)
	if err != nil {
		return 0, fmt.Errorf("pdfcpu page count: %w", err)
	}
	return n, nil
}
