package ingestion_engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"code.sajari.com/docconv"

	"github.com/markdave123-py/docpipe/internal/core"
)

// ErrEmptyText is returned when a document converts cleanly but holds no text,
// e.g. a scanned PDF without an OCR layer.
var ErrEmptyText = errors.New("no extractable text")

// DocconvExtractor implements core.DocumentExtractor using sajari/docconv.
type DocconvExtractor struct {
	useReadability bool
	log            *slog.Logger
}

var _ core.DocumentExtractor = (*DocconvExtractor)(nil)

func NewDocconvExtractor(useReadability bool, logger *slog.Logger) *DocconvExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &DocconvExtractor{useReadability: useReadability, log: logger}
}

// ExtractText converts the document and returns its non-blank lines in order.
func (e *DocconvExtractor) ExtractText(ctx context.Context, data []byte, contentType string) ([]string, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("docconv: %w: empty input", ErrEmptyText)
	}

	res, err := docconv.Convert(bytes.NewReader(data), contentType, e.useReadability)
	if err != nil {
		return nil, fmt.Errorf("docconv: extraction failed for content type %q: %w", contentType, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	frags := SplitFragments(res.Body)
	if len(frags) == 0 {
		return nil, fmt.Errorf("docconv: %w for content type %q", ErrEmptyText, contentType)
	}
	e.log.Debug("extract.docconv.ok", "content_type", contentType, "fragments", len(frags))
	return frags, nil
}

// SplitFragments breaks converted text into trimmed, non-empty lines.
func SplitFragments(text string) []string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line = strings.TrimSpace(line); line == "" {
			continue
		}
		out = append(out, line)
	}
	return out
}

// ContentType maps a filename to the MIME type docconv expects.
func ContentType(filename string) string {
	return docconv.MimeTypeByExtension(filename)
}
