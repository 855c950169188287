package services

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/docpipe/internal/core"
	"github.com/markdave123-py/docpipe/internal/models"
)

func TestExtract_SkipsFailedFiles(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
		ok    int
		rate  string
	}{
		{"all good", map[string]string{"raw/a.pdf": "alpha", "raw/b.pdf": "beta"}, 2, "100.00%"},
		{"one of three fails", map[string]string{"raw/a.pdf": "alpha", "raw/b.pdf": "CORRUPT", "raw/c.pdf": "gamma"}, 2, "66.67%"},
		{"all fail", map[string]string{"raw/a.pdf": "CORRUPT", "raw/sub/b.pdf": "CORRUPT again"}, 0, "0.00%"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, root := newStorage(t)
			for p, body := range tt.files {
				writeInput(t, root, p, body)
			}
			svc := NewExtractService(st, fakeExtractor{}, nil, quietLogger())

			out, report, err := svc.Run(context.Background(), ExtractOptions{InputFolder: "raw", OutputFolder: "s1", Extension: ".pdf"})
			require.NoError(t, err)

			assert.Len(t, out, tt.ok)
			assert.Equal(t, len(tt.files), report.Total)
			assert.Equal(t, tt.ok, report.Processed)
			assert.Equal(t, len(tt.files)-tt.ok, report.Failed)
			assert.Equal(t, tt.rate, report.SuccessRate)

			written, err := st.ListFiles(context.Background(), "s1", ".json")
			require.NoError(t, err)
			assert.Len(t, written, tt.ok)
		})
	}
}

func TestExtract_EmptyFolder(t *testing.T) {
	st, _ := newStorage(t)
	svc := NewExtractService(st, fakeExtractor{}, nil, quietLogger())

	out, report, err := svc.Run(context.Background(), ExtractOptions{InputFolder: "raw", OutputFolder: "s1"})
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Equal(t, "0%", report.SuccessRate)
}

func TestExtract_RecordShapeAndRoundTrip(t *testing.T) {
	st, root := newStorage(t)
	writeInput(t, root, "raw/2024/report.pdf", "Revenue increased.")
	ts := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	svc := NewExtractService(st, fakeExtractor{}, fakePages{n: 3}, quietLogger())
	svc.now = func() time.Time { return ts }

	out, _, err := svc.Run(context.Background(), ExtractOptions{InputFolder: "raw", OutputFolder: "s1", Extension: ".pdf"})
	require.NoError(t, err)
	require.Len(t, out, 1)

	id := DocumentID("2024/report.pdf")
	rec, ok := out[id]
	require.True(t, ok)
	assert.Equal(t, id, rec.DocumentID)
	assert.Equal(t, "report.pdf", rec.Filename)
	assert.Equal(t, "Revenue increased.", rec.Content)
	assert.Equal(t, "pdf", rec.DocumentType)
	assert.Equal(t, ts, rec.ExtractionDate)
	assert.Equal(t, 3, rec.Metadata["page_count"])

	// The per-document file lives next to the mirrored source directory.
	assert.FileExists(t, filepath.Join(root, "s1", "2024", "report.json"))

	var back models.ExtractedRecord
	require.NoError(t, st.ReadJSON(context.Background(), "s1/2024/report.json", &back))
	assert.Equal(t, rec.Filename, back.Filename)
	assert.Equal(t, rec.Content, back.Content)
	assert.True(t, rec.ExtractionDate.Equal(back.ExtractionDate))
}

func TestExtract_JoinsFragmentsWithNewlines(t *testing.T) {
	st, root := newStorage(t)
	writeInput(t, root, "raw/a.pdf", "line one\nline two")
	svc := NewExtractService(st, fakeExtractor{}, nil, quietLogger())

	out, _, err := svc.Run(context.Background(), ExtractOptions{InputFolder: "raw", OutputFolder: "s1"})
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two", out[DocumentID("a.pdf")].Content)
}

func TestExtract_ListFailureIsFatal(t *testing.T) {
	svc := NewExtractService(failingList{}, fakeExtractor{}, nil, quietLogger())

	_, _, err := svc.Run(context.Background(), ExtractOptions{InputFolder: "raw", OutputFolder: "s1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrStageFatal)
}

func TestDocumentID_Stable(t *testing.T) {
	assert.Equal(t, DocumentID("a/report.pdf"), DocumentID("a/report.pdf"))
	assert.NotEqual(t, DocumentID("a/report.pdf"), DocumentID("b/report.pdf"))
}

func TestRelativeTo(t *testing.T) {
	assert.Equal(t, "a.pdf", relativeTo("raw", "raw/a.pdf"))
	assert.Equal(t, "x/a.pdf", relativeTo("/raw/", "raw/x/a.pdf"))
	assert.Equal(t, "raw/a.pdf", relativeTo("", "raw/a.pdf"))
	assert.Equal(t, "a.pdf", relativeTo("./raw", "raw/a.pdf"))
	assert.Equal(t, "a.pdf", relativeTo("raw/../raw/", "raw/a.pdf"))
	assert.Equal(t, "raw/a.pdf", relativeTo(".", "raw/a.pdf"))
}

func TestExtract_DotPrefixedInputFolder(t *testing.T) {
	st, root := newStorage(t)
	writeInput(t, root, "raw/a.pdf", "alpha")
	svc := NewExtractService(st, fakeExtractor{}, nil, quietLogger())

	out, _, err := svc.Run(context.Background(), ExtractOptions{InputFolder: "./raw", OutputFolder: "s1", Extension: ".pdf"})
	require.NoError(t, err)
	_, ok := out[DocumentID("a.pdf")]
	assert.True(t, ok)
	assert.FileExists(t, filepath.Join(root, "s1", "a.json"))
}
