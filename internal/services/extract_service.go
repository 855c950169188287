package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/markdave123-py/docpipe/internal/core"
	"github.com/markdave123-py/docpipe/internal/core/ingestion_engine"
	"github.com/markdave123-py/docpipe/internal/models"
)

// docNamespace seeds the name-based document ids.
var docNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("docpipe/documents"))

// DocumentID derives a stable id from a path relative to the input folder, so
// re-running on the same tree yields the same ids.
func DocumentID(relPath string) string {
	return uuid.NewSHA1(docNamespace, []byte(relPath)).String()
}

type ExtractOptions struct {
	InputFolder  string
	OutputFolder string
	Extension    string
}

// ExtractService turns source files into ExtractedRecords and writes one JSON
// file per document.
type ExtractService struct {
	storage   core.Storage
	extractor core.DocumentExtractor
	pages     core.PageCounter
	log       *slog.Logger
	now       func() time.Time
}

// NewExtractService wires the stage. pages may be nil to skip page counting.
func NewExtractService(storage core.Storage, extractor core.DocumentExtractor, pages core.PageCounter, logger *slog.Logger) *ExtractService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExtractService{
		storage:   storage,
		extractor: extractor,
		pages:     pages,
		log:       logger,
		now:       time.Now,
	}
}

// Run extracts every matching file under opts.InputFolder. A file that fails is
// logged and skipped; only listing the input folder can fail the stage.
func (s *ExtractService) Run(ctx context.Context, opts ExtractOptions) (map[string]models.ExtractedRecord, models.StageReport, error) {
	if opts.Extension == "" {
		opts.Extension = ".pdf"
	}
	start := time.Now()
	s.log.Info("extract.start", "input", opts.InputFolder, "output", opts.OutputFolder, "ext", opts.Extension)

	files, err := s.storage.ListFiles(ctx, opts.InputFolder, opts.Extension)
	if err != nil {
		s.log.Error("extract.list.failed", "input", opts.InputFolder, "error", err)
		return nil, models.StageReport{}, fmt.Errorf("%w: list %s: %w", core.ErrStageFatal, opts.InputFolder, err)
	}

	out := make(map[string]models.ExtractedRecord, len(files))
	if len(files) == 0 {
		s.log.Warn("extract.no_files", "input", opts.InputFolder, "ext", opts.Extension)
	}

	for _, p := range files {
		if err := ctx.Err(); err != nil {
			return nil, models.StageReport{}, err
		}
		rec, err := s.extractOne(ctx, p, opts)
		if err != nil {
			s.log.Error("extract.file.failed", "file", path.Base(p), "path", p, "error", err)
			continue
		}
		out[rec.DocumentID] = rec
	}

	report := models.NewStageReport(models.StageExtract, len(files), len(out))
	if full, err := s.storage.FullPath(opts.OutputFolder); err == nil {
		report.OutputPath = full
	}
	s.log.Info("extract.done",
		"files_found", report.Total,
		"files_processed", report.Processed,
		"success_rate", report.SuccessRate,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, report, nil
}

func (s *ExtractService) extractOne(ctx context.Context, p string, opts ExtractOptions) (models.ExtractedRecord, error) {
	rc, err := s.storage.ReadFile(ctx, p)
	if err != nil {
		return models.ExtractedRecord{}, err
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return models.ExtractedRecord{}, fmt.Errorf("read %s: %w", p, err)
	}

	name := path.Base(p)
	frags, err := s.extractor.ExtractText(ctx, data, ingestion_engine.ContentType(name))
	if err != nil {
		return models.ExtractedRecord{}, err
	}

	rel := relativeTo(opts.InputFolder, p)
	rec := models.ExtractedRecord{
		DocumentID:     DocumentID(rel),
		Filename:       name,
		DocumentType:   strings.TrimPrefix(strings.ToLower(path.Ext(name)), "."),
		Content:        strings.Join(frags, "\n"),
		ExtractionDate: s.now().UTC(),
		Metadata: map[string]any{
			"source_path": rel,
			"size_bytes":  len(data),
		},
	}
	if s.pages != nil && rec.DocumentType == "pdf" {
		if n, err := s.pages.PageCount(data); err != nil {
			s.log.Warn("extract.page_count.failed", "file", name, "error", err)
		} else {
			rec.Metadata["page_count"] = n
		}
	}

	target := path.Join(opts.OutputFolder, path.Dir(rel), stem(name)+".json")
	if _, err := s.storage.WriteFile(ctx, target, rec); err != nil {
		return models.ExtractedRecord{}, fmt.Errorf("write %s: %w", target, err)
	}
	s.log.Debug("extract.file.ok", "file", name, "document_id", rec.DocumentID, "chars", len(rec.Content))
	return rec, nil
}

// relativeTo strips the logical folder prefix from a listed path.
func relativeTo(folder, p string) string {
	prefix := path.Clean(strings.Trim(folder, "/"))
	if prefix == "." {
		return p
	}
	if rel, ok := strings.CutPrefix(p, prefix+"/"); ok {
		return rel
	}
	return p
}

func stem(name string) string {
	return strings.TrimSuffix(name, path.Ext(name))
}
