package services

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/markdave123-py/docpipe/internal/core"
	"github.com/markdave123-py/docpipe/internal/core/llm"
	"github.com/markdave123-py/docpipe/internal/models"
	"github.com/markdave123-py/docpipe/internal/prompts"
)

// PromptLoader resolves a prompt configuration by stage and section.
type PromptLoader interface {
	Load(stage, section string) (*prompts.PromptConfig, error)
}

type StructureOptions struct {
	OutputFolder string
	StageName    string
	Section      string
	// Concurrency bounds in-flight LLM calls. Values below 2 run documents one at a time.
	Concurrency int
}

// StructureService sends extracted text to the LLM and keeps the JSON objects it returns.
type StructureService struct {
	storage core.Storage
	llm     core.LLMProvider
	prompts PromptLoader
	base    core.CompletionRequest
	log     *slog.Logger
}

// NewStructureService wires the stage. base carries the provider defaults
// (model, temperature, max tokens) that a prompt section may override.
func NewStructureService(storage core.Storage, provider core.LLMProvider, loader PromptLoader, base core.CompletionRequest, logger *slog.Logger) *StructureService {
	if logger == nil {
		logger = slog.Default()
	}
	return &StructureService{storage: storage, llm: provider, prompts: loader, base: base, log: logger}
}

type structureJob struct {
	key string
	rec models.ExtractedRecord
}

// Run structures every record of in. The result is keyed by filename; a filename
// seen twice is keyed by its source path instead. Per-document failures are
// logged and dropped. A prompt configuration that cannot be loaded fails the stage.
func (s *StructureService) Run(ctx context.Context, in map[string]models.ExtractedRecord, opts StructureOptions) (map[string]models.StructuredRecord, models.StageReport, error) {
	start := time.Now()
	s.log.Info("structure.start", "documents", len(in), "stage", opts.StageName, "section", opts.Section)

	cfg, err := s.prompts.Load(opts.StageName, opts.Section)
	if err != nil {
		return nil, models.StageReport{}, err
	}
	var schema *llm.Schema
	if len(cfg.JSONSchema) > 0 {
		if schema, err = llm.CompileSchema(cfg.JSONSchema); err != nil {
			s.log.Error("structure.schema.invalid", "stage", opts.StageName, "section", opts.Section, "error", err)
			return nil, models.StageReport{}, fmt.Errorf("%w: json_schema of %s/%s: %w", core.ErrConfig, opts.StageName, opts.Section, err)
		}
	}

	out := make(map[string]models.StructuredRecord, len(in))
	report := models.NewStageReport(models.StageStructure, len(in), 0)
	if full, err := s.storage.FullPath(opts.OutputFolder); err == nil {
		report.OutputPath = full
	}
	if len(in) == 0 {
		s.log.Warn("structure.no_documents", "success_rate", report.SuccessRate)
		return out, report, nil
	}

	jobs := planJobs(in)
	var mu sync.Mutex
	process := func(j structureJob) {
		rec, err := s.structureOne(ctx, cfg, schema, j.rec, opts.OutputFolder)
		if err != nil {
			s.log.Error("structure.document.failed", "file", j.rec.Filename, "document_id", j.rec.DocumentID, "error", err)
			return
		}
		mu.Lock()
		out[j.key] = rec
		mu.Unlock()
	}

	if opts.Concurrency < 2 {
		for _, j := range jobs {
			if err := ctx.Err(); err != nil {
				return nil, models.StageReport{}, err
			}
			process(j)
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(opts.Concurrency)
		for _, j := range jobs {
			j := j
			g.Go(func() error {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				process(j)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, models.StageReport{}, err
		}
	}

	report = models.NewStageReport(models.StageStructure, len(in), len(out))
	if full, err := s.storage.FullPath(opts.OutputFolder); err == nil {
		report.OutputPath = full
	}
	s.log.Info("structure.done",
		"documents_processed", report.Processed,
		"success_rate", report.SuccessRate,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, report, nil
}

// planJobs orders the records by source path and assigns each its output key.
func planJobs(in map[string]models.ExtractedRecord) []structureJob {
	recs := make([]models.ExtractedRecord, 0, len(in))
	for id, r := range in {
		if r.DocumentID == "" {
			r.DocumentID = id
		}
		recs = append(recs, r)
	}
	sort.Slice(recs, func(i, j int) bool {
		a, b := sourcePath(recs[i]), sourcePath(recs[j])
		if a != b {
			return a < b
		}
		return recs[i].DocumentID < recs[j].DocumentID
	})

	jobs := make([]structureJob, 0, len(recs))
	used := make(map[string]bool, len(recs))
	for _, r := range recs {
		key := r.Filename
		if used[key] {
			key = sourcePath(r)
		}
		if used[key] {
			key = r.DocumentID
		}
		used[key] = true
		jobs = append(jobs, structureJob{key: key, rec: r})
	}
	return jobs
}

func (s *StructureService) structureOne(ctx context.Context, cfg *prompts.PromptConfig, schema *llm.Schema, rec models.ExtractedRecord, outFolder string) (models.StructuredRecord, error) {
	req, err := llm.BuildRequest(cfg, rec.Content, s.base)
	if err != nil {
		return models.StructuredRecord{}, err
	}
	raw, err := s.llm.Complete(ctx, req)
	if err != nil {
		return models.StructuredRecord{}, fmt.Errorf("llm request: %w", err)
	}
	obj, err := llm.ParseJSONObject(raw)
	if err != nil {
		return models.StructuredRecord{}, err
	}
	if schema != nil {
		if err := schema.Validate(obj); err != nil {
			return models.StructuredRecord{}, err
		}
	}

	src := sourcePath(rec)
	target := path.Join(outFolder, path.Dir(src), stem(rec.Filename)+"_structured.json")
	if _, err := s.storage.WriteFile(ctx, target, obj); err != nil {
		return models.StructuredRecord{}, fmt.Errorf("write %s: %w", target, err)
	}

	return models.StructuredRecord{
		DocumentID:     rec.DocumentID,
		Filename:       rec.Filename,
		SourcePath:     src,
		ExtractionDate: rec.ExtractionDate,
		JSONData:       obj,
	}, nil
}

func sourcePath(r models.ExtractedRecord) string {
	if p, ok := r.Metadata["source_path"].(string); ok && p != "" {
		return p
	}
	return r.Filename
}
