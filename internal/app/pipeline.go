package app

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/google/uuid"

	"github.com/markdave123-py/docpipe/internal/config"
	"github.com/markdave123-py/docpipe/internal/core"
	"github.com/markdave123-py/docpipe/internal/models"
	"github.com/markdave123-py/docpipe/internal/services"
)

// Pipeline runs the stages in dependency order, handing each stage's mapping
// to the next.
type Pipeline struct {
	cfg       config.PipelineConfig
	storage   core.Storage
	prompts   services.PromptLoader
	extract   *services.ExtractService
	structure *services.StructureService
	load      *services.LoadService
	log       *slog.Logger
	now       func() time.Time
}

// NewPipeline wires the extract stage. Later stages are attached with
// WithStructure and WithLoad; a run asking for an unattached stage fails.
func NewPipeline(cfg config.PipelineConfig, storage core.Storage, extract *services.ExtractService, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{cfg: cfg, storage: storage, extract: extract, log: logger, now: time.Now}
}

func (p *Pipeline) WithStructure(prompts services.PromptLoader, structure *services.StructureService) *Pipeline {
	p.prompts = prompts
	p.structure = structure
	return p
}

func (p *Pipeline) WithLoad(load *services.LoadService) *Pipeline {
	p.load = load
	return p
}

func stageIndex(s models.Stage) int {
	for i, st := range models.Stages {
		if st == s {
			return i
		}
	}
	return -1
}

// ParseStage accepts a stage name or its short alias (extract, structure, load).
func ParseStage(s string) (models.Stage, error) {
	switch s {
	case "", "load", string(models.StageLoad):
		return models.StageLoad, nil
	case "extract", string(models.StageExtract):
		return models.StageExtract, nil
	case "structure", string(models.StageStructure):
		return models.StageStructure, nil
	}
	return "", fmt.Errorf("unknown stage %q", s)
}

// Run executes every stage up to and including until. A stage-fatal error stops
// the run; the report collected so far is still returned.
func (p *Pipeline) Run(ctx context.Context, runID string, until models.Stage) (*models.RunReport, error) {
	if runID == "" {
		runID = uuid.NewString()
	}
	if until == "" {
		until = models.StageLoad
	}
	if stageIndex(until) < 0 {
		return nil, fmt.Errorf("unknown stage %q", until)
	}

	report := &models.RunReport{RunID: runID, StartedAt: p.now().UTC()}
	p.log.Info("pipeline.start", "run_id", runID, "until", until)

	err := p.run(ctx, report, until)
	report.FinishedAt = p.now().UTC()
	if err != nil {
		report.Error = err.Error()
		p.log.Error("pipeline.failed", "run_id", runID, "error", err)
	} else {
		p.log.Info("pipeline.done", "run_id", runID, "stages", len(report.Stages),
			"elapsed_ms", report.FinishedAt.Sub(report.StartedAt).Milliseconds())
	}

	if p.cfg.ExportXLSX {
		loc, xerr := p.exportReport(ctx, report)
		if xerr != nil {
			p.log.Warn("pipeline.report.failed", "run_id", runID, "error", xerr)
		} else {
			report.ReportPath = loc
		}
	}
	return report, err
}

func (p *Pipeline) run(ctx context.Context, report *models.RunReport, until models.Stage) error {
	extracted, sr, err := p.extract.Run(ctx, services.ExtractOptions{
		InputFolder:  p.cfg.InputFolder,
		OutputFolder: p.cfg.ExtractOutput,
		Extension:    p.cfg.Extension,
	})
	if err != nil {
		return err
	}
	report.Stages = append(report.Stages, sr)
	if until == models.StageExtract {
		return nil
	}

	if p.structure == nil {
		return fmt.Errorf("%w: structure stage not configured", core.ErrConfig)
	}
	structured, sr, err := p.structure.Run(ctx, extracted, services.StructureOptions{
		OutputFolder: p.cfg.StructuredOutput,
		StageName:    p.cfg.PromptStage,
		Section:      p.cfg.PromptSection,
		Concurrency:  p.cfg.LLMConcurrency,
	})
	if err != nil {
		return err
	}
	report.Stages = append(report.Stages, sr)
	if until == models.StageStructure {
		return nil
	}

	if p.load == nil {
		return fmt.Errorf("%w: load stage not configured", core.ErrConfig)
	}
	opts := services.LoadOptions{Table: p.cfg.TableName}
	// The prompt section that shaped the payload also declares its table layout.
	if cfg, err := p.prompts.Load(p.cfg.PromptStage, p.cfg.PromptSection); err == nil {
		if cfg.Table != "" {
			opts.Table = cfg.Table
		}
		opts.Columns = cfg.Columns
	}
	_, sr, err = p.load.Run(ctx, structured, opts)
	if err != nil {
		return err
	}
	report.Stages = append(report.Stages, sr)
	return nil
}

func (p *Pipeline) reportPath(runID string) string {
	folder := p.cfg.ReportFolder
	if folder == "" {
		folder = "reports"
	}
	return path.Join(folder, runID+".xlsx")
}
