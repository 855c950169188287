package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/markdave123-py/docpipe/internal/config"
	"github.com/markdave123-py/docpipe/internal/core"
	db "github.com/markdave123-py/docpipe/internal/core/database"
	"github.com/markdave123-py/docpipe/internal/core/ingestion_engine"
	"github.com/markdave123-py/docpipe/internal/core/llm"
	objectclient "github.com/markdave123-py/docpipe/internal/core/object-client"
	"github.com/markdave123-py/docpipe/internal/models"
	"github.com/markdave123-py/docpipe/internal/prompts"
	"github.com/markdave123-py/docpipe/internal/services"
)

// App holds the resources of one pipeline run. Close releases them.
type App struct {
	Storage  core.Storage
	LLM      core.LLMProvider
	Loader   core.LoaderBackend
	Prompts  *prompts.Store
	Pipeline *Pipeline

	log *slog.Logger
}

// NewApp validates and acquires only what the stages up to until need.
// Anything acquired before a failure is released before returning.
func NewApp(ctx context.Context, cfg *config.Config, until models.Stage, logger *slog.Logger) (_ *App, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	if until == "" {
		until = models.StageLoad
	}
	needLLM := stageIndex(until) >= stageIndex(models.StageStructure)
	needDB := until == models.StageLoad
	if err := cfg.ValidateFor(needLLM, needDB); err != nil {
		logger.Error("app.config.invalid", "until", until, "error", err)
		return nil, err
	}

	setupCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	a := &App{log: logger}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	storage, err := objectclient.New(setupCtx, cfg.Storage, logger.With("component", "storage"))
	if err != nil {
		return nil, err
	}
	a.Storage = storage
	logger.Info("app.storage.ready", "type", cfg.Storage.Type)

	extractor := ingestion_engine.NewDocconvExtractor(false, logger.With("component", "extractor"))
	p := NewPipeline(cfg.Pipeline, a.Storage,
		services.NewExtractService(a.Storage, extractor, ingestion_engine.PdfcpuCounter{}, logger.With("stage", models.StageExtract)),
		logger.With("component", "pipeline"))

	if needLLM {
		if a.Prompts, err = prompts.NewStore(cfg.Pipeline.PromptDir, logger.With("component", "prompts")); err != nil {
			return nil, err
		}
		provider, err := llm.New(setupCtx, cfg.LLM, logger.With("component", "llm"))
		if err != nil {
			return nil, err
		}
		a.LLM = provider
		logger.Info("app.llm.ready", "provider", cfg.LLM.Provider)
		base := core.CompletionRequest{
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   cfg.LLM.MaxTokens,
		}
		p.WithStructure(a.Prompts, services.NewStructureService(a.Storage, a.LLM, a.Prompts, base, logger.With("stage", models.StageStructure)))
	}

	if needDB {
		loader, err := db.New(setupCtx, cfg.Database, logger.With("component", "db"))
		if err != nil {
			return nil, err
		}
		a.Loader = loader
		logger.Info("app.db.ready", "backend", cfg.Database.Backend)
		p.WithLoad(services.NewLoadService(a.Loader, logger.With("stage", models.StageLoad)))
	}

	a.Pipeline = p
	return a, nil
}

// Close releases every acquired resource and reports all failures.
func (a *App) Close() error {
	var errs []error
	if a.Loader != nil {
		if err := a.Loader.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close db: %w", err))
		}
	}
	if c, ok := a.LLM.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close llm: %w", err))
		}
	}
	if a.Storage != nil {
		if err := a.Storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close storage: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		a.log.Warn("app.close.failed", "error", err)
		return err
	}
	return nil
}

// Runner executes one pipeline run under the given id.
type Runner func(ctx context.Context, runID string) (*models.RunReport, error)

// NewRunner returns a Runner that acquires fresh resources for every run and
// releases them when the run ends, whatever the outcome.
func NewRunner(cfg *config.Config, until models.Stage, logger *slog.Logger) Runner {
	return func(ctx context.Context, runID string) (*models.RunReport, error) {
		a, err := NewApp(ctx, cfg, until, logger.With("run_id", runID))
		if err != nil {
			return nil, err
		}
		defer a.Close()
		return a.Pipeline.Run(ctx, runID, until)
	}
}
