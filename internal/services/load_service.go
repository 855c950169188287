package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/markdave123-py/docpipe/internal/core"
	db "github.com/markdave123-py/docpipe/internal/core/database"
	"github.com/markdave123-py/docpipe/internal/models"
)

type LoadOptions struct {
	Table   string
	Columns []core.Column // empty selects db.DefaultSchema
}

// LoadService replaces the target table with the rows of one run.
type LoadService struct {
	backend core.LoaderBackend
	log     *slog.Logger
	now     func() time.Time
}

func NewLoadService(backend core.LoaderBackend, logger *slog.Logger) *LoadService {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoadService{backend: backend, log: logger, now: time.Now}
}

// Run drops and recreates the table, inserts one row per record and commits.
// Any database error rolls the transaction back and fails the stage.
func (s *LoadService) Run(ctx context.Context, in map[string]models.StructuredRecord, opts LoadOptions) (int64, models.StageReport, error) {
	start := time.Now()
	cols := opts.Columns
	if len(cols) == 0 {
		cols = db.DefaultSchema()
	}
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	s.log.Info("load.start", "table", opts.Table, "dialect", s.backend.Dialect(), "records", len(in), "columns", len(cols))

	n, err := s.load(ctx, in, opts.Table, cols, names)
	if err != nil {
		if rbErr := s.backend.Rollback(ctx); rbErr != nil {
			s.log.Error("load.rollback.failed", "table", opts.Table, "error", rbErr)
		}
		s.log.Error("load.failed", "table", opts.Table, "error", err)
		return 0, models.StageReport{}, fmt.Errorf("%w: load %s: %w", core.ErrStageFatal, opts.Table, err)
	}

	report := models.NewStageReport(models.StageLoad, len(in), int(n))
	report.OutputPath = opts.Table
	report.Extra = map[string]any{"rows_inserted": n, "dialect": s.backend.Dialect()}
	if len(in) == 0 {
		s.log.Warn("load.no_records", "table", opts.Table)
	}
	s.log.Info("load.done", "table", opts.Table, "rows_inserted", n, "elapsed_ms", time.Since(start).Milliseconds())
	return n, report, nil
}

func (s *LoadService) load(ctx context.Context, in map[string]models.StructuredRecord, table string, cols []core.Column, names []string) (int64, error) {
	if err := s.backend.CreateSchema(ctx, table, cols); err != nil {
		return 0, err
	}

	var n int64
	if len(in) > 0 {
		rows, err := s.buildRows(in, cols)
		if err != nil {
			return 0, err
		}
		if n, err = s.backend.InsertBatch(ctx, table, names, rows); err != nil {
			return 0, err
		}
	}

	if err := s.backend.Commit(ctx); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *LoadService) buildRows(in map[string]models.StructuredRecord, cols []core.Column) ([][]any, error) {
	keys := make([]string, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	processed := s.now()
	rows := make([][]any, 0, len(keys))
	var errs []error
	for _, k := range keys {
		rec := in[k]
		if rec.Filename == "" {
			rec.Filename = k
		}
		row, err := FlattenRecord(rec, cols, processed)
		if err != nil {
			errs = append(errs, fmt.Errorf("record %s: %w", k, err))
			continue
		}
		rows = append(rows, row)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return rows, nil
}
