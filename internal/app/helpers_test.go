package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/docpipe/internal/config"
	"github.com/markdave123-py/docpipe/internal/core"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeInput(t *testing.T, root, rel, body string) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(body), 0o644))
}

type textExtractor struct{}

func (textExtractor) ExtractText(_ context.Context, data []byte, _ string) ([]string, error) {
	if strings.HasPrefix(string(data), "CORRUPT") {
		return nil, errors.New("malformed xref table")
	}
	return []string{string(data)}, nil
}

type onePage struct{}

func (onePage) PageCount([]byte) (int, error) { return 1, nil }

type stubLLM struct {
	mu    sync.Mutex
	reply string
	calls int
}

func (s *stubLLM) Complete(context.Context, core.CompletionRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.reply, nil
}

func testConfig(root string) *config.Config {
	return &config.Config{
		Storage: config.StorageConfig{Type: config.StorageLocal, LocalBasePath: root},
		LLM: config.LLMConfig{
			Provider: config.ProviderOpenAI,
			APIKey:   "sk-test",
			BaseURL:  "http://127.0.0.1:1/v1",
			Model:    "gpt-4",
		},
		Database: config.DatabaseConfig{Backend: config.BackendSQLite, SQLitePath: filepath.Join(root, "docs.db")},
		Pipeline: config.PipelineConfig{
			InputFolder:      "raw",
			ExtractOutput:    "s1_extract_pdf_text",
			StructuredOutput: "s2_structured_info",
			Extension:        ".pdf",
			PromptStage:      "s2_structured_info",
			PromptSection:    "paper_information_extraction",
			TableName:        "documents",
			LLMConcurrency:   1,
			ReportFolder:     "reports",
		},
		Log: config.LogConfig{Level: "info", Format: "json"},
	}
}
