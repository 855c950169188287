package services

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

	"github.com/markdave123-py/docpipe/internal/core"
	objectclient "github.com/markdave123-py/docpipe/internal/core/object-client"
	"github.com/markdave123-py/docpipe/internal/prompts"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newStorage(t *testing.T) (*objectclient.LocalStorage, string) {
	t.Helper()
	root := t.TempDir()
	s, err := objectclient.NewLocalStorage(root, quietLogger())
	require.NoError(t, err)
	return s, root
}

func writeInput(t *testing.T, root, rel, body string) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(body), 0o644))
}

// fakeExtractor treats the file bytes as text; a body starting with "CORRUPT" fails.
type fakeExtractor struct{}

func (fakeExtractor) ExtractText(_ context.Context, data []byte, _ string) ([]string, error) {
	s := string(data)
	if strings.HasPrefix(s, "CORRUPT") {
		return nil, errors.New("malformed xref table")
	}
	return strings.Split(s, "\n"), nil
}

type fakePages struct{ n int }

func (f fakePages) PageCount([]byte) (int, error) { return f.n, nil }

// fakeLLM answers from a table keyed by a substring of the user message.
type fakeLLM struct {
	mu      sync.Mutex
	replies map[string]string
	errs    map[string]error
	calls   []core.CompletionRequest
}

func (f *fakeLLM) Complete(_ context.Context, req core.CompletionRequest) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()
	for k, err := range f.errs {
		if strings.Contains(req.User, k) {
			return "", err
		}
	}
	for k, reply := range f.replies {
		if strings.Contains(req.User, k) {
			return reply, nil
		}
	}
	return `{}`, nil
}

type staticPrompts struct {
	cfg *prompts.PromptConfig
	err error
}

func (s staticPrompts) Load(string, string) (*prompts.PromptConfig, error) {
	return s.cfg, s.err
}

func titleAuthorSummary() *prompts.PromptConfig {
	return &prompts.PromptConfig{
		OutputSchema: map[string]any{
			"title":           "string",
			"author":          "string",
			"content_summary": "string",
		},
	}
}
