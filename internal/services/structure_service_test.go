package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/docpipe/internal/core"
	"github.com/markdave123-py/docpipe/internal/models"
	"github.com/markdave123-py/docpipe/internal/prompts"
)

func extracted(names ...string) map[string]models.ExtractedRecord {
	out := make(map[string]models.ExtractedRecord, len(names))
	for _, n := range names {
		id := DocumentID(n)
		out[id] = models.ExtractedRecord{
			DocumentID:     id,
			Filename:       n,
			Content:        "text of " + n,
			ExtractionDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			Metadata:       map[string]any{"source_path": n},
		}
	}
	return out
}

func TestStructure_InvalidJSONDropsOnlyThatDocument(t *testing.T) {
	for _, conc := range []int{1, 4} {
		t.Run(fmt.Sprintf("concurrency=%d", conc), func(t *testing.T) {
			st, _ := newStorage(t)
			llm := &fakeLLM{replies: map[string]string{
				"doc1.pdf": `{"title":"One"}`,
				"doc2.pdf": `I could not find a title, sorry.`,
				"doc3.pdf": "```json\n{\"title\":\"Three\"}\n```",
			}}
			svc := NewStructureService(st, llm, staticPrompts{cfg: titleAuthorSummary()}, core.CompletionRequest{Model: "gpt-4"}, quietLogger())

			out, report, err := svc.Run(context.Background(), extracted("doc1.pdf", "doc2.pdf", "doc3.pdf"),
				StructureOptions{OutputFolder: "s2", Concurrency: conc})
			require.NoError(t, err)

			require.Len(t, out, 2)
			assert.Equal(t, "One", out["doc1.pdf"].JSONData["title"])
			assert.Equal(t, "Three", out["doc3.pdf"].JSONData["title"])
			assert.NotContains(t, out, "doc2.pdf")
			assert.Equal(t, "66.67%", report.SuccessRate)
			assert.Len(t, llm.calls, 3)

			files, err := st.ListFiles(context.Background(), "s2", ".json")
			require.NoError(t, err)
			assert.Equal(t, []string{"s2/doc1_structured.json", "s2/doc3_structured.json"}, files)
		})
	}
}

func TestStructure_LLMErrorIsIsolated(t *testing.T) {
	st, _ := newStorage(t)
	llm := &fakeLLM{
		replies: map[string]string{"a.pdf": `{"title":"A"}`},
		errs:    map[string]error{"b.pdf": errors.New("context deadline exceeded")},
	}
	svc := NewStructureService(st, llm, staticPrompts{cfg: titleAuthorSummary()}, core.CompletionRequest{}, quietLogger())

	out, report, err := svc.Run(context.Background(), extracted("a.pdf", "b.pdf"), StructureOptions{OutputFolder: "s2"})
	require.NoError(t, err)
	assert.Len(t, out, 1)
	assert.Equal(t, 1, report.Failed)
}

func TestStructure_EmptyInput(t *testing.T) {
	st, _ := newStorage(t)
	llm := &fakeLLM{}
	svc := NewStructureService(st, llm, staticPrompts{cfg: titleAuthorSummary()}, core.CompletionRequest{}, quietLogger())

	out, report, err := svc.Run(context.Background(), map[string]models.ExtractedRecord{}, StructureOptions{OutputFolder: "s2"})
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Equal(t, "0%", report.SuccessRate)
	assert.Empty(t, llm.calls)
}

func TestStructure_MissingPromptConfigIsFatal(t *testing.T) {
	st, _ := newStorage(t)
	cfgErr := core.NewConfigError("PROMPT_SECTION", "unknown section")
	svc := NewStructureService(st, &fakeLLM{}, staticPrompts{err: cfgErr}, core.CompletionRequest{}, quietLogger())

	_, _, err := svc.Run(context.Background(), extracted("a.pdf"), StructureOptions{OutputFolder: "s2"})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrConfig)
}

func TestStructure_SchemaValidation(t *testing.T) {
	st, _ := newStorage(t)
	cfg := titleAuthorSummary()
	cfg.JSONSchema = map[string]any{
		"type":     "object",
		"required": []any{"title"},
	}
	llm := &fakeLLM{replies: map[string]string{
		"a.pdf": `{"title":"A"}`,
		"b.pdf": `{"author":"nobody"}`,
	}}
	svc := NewStructureService(st, llm, staticPrompts{cfg: cfg}, core.CompletionRequest{}, quietLogger())

	out, _, err := svc.Run(context.Background(), extracted("a.pdf", "b.pdf"), StructureOptions{OutputFolder: "s2"})
	require.NoError(t, err)
	assert.Len(t, out, 1)
	assert.Contains(t, out, "a.pdf")
}

func TestStructure_InvalidJSONSchemaIsFatal(t *testing.T) {
	st, _ := newStorage(t)
	cfg := titleAuthorSummary()
	cfg.JSONSchema = map[string]any{"type": 12}
	llm := &fakeLLM{}
	svc := NewStructureService(st, llm, staticPrompts{cfg: cfg}, core.CompletionRequest{}, quietLogger())

	_, _, err := svc.Run(context.Background(), extracted("a.pdf"), StructureOptions{OutputFolder: "s2"})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrConfig)
	assert.Empty(t, llm.calls)
}

func TestStructure_TrailingBracketReplyIsDropped(t *testing.T) {
	st, root := newStorage(t)
	llm := &fakeLLM{replies: map[string]string{
		"a.pdf": `{"title":"A"}`,
		"b.pdf": `{"title":"B"}}`,
	}}
	svc := NewStructureService(st, llm, staticPrompts{cfg: titleAuthorSummary()}, core.CompletionRequest{}, quietLogger())

	out, report, err := svc.Run(context.Background(), extracted("a.pdf", "b.pdf"), StructureOptions{OutputFolder: "s2"})
	require.NoError(t, err)
	assert.Len(t, out, 1)
	assert.NotContains(t, out, "b.pdf")
	assert.Equal(t, 1, report.Failed)
	assert.NoFileExists(t, filepath.Join(root, "s2", "b_structured.json"))
}

func TestStructure_RequestCarriesSchemaAndText(t *testing.T) {
	st, _ := newStorage(t)
	llm := &fakeLLM{}
	temp := float32(0.2)
	cfg := &prompts.PromptConfig{Temperature: &temp, OutputSchema: map[string]any{"title": "string"}}
	svc := NewStructureService(st, llm, staticPrompts{cfg: cfg}, core.CompletionRequest{Model: "gpt-4", MaxTokens: 1000}, quietLogger())

	_, _, err := svc.Run(context.Background(), extracted("a.pdf"), StructureOptions{OutputFolder: "s2"})
	require.NoError(t, err)
	require.Len(t, llm.calls, 1)

	req := llm.calls[0]
	assert.Equal(t, `Schema: {"title":"string"}`+"\n\nText:\ntext of a.pdf", req.User)
	assert.Equal(t, "gpt-4", req.Model)
	assert.Equal(t, float32(0.2), req.Temperature)
	assert.True(t, req.JSONMode)
}

func TestPlanJobs_DuplicateFilenames(t *testing.T) {
	in := map[string]models.ExtractedRecord{
		"id-1": {DocumentID: "id-1", Filename: "report.pdf", Metadata: map[string]any{"source_path": "2023/report.pdf"}},
		"id-2": {DocumentID: "id-2", Filename: "report.pdf", Metadata: map[string]any{"source_path": "2024/report.pdf"}},
	}
	jobs := planJobs(in)
	require.Len(t, jobs, 2)
	assert.Equal(t, "report.pdf", jobs[0].key)
	assert.Equal(t, "2024/report.pdf", jobs[1].key)
}
