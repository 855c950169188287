package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/markdave123-py/docpipe/internal/core"
)

type GeminiLLM struct {
	client    *genai.Client
	modelName string
	log       *slog.Logger
}

var _ core.LLMProvider = (*GeminiLLM)(nil)

func NewGeminiLLM(ctx context.Context, apiKey, modelName string, logger *slog.Logger) (*GeminiLLM, error) {
	if apiKey == "" {
		return nil, core.NewConfigError("GEMINI_API_KEY", "is required for the gemini provider")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GeminiLLM{client: cl, modelName: modelName, log: logger}, nil
}

func (g *GeminiLLM) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

func (g *GeminiLLM) Complete(ctx context.Context, req core.CompletionRequest) (string, error) {
	start := time.Now()
	name := g.modelName
	// Prompt configs written for OpenAI name gpt models; those fall back to the Gemini default.
	if req.Model != "" && strings.HasPrefix(req.Model, "gemini") {
		name = req.Model
	}

	m := g.client.GenerativeModel(name)
	m.SetTemperature(req.Temperature)
	if req.MaxTokens > 0 {
		m.SetMaxOutputTokens(int32(req.MaxTokens))
	}
	if req.JSONMode {
		m.ResponseMIMEType = "application/json"
	}
	if req.System != "" {
		m.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(req.System)},
		}
	}

	g.log.Info("llm.complete.start", "provider", "gemini", "model", name, "text_len", len(req.User))
	resp, err := m.GenerateContent(ctx, genai.Text(req.User))
	if err != nil {
		g.log.Error("llm.complete.http_error", "provider", "gemini", "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("gemini returned no candidates")
	}

	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	g.log.Info("llm.complete.ok", "provider", "gemini", "elapsed_ms", time.Since(start).Milliseconds())
	return b.String(), nil
}
