package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/markdave123-py/docpipe/internal/core"
)

const defaultAzureAPIVersion = "2024-12-01-preview"

// OpenAIConfig configures the chat-completions client. Setting AzureEndpoint
// switches to the Azure OpenAI deployment routes and api-key auth.
type OpenAIConfig struct {
	APIKey          string
	BaseURL         string // default https://api.openai.com/v1
	Model           string
	Timeout         time.Duration
	AzureEndpoint   string
	AzureDeployment string
	AzureAPIVersion string
}

// OpenAIClient talks to the OpenAI (or Azure OpenAI) chat completions API.
type OpenAIClient struct {
	cfg  OpenAIConfig
	http *http.Client
	log  *slog.Logger
}

var _ core.LLMProvider = (*OpenAIClient)(nil)

func NewOpenAIClient(cfg OpenAIConfig, logger *slog.Logger) *OpenAIClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.AzureEndpoint != "" && cfg.AzureAPIVersion == "" {
		cfg.AzureAPIVersion = defaultAzureAPIVersion
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenAIClient{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  logger,
	}
}

func (c *OpenAIClient) azure() bool { return c.cfg.AzureEndpoint != "" }

func (c *OpenAIClient) endpoint() string {
	if c.azure() {
		return fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
			strings.TrimRight(c.cfg.AzureEndpoint, "/"),
			url.PathEscape(c.cfg.AzureDeployment),
			url.QueryEscape(c.cfg.AzureAPIVersion))
	}
	return strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
}

// Complete sends one system+user exchange and returns the first choice's content.
func (c *OpenAIClient) Complete(ctx context.Context, req core.CompletionRequest) (string, error) {
	rid := uuid.New().String()
	start := time.Now()

	model := req.Model
	if model == "" {
		model = c.cfg.Model
	}
	user := req.User
	if req.JSONMode {
		// json_object mode requires the word JSON somewhere in the messages.
		user += "\n\nReturn ONLY a JSON object that matches the schema."
	}

	body := map[string]any{
		"model":       model,
		"temperature": req.Temperature,
		"messages": []map[string]any{
			{"role": "system", "content": req.System},
			{"role": "user", "content": user},
		},
	}
	if req.MaxTokens > 0 {
		body["max_tokens"] = req.MaxTokens
	}
	if req.JSONMode {
		body["response_format"] = map[string]any{"type": "json_object"}
	}

	c.log.Info("llm.complete.start",
		"req_id", rid,
		"provider", c.provider(),
		"model", model,
		"text_len", len(req.User),
	)

	raw, err := c.post(ctx, c.endpoint(), body)
	if err != nil {
		c.log.Error("llm.complete.http_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", err
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.log.Error("llm.complete.decode_error", "req_id", rid, "error", err, "raw_bytes", len(raw))
		return "", fmt.Errorf("decode openai response: %w", err)
	}
	if len(cc.Choices) == 0 {
		c.log.Error("llm.complete.no_choices", "req_id", rid, "raw", string(raw))
		return "", fmt.Errorf("no choices in openai response")
	}

	c.log.Info("llm.complete.ok",
		"req_id", rid,
		"finish_reason", cc.Choices[0].FinishReason,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return strings.TrimSpace(cc.Choices[0].Message.Content), nil
}

func (c *OpenAIClient) provider() string {
	if c.azure() {
		return "azure"
	}
	return "openai"
}

func (c *OpenAIClient) post(ctx context.Context, url string, body map[string]any) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	if c.azure() {
		req.Header.Set("api-key", c.cfg.APIKey)
	} else {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai http error: %w", err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			c.log.Warn("openai response body close error", "error", err)
		}
	}(resp.Body)

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read openai response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("openai status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return data, nil
}
