package llm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/markdave123-py/docpipe/internal/config"
	"github.com/markdave123-py/docpipe/internal/core"
)

// New builds the completion provider selected by cfg.Provider.
// Providers holding network clients also implement io.Closer.
func New(ctx context.Context, cfg config.LLMConfig, logger *slog.Logger) (core.LLMProvider, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		if cfg.APIKey == "" {
			return nil, core.NewConfigError("OPENAI_API_KEY", "is required for the openai provider")
		}
		return NewOpenAIClient(OpenAIConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		}, logger), nil
	case config.ProviderAzure:
		if cfg.APIKey == "" || cfg.AzureEndpoint == "" || cfg.AzureDeployment == "" {
			return nil, core.NewConfigError("AZURE_OPENAI_ENDPOINT", "azure provider needs endpoint, deployment and api key")
		}
		return NewOpenAIClient(OpenAIConfig{
			APIKey:          cfg.APIKey,
			Model:           cfg.Model,
			Timeout:         cfg.Timeout,
			AzureEndpoint:   cfg.AzureEndpoint,
			AzureDeployment: cfg.AzureDeployment,
			AzureAPIVersion: cfg.AzureAPIVersion,
		}, logger), nil
	case config.ProviderGemini:
		return NewGeminiLLM(ctx, cfg.GeminiAPIKey, cfg.GenModel, logger)
	default:
		return nil, core.NewConfigError("LLM_PROVIDER", fmt.Sprintf("unsupported provider %q", cfg.Provider))
	}
}
