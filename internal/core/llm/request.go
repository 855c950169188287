package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/markdave123-py/docpipe/internal/core"
	"github.com/markdave123-py/docpipe/internal/prompts"
)

const DefaultSystemPrompt = "You are a helpful assistant that extracts structured information from text. " +
	"Use the provided schema to format your response. If a field cannot be extracted, use null."

const defaultUserTemplate = "Schema: {schema}\n\nText:\n{text}"

// BuildRequest renders the completion request for one document. Values set in
// the prompt configuration win over the provider defaults in base.
func BuildRequest(p *prompts.PromptConfig, text string, base core.CompletionRequest) (core.CompletionRequest, error) {
	req := base
	req.JSONMode = true
	req.System = DefaultSystemPrompt
	tmpl := defaultUserTemplate
	var schema map[string]any

	if p != nil {
		if p.SystemPrompt != "" {
			req.System = strings.TrimSpace(p.SystemPrompt)
		}
		if p.UserTemplate != "" {
			tmpl = p.UserTemplate
		}
		if p.Model != "" {
			req.Model = p.Model
		}
		if p.Temperature != nil {
			req.Temperature = *p.Temperature
		}
		if p.MaxTokens > 0 {
			req.MaxTokens = p.MaxTokens
		}
		if p.MaxInputTokens > 0 {
			text = truncateTokens(text, p.MaxInputTokens)
		}
		schema = p.OutputSchema
	}

	schemaJSON := "{}"
	if len(schema) > 0 {
		b, err := json.Marshal(schema)
		if err != nil {
			return core.CompletionRequest{}, fmt.Errorf("marshal output schema: %w", err)
		}
		schemaJSON = string(b)
	}

	req.User = strings.NewReplacer("{schema}", schemaJSON, "{text}", text).Replace(tmpl)
	return req, nil
}

// approxTokens estimates tokens at roughly four characters each.
func approxTokens(s string) int {
	n := len([]rune(s))
	if n <= 0 {
		return 0
	}
	return (n + 3) / 4
}

// truncateTokens keeps the leading part of s that fits in max tokens.
func truncateTokens(s string, max int) string {
	if approxTokens(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max*4])
}
