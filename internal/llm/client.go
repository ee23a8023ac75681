// Package llm talks to an OpenAI-compatible endpoint (Gemini's compatibility
// surface in production) for article classification and text embeddings.
// Provider failures are mapped onto a closed error taxonomy: RateLimitError,
// ContentBlockedError, or a plain error for everything else.
package llm

import (
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/newspulse/newspulse/internal/config"
)

// NewClient builds the shared API client from configuration.
func NewClient(cfg config.LLMConfig) *openai.Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	return openai.NewClientWithConfig(clientCfg)
}

// asRateLimit maps a provider error onto RateLimitError when it signals
// throttling (HTTP 429 or a quota message), extracting the retry hint from
// the message text.
func asRateLimit(apiErr *openai.APIError) *RateLimitError {
	if apiErr.HTTPStatusCode != http.StatusTooManyRequests && !strings.Contains(apiErr.Message, "quota") {
		return nil
	}
	return &RateLimitError{
		RetryAfter: parseRetryAfter(apiErr.Message),
		Err:        apiErr,
	}
}
