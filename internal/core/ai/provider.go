// Package ai adapts the various chat-completion HTTP APIs (OpenAI,
// OpenRouter, Gemini, local Ollama/LMStudio servers) behind one
// provider-agnostic interface, so the retry engine never has to know
// which vendor it is talking to.
package ai

import (
	"context"
	"fmt"
)

// CompletionResult is everything the retry engine needs out of a
// single chat-completion call: the raw assistant message plus the
// token counts the provider itself reported (when it reported them).
type CompletionResult struct {
	Content          string
	PromptTokens     int
	CompletionTokens int
}

// LLMProvider sends one user-role prompt at a fixed temperature and
// returns the assistant's raw message content. Providers do not parse
// or validate content — that is the retry engine's job.
type LLMProvider interface {
	// ChatCompletion sends prompt as a single user message at the
	// given model/temperature and returns the raw response.
	ChatCompletion(ctx context.Context, prompt, model string, temperature float64) (*CompletionResult, error)

	// ValidateKey checks if the API key/endpoint is valid.
	ValidateKey(ctx context.Context) bool

	// ListModels returns available models for this provider.
	ListModels(ctx context.Context) ([]string, error)
}

// ProviderInfo contains metadata about a provider.
type ProviderInfo struct {
	Name        string // Display name (OpenAI, OpenRouter, Google Gemini, Local LLM)
	Type        string // cloud or local
	RequiresKey bool   // Whether API key is required
	Endpoint    string // Base URL for API
}

// ProviderError represents an error from a provider.
type ProviderError struct {
	Provider string // Provider name
	Code     string // Error code (rate_limit, invalid_key, etc.)
	Message  string // Human-readable message
	Retry    bool   // Whether the request can be retried
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Provider, e.Code, e.Message)
}

// IsRateLimitError checks if the error is a rate limit error.
func IsRateLimitError(err error) bool {
	if provErr, ok := err.(*ProviderError); ok {
		return provErr.Code == "rate_limit"
	}
	return false
}

// IsAuthError checks if the error is an authentication error.
func IsAuthError(err error) bool {
	if provErr, ok := err.(*ProviderError); ok {
		return provErr.Code == "invalid_key" || provErr.Code == "unauthorized"
	}
	return false
}
