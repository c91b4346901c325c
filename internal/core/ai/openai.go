package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// OpenAIAdapter implements LLMProvider for OpenAI API
type OpenAIAdapter struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewOpenAIAdapter creates a new OpenAI adapter. model/temperature are
// now per-call arguments to ChatCompletion, not adapter state, since
// the retry ladder walks both across attempts.
func NewOpenAIAdapter(apiKey string) *OpenAIAdapter {
	return &OpenAIAdapter{
		apiKey:  apiKey,
		baseURL: "https://api.openai.com/v1",
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// openAIRequest represents the API request structure
type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// openAIResponse represents the API response structure
type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error,omitempty"`
}

// ChatCompletion sends prompt as a single user message at model/temperature.
func (o *OpenAIAdapter) ChatCompletion(ctx context.Context, prompt, model string, temperature float64) (*CompletionResult, error) {
	messages := []openAIMessage{
		{Role: "user", Content: prompt},
	}

	reqBody := openAIRequest{
		Model:       model,
		Messages:    messages,
		Temperature: temperature,
	}

	reqJSON, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	// Create HTTP request
	req, err := http.NewRequestWithContext(ctx, "POST", o.baseURL+"/chat/completions", bytes.NewReader(reqJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	// Send request
	resp, err := o.client.Do(req)
	if err != nil {
		return nil, &ProviderError{
			Provider: "openai",
			Code:     "network_error",
			Message:  err.Error(),
			Retry:    true,
		}
	}
	defer resp.Body.Close()

	// Read response
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	// Parse response
	var apiResp openAIResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	// Check for API errors
	if apiResp.Error != nil {
		code := "unknown"
		retry := false
		if apiResp.Error.Type == "insufficient_quota" || apiResp.Error.Code == "rate_limit_exceeded" {
			code = "rate_limit"
			retry = true
		} else if apiResp.Error.Type == "invalid_request_error" && apiResp.Error.Code == "invalid_api_key" {
			code = "invalid_key"
		}

		return nil, &ProviderError{
			Provider: "openai",
			Code:     code,
			Message:  apiResp.Error.Message,
			Retry:    retry,
		}
	}

	// Check for valid response
	if len(apiResp.Choices) == 0 {
		return nil, fmt.Errorf("no response from OpenAI")
	}

	return &CompletionResult{
		Content:          apiResp.Choices[0].Message.Content,
		PromptTokens:     apiResp.Usage.PromptTokens,
		CompletionTokens: apiResp.Usage.CompletionTokens,
	}, nil
}

// ValidateKey checks if the API key is valid by making a simple API request
func (o *OpenAIAdapter) ValidateKey(ctx context.Context) bool {
	models, err := o.ListModels(ctx)
	return err == nil && len(models) > 0
}

// ListModels returns available models from OpenAI
func (o *OpenAIAdapter) ListModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", o.baseURL+"/models", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, &ProviderError{
			Provider: "openai",
			Code:     "network_error",
			Message:  err.Error(),
			Retry:    true,
		}
	}
	defer resp.Body.Close()

	// Check for authentication errors
	if resp.StatusCode == http.StatusUnauthorized {
		body, _ := io.ReadAll(resp.Body)
		return nil, &ProviderError{
			Provider: "openai",
			Code:     "invalid_key",
			Message:  fmt.Sprintf("Invalid API key: %s", string(body)),
			Retry:    false,
		}
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &ProviderError{
			Provider: "openai",
			Code:     "http_error",
			Message:  fmt.Sprintf("HTTP %d: %s", resp.StatusCode, string(body)),
			Retry:    resp.StatusCode >= 500,
		}
	}

	// Parse models response
	var modelsResp struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&modelsResp); err != nil {
		return nil, fmt.Errorf("failed to parse models: %w", err)
	}

	// Filter for GPT models
	var models []string
	for _, m := range modelsResp.Data {
		// Include gpt models for chat
		if len(m.ID) >= 3 && m.ID[:3] == "gpt" {
			models = append(models, m.ID)
		}
	}

	if len(models) == 0 {
		return nil, fmt.Errorf("no compatible GPT models found")
	}

	return models, nil
}

// Close is a no-op for HTTP-based implementation
func (o *OpenAIAdapter) Close() error {
	return nil
}
