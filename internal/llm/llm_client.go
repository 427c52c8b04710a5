package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client defines the interface for the content-generation backend.
type Client interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ollamaClient implements Client against an Ollama-compatible endpoint.
type ollamaClient struct {
	url    string
	model  string
	client *http.Client
}

// NewClient initializes an LLM client with a hard request timeout.
func NewClient(url, model string, timeout time.Duration) Client {
	return &ollamaClient{
		url:   url,
		model: model,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Generate sends the prompt and returns the raw completion text.
func (c *ollamaClient) Generate(ctx context.Context, prompt string) (string, error) {
	requestBody, err := json.Marshal(map[string]interface{}{
		"model":  c.model,
		"prompt": prompt,
		"stream": false,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewBuffer(requestBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("generation request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("generation backend returned HTTP %d", resp.StatusCode)
	}

	var result generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode generation response: %w", err)
	}
	if result.Response == "" {
		return "", fmt.Errorf("empty response from generation backend")
	}
	return result.Response, nil
}
