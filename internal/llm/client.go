// Package llm talks to the upstream model API. This file implements the
// OpenAI-compatible chat-completions client.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Result is the usable outcome of one completion call.
type Result struct {
	Output       string
	InputTokens  int64
	OutputTokens int64
}

// Client is the upstream contract the invoker depends on. The production
// implementation is OpenAIClient; tests substitute a fake.
type Client interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (*Result, error)
}

// OpenAIClient calls an OpenAI-compatible /chat/completions endpoint. Any
// compatible backend (OpenAI, Ollama, vLLM) works through BaseURL.
type OpenAIClient struct {
	BaseURL     string
	APIKey      string
	Model       string
	CallTimeout time.Duration

	// HTTPClient defaults to http.DefaultClient when nil.
	HTTPClient *http.Client
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	ResponseFormat *struct {
		Type string `json:"type"`
	} `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (c *OpenAIClient) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

// Complete performs one non-streaming completion in JSON mode. Transport
// failures and 5xx map to ErrUpstreamTransient, 429 to
// ErrUpstreamRateLimited, and everything else to ErrUpstreamPermanent.
func (c *OpenAIClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (*Result, error) {
	if c.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.CallTimeout)
		defer cancel()
	}

	body := chatRequest{
		Model: c.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		ResponseFormat: &struct {
			Type string `json:"type"`
		}{Type: "json_object"},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrUpstreamTransient, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrUpstreamTransient, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(resp.StatusCode, truncate(string(raw), 500))
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("%w: parse response: %v", ErrUpstreamPermanent, err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("%w: %s", ErrUpstreamPermanent, parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return nil, ErrEmptyCompletion
	}

	res := &Result{Output: parsed.Choices[0].Message.Content}
	if parsed.Usage != nil {
		res.InputTokens = parsed.Usage.PromptTokens
		res.OutputTokens = parsed.Usage.CompletionTokens
	}
	return res, nil
}

func truncate(s string, maxLen int) string {
	if len(s) > maxLen {
		return s[:maxLen]
	}
	return s
}
