package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	maxPromptLength = 4000

	completionRateMax    = 30
	completionRateWindow = 60 * time.Second
)

var (
	ErrNotConfigured       = errors.New("completion provider not configured")
	ErrPromptTooLong       = errors.New("prompt too long")
	ErrRateLimited         = errors.New("rate limit exceeded")
	ErrUpstreamUnavailable = errors.New("completion provider unreachable")
	ErrUpstreamStatus      = errors.New("completion provider returned an error")
	ErrUpstreamMalformed   = errors.New("completion provider response malformed")
)

// Completer is the prompt-in, text-out contract the handlers and the coach
// orchestrator depend on. Complete returns the reply text and the model
// identifier that produced it.
type Completer interface {
	Complete(ctx context.Context, prompt, identity string) (string, string, error)
}

// CompletionClient calls an OpenAI-style chat-completions endpoint with a
// bounded timeout and a per-identity sliding-window rate limit.
type CompletionClient struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
	limiter *RateBuckets
}

func NewCompletionClient(apiKey, baseURL, model string, timeout time.Duration) *CompletionClient {
	return &CompletionClient{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: timeout},
		limiter: NewRateBuckets(completionRateMax, completionRateWindow),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	Stream      bool          `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Complete sends the prompt as a single user message. Cheap checks (config,
// prompt length, rate limit) run before any network I/O. Transport failure,
// a non-2xx status, and a malformed success body each surface as their own
// error kind.
func (c *CompletionClient) Complete(ctx context.Context, prompt, identity string) (string, string, error) {
	if c.apiKey == "" {
		return "", "", ErrNotConfigured
	}
	if utf8.RuneCountInString(prompt) > maxPromptLength {
		return "", "", ErrPromptTooLong
	}
	if !c.limiter.Allow(identity) {
		return "", "", ErrRateLimited
	}

	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: 0.7,
		MaxTokens:   512,
	})
	if err != nil {
		return "", "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", "", fmt.Errorf("%w: status %d: %s", ErrUpstreamStatus, resp.StatusCode, detail)
	}

	var payload chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrUpstreamMalformed, err)
	}
	if len(payload.Choices) == 0 || payload.Choices[0].Message.Content == "" {
		return "", "", fmt.Errorf("%w: missing choices", ErrUpstreamMalformed)
	}

	return strings.TrimSpace(payload.Choices[0].Message.Content), c.model, nil
}
