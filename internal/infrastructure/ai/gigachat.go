package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"NewsIngest/internal/config"
	"NewsIngest/internal/domain"
	"NewsIngest/internal/enrich"
)

// GigaChatClient talks to the GigaChat chat completion API using a
// pre-issued credentials token.
type GigaChatClient struct {
	endpoint    string
	model       string
	credentials string
	httpClient  *http.Client
}

var _ enrich.Provider = (*GigaChatClient)(nil)

// NewGigaChat builds a client from configuration.
func NewGigaChat(cfg config.GigaChatConfig) *GigaChatClient {
	return &GigaChatClient{
		endpoint:    cfg.Endpoint,
		model:       cfg.Model,
		credentials: cfg.Credentials,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Name identifies the provider inside the chain.
func (g *GigaChatClient) Name() string {
	return "gigachat"
}

// Available reports whether the client is configured for use.
func (g *GigaChatClient) Available() bool {
	return g.credentials != "" && g.endpoint != "" && g.model != ""
}

// Process posts the editorial prompt and parses the JSON answer. GigaChat
// speaks the OpenAI chat shape, so the response types are shared.
func (g *GigaChatClient) Process(ctx context.Context, title, content, source string) (domain.EnrichedResult, error) {
	if !g.Available() {
		return domain.EnrichedResult{}, fmt.Errorf("gigachat: %w", enrich.ErrUnavailable)
	}

	body, err := json.Marshal(chatRequest{
		Model: g.model,
		Messages: []chatMessage{
			{Role: "user", Content: buildPrompt(title, content, source)},
		},
		MaxTokens:   800,
		Temperature: 0.7,
	})
	if err != nil {
		return domain.EnrichedResult{}, fmt.Errorf("marshal gigachat payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.EnrichedResult{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.credentials)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return domain.EnrichedResult{}, fmt.Errorf("call gigachat: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return domain.EnrichedResult{}, fmt.Errorf("gigachat error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return domain.EnrichedResult{}, fmt.Errorf("decode gigachat response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return domain.EnrichedResult{}, fmt.Errorf("gigachat returned no choices")
	}

	result, err := parseResult(parsed.Choices[0].Message.Content)
	if err != nil {
		return domain.EnrichedResult{}, fmt.Errorf("gigachat: %w", err)
	}
	result.Tokens = parsed.Usage.TotalTokens
	return result, nil
}
