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

const anthropicVersion = "2023-06-01"

// ClaudeClient talks to the Anthropic messages API.
type ClaudeClient struct {
	endpoint   string
	model      string
	apiKey     string
	httpClient *http.Client
}

var _ enrich.Provider = (*ClaudeClient)(nil)

// NewClaude builds a client from configuration.
func NewClaude(cfg config.ClaudeConfig) *ClaudeClient {
	return &ClaudeClient{
		endpoint: cfg.Endpoint,
		model:    cfg.Model,
		apiKey:   cfg.APIKey,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Name identifies the provider inside the chain.
func (c *ClaudeClient) Name() string {
	return "claude"
}

// Available reports whether the client is configured for use.
func (c *ClaudeClient) Available() bool {
	return c.apiKey != "" && c.endpoint != "" && c.model != ""
}

type claudeRequest struct {
	Model       string        `json:"model"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
	Messages    []chatMessage `json:"messages"`
}

type claudeResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Process posts the editorial prompt and parses the JSON answer.
func (c *ClaudeClient) Process(ctx context.Context, title, content, source string) (domain.EnrichedResult, error) {
	if !c.Available() {
		return domain.EnrichedResult{}, fmt.Errorf("claude: %w", enrich.ErrUnavailable)
	}

	body, err := json.Marshal(claudeRequest{
		Model:       c.model,
		MaxTokens:   1000,
		Temperature: 0.7,
		Messages: []chatMessage{
			{Role: "user", Content: buildPrompt(title, content, source)},
		},
	})
	if err != nil {
		return domain.EnrichedResult{}, fmt.Errorf("marshal claude payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.EnrichedResult{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.EnrichedResult{}, fmt.Errorf("call claude: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return domain.EnrichedResult{}, fmt.Errorf("claude error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var parsed claudeResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return domain.EnrichedResult{}, fmt.Errorf("decode claude response: %w", err)
	}
	if len(parsed.Content) == 0 {
		return domain.EnrichedResult{}, fmt.Errorf("claude returned no content blocks")
	}

	result, err := parseResult(parsed.Content[0].Text)
	if err != nil {
		return domain.EnrichedResult{}, fmt.Errorf("claude: %w", err)
	}
	result.Tokens = parsed.Usage.InputTokens + parsed.Usage.OutputTokens
	return result, nil
}
