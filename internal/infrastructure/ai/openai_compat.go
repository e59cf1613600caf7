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

// ChatClient talks to an OpenAI-compatible chat completion endpoint. Both
// the DeepSeek and OpenAI providers are instances of it.
type ChatClient struct {
	name       string
	endpoint   string
	model      string
	apiKey     string
	httpClient *http.Client
}

var _ enrich.Provider = (*ChatClient)(nil)

// NewDeepSeek builds the primary provider.
func NewDeepSeek(cfg config.OpenAICompat) *ChatClient {
	return newChatClient("deepseek", cfg)
}

// NewOpenAI builds the fallback OpenAI provider.
func NewOpenAI(cfg config.OpenAICompat) *ChatClient {
	return newChatClient("openai", cfg)
}

func newChatClient(name string, cfg config.OpenAICompat) *ChatClient {
	return &ChatClient{
		name:     name,
		endpoint: cfg.Endpoint,
		model:    cfg.Model,
		apiKey:   cfg.APIKey,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Name identifies the provider inside the chain.
func (c *ChatClient) Name() string {
	return c.name
}

// Available reports whether the client is configured for use.
func (c *ChatClient) Available() bool {
	return c.apiKey != "" && c.endpoint != "" && c.model != ""
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// Process posts the editorial prompt and parses the JSON answer.
func (c *ChatClient) Process(ctx context.Context, title, content, source string) (domain.EnrichedResult, error) {
	if !c.Available() {
		return domain.EnrichedResult{}, fmt.Errorf("%s: %w", c.name, enrich.ErrUnavailable)
	}

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "user", Content: buildPrompt(title, content, source)},
		},
		MaxTokens:   800,
		Temperature: 0.7,
	})
	if err != nil {
		return domain.EnrichedResult{}, fmt.Errorf("marshal %s payload: %w", c.name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.EnrichedResult{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.EnrichedResult{}, fmt.Errorf("call %s: %w", c.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return domain.EnrichedResult{}, fmt.Errorf("%s error %s: %s", c.name, resp.Status, strings.TrimSpace(string(payload)))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return domain.EnrichedResult{}, fmt.Errorf("decode %s response: %w", c.name, err)
	}
	if len(parsed.Choices) == 0 {
		return domain.EnrichedResult{}, fmt.Errorf("%s returned no choices", c.name)
	}

	result, err := parseResult(parsed.Choices[0].Message.Content)
	if err != nil {
		return domain.EnrichedResult{}, fmt.Errorf("%s: %w", c.name, err)
	}
	result.Tokens = parsed.Usage.TotalTokens
	return result, nil
}
