package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"NewsIngest/internal/config"
	"NewsIngest/internal/enrich"
)

const answerJSON = `{"title": "Edited headline", "content": "Edited body", "category": "Technology", "emoji": "💻"}`

func TestChatClientProcess(t *testing.T) {
	t.Parallel()

	var gotAuth string
	var gotReq chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{
			"choices": [{"message": {"role": "assistant", "content": ` + jsonString(answerJSON) + `}}],
			"usage": {"total_tokens": 321}
		}`))
	}))
	defer server.Close()

	client := NewDeepSeek(config.OpenAICompat{
		Endpoint: server.URL,
		Model:    "deepseek-chat",
		APIKey:   "test-key",
	})

	result, err := client.Process(context.Background(), "Raw title", "Raw content", "source-1")
	if err != nil {
		t.Fatalf("Process error: %v", err)
	}

	if gotAuth != "Bearer test-key" {
		t.Fatalf("unexpected auth header: %q", gotAuth)
	}
	if gotReq.Model != "deepseek-chat" {
		t.Fatalf("unexpected model: %q", gotReq.Model)
	}
	if len(gotReq.Messages) != 1 || !strings.Contains(gotReq.Messages[0].Content, "Raw title") {
		t.Fatalf("prompt should embed the original title: %+v", gotReq.Messages)
	}

	if result.Title != "Edited headline" || result.Category != "Technology" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.Tokens != 321 {
		t.Fatalf("tokens = %d, want 321", result.Tokens)
	}
}

func TestChatClientErrorStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": "rate limited"}`))
	}))
	defer server.Close()

	client := NewOpenAI(config.OpenAICompat{Endpoint: server.URL, Model: "gpt-3.5-turbo", APIKey: "k"})

	_, err := client.Process(context.Background(), "t", "c", "s")
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestChatClientUnavailableWithoutKey(t *testing.T) {
	t.Parallel()

	client := NewDeepSeek(config.OpenAICompat{Endpoint: "https://example.com", Model: "m"})
	if client.Available() {
		t.Fatalf("client without api key must be unavailable")
	}
	if _, err := client.Process(context.Background(), "t", "c", "s"); !errors.Is(err, enrich.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestClaudeClientProcess(t *testing.T) {
	t.Parallel()

	var gotKey, gotVersion string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-api-key")
		gotVersion = r.Header.Get("anthropic-version")
		_, _ = w.Write([]byte(`{
			"content": [{"text": ` + jsonString("```json\n"+answerJSON+"\n```") + `}],
			"usage": {"input_tokens": 100, "output_tokens": 50}
		}`))
	}))
	defer server.Close()

	client := NewClaude(config.ClaudeConfig{Endpoint: server.URL, Model: "claude-3-haiku", APIKey: "ck"})

	result, err := client.Process(context.Background(), "Raw title", "Raw content", "source-1")
	if err != nil {
		t.Fatalf("Process error: %v", err)
	}
	if gotKey != "ck" || gotVersion != anthropicVersion {
		t.Fatalf("headers key=%q version=%q", gotKey, gotVersion)
	}
	if result.Title != "Edited headline" {
		t.Fatalf("code-fenced answer not parsed: %+v", result)
	}
	if result.Tokens != 150 {
		t.Fatalf("tokens = %d, want input+output = 150", result.Tokens)
	}
}

func TestGigaChatClientProcess(t *testing.T) {
	t.Parallel()

	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{
			"choices": [{"message": {"role": "assistant", "content": ` + jsonString(answerJSON) + `}}],
			"usage": {"total_tokens": 77}
		}`))
	}))
	defer server.Close()

	client := NewGigaChat(config.GigaChatConfig{Endpoint: server.URL, Model: "GigaChat", Credentials: "token"})

	result, err := client.Process(context.Background(), "Raw title", "Raw content", "source-1")
	if err != nil {
		t.Fatalf("Process error: %v", err)
	}
	if gotAuth != "Bearer token" {
		t.Fatalf("unexpected auth header: %q", gotAuth)
	}
	if result.Tokens != 77 {
		t.Fatalf("tokens = %d, want 77", result.Tokens)
	}
}

func TestBuildProvidersPriorityOrder(t *testing.T) {
	t.Parallel()

	cfg := config.ProvidersConfig{
		Priority: []string{"claude", "deepseek", "mystery", "openai", "gigachat"},
	}

	providers := BuildProviders(cfg, nil)
	if len(providers) != 4 {
		t.Fatalf("expected 4 providers (unknown skipped), got %d", len(providers))
	}

	want := []string{"claude", "deepseek", "openai", "gigachat"}
	for i, p := range providers {
		if p.Name() != want[i] {
			t.Fatalf("provider[%d] = %q, want %q", i, p.Name(), want[i])
		}
	}
}

// jsonString JSON-encodes a string for embedding in a response body literal.
func jsonString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
