package ai

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"NewsIngest/internal/domain"
)

const promptTemplate = `You are a news editor preparing items for a channel.

Requirements:
1. Write an engaging headline (at most 100 characters).
2. Rewrite the story clearly and concisely (at most 1000 characters).
3. Pick one category from: %s.
4. Pick one fitting emoji.
5. Preserve factual accuracy.

Original item:
Title: %s
Text: %s
Source: %s

Answer with a single JSON object:
{"title": "...", "content": "...", "category": "...", "emoji": "..."}`

// buildPrompt renders the shared editorial prompt for every provider.
func buildPrompt(title, content, source string) string {
	names := make([]string, 0, len(domain.Categories))
	for name := range domain.Categories {
		names = append(names, name)
	}
	sort.Strings(names)
	return fmt.Sprintf(promptTemplate, strings.Join(names, ", "), title, content, source)
}

type resultPayload struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	Category string `json:"category"`
	Emoji    string `json:"emoji"`
}

// parseResult decodes the provider's JSON answer. Markdown code fences are
// tolerated since chat models frequently wrap JSON in them.
func parseResult(raw string) (domain.EnrichedResult, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	var payload resultPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return domain.EnrichedResult{}, fmt.Errorf("decode provider answer: %w", err)
	}

	return domain.EnrichedResult{
		Title:    payload.Title,
		Content:  payload.Content,
		Category: payload.Category,
		Emoji:    payload.Emoji,
	}, nil
}
