package domain

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Limits applied by parsers before an item is accepted. Items exceeding
// them are rejected outright; truncation happens only at publish time.
const (
	MaxRawTitleLen   = 500
	MaxRawContentLen = 10000
	MaxTags          = 10
)

// DefaultCategory is used when a source or provider yields no usable category.
const DefaultCategory = "General"

// Categories maps every known category to its channel emoji.
var Categories = map[string]string{
	"Politics":   "🏛️",
	"Economy":    "💰",
	"Technology": "💻",
	"Sports":     "⚽",
	"Culture":    "🎭",
	"Science":    "🔬",
	"Health":     "🏥",
	"Society":    "👥",
	"World":      "🌍",
	"General":    "📰",
}

// Item is a candidate record produced by a parser and not yet persisted.
type Item struct {
	Title       string
	Content     string
	URL         string
	Author      string
	PublishedAt time.Time
	ImageURL    string
	Category    string
	Tags        []string
}

// NewItem trims title/content, caps tags, and defaults the published time
// to ingestion time.
func NewItem(title, content string) Item {
	return Item{
		Title:       strings.TrimSpace(title),
		Content:     strings.TrimSpace(content),
		PublishedAt: time.Now().UTC(),
	}
}

// Hash is the identity digest used for duplicate detection: md5 over the
// title plus the first 100 characters of the content.
func (it Item) Hash() string {
	snippet := it.Content
	if len(snippet) > 100 {
		snippet = snippet[:100]
	}
	sum := md5.Sum([]byte(it.Title + snippet))
	return hex.EncodeToString(sum[:])
}

// Valid reports whether the item carries enough text to be worth keeping.
func (it Item) Valid() bool {
	return len(it.Title) > 10 && len(it.Content) > 50
}

// WithinLimits reports whether the item fits the raw size caps. Oversized
// items are dropped rather than truncated.
func (it Item) WithinLimits() bool {
	return len(it.Title) <= MaxRawTitleLen && len(it.Content) <= MaxRawContentLen
}

// Snippet returns the first n characters of the content.
func (it Item) Snippet(n int) string {
	if len(it.Content) > n {
		return it.Content[:n]
	}
	return it.Content
}

func (it Item) String() string {
	title := it.Title
	if len(title) > 30 {
		title = title[:30] + "..."
	}
	return fmt.Sprintf("Item(%q, %s)", title, it.Hash()[:8])
}

// Status enumerates the lifecycle of a persisted record. Only this core
// mutates it; the publishing collaborator consumes records at enriched.
type Status string

const (
	StatusPending   Status = "pending"
	StatusEnriched  Status = "enriched"
	StatusPublished Status = "published"
	StatusRejected  Status = "rejected"
	StatusError     Status = "error"
)

// News is a persisted record created from an Item that survived validity
// and duplicate checks.
type News struct {
	ID       int64
	SourceID int64

	Title   string
	Content string
	URL     string
	Author  string

	ProcessedTitle   string
	ProcessedContent string
	Category         string
	Emoji            string

	Status         Status
	EnrichAttempts int
	LastEnrichErr  string

	ImageURL string
	Tags     []string

	CreatedAt   time.Time
	UpdatedAt   time.Time
	ParsedAt    time.Time
	PublishedAt *time.Time
}

// SourceType tags the closed set of parser variants.
type SourceType string

const (
	SourceFeed SourceType = "feed"
	SourcePage SourceType = "page"
)

// Source describes one configured external feed or site. It is owned by
// configuration tooling; the core only reads it and bumps its counters.
type Source struct {
	ID        int64
	Name      string
	URL       string
	Type      SourceType
	Enabled   bool
	Category  string
	Selectors map[string]string

	UseEnrichment bool
	AutoPublish   bool

	LastParsedAt *time.Time
	TotalFound   int64
	SuccessCount int64
	ErrorCount   int64
}

// SeenURL is the append-only dedup record pairing a URL hash with the
// news row it produced.
type SeenURL struct {
	ID        int64
	URL       string
	URLHash   string
	NewsID    int64
	SourceID  int64
	CreatedAt time.Time
}

// URLHash digests an origin URL for O(1) duplicate lookup.
func URLHash(rawURL string) string {
	sum := md5.Sum([]byte(rawURL))
	return hex.EncodeToString(sum[:])
}

// EnrichedResult is the schema-validated output of one provider call.
type EnrichedResult struct {
	Title    string
	Content  string
	Category string
	Emoji    string
	Provider string
	Elapsed  time.Duration
	Tokens   int
}

// EnrichmentAttempt is the audit record written once per provider call.
type EnrichmentAttempt struct {
	ID        int64
	NewsID    int64
	Provider  string
	Success   bool
	Error     string
	Elapsed   time.Duration
	Tokens    int
	CreatedAt time.Time
}
