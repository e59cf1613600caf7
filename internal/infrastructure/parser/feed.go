package parser

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"NewsIngest/internal/domain"
	"NewsIngest/internal/parser"
)

// FeedParser handles RSS/Atom sources. Individual malformed entries are
// skipped; the feed as a whole only fails on fetch or top-level parse errors.
type FeedParser struct {
	fetch  *fetchClient
	logger *slog.Logger
}

var _ parser.Parser = (*FeedParser)(nil)

// NewFeedParser wires an HTTP client; a nil client gets the given timeout.
func NewFeedParser(client *http.Client, timeout time.Duration, logger *slog.Logger) *FeedParser {
	if logger == nil {
		logger = slog.Default()
	}
	return &FeedParser{
		fetch:  newFetchClient(client, timeout),
		logger: logger,
	}
}

// Type identifies the variant inside the registry.
func (f *FeedParser) Type() domain.SourceType {
	return domain.SourceFeed
}

// Parse fetches the feed and maps each entry to one candidate item.
func (f *FeedParser) Parse(ctx context.Context, src domain.Source) ([]domain.Item, error) {
	body, err := f.fetch.get(ctx, src.URL)
	if err != nil {
		return nil, err
	}

	feed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return nil, &parser.ParseError{Source: src.Name, Err: err}
	}

	items := make([]domain.Item, 0, len(feed.Items))
	for _, entry := range feed.Items {
		item, ok := f.parseEntry(entry, src)
		if !ok {
			f.logger.Debug("skipping feed entry", "source", src.Name, "link", entry.Link)
			continue
		}
		items = append(items, item)
	}

	f.logger.Debug("feed parsed", "source", src.Name, "entries", len(feed.Items), "items", len(items))
	return items, nil
}

// Close releases nothing; the HTTP client owns no per-parser state.
func (f *FeedParser) Close() error {
	return nil
}

func (f *FeedParser) parseEntry(entry *gofeed.Item, src domain.Source) (domain.Item, bool) {
	title := cleanText(entry.Title)
	if title == "" {
		return domain.Item{}, false
	}

	content := extractEntryContent(entry)
	if content == "" {
		return domain.Item{}, false
	}

	item := domain.NewItem(title, content)
	item.URL = entry.Link
	item.Category = src.Category
	item.Author = extractEntryAuthor(entry)
	item.ImageURL = extractEntryImage(entry, src.URL)
	item.Tags = extractEntryTags(entry)

	if entry.PublishedParsed != nil {
		item.PublishedAt = entry.PublishedParsed.UTC()
	} else if entry.UpdatedParsed != nil {
		item.PublishedAt = entry.UpdatedParsed.UTC()
	}

	return item, true
}

// extractEntryContent prefers full content over description over summary,
// stripping any embedded HTML.
func extractEntryContent(entry *gofeed.Item) string {
	for _, raw := range []string{entry.Content, entry.Description} {
		if raw == "" {
			continue
		}
		if text := stripHTML(raw); text != "" {
			return text
		}
	}
	return ""
}

// stripHTML removes script/style blocks and tags, returning plain text.
func stripHTML(raw string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return cleanText(raw)
	}
	doc.Find("script, style, noscript").Remove()
	return cleanText(doc.Text())
}

func extractEntryAuthor(entry *gofeed.Item) string {
	if len(entry.Authors) > 0 && entry.Authors[0] != nil {
		return cleanText(entry.Authors[0].Name)
	}
	if entry.Author != nil {
		return cleanText(entry.Author.Name)
	}
	return ""
}

func extractEntryImage(entry *gofeed.Item, baseURL string) string {
	if entry.Image != nil && entry.Image.URL != "" {
		return resolveURL(baseURL, entry.Image.URL)
	}

	for _, enc := range entry.Enclosures {
		if enc != nil && strings.HasPrefix(enc.Type, "image/") {
			return resolveURL(baseURL, enc.URL)
		}
	}

	// Last resort: an <img> inside the description markup.
	if entry.Description != "" {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(entry.Description))
		if err == nil {
			if src, ok := doc.Find("img").First().Attr("src"); ok {
				return resolveURL(baseURL, src)
			}
		}
	}

	return ""
}

func extractEntryTags(entry *gofeed.Item) []string {
	var tags []string
	for _, cat := range entry.Categories {
		if tag := cleanText(cat); tag != "" {
			tags = append(tags, tag)
		}
		if len(tags) == domain.MaxTags {
			break
		}
	}
	return tags
}
