package parser

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"NewsIngest/internal/domain"
	"NewsIngest/internal/parser"
	"NewsIngest/internal/ports"
)

// Selector map keys recognized in a source's scraping configuration.
const (
	selectorList    = "list"
	selectorTitle   = "title"
	selectorContent = "content"
)

// autoSelectors is the fixed heuristic list tried when a source configures
// no selectors. The first selector producing valid items wins.
var autoSelectors = []string{
	"article",
	".news-item",
	".article",
	".post",
	".story",
	`[class*="news"]`,
	`[class*="article"]`,
}

var titleSelectors = []string{
	"h1", "h2", "h3",
	".title", ".headline", ".header",
	`[class*="title"]`, `[class*="headline"]`,
}

var contentSelectors = []string{
	".content", ".text", ".description", ".summary",
	`[class*="content"]`, `[class*="text"]`, `[class*="description"]`,
}

var authorSelectors = []string{
	".author", ".byline", ".writer",
	`[class*="author"]`, `[class*="byline"]`,
}

var imageAttrs = []string{"src", "data-src", "data-original", "data-lazy"}

// PageParser scrapes article listings from HTML pages. Script-driven pages
// go through the optional Renderer collaborator, acquired on first use and
// released by Close.
type PageParser struct {
	fetch       *fetchClient
	newRenderer func() (ports.Renderer, error)
	logger      *slog.Logger

	mu       sync.Mutex
	renderer ports.Renderer
}

var _ parser.Parser = (*PageParser)(nil)

// NewPageParser wires an HTTP client and an optional renderer factory for
// sources that set selectors["render"].
func NewPageParser(client *http.Client, timeout time.Duration, newRenderer func() (ports.Renderer, error), logger *slog.Logger) *PageParser {
	if logger == nil {
		logger = slog.Default()
	}
	return &PageParser{
		fetch:       newFetchClient(client, timeout),
		newRenderer: newRenderer,
		logger:      logger,
	}
}

// Type identifies the variant inside the registry.
func (p *PageParser) Type() domain.SourceType {
	return domain.SourcePage
}

// Parse fetches the page and applies the three-tier extraction strategy.
func (p *PageParser) Parse(ctx context.Context, src domain.Source) ([]domain.Item, error) {
	html, err := p.fetchHTML(ctx, src)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, &parser.ParseError{Source: src.Name, Err: err}
	}

	if sel := src.Selectors[selectorList]; sel != "" {
		return p.parseList(doc, sel, src), nil
	}
	if src.Selectors[selectorTitle] != "" && src.Selectors[selectorContent] != "" {
		return p.parsePairs(doc, src), nil
	}
	return p.parseAutoDetect(doc, src), nil
}

// Close releases the lazily acquired renderer, if any.
func (p *PageParser) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.renderer == nil {
		return nil
	}
	err := p.renderer.Close()
	p.renderer = nil
	return err
}

func (p *PageParser) fetchHTML(ctx context.Context, src domain.Source) ([]byte, error) {
	if src.Selectors["render"] != "true" || p.newRenderer == nil {
		return p.fetch.get(ctx, src.URL)
	}

	r, err := p.acquireRenderer()
	if err != nil {
		p.logger.Warn("renderer unavailable, falling back to plain fetch", "source", src.Name, "error", err)
		return p.fetch.get(ctx, src.URL)
	}

	html, err := r.Render(ctx, src.URL)
	if err != nil {
		return nil, &parser.FetchError{URL: src.URL, Err: err}
	}
	return []byte(html), nil
}

func (p *PageParser) acquireRenderer() (ports.Renderer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.renderer != nil {
		return p.renderer, nil
	}
	r, err := p.newRenderer()
	if err != nil {
		return nil, err
	}
	p.renderer = r
	return r, nil
}

// parseList extracts one item per element matched by the configured list
// selector (tier a).
func (p *PageParser) parseList(doc *goquery.Document, listSel string, src domain.Source) []domain.Item {
	var items []domain.Item
	doc.Find(listSel).Each(func(_ int, el *goquery.Selection) {
		if item, ok := p.extractItem(el, src); ok {
			items = append(items, item)
		}
	})
	return items
}

// parsePairs pairs every configured title match with related content
// (tier b).
func (p *PageParser) parsePairs(doc *goquery.Document, src domain.Source) []domain.Item {
	var items []domain.Item
	contentSel := src.Selectors[selectorContent]

	doc.Find(src.Selectors[selectorTitle]).Each(func(_ int, titleEl *goquery.Selection) {
		title := cleanText(titleEl.Text())
		if len(title) < 10 {
			return
		}

		content := findRelatedContent(titleEl, contentSel)
		if len(content) < 50 {
			return
		}

		item := domain.NewItem(title, content)
		item.Category = src.Category
		item.URL = extractArticleURL(titleEl, src.URL)
		item.ImageURL = extractElementImage(titleEl, src.URL)
		items = append(items, item)
	})

	return items
}

// parseAutoDetect walks the fixed heuristic selector list and stops at the
// first selector yielding at least one valid item (tier c).
func (p *PageParser) parseAutoDetect(doc *goquery.Document, src domain.Source) []domain.Item {
	for _, sel := range autoSelectors {
		var items []domain.Item
		doc.Find(sel).Each(func(_ int, el *goquery.Selection) {
			if item, ok := p.extractItem(el, src); ok && item.Valid() {
				items = append(items, item)
			}
		})
		if len(items) > 0 {
			p.logger.Debug("auto-detect matched", "source", src.Name, "selector", sel, "items", len(items))
			return items
		}
	}
	return nil
}

func (p *PageParser) extractItem(el *goquery.Selection, src domain.Source) (domain.Item, bool) {
	title := extractElementTitle(el, src.Selectors[selectorTitle])
	if title == "" {
		return domain.Item{}, false
	}

	content := extractElementContent(el, src.Selectors[selectorContent])
	if content == "" {
		return domain.Item{}, false
	}

	item := domain.NewItem(title, content)
	item.Category = src.Category
	item.URL = extractArticleURL(el, src.URL)
	item.Author = extractElementAuthor(el)
	item.ImageURL = extractElementImage(el, src.URL)
	return item, true
}

func extractElementTitle(el *goquery.Selection, configured string) string {
	selectors := titleSelectors
	if configured != "" {
		selectors = append([]string{configured}, selectors...)
	}

	for _, sel := range selectors {
		found := el.Find(sel).First()
		if found.Length() == 0 {
			continue
		}
		if title := cleanText(found.Text()); len(title) >= 10 {
			return title
		}
	}

	// Fall back to the element's own leading words.
	words := strings.Fields(cleanText(el.Text()))
	if len(words) >= 3 {
		if len(words) > 15 {
			words = words[:15]
		}
		return strings.Join(words, " ")
	}

	return ""
}

func extractElementContent(el *goquery.Selection, configured string) string {
	selectors := contentSelectors
	if configured != "" {
		selectors = append([]string{configured}, selectors...)
	}

	for _, sel := range selectors {
		found := el.Find(sel).First()
		if found.Length() == 0 {
			continue
		}
		if content := cleanText(found.Text()); len(content) >= 50 {
			return content
		}
	}

	if full := cleanText(el.Text()); len(full) >= 50 {
		return full
	}

	return ""
}

// findRelatedContent looks for the content selector among the title's
// siblings first, then anywhere under its parent.
func findRelatedContent(titleEl *goquery.Selection, contentSel string) string {
	if next := titleEl.NextAll().Filter(contentSel).First(); next.Length() > 0 {
		return cleanText(next.Text())
	}
	if under := titleEl.Parent().Find(contentSel).First(); under.Length() > 0 {
		return cleanText(under.Text())
	}
	return ""
}

func extractArticleURL(el *goquery.Selection, baseURL string) string {
	link := el.Find("a").First()
	if link.Length() == 0 {
		link = el.Closest("a")
	}
	if href, ok := link.Attr("href"); ok {
		return resolveURL(baseURL, href)
	}
	return ""
}

func extractElementAuthor(el *goquery.Selection) string {
	for _, sel := range authorSelectors {
		found := el.Find(sel).First()
		if found.Length() == 0 {
			continue
		}
		if author := cleanText(found.Text()); author != "" {
			return author
		}
	}
	return ""
}

func extractElementImage(el *goquery.Selection, baseURL string) string {
	img := el.Find("img").First()
	if img.Length() == 0 {
		return ""
	}
	for _, attr := range imageAttrs {
		if src, ok := img.Attr(attr); ok && src != "" {
			return resolveURL(baseURL, src)
		}
	}
	return ""
}
