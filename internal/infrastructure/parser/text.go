package parser

import (
	"net/url"
	"regexp"
	"strings"
)

var tagExpr = regexp.MustCompile(`<[^>]+>`)

// cleanText strips leftover HTML tags, collapses whitespace, and removes
// non-breaking and zero-width spaces.
func cleanText(text string) string {
	if text == "" {
		return ""
	}

	text = tagExpr.ReplaceAllString(text, " ")
	text = strings.ReplaceAll(text, "\u00a0", " ")
	text = strings.ReplaceAll(text, "\u200b", "")

	return strings.Join(strings.Fields(text), " ")
}

// resolveURL turns a possibly relative href into an absolute URL against
// the source's base URL.
func resolveURL(base, href string) string {
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}

	baseURL, err := url.Parse(base)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return baseURL.ResolveReference(ref).String()
}
