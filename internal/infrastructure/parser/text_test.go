package parser

import "testing"

func TestCleanText(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"tags stripped", "<b>bold</b> and <i>italic</i>", "bold and italic"},
		{"whitespace collapsed", "  too \n\t many   spaces ", "too many spaces"},
		{"nbsp replaced", "a\u00a0b", "a b"},
		{"zero width removed", "a\u200bb", "ab"},
		{"empty", "   ", ""},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := cleanText(tc.in); got != tc.want {
				t.Fatalf("cleanText(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestResolveURL(t *testing.T) {
	t.Parallel()

	base := "https://example.com/news/"

	if got := resolveURL(base, "/articles/1"); got != "https://example.com/articles/1" {
		t.Fatalf("absolute path not resolved: %q", got)
	}
	if got := resolveURL(base, "https://other.example.com/x"); got != "https://other.example.com/x" {
		t.Fatalf("absolute url must pass through: %q", got)
	}
	if got := resolveURL("", "/articles/1"); got != "/articles/1" {
		t.Fatalf("empty base should return the reference: %q", got)
	}
}
