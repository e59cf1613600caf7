package parser

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"NewsIngest/internal/parser"
)

const maxBodyBytes = 5 << 20

var defaultHeaders = map[string]string{
	"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
	"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
	"Accept-Language": "ru-RU,ru;q=0.8,en-US;q=0.5,en;q=0.3",
}

// fetchClient is the shared HTTP layer for both parser variants. It maps
// transport failures and non-2xx statuses to FetchError.
type fetchClient struct {
	client *http.Client
}

func newFetchClient(client *http.Client, timeout time.Duration) *fetchClient {
	if client == nil {
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &fetchClient{client: client}
}

// get returns the response body, capped at maxBodyBytes.
func (f *fetchClient) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &parser.FetchError{URL: url, Err: err}
	}
	for k, v := range defaultHeaders {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &parser.FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &parser.FetchError{URL: url, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &parser.FetchError{URL: url, Err: fmt.Errorf("read body: %w", err)}
	}

	return body, nil
}
