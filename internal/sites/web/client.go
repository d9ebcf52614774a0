// Package web fetches product pages and reduces them to readable text.
package web

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"insta-outreach/internal/core/ports"
)

const (
	userAgent    = "Mozilla/5.0 (compatible; insta-outreach/1.0)"
	maxBodyBytes = 2 << 20
)

// Client implements ports.PageFetcher.
type Client struct {
	HTTPClient *http.Client
	log        *zap.Logger
}

var _ ports.PageFetcher = (*Client)(nil)

func NewClient(timeout time.Duration, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		HTTPClient: &http.Client{Timeout: timeout},
		log:        log.Named("web"),
	}
}

// FetchPage returns the visible text of the page at url. Script and style
// content is dropped and whitespace is collapsed.
func (c *Client) FetchPage(ctx context.Context, url string) (string, error) {
	if url == "" {
		return "", fmt.Errorf("empty url")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,text/plain;q=0.8,*/*;q=0.5")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: HTTP %d", url, resp.StatusCode)
	}

	body := io.LimitReader(resp.Body, maxBodyBytes)
	if strings.Contains(resp.Header.Get("Content-Type"), "text/plain") {
		raw, err := io.ReadAll(body)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", url, err)
		}
		return collapse(string(raw)), nil
	}

	text := extractText(body)
	c.log.Debug("page fetched", zap.String("url", url), zap.Int("chars", len(text)))
	return text, nil
}

// extractText walks the token stream and keeps text outside script, style,
// noscript and template elements.
func extractText(r io.Reader) string {
	tokenizer := html.NewTokenizer(r)
	var sb strings.Builder
	skip := 0

	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return collapse(sb.String())
		case html.TextToken:
			if skip == 0 {
				sb.Write(tokenizer.Text())
				sb.WriteByte(' ')
			}
		case html.StartTagToken:
			name, _ := tokenizer.TagName()
			if hidden(string(name)) {
				skip++
			}
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			if hidden(string(name)) && skip > 0 {
				skip--
			}
		}
	}
}

func hidden(tag string) bool {
	switch tag {
	case "script", "style", "noscript", "template":
		return true
	}
	return false
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
