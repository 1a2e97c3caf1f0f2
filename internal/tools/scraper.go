package tools

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
)

const ScraperName = "web_scraper"

const (
	scraperMaxBody = 5 * 1024 * 1024
	scraperTimeout = 30 * time.Second
	scraperMaxOut  = 20000
)

// ScraperTool fetches a page and returns its readable content as markdown.
type ScraperTool struct {
	client *http.Client
}

func NewScraperTool() *ScraperTool {
	return &ScraperTool{
		client: &http.Client{
			Timeout: scraperTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return errors.New("too many redirects")
				}
				return nil
			},
		},
	}
}

func (t *ScraperTool) Name() string { return ScraperName }

func (t *ScraperTool) Description() string {
	return "Fetch a web page and return its readable content as markdown. Input is the page URL."
}

func (t *ScraperTool) Invoke(ctx context.Context, input string) (string, error) {
	url := strings.TrimSpace(decodeToolInput(input))
	if url == "" {
		return "", errors.New("a URL is required")
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return "", errors.New("URL must start with http:// or https://")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}
	req.Header.Set("User-Agent", "glimmer-engine/1.0")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("fetch returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, scraperMaxBody))
	if err != nil {
		return "", fmt.Errorf("read failed: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(contentType, "html") {
		return truncate(string(body), scraperMaxOut), nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return "", fmt.Errorf("parse failed: %w", err)
	}
	doc.Find("script, style, nav, header, footer, iframe, noscript").Remove()

	html, err := doc.Find("body").Html()
	if err != nil || strings.TrimSpace(html) == "" {
		html = string(body)
	}
	markdown, err := md.NewConverter("", true, nil).ConvertString(html)
	if err != nil {
		return "", fmt.Errorf("convert failed: %w", err)
	}
	markdown = strings.TrimSpace(markdown)
	if markdown == "" {
		return "The page had no readable content.", nil
	}
	return truncate(markdown, scraperMaxOut), nil
}

func truncate(content string, max int) string {
	if len(content) <= max {
		return content
	}
	return content[:max] + "\n\n[content truncated]"
}
