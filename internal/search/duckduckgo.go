package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ferro-labs/survey-coder/generation"
)

const defaultDuckDuckGoURL = "https://html.duckduckgo.com"

// DuckDuckGo scrapes the JavaScript-free DuckDuckGo results page.
type DuckDuckGo struct {
	baseURL   string
	userAgent string
	client    *http.Client
}

// NewDuckDuckGo returns an enricher. An empty baseURL means the public
// endpoint.
func NewDuckDuckGo(baseURL string) *DuckDuckGo {
	if baseURL == "" {
		baseURL = defaultDuckDuckGoURL
	}
	return &DuckDuckGo{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: "survey-coder/1.0",
		client:    &http.Client{Transport: http.DefaultTransport},
	}
}

// Name returns "duckduckgo".
func (d *DuckDuckGo) Name() string { return "duckduckgo" }

// Enrich runs one search. Sponsored results are skipped.
func (d *DuckDuckGo) Enrich(ctx context.Context, req Request) (*Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	u := d.baseURL + "/html/?" + url.Values{"q": {req.Query}}.Encode()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("User-Agent", d.userAgent)
	httpReq.Header.Set("Accept", "text/html")

	httpResp, err := d.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("duckduckgo request failed: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("duckduckgo returned status %d", httpResp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse results page: %w", err)
	}
	return &Response{Snippets: parseResults(doc, req.limit())}, nil
}

func parseResults(doc *goquery.Document, limit int) []generation.Snippet {
	var out []generation.Snippet
	doc.Find("div.result").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if s.HasClass("result--ad") {
			return true
		}
		link := s.Find("a.result__a").First()
		title := strings.TrimSpace(link.Text())
		if title == "" {
			return true
		}
		href, _ := link.Attr("href")
		out = append(out, generation.Snippet{
			Title:     title,
			Excerpt:   collapse(s.Find(".result__snippet").First().Text()),
			SourceRef: unwrapRedirect(href),
		})
		return len(out) < limit
	})
	return out
}

// unwrapRedirect extracts the target of a DuckDuckGo /l/?uddg= redirect
// link. Other links are returned unchanged.
func unwrapRedirect(href string) string {
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	return href
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
