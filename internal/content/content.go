// Package content downloads article pages and reduces them to plain text.
package content

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"github.com/jaytaylor/html2text"
)

const (
	ExtractorSelectors   = "selectors"
	ExtractorReadability = "readability"

	DefaultTimeout   = 10 * time.Second
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

	maxPageSize = 10 << 20
)

// contentSelectors are tried in order; the first match is the article body.
var contentSelectors = []string{"article", ".post-content", ".entry-content"}

type Options struct {
	Timeout   time.Duration
	UserAgent string
	Extractor string
}

type Fetcher struct {
	client    *http.Client
	userAgent string
	extractor string
	log       *slog.Logger
}

func New(opts Options, log *slog.Logger) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Extractor == "" {
		opts.Extractor = ExtractorSelectors
	}
	return &Fetcher{
		client:    &http.Client{Timeout: opts.Timeout},
		userAgent: opts.UserAgent,
		extractor: opts.Extractor,
		log:       log,
	}
}

// Fetch returns the page's main text. Any failure is logged and yields "".
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) string {
	text, err := f.fetch(ctx, pageURL)
	if err != nil {
		f.log.Warn("failed to fetch article content", "url", pageURL, "err", err)
		return ""
	}
	return text
}

func (f *Fetcher) fetch(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("unexpected status %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageSize))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}

	if f.extractor == ExtractorReadability {
		text, err := readabilityText(body, pageURL)
		if err == nil && text != "" {
			return text, nil
		}
		f.log.Debug("readability extraction failed, using selectors", "url", pageURL, "err", err)
	}

	return selectorText(body)
}

func selectorText(body []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse document: %w", err)
	}

	doc.Find("script, style").Remove()

	raw, err := goquery.OuterHtml(mainContent(doc))
	if err != nil {
		return "", fmt.Errorf("render selection: %w", err)
	}

	return htmlToText(raw)
}

func mainContent(doc *goquery.Document) *goquery.Selection {
	for _, query := range contentSelectors {
		if sel := doc.Find(query).First(); sel.Length() > 0 {
			return sel
		}
	}
	return doc.Find("body").First()
}

func readabilityText(body []byte, pageURL string) (string, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}

	article, err := readability.FromReader(bytes.NewReader(body), u)
	if err != nil {
		return "", fmt.Errorf("readability: %w", err)
	}

	return htmlToText(article.Content)
}

// htmlToText flattens markup without wrapping lines. Images are removed
// beforehand so no references to them survive.
func htmlToText(raw string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("parse fragment: %w", err)
	}
	doc.Find("img, picture, svg").Remove()

	cleaned, err := doc.Html()
	if err != nil {
		return "", fmt.Errorf("render fragment: %w", err)
	}

	text, err := html2text.FromString(cleaned, html2text.Options{TextOnly: true})
	if err != nil {
		return "", fmt.Errorf("convert to text: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// Text converts a feed-supplied HTML body to plain text, "" if it cannot be
// parsed.
func Text(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	text, err := htmlToText(raw)
	if err != nil {
		return ""
	}
	return text
}
