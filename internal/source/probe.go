package source

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/SlyMarbo/rss"
)

const feedProbeTimeout = 15 * time.Second

// contextTransport injects a context into every outgoing request so that
// cancellation propagates through the rss library, which takes no context.
type contextTransport struct {
	ctx  context.Context
	base http.RoundTripper
}

func (t contextTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.base.RoundTrip(req.WithContext(t.ctx))
}

// ProbeResult describes what a probe found at a feed URL.
type ProbeResult struct {
	Title string
	Items int
}

// Probe checks that url serves something a second, independent feed parser
// accepts.
func Probe(ctx context.Context, url string) (ProbeResult, error) {
	client := &http.Client{
		Transport: contextTransport{ctx: ctx, base: http.DefaultTransport},
		Timeout:   feedProbeTimeout,
	}

	feed, err := rss.FetchByClient(url, client)
	if err != nil {
		return ProbeResult{}, fmt.Errorf("probe feed %s: %w", url, err)
	}

	return ProbeResult{Title: feed.Title, Items: len(feed.Items)}, nil
}
