// Package source implements the RSSSource struct and its methods for fetching feed entries with their raw, unparsed dates.
package source

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"
	"github.com/samber/lo"

	"github.com/0x0BSoD/newsSieve/internal/model"
)

type RSSSource struct {
	parser *gofeed.Parser
}

// NewRSSSource builds a source on top of client. A nil client means
// http.DefaultClient, which carries no timeout of its own.
func NewRSSSource(client *http.Client) *RSSSource {
	p := gofeed.NewParser()
	if client != nil {
		p.Client = client
	}
	return &RSSSource{parser: p}
}

func (s *RSSSource) Fetch(ctx context.Context, url string) ([]model.Entry, error) {
	feed, err := s.parser.ParseURLWithContext(url, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", url, err)
	}

	return lo.Map(feed.Items, func(item *gofeed.Item, _ int) model.Entry {
		return entryFromItem(item)
	}), nil
}

func entryFromItem(item *gofeed.Item) model.Entry {
	return model.Entry{
		Title:     strings.TrimSpace(item.Title),
		Link:      strings.TrimSpace(item.Link),
		Content:   itemText(item),
		Published: item.Published,
		PubDate:   item.Custom["pubDate"],
		Updated:   item.Updated,
		Created:   createdDate(item),
	}
}

// itemText returns the richest available text for an item: content when the
// feed ships it, the description otherwise.
func itemText(item *gofeed.Item) string {
	if c := strings.TrimSpace(item.Content); c != "" {
		return c
	}
	return strings.TrimSpace(item.Description)
}

func createdDate(item *gofeed.Item) string {
	if item.DublinCoreExt != nil && len(item.DublinCoreExt.Date) > 0 {
		return item.DublinCoreExt.Date[0]
	}
	return extensionValue(item.Extensions, "dcterms", "created")
}

func extensionValue(exts ext.Extensions, ns, name string) string {
	if exts == nil {
		return ""
	}
	values := exts[ns][name]
	if len(values) == 0 {
		return ""
	}
	return values[0].Value
}
