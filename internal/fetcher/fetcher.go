package fetcher

import (
	"context"
	"log/slog"
	"time"

	"github.com/0x0BSoD/newsSieve/internal/content"
	"github.com/0x0BSoD/newsSieve/internal/model"
	"github.com/0x0BSoD/newsSieve/internal/state"
)

type FeedSource interface {
	Fetch(ctx context.Context, url string) ([]model.Entry, error)
}

// ContentFetcher returns an article's plain text, "" when it is unavailable.
type ContentFetcher interface {
	Fetch(ctx context.Context, url string) string
}

type Fetcher struct {
	source  FeedSource
	content ContentFetcher
	log     *slog.Logger

	feedBodyFallback bool
}

type Option func(*Fetcher)

// WithFeedBodyFallback uses the feed-supplied body when scraping an article
// yields no text. Without it the article keeps an empty body.
func WithFeedBodyFallback(enabled bool) Option {
	return func(f *Fetcher) {
		f.feedBodyFallback = enabled
	}
}

func New(source FeedSource, content ContentFetcher, log *slog.Logger, opts ...Option) *Fetcher {
	f := &Fetcher{
		source:  source,
		content: content,
		log:     log,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Collect walks feeds one at a time and returns the articles published since
// each feed's last run. A feed that cannot be fetched is skipped and keeps
// its stored timestamp; every other feed is advanced to now.
func (f *Fetcher) Collect(ctx context.Context, tracker *state.Tracker, feeds []string, processAll bool, now time.Time) ([]model.Article, error) {
	var articles []model.Article

	for _, feedURL := range feeds {
		if err := ctx.Err(); err != nil {
			return articles, err
		}

		f.log.Info("processing feed", "feed", feedURL, "last_run", lastRunLabel(tracker.LastRun(feedURL)))

		entries, err := f.source.Fetch(ctx, feedURL)
		if err != nil {
			f.log.Error("failed to fetch feed", "feed", feedURL, "err", err)
			continue
		}

		fresh, lastRun := tracker.NewEntries(feedURL, entries, processAll, now)
		for _, item := range fresh {
			articles = append(articles, f.article(ctx, feedURL, item.Entry))
		}

		tracker.Advance(feedURL, lastRun)
	}

	f.log.Info("collected new articles", "count", len(articles))
	return articles, nil
}

func (f *Fetcher) article(ctx context.Context, feedURL string, entry model.Entry) model.Article {
	f.log.Info("fetching content", "title", entry.Title)

	text := f.content.Fetch(ctx, entry.Link)
	if text == "" && f.feedBodyFallback {
		text = content.Text(entry.Content)
	}

	return model.Article{
		Title:       entry.Title,
		Link:        entry.Link,
		Content:     text,
		Published:   entry.Published,
		FeedURL:     feedURL,
		ReadingTime: model.ReadingTime(entry.Title + "\n\n" + text),
	}
}

func lastRunLabel(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.Format(time.RFC3339)
}
