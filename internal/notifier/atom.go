package notifier

import (
	"fmt"
	"os"
	"time"

	"github.com/gorilla/feeds"

	"github.com/0x0BSoD/newsSieve/internal/dates"
	"github.com/0x0BSoD/newsSieve/internal/model"
)

const exportTitle = "newsSieve recommendations"

// FeedExporter writes the articles worth reading as an Atom document so any
// feed reader can follow the filtered stream.
type FeedExporter struct {
	path string
	now  func() time.Time
}

func NewFeedExporter(path string) *FeedExporter {
	return &FeedExporter{path: path, now: time.Now}
}

func (e *FeedExporter) Render(recs []model.Recommendation) (string, error) {
	now := e.now().UTC()
	read, _ := Partition(recs)

	feed := &feeds.Feed{
		Title:       exportTitle,
		Link:        &feeds.Link{Href: "urn:newssieve:recommendations"},
		Description: "Articles judged worth reading",
		Created:     now,
		Updated:     now,
	}

	feed.Items = make([]*feeds.Item, 0, len(read))
	for _, rec := range read {
		created := now
		if t, err := dates.Parse(rec.Article.Published); err == nil {
			created = t
		}
		feed.Items = append(feed.Items, &feeds.Item{
			Title:       rec.Article.Title,
			Link:        &feeds.Link{Href: rec.Article.Link},
			Id:          rec.Article.Link,
			Description: rec.Judgment.Reason,
			Created:     created,
		})
	}

	atom, err := feed.ToAtom()
	if err != nil {
		return "", fmt.Errorf("failed to generate atom: %w", err)
	}
	return atom, nil
}

func (e *FeedExporter) Export(recs []model.Recommendation) error {
	atom, err := e.Render(recs)
	if err != nil {
		return err
	}
	if err := os.WriteFile(e.path, []byte(atom), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", e.path, err)
	}
	return nil
}
