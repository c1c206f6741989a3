package state

import (
	"log/slog"
	"time"

	"github.com/0x0BSoD/newsSieve/internal/dates"
	"github.com/0x0BSoD/newsSieve/internal/model"
)

// Dated is an entry together with the date it resolved to.
type Dated struct {
	Entry model.Entry
	Date  time.Time
}

type Tracker struct {
	state *State
	log   *slog.Logger
}

func NewTracker(st *State, log *slog.Logger) *Tracker {
	return &Tracker{state: st, log: log}
}

func (t *Tracker) State() *State {
	return t.state
}

// LastRun reports the stored timestamp for feedURL, nil when the feed has
// never completed a run.
func (t *Tracker) LastRun(feedURL string) *time.Time {
	return t.state.Feed(feedURL).LastRun
}

// NewEntries filters entries down to those published after the feed's last
// run. Entries without a resolvable date are dropped. With processAll the
// stored timestamp is ignored. The returned time is the value last_run should
// take once the feed has been processed.
func (t *Tracker) NewEntries(feedURL string, entries []model.Entry, processAll bool, now time.Time) ([]Dated, time.Time) {
	lastRun := t.LastRun(feedURL)
	if processAll {
		lastRun = nil
	}

	var fresh []Dated
	for _, entry := range entries {
		date, ok := dates.EntryDate(entry)
		if !ok {
			t.log.Warn("no valid date found for article", "feed", feedURL, "title", entry.Title)
			continue
		}

		if lastRun != nil && !date.After(*lastRun) {
			continue
		}

		fresh = append(fresh, Dated{Entry: entry, Date: date})
	}

	return fresh, now.UTC()
}

// Advance records at as the feed's last run. A stored value later than at is
// kept so the timestamp never moves backwards.
func (t *Tracker) Advance(feedURL string, at time.Time) {
	fs := t.state.Feed(feedURL)
	at = at.UTC()
	if fs.LastRun != nil && fs.LastRun.After(at) {
		t.log.Warn("clock is behind stored last run, keeping stored value",
			"feed", feedURL, "stored", *fs.LastRun, "now", at)
		return
	}
	fs.LastRun = &at
}
