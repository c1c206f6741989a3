// Package state keeps the per-feed last-run timestamps that decide which entries are new.
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/0x0BSoD/newsSieve/internal/dates"
)

// Store persists a whole State snapshot.
type Store interface {
	Load(ctx context.Context) (*State, error)
	Save(ctx context.Context, st *State) error
}

type State struct {
	Feeds map[string]*FeedState `json:"feeds"`
}

type FeedState struct {
	LastRun *time.Time `json:"last_run"`
}

func New() *State {
	return &State{Feeds: map[string]*FeedState{}}
}

// Feed returns the state for url, creating an empty one on first sight.
func (s *State) Feed(url string) *FeedState {
	if s.Feeds == nil {
		s.Feeds = map[string]*FeedState{}
	}
	fs, ok := s.Feeds[url]
	if !ok || fs == nil {
		fs = &FeedState{}
		s.Feeds[url] = fs
	}
	return fs
}

// UnmarshalJSON accepts null, the legacy "null" string and any date string
// the dates package understands.
func (f *FeedState) UnmarshalJSON(b []byte) error {
	var raw struct {
		LastRun *string `json:"last_run"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	if raw.LastRun == nil || *raw.LastRun == "" || *raw.LastRun == "null" {
		f.LastRun = nil
		return nil
	}

	t, err := dates.Parse(*raw.LastRun)
	if err != nil {
		return fmt.Errorf("last_run: %w", err)
	}
	f.LastRun = &t
	return nil
}
