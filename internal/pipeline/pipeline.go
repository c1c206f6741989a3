// Package pipeline runs one pass of newsSieve: collect new articles, judge
// them and deliver the recommendations.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/0x0BSoD/newsSieve/internal/judge"
	"github.com/0x0BSoD/newsSieve/internal/model"
	"github.com/0x0BSoD/newsSieve/internal/notifier"
	"github.com/0x0BSoD/newsSieve/internal/state"
)

const (
	StageLoadState = "load_state"
	StageCollect   = "collect"
	StageSaveState = "save_state"
	StageJudge     = "judge"
	StageEmail     = "email"
)

// StageError tags a run failure with the step that produced it.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

type Collector interface {
	Collect(ctx context.Context, tracker *state.Tracker, feeds []string, processAll bool, now time.Time) ([]model.Article, error)
}

type Mailer interface {
	Send(ctx context.Context, recs []model.Recommendation) error
}

type Bookmarker interface {
	Save(ctx context.Context, recs []model.Recommendation) notifier.BatchResult
}

type Exporter interface {
	Export(recs []model.Recommendation) error
}

type Reporter interface {
	Notify(msg string)
}

// Deps wires a Pipeline. Mailer, Bookmarker, Exporter and Reporter are
// optional; a nil value disables that step.
type Deps struct {
	Feeds      []string
	Store      state.Store
	Collector  Collector
	Judge      judge.Judge
	Mailer     Mailer
	Bookmarker Bookmarker
	Exporter   Exporter
	Reporter   Reporter
	Log        *slog.Logger
}

type Pipeline struct {
	Deps
	now func() time.Time
}

// Summary describes a finished run.
type Summary struct {
	StartedAt time.Time
	Articles  int
	Read      int
	Skipped   int
	Bookmarks notifier.BatchResult
}

func New(deps Deps) *Pipeline {
	return &Pipeline{Deps: deps, now: time.Now}
}

func (p *Pipeline) Run(ctx context.Context, processAll bool) (Summary, error) {
	now := p.now().UTC()
	summary := Summary{StartedAt: now}

	st, err := p.Store.Load(ctx)
	if err != nil {
		return summary, &StageError{Stage: StageLoadState, Err: err}
	}
	tracker := state.NewTracker(st, p.Log)

	articles, err := p.Collector.Collect(ctx, tracker, p.Feeds, processAll, now)
	if err != nil {
		return summary, &StageError{Stage: StageCollect, Err: err}
	}
	summary.Articles = len(articles)

	if err := p.Store.Save(ctx, st); err != nil {
		return summary, &StageError{Stage: StageSaveState, Err: err}
	}

	recs := make([]model.Recommendation, 0, len(articles))
	for _, article := range articles {
		p.Log.Info("judging article", "title", article.Title)

		judgment, err := p.Judge.Judge(ctx, article)
		if err != nil {
			p.report("run aborted while judging %q: %v", article.Title, err)
			return summary, &StageError{Stage: StageJudge, Err: err}
		}
		recs = append(recs, model.Recommendation{Article: article, Judgment: judgment})
	}

	read, skip := notifier.Partition(recs)
	summary.Read, summary.Skipped = len(read), len(skip)

	if err := p.Store.Save(ctx, st); err != nil {
		return summary, &StageError{Stage: StageSaveState, Err: err}
	}

	return summary, p.deliver(ctx, recs, &summary)
}

// deliver runs every enabled output. An email failure does not prevent the
// bookmarks or the feed export; it is returned once they are done.
func (p *Pipeline) deliver(ctx context.Context, recs []model.Recommendation, summary *Summary) error {
	var emailErr error
	if p.Mailer != nil {
		if err := p.Mailer.Send(ctx, recs); err != nil {
			p.Log.Error("failed to send email", "err", err)
			emailErr = &StageError{Stage: StageEmail, Err: err}
		}
	}

	if p.Bookmarker != nil {
		summary.Bookmarks = p.Bookmarker.Save(ctx, recs)
		if summary.Bookmarks.Failed > 0 {
			p.report("%d of %d bookmarks failed to save to raindrop.io",
				summary.Bookmarks.Failed, summary.Bookmarks.Failed+summary.Bookmarks.Saved)
		}
	}

	if p.Exporter != nil {
		if err := p.Exporter.Export(recs); err != nil {
			p.Log.Error("failed to export recommendations feed", "err", err)
		}
	}

	return emailErr
}

func (p *Pipeline) report(format string, args ...any) {
	if p.Reporter == nil {
		return
	}
	p.Reporter.Notify(fmt.Sprintf(format, args...))
}
