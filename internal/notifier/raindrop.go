package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/0x0BSoD/newsSieve/internal/model"
	"github.com/0x0BSoD/newsSieve/internal/retry"
)

const (
	DefaultRaindropURL = "https://api.raindrop.io"
	raindropBatchSize  = 100
	raindropPath       = "/rest/v1/raindrops"
)

// DefaultRaindropRetry allows five attempts per batch.
var DefaultRaindropRetry = retry.Policy{
	MaxAttempts:     5,
	InitialInterval: time.Second,
	MaxInterval:     30 * time.Second,
}

type RaindropConfig struct {
	Token        string
	CollectionID int64
	BaseURL      string
	Retry        retry.Policy
}

type Raindrop struct {
	cfg    RaindropConfig
	client *http.Client
	log    *slog.Logger
}

type raindropCollection struct {
	ID int64 `json:"$id"`
}

type raindropItem struct {
	Link       string             `json:"link"`
	Title      string             `json:"title"`
	Excerpt    string             `json:"excerpt"`
	Collection raindropCollection `json:"collection"`
}

type raindropPayload struct {
	Items []raindropItem `json:"items"`
}

// BatchResult summarises one Save call.
type BatchResult struct {
	Batches int
	Saved   int
	Failed  int
	Errors  []error
}

func NewRaindrop(cfg RaindropConfig, client *http.Client, log *slog.Logger) *Raindrop {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultRaindropURL
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = DefaultRaindropRetry
	}
	if client == nil {
		client = &http.Client{}
	}
	return &Raindrop{cfg: cfg, client: client, log: log}
}

// Save bookmarks every recommendation marked for reading, in batches of at
// most 100. A batch that keeps failing is logged and counted; the rest still
// go out.
func (r *Raindrop) Save(ctx context.Context, recs []model.Recommendation) BatchResult {
	var res BatchResult

	if r.cfg.Token == "" {
		r.log.Info("raindrop.io token not configured, skipping")
		return res
	}

	read, _ := Partition(recs)
	items := lo.Map(read, func(rec model.Recommendation, _ int) raindropItem {
		return raindropItem{
			Link:       rec.Article.Link,
			Title:      rec.Article.Title,
			Excerpt:    rec.Judgment.Reason,
			Collection: raindropCollection{ID: r.cfg.CollectionID},
		}
	})

	for _, batch := range lo.Chunk(items, raindropBatchSize) {
		res.Batches++

		if err := r.postBatch(ctx, batch); err != nil {
			res.Failed += len(batch)
			res.Errors = append(res.Errors, err)
			r.log.Error("failed to save batch to raindrop.io", "size", len(batch), "err", err)
			continue
		}

		res.Saved += len(batch)
		r.log.Info("saved batch to raindrop.io", "size", len(batch))
		for _, item := range batch {
			r.log.Debug("bookmarked", "title", item.Title)
		}
	}

	return res
}

func (r *Raindrop) postBatch(ctx context.Context, batch []raindropItem) error {
	body, err := json.Marshal(raindropPayload{Items: batch})
	if err != nil {
		return fmt.Errorf("marshal raindrops: %w", err)
	}

	return retry.Do(ctx, r.cfg.Retry, func() error {
		return r.post(ctx, body)
	}, func(err error, wait time.Duration) {
		r.log.Warn("raindrop.io request failed, retrying", "wait", wait, "err", err)
	})
}

func (r *Raindrop) post(ctx context.Context, body []byte) error {
	endpoint := strings.TrimRight(r.cfg.BaseURL, "/") + raindropPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return retry.Permanent(fmt.Errorf("new request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.cfg.Token)

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		err := fmt.Errorf("raindrop.io error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			return err
		}
		return retry.Permanent(err)
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
