package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0x0BSoD/newsSieve/internal/model"
	"github.com/0x0BSoD/newsSieve/internal/retry"
)

var fastRetry = retry.Policy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func rec(title string, read bool, minutes int) model.Recommendation {
	return model.Recommendation{
		Article: model.Article{
			Title:       title,
			Link:        "https://blog.example.com/" + strings.ReplaceAll(strings.ToLower(title), " ", "-"),
			ReadingTime: minutes,
			Published:   "2024-03-05T14:30:00Z",
		},
		Judgment: model.Judgment{Decision: read, Aspects: "aspects of " + title, Reason: "reason for " + title},
	}
}

func TestPartition(t *testing.T) {
	recs := []model.Recommendation{rec("A", true, 1), rec("B", false, 2), rec("C", true, 3), rec("D", false, 4)}

	read, skip := Partition(recs)

	require.Len(t, read, 2)
	require.Len(t, skip, 2)
	assert.Equal(t, "A", read[0].Article.Title)
	assert.Equal(t, "C", read[1].Article.Title)
	assert.Equal(t, "B", skip[0].Article.Title)
	assert.Equal(t, "D", skip[1].Article.Title)
	assert.Equal(t, 6, MinutesSaved(skip))
}

func TestRenderDigest(t *testing.T) {
	read := []model.Recommendation{rec("Worth It", true, 4)}
	skip := []model.Recommendation{rec("Skip One", false, 3), rec("Skip <Two>", false, 5)}

	body, err := RenderDigest(read, skip)
	require.NoError(t, err)

	assert.Contains(t, body, "Articles to Read (1)")
	assert.Contains(t, body, "Articles to Skip (2)")
	assert.Contains(t, body, "approximately 8 minutes")
	assert.Contains(t, body, `<a href="https://blog.example.com/worth-it">Worth It</a>`)
	assert.Contains(t, body, "<strong>Estimated reading time:</strong> 4 minutes")
	assert.Contains(t, body, "<strong>Relevant to:</strong> aspects of Worth It")
	assert.Contains(t, body, "<strong>Reason:</strong> reason for Skip One")
	assert.Contains(t, body, "Skip &lt;Two&gt;")
	assert.Less(t, strings.Index(body, "Worth It"), strings.Index(body, "Articles to Skip"))
}

func TestRenderDigestEmpty(t *testing.T) {
	body, err := RenderDigest(nil, nil)
	require.NoError(t, err)
	assert.Contains(t, body, "Articles to Read (0)")
	assert.Contains(t, body, "approximately 0 minutes")
}

func TestMailerWithoutCredentialsPrintsBody(t *testing.T) {
	var out bytes.Buffer
	m := NewMailer(EmailConfig{
		From: "digest@example.com",
		To:   "me@example.com",
		Host: "127.0.0.1",
		Port: 1,
	}, &out, discardLogger())

	err := m.Send(context.Background(), []model.Recommendation{rec("Worth It", true, 2)})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Articles to Read (1)")
	assert.Contains(t, out.String(), "Worth It")
}

func TestMailerMessage(t *testing.T) {
	m := NewMailer(EmailConfig{From: "digest@example.com", To: "me@example.com"}, io.Discard, discardLogger())
	m.now = func() time.Time { return time.Date(2024, time.March, 6, 7, 0, 0, 0, time.UTC) }

	assert.Equal(t, "RSS Feed Digest - 2024-03-06", m.Subject())

	msg, err := m.message("<html></html>")
	require.NoError(t, err)
	assert.Equal(t, []string{"<digest@example.com>"}, msg.GetFromString())
	assert.Equal(t, []string{"<me@example.com>"}, msg.GetToString())

	_, err = NewMailer(EmailConfig{From: "not an address", To: "me@example.com"}, io.Discard, discardLogger()).message("")
	assert.Error(t, err)
}

type raindropRecorder struct {
	mu       sync.Mutex
	attempts map[string]int
	batches  []int
	payloads []raindropPayload
}

// handler fails the batch starting with a given title failFirst[title] times
// before accepting it.
func (rr *raindropRecorder) handler(t *testing.T, failFirst map[string]int) http.HandlerFunc {
	rr.attempts = map[string]int{}
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/rest/v1/raindrops", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var payload raindropPayload
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload)) || len(payload.Items) == 0 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		rr.mu.Lock()
		defer rr.mu.Unlock()

		first := payload.Items[0].Title
		rr.attempts[first]++
		if rr.attempts[first] <= failFirst[first] {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		rr.batches = append(rr.batches, len(payload.Items))
		rr.payloads = append(rr.payloads, payload)
		_, _ = w.Write([]byte(`{"result":true}`))
	}
}

func manyReads(n int) []model.Recommendation {
	recs := make([]model.Recommendation, 0, n+1)
	for i := 0; i < n; i++ {
		recs = append(recs, rec(fmt.Sprintf("Read %03d", i), true, 1))
	}
	return append(recs, rec("Skipped", false, 1))
}

func TestRaindropBatches(t *testing.T) {
	rr := &raindropRecorder{}
	srv := httptest.NewServer(rr.handler(t, nil))
	defer srv.Close()

	r := NewRaindrop(RaindropConfig{Token: "secret", CollectionID: 4242, BaseURL: srv.URL, Retry: fastRetry}, srv.Client(), discardLogger())

	res := r.Save(context.Background(), manyReads(250))

	assert.Equal(t, []int{100, 100, 50}, rr.batches)
	assert.Equal(t, BatchResult{Batches: 3, Saved: 250}, res)

	item := rr.payloads[0].Items[0]
	assert.Equal(t, "Read 000", item.Title)
	assert.Equal(t, "https://blog.example.com/read-000", item.Link)
	assert.Equal(t, "reason for Read 000", item.Excerpt)
	assert.Equal(t, int64(4242), item.Collection.ID)
}

func TestRaindropPayloadShape(t *testing.T) {
	raw, err := json.Marshal(raindropPayload{Items: []raindropItem{{
		Link: "https://x", Title: "X", Excerpt: "why", Collection: raindropCollection{ID: 7},
	}}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"items":[{"link":"https://x","title":"X","excerpt":"why","collection":{"$id":7}}]}`, string(raw))
}

func TestRaindropRetriesTransientFailure(t *testing.T) {
	rr := &raindropRecorder{}
	srv := httptest.NewServer(rr.handler(t, map[string]int{"Read 000": 2}))
	defer srv.Close()

	r := NewRaindrop(RaindropConfig{Token: "secret", BaseURL: srv.URL, Retry: fastRetry}, srv.Client(), discardLogger())

	res := r.Save(context.Background(), manyReads(3))

	assert.Equal(t, []int{3}, rr.batches)
	assert.Equal(t, 3, rr.attempts["Read 000"])
	assert.Equal(t, 3, res.Saved)
	assert.Zero(t, res.Failed)
}

func TestRaindropFailedBatchDoesNotStopOthers(t *testing.T) {
	var mu sync.Mutex
	calls := map[string]int{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload raindropPayload
		_ = json.NewDecoder(r.Body).Decode(&payload)
		first := payload.Items[0].Title

		mu.Lock()
		calls[first]++
		mu.Unlock()

		if first == "Read 000" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"result":true}`))
	}))
	defer srv.Close()

	r := NewRaindrop(RaindropConfig{Token: "secret", BaseURL: srv.URL, Retry: fastRetry}, srv.Client(), discardLogger())

	res := r.Save(context.Background(), manyReads(150))

	assert.Equal(t, 2, res.Batches)
	assert.Equal(t, 100, res.Failed)
	assert.Equal(t, 50, res.Saved)
	assert.Len(t, res.Errors, 1)
	assert.Equal(t, fastRetry.MaxAttempts, calls["Read 000"])
	assert.Equal(t, 1, calls["Read 100"])
}

func TestRaindropClientErrorIsNotRetried(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	r := NewRaindrop(RaindropConfig{Token: "secret", BaseURL: srv.URL, Retry: fastRetry}, srv.Client(), discardLogger())

	res := r.Save(context.Background(), manyReads(1))
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, calls)
}

func TestRaindropWithoutTokenSkips(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Error("no request expected without a token")
	}))
	defer srv.Close()

	r := NewRaindrop(RaindropConfig{BaseURL: srv.URL}, srv.Client(), discardLogger())
	assert.Equal(t, BatchResult{}, r.Save(context.Background(), manyReads(5)))
}

func TestFeedExporter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recommended.xml")
	e := NewFeedExporter(path)
	e.now = func() time.Time { return time.Date(2024, time.March, 6, 7, 0, 0, 0, time.UTC) }

	recs := []model.Recommendation{rec("Worth It", true, 4), rec("Skip Me", false, 2)}
	require.NoError(t, e.Export(recs))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	doc := string(raw)

	assert.Contains(t, doc, "<feed")
	assert.Contains(t, doc, "newsSieve recommendations")
	assert.Contains(t, doc, "Worth It")
	assert.Contains(t, doc, "https://blog.example.com/worth-it")
	assert.Contains(t, doc, "reason for Worth It")
	assert.NotContains(t, doc, "Skip Me")
}
