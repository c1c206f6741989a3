package judge

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0x0BSoD/newsSieve/internal/model"
	"github.com/0x0BSoD/newsSieve/internal/retry"
)

var fastRetry = retry.Policy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}

var article = model.Article{Title: "Profiling Go", Link: "https://blog.example.com/pprof", Content: "pprof"}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func chatCompletion(content string) string {
	body, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   "gpt-test",
		"choices": []map[string]any{{
			"index":         0,
			"message":       map[string]string{"role": "assistant", "content": content},
			"finish_reason": "stop",
		}},
	})
	return string(body)
}

func openAIServer(t *testing.T, handler func(call int32, w http.ResponseWriter, r *http.Request)) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler(calls.Add(1), w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newTestOpenAI(srv *httptest.Server) *OpenAIJudge {
	return NewOpenAIJudge(OpenAIConfig{
		APIKey:  "test-key",
		BaseURL: srv.URL + "/v1",
		Model:   "gpt-test",
		Retry:   fastRetry,
	}, Prompt{}, discardLogger())
}

func TestOpenAIJudge(t *testing.T) {
	srv, calls := openAIServer(t, func(_ int32, w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-test", req.Model)
		if assert.Len(t, req.Messages, 2) {
			assert.Equal(t, "system", req.Messages[0].Role)
			assert.Equal(t, systemPrompt, req.Messages[0].Content)
			assert.Contains(t, req.Messages[1].Content, "Title: Profiling Go")
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, chatCompletion("RELEVANT ASPECTS: Go\nDECISION: Yes\nREASON: Useful"))
	})

	got, err := newTestOpenAI(srv).Judge(context.Background(), article)
	require.NoError(t, err)
	assert.Equal(t, model.Judgment{Decision: true, Aspects: "Go", Reason: "Useful"}, got)
	assert.EqualValues(t, 1, calls.Load())
}

func TestOpenAIJudgeRetriesRateLimit(t *testing.T) {
	srv, calls := openAIServer(t, func(call int32, w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if call < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = io.WriteString(w, `{"error":{"message":"slow down","type":"requests","code":"rate_limit_exceeded"}}`)
			return
		}
		_, _ = io.WriteString(w, chatCompletion("DECISION: No\nREASON: Off topic"))
	})

	got, err := newTestOpenAI(srv).Judge(context.Background(), article)
	require.NoError(t, err)
	assert.False(t, got.Decision)
	assert.Equal(t, "Off topic", got.Reason)
	assert.EqualValues(t, 3, calls.Load())
}

func TestOpenAIJudgeGivesUp(t *testing.T) {
	srv, calls := openAIServer(t, func(_ int32, w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"error":{"message":"boom","type":"server_error"}}`)
	})

	_, err := newTestOpenAI(srv).Judge(context.Background(), article)
	assert.Error(t, err)
	assert.EqualValues(t, fastRetry.MaxAttempts, calls.Load())
}

func TestOpenAIJudgeDoesNotRetryClientErrors(t *testing.T) {
	srv, calls := openAIServer(t, func(_ int32, w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"message":"bad model","type":"invalid_request_error"}}`)
	})

	_, err := newTestOpenAI(srv).Judge(context.Background(), article)
	assert.Error(t, err)
	assert.EqualValues(t, 1, calls.Load())
}

func TestOllamaJudge(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		assert.Equal(t, "/api/generate", r.URL.Path)

		var req struct {
			Model  string `json:"model"`
			Prompt string `json:"prompt"`
			Stream *bool  `json:"stream"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama3", req.Model)
		assert.Contains(t, req.Prompt, "URL: https://blog.example.com/pprof")
		if assert.NotNil(t, req.Stream) {
			assert.False(t, *req.Stream)
		}

		w.Header().Set("Content-Type", "application/json")
		if n == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = io.WriteString(w, `{"error":"model is loading"}`+"\n")
			return
		}
		_, _ = io.WriteString(w, `{"model":"llama3","response":"Yes\nGreat for profiling.","done":true}`+"\n")
	}))
	defer srv.Close()

	j, err := NewOllamaJudge(OllamaConfig{Host: srv.URL, Model: "llama3", Retry: fastRetry}, Prompt{}, discardLogger())
	require.NoError(t, err)

	got, err := j.Judge(context.Background(), article)
	require.NoError(t, err)
	assert.Equal(t, model.Judgment{Decision: true, Aspects: model.DefaultAspects, Reason: "Great for profiling."}, got)
	assert.EqualValues(t, 2, calls.Load())
}

func TestOllamaJudgeNotFoundIsPermanent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":"model 'nope' not found"}`+"\n")
	}))
	defer srv.Close()

	j, err := NewOllamaJudge(OllamaConfig{Host: srv.URL, Model: "nope", Retry: fastRetry}, Prompt{}, discardLogger())
	require.NoError(t, err)

	_, err = j.Judge(context.Background(), article)
	assert.Error(t, err)
	assert.EqualValues(t, 1, calls.Load())
}
