// Package judge asks a language model whether an article is worth reading.
package judge

import (
	"context"
	"time"

	"github.com/0x0BSoD/newsSieve/internal/model"
	"github.com/0x0BSoD/newsSieve/internal/retry"
)

const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"

	DefaultOllamaHost = "http://localhost:11434"
)

type Judge interface {
	Judge(ctx context.Context, article model.Article) (model.Judgment, error)
}

// DefaultRetry allows eight attempts per article before the error surfaces.
var DefaultRetry = retry.Policy{
	MaxAttempts:     8,
	InitialInterval: time.Second,
	MaxInterval:     time.Minute,
}

func isRetryableStatus(code int) bool {
	return code == 429 || code >= 500
}
