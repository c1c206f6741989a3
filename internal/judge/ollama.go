package judge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/0x0BSoD/newsSieve/internal/model"
	"github.com/0x0BSoD/newsSieve/internal/retry"
)

type OllamaJudge struct {
	client  *api.Client
	prompt  Prompt
	model   string
	timeout time.Duration
	retry   retry.Policy
	log     *slog.Logger
}

type OllamaConfig struct {
	Host    string
	Model   string
	Timeout time.Duration
	Retry   retry.Policy
}

var _ Judge = (*OllamaJudge)(nil)

func NewOllamaJudge(cfg OllamaConfig, prompt Prompt, log *slog.Logger) (*OllamaJudge, error) {
	host := cfg.Host
	if host == "" {
		host = DefaultOllamaHost
	}
	if !strings.Contains(host, "://") {
		host = "http://" + host
	}
	base, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("parse ollama host %q: %w", cfg.Host, err)
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = DefaultRetry
	}

	return &OllamaJudge{
		client:  api.NewClient(base, &http.Client{}),
		prompt:  prompt,
		model:   cfg.Model,
		timeout: cfg.Timeout,
		retry:   cfg.Retry,
		log:     log,
	}, nil
}

func (o *OllamaJudge) Judge(ctx context.Context, article model.Article) (model.Judgment, error) {
	prompt := o.prompt.Build(article)
	o.log.Info("analyzing article", "title", article.Title, "backend", ProviderOllama)

	var reply string
	err := retry.Do(ctx, o.retry, func() error {
		out, err := o.generate(ctx, prompt)
		if err != nil {
			if !ollamaRetryable(err) {
				return retry.Permanent(err)
			}
			return err
		}
		reply = out
		return nil
	}, func(err error, wait time.Duration) {
		o.log.Warn("generate failed, retrying", "title", article.Title, "wait", wait, "err", err)
	})
	if err != nil {
		return model.Judgment{}, fmt.Errorf("ollama judge %q: %w", article.Title, err)
	}

	j := ParseLax(reply)
	o.log.Info("article judged", "title", article.Title, "read", j.Decision, "reason", j.Reason)
	return j, nil
}

func (o *OllamaJudge) generate(ctx context.Context, prompt string) (string, error) {
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	stream := false
	req := &api.GenerateRequest{
		Model:  o.model,
		Prompt: prompt,
		Stream: &stream,
	}

	var responseFlow []string
	err := o.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		responseFlow = append(responseFlow, resp.Response)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}

	return strings.Join(responseFlow, ""), nil
}

func ollamaRetryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}

	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		return isRetryableStatus(statusErr.StatusCode)
	}

	return true
}
