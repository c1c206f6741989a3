package judge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/0x0BSoD/newsSieve/internal/model"
	"github.com/0x0BSoD/newsSieve/internal/retry"
)

var errEmptyChoices = errors.New("empty response")

type OpenAIJudge struct {
	client  *openai.Client
	prompt  Prompt
	model   string
	timeout time.Duration
	retry   retry.Policy
	log     *slog.Logger
}

type OpenAIConfig struct {
	APIKey string
	// BaseURL points at any OpenAI-compatible API; empty means api.openai.com.
	BaseURL string
	Model   string
	Timeout time.Duration
	Retry   retry.Policy
}

var _ Judge = (*OpenAIJudge)(nil)

func NewOpenAIJudge(cfg OpenAIConfig, prompt Prompt, log *slog.Logger) *OpenAIJudge {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = DefaultRetry
	}
	return &OpenAIJudge{
		client:  openai.NewClientWithConfig(clientCfg),
		prompt:  prompt,
		model:   cfg.Model,
		timeout: cfg.Timeout,
		retry:   cfg.Retry,
		log:     log,
	}
}

func (o *OpenAIJudge) Judge(ctx context.Context, article model.Article) (model.Judgment, error) {
	prompt := o.prompt.Build(article)
	o.log.Info("analyzing article", "title", article.Title, "backend", ProviderOpenAI)

	var reply string
	err := retry.Do(ctx, o.retry, func() error {
		out, err := o.complete(ctx, prompt)
		if err != nil {
			if !openAIRetryable(err) {
				return retry.Permanent(err)
			}
			return err
		}
		reply = out
		return nil
	}, func(err error, wait time.Duration) {
		o.log.Warn("chat completion failed, retrying", "title", article.Title, "wait", wait, "err", err)
	})
	if err != nil {
		return model.Judgment{}, fmt.Errorf("openai judge %q: %w", article.Title, err)
	}

	j := ParseLabeled(reply)
	o.log.Info("article judged", "title", article.Title, "read", j.Decision, "reason", j.Reason)
	return j, nil
}

func (o *OpenAIJudge) complete(ctx context.Context, prompt string) (string, error) {
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w from model %q", errEmptyChoices, o.model)
	}

	return resp.Choices[0].Message.Content, nil
}

// openAIRetryable treats rate limits, server errors and transport failures as
// transient; any other API answer is final.
func openAIRetryable(err error) bool {
	if errors.Is(err, errEmptyChoices) || errors.Is(err, context.Canceled) {
		return false
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return isRetryableStatus(apiErr.HTTPStatusCode)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return isRetryableStatus(reqErr.HTTPStatusCode)
	}

	return true
}
