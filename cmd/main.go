// Copyright (c) 2024, 0x0BSoD. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/0x0BSoD/newsSieve/internal/config"
	"github.com/0x0BSoD/newsSieve/internal/content"
	"github.com/0x0BSoD/newsSieve/internal/fetcher"
	"github.com/0x0BSoD/newsSieve/internal/judge"
	"github.com/0x0BSoD/newsSieve/internal/logging"
	"github.com/0x0BSoD/newsSieve/internal/notifier"
	"github.com/0x0BSoD/newsSieve/internal/pipeline"
	"github.com/0x0BSoD/newsSieve/internal/reporter"
	"github.com/0x0BSoD/newsSieve/internal/source"
	"github.com/0x0BSoD/newsSieve/internal/state"
)

const raindropHTTPTimeout = 30 * time.Second

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		cancel()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var processAll bool

	root := &cobra.Command{
		Use:          "newsSieve",
		Short:        "Filter RSS feeds through an LLM and deliver what is worth reading",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, log, processAll)
		},
	}
	root.Flags().BoolVar(&processAll, "all", false, "process all articles regardless of last run time")

	root.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Verify that every configured feed can be fetched and parsed",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			return check(cmd.Context(), cfg, log)
		},
	})

	return root
}

func loadConfig() (config.Config, *slog.Logger, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return config.Config{}, nil, fmt.Errorf("load .env: %w", err)
	}

	env, err := config.LoadEnv()
	if err != nil {
		return config.Config{}, nil, err
	}

	cfg, err := config.Load(env)
	if err != nil {
		return config.Config{}, nil, err
	}

	return cfg, logging.New(cfg.LogLevel), nil
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger, processAll bool) error {
	store, closeStore, err := newStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	j, err := newJudge(cfg, log)
	if err != nil {
		return err
	}

	deps := pipeline.Deps{
		Feeds: cfg.RSSFeeds,
		Store: store,
		Collector: fetcher.New(
			source.NewRSSSource(nil),
			content.New(content.Options{
				Timeout:   cfg.Content.Timeout,
				UserAgent: cfg.Content.UserAgent,
				Extractor: cfg.Content.Extractor,
			}, log),
			log,
			fetcher.WithFeedBodyFallback(cfg.Content.FeedFallback),
		),
		Judge: j,
		Log:   log,
	}

	if cfg.Telegram.Enabled {
		rep, err := reporter.New(cfg.Env.TelegramBotToken, cfg.Telegram.AdminChatID, log)
		if err != nil {
			log.Warn("telegram reporting disabled", "err", err)
		} else {
			deps.Reporter = rep
		}
	}

	if cfg.Email.Enabled {
		deps.Mailer = notifier.NewMailer(notifier.EmailConfig{
			From:     cfg.Email.FromAddress,
			To:       cfg.Email.ToAddress,
			Host:     cfg.Email.SMTPServer,
			Port:     cfg.Email.SMTPPort,
			Username: cfg.Env.EmailUsername,
			Password: cfg.Env.EmailPassword,
		}, os.Stdout, log)
	}

	if cfg.Raindrop.Enabled {
		deps.Bookmarker = notifier.NewRaindrop(notifier.RaindropConfig{
			Token:        cfg.Env.RaindropToken,
			CollectionID: cfg.Raindrop.CollectionID,
			BaseURL:      cfg.Raindrop.BaseURL,
		}, &http.Client{Timeout: raindropHTTPTimeout}, log)
	}

	if cfg.Export.AtomPath != "" {
		deps.Exporter = notifier.NewFeedExporter(cfg.Export.AtomPath)
	}

	summary, err := pipeline.New(deps).Run(ctx, processAll)
	if err != nil {
		log.Error("run failed", "err", err)
		return err
	}

	log.Info("run finished",
		"articles", summary.Articles,
		"read", summary.Read,
		"skipped", summary.Skipped,
		"bookmarked", summary.Bookmarks.Saved,
	)
	return nil
}

func newStore(ctx context.Context, cfg config.Config) (state.Store, func(), error) {
	if cfg.State.DSN == "" {
		return state.NewJSONStore(cfg.Env.StatePath), func() {}, nil
	}

	pg, err := state.NewPostgresStore(ctx, cfg.State.DSN)
	if err != nil {
		return nil, nil, err
	}
	return pg, func() { _ = pg.Close() }, nil
}

func newJudge(cfg config.Config, log *slog.Logger) (judge.Judge, error) {
	prompt := judge.Prompt{Personas: cfg.Personas, Avoid: cfg.Avoid}

	switch cfg.LLM.Provider {
	case judge.ProviderOpenAI:
		if cfg.Env.OpenAIAPIKey == "" && cfg.LLM.BaseURL == "" {
			return nil, errors.New("OPENAI_API_KEY is required when llm.provider is \"openai\"")
		}
		log.Info("using OpenAI judge", "model", cfg.LLM.Model)
		return judge.NewOpenAIJudge(judge.OpenAIConfig{
			APIKey:  cfg.Env.OpenAIAPIKey,
			BaseURL: cfg.LLM.BaseURL,
			Model:   cfg.LLM.Model,
			Timeout: cfg.LLM.Timeout,
		}, prompt, log), nil
	default:
		host := cfg.Env.OllamaHost
		if host == "" {
			host = cfg.LLM.BaseURL
		}
		log.Info("using Ollama judge", "model", cfg.LLM.Model)
		return judge.NewOllamaJudge(judge.OllamaConfig{
			Host:    host,
			Model:   cfg.LLM.Model,
			Timeout: cfg.LLM.Timeout,
		}, prompt, log)
	}
}

func check(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	failed := 0
	for _, feedURL := range cfg.RSSFeeds {
		res, err := source.Probe(ctx, feedURL)
		if err != nil {
			failed++
			log.Error("feed check failed", "feed", feedURL, "err", err)
			continue
		}
		log.Info("feed ok", "feed", feedURL, "title", res.Title, "items", res.Items)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d feeds failed the check", failed, len(cfg.RSSFeeds))
	}
	return nil
}
