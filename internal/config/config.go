package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/cristalhq/aconfig"
	"gopkg.in/yaml.v3"

	"github.com/0x0BSoD/newsSieve/internal/content"
	"github.com/0x0BSoD/newsSieve/internal/judge"
	"github.com/0x0BSoD/newsSieve/internal/model"
	"github.com/0x0BSoD/newsSieve/internal/notifier"
)

const (
	defaultLLMTimeout = 2 * time.Minute
	defaultSMTPPort   = 587
)

// Env holds everything read from the process environment. Secrets never live
// in the config document.
type Env struct {
	ConfigPath       string `env:"CONFIG_PATH" default:"config.yaml"`
	StatePath        string `env:"STATE_PATH" default:"state.json"`
	OpenAIAPIKey     string `env:"OPENAI_API_KEY"`
	OllamaHost       string `env:"OLLAMA_HOST"`
	RaindropToken    string `env:"RAINDROP_TOKEN"`
	EmailUsername    string `env:"EMAIL_USERNAME"`
	EmailPassword    string `env:"EMAIL_PASSWORD"`
	TelegramBotToken string `env:"TELEGRAM_BOT_TOKEN"`
	LogLevel         string `env:"LOG_LEVEL"`
}

// File mirrors the YAML config document.
type File struct {
	RSSFeeds []string        `yaml:"rss_feeds"`
	LLM      LLMConfig       `yaml:"llm"`
	Personas []model.Persona `yaml:"personas"`
	Avoid    []string        `yaml:"avoid"`
	Email    EmailConfig     `yaml:"email"`
	Raindrop RaindropConfig  `yaml:"raindrop"`
	Content  ContentConfig   `yaml:"content"`
	State    StateConfig     `yaml:"state"`
	Export   ExportConfig    `yaml:"export"`
	Telegram TelegramConfig  `yaml:"telegram"`
	LogLevel string          `yaml:"log_level"`
}

type LLMConfig struct {
	Provider string        `yaml:"provider"`
	Model    string        `yaml:"model"`
	BaseURL  string        `yaml:"base_url"`
	Timeout  time.Duration `yaml:"timeout"`
}

type EmailConfig struct {
	Enabled     bool   `yaml:"enabled"`
	FromAddress string `yaml:"from_address"`
	ToAddress   string `yaml:"to_address"`
	SMTPServer  string `yaml:"smtp_server"`
	SMTPPort    int    `yaml:"smtp_port"`
}

type RaindropConfig struct {
	Enabled      bool   `yaml:"enabled"`
	CollectionID int64  `yaml:"collection_id"`
	BaseURL      string `yaml:"base_url"`
}

type ContentConfig struct {
	Timeout   time.Duration `yaml:"timeout"`
	UserAgent string        `yaml:"user_agent"`
	Extractor string        `yaml:"extractor"`

	// FeedFallback fills an empty scrape with the feed's own body.
	FeedFallback bool `yaml:"feed_fallback"`
}

// StateConfig selects the state store. An empty DSN keeps the JSON file.
type StateConfig struct {
	DSN string `yaml:"dsn"`
}

type ExportConfig struct {
	AtomPath string `yaml:"atom_path"`
}

type TelegramConfig struct {
	Enabled     bool  `yaml:"enabled"`
	AdminChatID int64 `yaml:"admin_chat_id"`
}

// Config is the resolved runtime configuration.
type Config struct {
	File
	Env Env
}

// LoadEnv reads Env from the environment, applying tag defaults.
func LoadEnv() (Env, error) {
	var env Env
	loader := aconfig.LoaderFor(&env, aconfig.Config{
		SkipFiles:        true,
		SkipFlags:        true,
		AllowUnknownEnvs: true,
	})
	if err := loader.Load(); err != nil {
		return Env{}, fmt.Errorf("load environment: %w", err)
	}
	return env, nil
}

// Load reads the document at env.ConfigPath, fills defaults and validates
// the result.
func Load(env Env) (Config, error) {
	raw, err := os.ReadFile(env.ConfigPath)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", env.ConfigPath, err)
	}

	file, err := Parse(raw)
	if err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", env.ConfigPath, err)
	}

	cfg := Config{File: file, Env: env}
	cfg.FillDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse decodes a YAML document, rejecting unknown keys.
func Parse(raw []byte) (File, error) {
	var file File
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return File{}, err
	}
	return file, nil
}

func (c *Config) FillDefaults() {
	if c.LLM.Provider == "" {
		c.LLM.Provider = judge.ProviderOpenAI
	}
	c.LLM.Provider = strings.ToLower(c.LLM.Provider)
	if c.LLM.Timeout == 0 {
		c.LLM.Timeout = defaultLLMTimeout
	}
	if c.Email.SMTPPort == 0 {
		c.Email.SMTPPort = defaultSMTPPort
	}
	if c.Raindrop.BaseURL == "" {
		c.Raindrop.BaseURL = notifier.DefaultRaindropURL
	}
	if c.Content.Timeout == 0 {
		c.Content.Timeout = content.DefaultTimeout
	}
	if c.Content.UserAgent == "" {
		c.Content.UserAgent = content.DefaultUserAgent
	}
	if c.Content.Extractor == "" {
		c.Content.Extractor = content.ExtractorSelectors
	}
	if c.Env.LogLevel != "" {
		c.LogLevel = c.Env.LogLevel
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

func (c *Config) Validate() error {
	var errs []error

	if len(c.RSSFeeds) == 0 {
		errs = append(errs, errors.New("rss_feeds: at least one feed is required"))
	}
	for i, feed := range c.RSSFeeds {
		if strings.TrimSpace(feed) == "" {
			errs = append(errs, fmt.Errorf("rss_feeds[%d]: empty url", i))
		}
	}

	switch c.LLM.Provider {
	case judge.ProviderOpenAI, judge.ProviderOllama:
	default:
		errs = append(errs, fmt.Errorf("llm.provider: unknown provider %q", c.LLM.Provider))
	}
	if c.LLM.Model == "" {
		errs = append(errs, errors.New("llm.model: required"))
	}

	if c.Email.Enabled {
		if c.Email.FromAddress == "" || c.Email.ToAddress == "" {
			errs = append(errs, errors.New("email: from_address and to_address are required when enabled"))
		}
		if c.Email.SMTPServer == "" {
			errs = append(errs, errors.New("email.smtp_server: required when enabled"))
		}
	}

	if c.Raindrop.Enabled && c.Raindrop.CollectionID == 0 {
		errs = append(errs, errors.New("raindrop.collection_id: required when enabled"))
	}

	switch c.Content.Extractor {
	case content.ExtractorSelectors, content.ExtractorReadability:
	default:
		errs = append(errs, fmt.Errorf("content.extractor: unknown extractor %q", c.Content.Extractor))
	}

	if c.Telegram.Enabled {
		if c.Env.TelegramBotToken == "" {
			errs = append(errs, errors.New("telegram: TELEGRAM_BOT_TOKEN is required when enabled"))
		}
		if c.Telegram.AdminChatID == 0 {
			errs = append(errs, errors.New("telegram.admin_chat_id: required when enabled"))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
