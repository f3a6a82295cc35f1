package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Feeds       FeedsConfig     `toml:"feeds"`
	Topics      TopicsConfig    `toml:"topics"`
	Curation    CurationConfig  `toml:"curation"`
	Rerank      RerankConfig    `toml:"rerank"`
	Summarize   SummarizeConfig `toml:"summarize"`
	Gemini      GeminiConfig    `toml:"gemini"`
	Claude      ClaudeConfig    `toml:"claude"`
	Slack       SlackConfig     `toml:"slack"`
	Storage     StorageConfig   `toml:"storage"`
	Logging     LoggingConfig   `toml:"logging"`
	Schedule    ScheduleConfig  `toml:"schedule"`
}

// FeedsConfig controls feed ingestion
type FeedsConfig struct {
	File      string `toml:"file" validate:"required"` // Text file with one feed URL per line, # comments
	Timeframe string `toml:"timeframe"`                // Only surface items published within this window (duration string)
}

// TopicsConfig controls the topic set items are scored against
type TopicsConfig struct {
	File string `toml:"file" validate:"required"` // Text file with one topic per line, # comments
}

// CurationConfig controls relevance filtering
type CurationConfig struct {
	MinScore float64 `toml:"min_score" validate:"gte=0,lte=100"` // Minimum relevance score (0-100)
	MaxItems int     `toml:"max_items" validate:"gte=1"`         // Maximum items to surface per run
}

// RerankConfig controls the optional LLM selection pass over the shortlist
type RerankConfig struct {
	Enabled   bool   `toml:"enabled"`
	PoolSize  int    `toml:"pool_size"` // Shortlist size handed to the LLM (0 = 3x max_items)
	Guidance  string `toml:"guidance"`  // Free-text selection guidance included in the prompt
	MaxTokens int    `toml:"max_tokens"`
}

// SummarizeConfig controls the batched enrichment calls
type SummarizeConfig struct {
	MaxConcurrent int    `toml:"max_concurrent" validate:"gte=1"` // In-flight summary calls per batch
	MaxTokens     int    `toml:"max_tokens"`
	RetryAttempts int    `toml:"retry_attempts" validate:"gte=1"`
	RetryDelay    string `toml:"retry_delay"` // Fixed delay between attempts (duration string)
	BatchPause    string `toml:"batch_pause"` // Pause between batches (duration string)
}

// GeminiConfig contains Google Gemini API configuration for embeddings
type GeminiConfig struct {
	APIKey    string `toml:"api_key"`
	Model     string `toml:"model"`     // Embedding model (default: "gemini-embedding-001")
	Dimension int    `toml:"dimension"` // Embedding output dimensionality (default: 768)
	Timeout   string `toml:"timeout"`   // Per-call timeout as duration string
	RateLimit string `toml:"rate_limit"` // Minimum spacing between embedding calls
}

// ClaudeConfig contains Anthropic Claude API configuration for summaries,
// rerank decisions and the digest
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`        // Summarization/rerank model
	DigestModel string  `toml:"digest_model"` // Digest model (default: same as model)
	MaxTokens   int     `toml:"max_tokens"`
	Timeout     string  `toml:"timeout"`
	Temperature float32 `toml:"temperature"`
}

// SlackConfig contains delivery configuration
type SlackConfig struct {
	Enabled      bool   `toml:"enabled"`
	Token        string `toml:"token"`
	Channel      string `toml:"channel"`
	MessagePause string `toml:"message_pause"` // Minimum spacing between posted messages
}

// StorageConfig groups the durable stores
type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
	Ledger LedgerConfig `toml:"ledger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

// LedgerConfig locates the posted-item ledger snapshot
type LedgerConfig struct {
	Path string `toml:"path"` // JSON snapshot file
}

// LoggingConfig controls the arbor logger
type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// ScheduleConfig controls cron-driven runs
type ScheduleConfig struct {
	Enabled bool   `toml:"enabled"`
	Cron    string `toml:"cron"` // 6-field cron expression with seconds
}

// NewDefaultConfig creates a configuration with default values.
// Only user-facing settings are exposed in gleaner.toml; technical
// parameters default here.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Feeds: FeedsConfig{
			File:      "feeds.txt",
			Timeframe: "24h",
		},
		Topics: TopicsConfig{
			File: "topics.txt",
		},
		Curation: CurationConfig{
			MinScore: 0.1,
			MaxItems: 20,
		},
		Rerank: RerankConfig{
			Enabled:   false,
			MaxTokens: 2048,
		},
		Summarize: SummarizeConfig{
			MaxConcurrent: 3,
			MaxTokens:     300,
			RetryAttempts: 10,
			RetryDelay:    "100ms",
			BatchPause:    "1s",
		},
		Gemini: GeminiConfig{
			Model:     "gemini-embedding-001",
			Dimension: 768,
			Timeout:   "30s",
			RateLimit: "500ms",
		},
		Claude: ClaudeConfig{
			Model:       "claude-sonnet-4-5-20250929",
			MaxTokens:   300,
			Timeout:     "2m",
			Temperature: 0.7,
		},
		Slack: SlackConfig{
			Enabled:      true,
			MessagePause: "1s",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data/embeddings",
			},
			Ledger: LedgerConfig{
				Path: "./data/posted_items.json",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
		},
		Schedule: ScheduleConfig{
			Enabled: false,
			Cron:    "0 0 8 * * *",
		},
	}
}

// LoadFromFiles loads configuration with priority: defaults -> file1 -> file2
// -> ... -> env. Later files override earlier files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks structural constraints on the loaded configuration
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	for _, field := range []struct {
		name  string
		value string
	}{
		{"feeds.timeframe", c.Feeds.Timeframe},
		{"summarize.retry_delay", c.Summarize.RetryDelay},
		{"summarize.batch_pause", c.Summarize.BatchPause},
		{"gemini.timeout", c.Gemini.Timeout},
		{"gemini.rate_limit", c.Gemini.RateLimit},
		{"claude.timeout", c.Claude.Timeout},
		{"slack.message_pause", c.Slack.MessagePause},
	} {
		if field.value == "" {
			continue
		}
		if _, err := time.ParseDuration(field.value); err != nil {
			return fmt.Errorf("invalid duration for %s: %w", field.name, err)
		}
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to config.
// Provider credentials also honor the conventional unprefixed names so the
// binary works in environments that already export them.
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("GLEANER_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	if file := os.Getenv("GLEANER_FEEDS_FILE"); file != "" {
		config.Feeds.File = file
	}
	if timeframe := os.Getenv("GLEANER_FEEDS_TIMEFRAME"); timeframe != "" {
		config.Feeds.Timeframe = timeframe
	}
	if file := os.Getenv("GLEANER_TOPICS_FILE"); file != "" {
		config.Topics.File = file
	}

	if minScore := os.Getenv("GLEANER_MIN_SCORE"); minScore != "" {
		if v, err := strconv.ParseFloat(minScore, 64); err == nil {
			config.Curation.MinScore = v
		}
	}
	if maxItems := os.Getenv("GLEANER_MAX_ITEMS"); maxItems != "" {
		if v, err := strconv.Atoi(maxItems); err == nil {
			config.Curation.MaxItems = v
		}
	}

	if key := os.Getenv("GLEANER_GEMINI_API_KEY"); key != "" {
		config.Gemini.APIKey = key
	} else if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		config.Gemini.APIKey = key
	}
	if key := os.Getenv("GLEANER_CLAUDE_API_KEY"); key != "" {
		config.Claude.APIKey = key
	} else if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		config.Claude.APIKey = key
	}
	if model := os.Getenv("GLEANER_SUMMARIZATION_MODEL"); model != "" {
		config.Claude.Model = model
	}
	if model := os.Getenv("GLEANER_DIGEST_MODEL"); model != "" {
		config.Claude.DigestModel = model
	}

	if token := os.Getenv("GLEANER_SLACK_TOKEN"); token != "" {
		config.Slack.Token = token
	} else if token := os.Getenv("SLACK_BOT_TOKEN"); token != "" {
		config.Slack.Token = token
	}
	if channel := os.Getenv("GLEANER_SLACK_CHANNEL"); channel != "" {
		config.Slack.Channel = channel
	} else if channel := os.Getenv("SLACK_CHANNEL"); channel != "" {
		config.Slack.Channel = channel
	}

	if path := os.Getenv("GLEANER_BADGER_PATH"); path != "" {
		config.Storage.Badger.Path = path
	}
	if path := os.Getenv("GLEANER_LEDGER_PATH"); path != "" {
		config.Storage.Ledger.Path = path
	}

	if level := os.Getenv("GLEANER_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("GLEANER_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}
}
