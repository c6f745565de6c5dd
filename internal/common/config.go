package common

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration for the crawler core.
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Logging     LoggingConfig   `toml:"logging"`
	Storage     StorageConfig   `toml:"storage"`
	Crawler     CrawlerConfig   `toml:"crawler"`
	Search      SearchConfig    `toml:"search"`
	Gemini      GeminiConfig    `toml:"gemini"`
	Claude      ClaudeConfig    `toml:"claude"`
	LLM         LLMConfig       `toml:"llm"`
	Publisher   PublisherConfig `toml:"publisher"`
	WordPress   WordPressConfig `toml:"wordpress"`
	Workers     WorkersConfig   `toml:"workers"`
}

// LoggingConfig mirrors the shape carried by the rest of this corpus.
type LoggingConfig struct {
	Level      string   `toml:"level"`       // "debug", "info", "warn", "error"
	Format     string   `toml:"format"`      // "json" or "text"
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // default "15:04:05.000"
}

// BadgerConfig configures the embedded KV store used for LLM API-key
// resolution (see internal/kv).
type BadgerConfig struct {
	Path           string `toml:"path"`
	ResetOnStartup bool   `toml:"reset_on_startup"`
}

// StorageConfig groups the on-disk roots named in spec §6.4/§6.5.
type StorageConfig struct {
	Badger   BadgerConfig `toml:"badger"`
	SpoolDir string       `toml:"spool_dir"` // crawler_spool_dir
	TrainDir string       `toml:"train_dir"` // crawler_train_dir
}

// CrawlerConfig carries the crawler_* options of spec §6.5.
type CrawlerConfig struct {
	UserAgent            string        `toml:"user_agent"`
	MaxMemoryBytes       int64         `toml:"max_memory_bytes"`       // crawler_max_memory_bytes
	FlushIntervalSeconds int           `toml:"flush_interval_seconds"` // crawler_flush_interval
	BufferMaxSize        int           `toml:"buffer_max_size"`        // crawler_buffer_max_size
	RetentionDays        int           `toml:"retention_days"`         // crawler_retention_days
	SummaryModel         string        `toml:"summary_model"`          // crawler_summary_model
	OllamaModel          string        `toml:"ollama_model"`           // crawler_ollama_model
	RequestTimeout       time.Duration `toml:"request_timeout"`
	OllamaTimeout        time.Duration `toml:"ollama_timeout"`
	UserWorkers          int           `toml:"user_workers"`
	UserMaxConcurrent    int           `toml:"user_max_concurrent"`
	AutoWorkers          int           `toml:"auto_workers"`
	AutoEnabled          bool          `toml:"auto_enabled"`
	JavaScriptWaitTime   time.Duration `toml:"javascript_wait_time"`
	BrowserPoolSize      int           `toml:"browser_pool_size"`
}

// SearchConfig configures the BM25 searcher of §4.12.
type SearchConfig struct {
	MaxScanDocs   int `toml:"max_scan_docs"`
	FreshnessDays int `toml:"freshness_days"`
}

// GeminiConfig holds Google Gemini API settings for the LLM provider.
type GeminiConfig struct {
	Model       string  `toml:"model"`
	Temperature float32 `toml:"temperature"`
}

// ClaudeConfig holds Anthropic Claude API settings for the LLM provider.
type ClaudeConfig struct {
	Model       string  `toml:"model"`
	MaxTokens   int     `toml:"max_tokens"`
	Temperature float32 `toml:"temperature"`
}

// LLMProvider identifies which backend a model string resolves to.
type LLMProvider string

const (
	LLMProviderGemini LLMProvider = "gemini"
	LLMProviderClaude LLMProvider = "claude"
)

// LLMConfig is shared configuration across providers.
type LLMConfig struct {
	DefaultProvider LLMProvider `toml:"default_provider"`
}

// PublisherConfig carries the publisher constants of spec §6.5.
type PublisherConfig struct {
	IntervalSeconds int     `toml:"interval_seconds"` // publisher_interval
	MinScore        float64 `toml:"min_score"`        // publisher_min_score
	MaxPostsPerHour int     `toml:"max_posts_per_hour"`
}

// WordPressConfig binds the external poster collaborator (§6.2).
type WordPressConfig struct {
	CategoryID int    `toml:"category_id"`
	URL        string `toml:"url"`
	User       string `toml:"user"`
	Password   string `toml:"password"`
}

// WorkersConfig controls worker-pool debug behavior.
type WorkersConfig struct {
	Debug bool `toml:"debug"`
}

// NewDefaultConfig returns the defaults used when no config file overrides them.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     []string{"stdout"},
			TimeFormat: "15:04:05.000",
		},
		Storage: StorageConfig{
			Badger:   BadgerConfig{Path: "./data/secrets"},
			SpoolDir: "./data/spool",
			TrainDir: "./data/train",
		},
		Crawler: CrawlerConfig{
			UserAgent:            "FocusedCrawler/1.0",
			MaxMemoryBytes:       256 * 1024 * 1024,
			FlushIntervalSeconds: 3600,
			BufferMaxSize:        1000,
			RetentionDays:        14,
			SummaryModel:         "claude-haiku-3-5-20241022",
			OllamaModel:          "gemini-3-flash-preview",
			RequestTimeout:       300 * time.Second,
			OllamaTimeout:        30 * time.Second,
			UserWorkers:          4,
			UserMaxConcurrent:    4,
			AutoWorkers:          2,
			AutoEnabled:          true,
			JavaScriptWaitTime:   3 * time.Second,
			BrowserPoolSize:      3,
		},
		Search: SearchConfig{
			MaxScanDocs:   10_000,
			FreshnessDays: 30,
		},
		Gemini: GeminiConfig{
			Model:       "gemini-3-flash-preview",
			Temperature: 0.7,
		},
		Claude: ClaudeConfig{
			Model:       "claude-haiku-3-5-20241022",
			MaxTokens:   8192,
			Temperature: 0.7,
		},
		LLM: LLMConfig{
			DefaultProvider: LLMProviderGemini,
		},
		Publisher: PublisherConfig{
			IntervalSeconds: 3600,
			MinScore:        0.6,
			MaxPostsPerHour: 3,
		},
		Workers: WorkersConfig{
			Debug: false,
		},
	}
}

// LoadFromFile loads configuration with priority: default -> file -> env.
// An empty path returns the defaults with environment overrides applied.
func LoadFromFile(path string) (*Config, error) {
	config := NewDefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(config)
	return config, nil
}

// applyEnvOverrides applies FOCUSEDCRAWL_* environment variable overrides.
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("FOCUSEDCRAWL_ENV"); env != "" {
		config.Environment = env
	}
	if level := os.Getenv("FOCUSEDCRAWL_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if path := os.Getenv("FOCUSEDCRAWL_SPOOL_DIR"); path != "" {
		config.Storage.SpoolDir = path
	}
	if path := os.Getenv("FOCUSEDCRAWL_TRAIN_DIR"); path != "" {
		config.Storage.TrainDir = path
	}
	if v := os.Getenv("FOCUSEDCRAWL_MAX_MEMORY_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			config.Crawler.MaxMemoryBytes = n
		}
	}
	if v := os.Getenv("FOCUSEDCRAWL_AUTO_ENABLED"); v != "" {
		config.Crawler.AutoEnabled = strings.EqualFold(v, "true")
	}
}
