// Package config loads runtime configuration from files and the
// environment via viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
}

// AuthConfig holds API authentication settings. An empty key disables
// authentication.
type AuthConfig struct {
	APIKey string `mapstructure:"api_key"`
}

// CrawlerConfig bounds the breadth-first crawl.
type CrawlerConfig struct {
	MaxPages         int           `mapstructure:"max_pages"`
	ParallelRequests int           `mapstructure:"parallel_requests"`
	PageTimeout      time.Duration `mapstructure:"page_timeout"`
	CrawlDeadline    time.Duration `mapstructure:"crawl_deadline"`
	UserAgent        string        `mapstructure:"user_agent"`
	ViewportWidth    int           `mapstructure:"viewport_width"`
	ViewportHeight   int           `mapstructure:"viewport_height"`
	DomainQPS        float64       `mapstructure:"domain_qps"`
}

// AnalyzerConfig bounds the analysis phase.
type AnalyzerConfig struct {
	MaxConcurrent    int           `mapstructure:"max_concurrent"`
	UnitTimeout      time.Duration `mapstructure:"unit_timeout"`
	TitleMinLength   int           `mapstructure:"title_min_length"`
	TitleMaxLength   int           `mapstructure:"title_max_length"`
	DescMinLength    int           `mapstructure:"desc_min_length"`
	DescMaxLength    int           `mapstructure:"desc_max_length"`
	MinContentWords  int           `mapstructure:"min_content_words"`
	PageSpeedAPIKey  string        `mapstructure:"pagespeed_api_key"`
	PageSpeedTimeout time.Duration `mapstructure:"pagespeed_timeout"`
}

// SimilarityConfig tunes near-duplicate content detection.
type SimilarityConfig struct {
	MinWords           int     `mapstructure:"min_words"`
	ShingleSize        int     `mapstructure:"shingle_size"`
	NumHashes          int     `mapstructure:"num_hashes"`
	CandidateThreshold float64 `mapstructure:"candidate_threshold"`
	NearThreshold      float64 `mapstructure:"near_threshold"`
	MinLengthRatio     float64 `mapstructure:"min_length_ratio"`
}

// ProgressConfig tunes event fan-out.
type ProgressConfig struct {
	HistorySize    int           `mapstructure:"history_size"`
	MailboxSize    int           `mapstructure:"mailbox_size"`
	SSEKeepalive   time.Duration `mapstructure:"sse_keepalive"`
	SSEMaxDuration time.Duration `mapstructure:"sse_max_duration"`
}

// StoreConfig tunes audit retention.
type StoreConfig struct {
	TTL           time.Duration `mapstructure:"ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// LoggingConfig selects the logger profile.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Config is the root configuration for the audit service.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Crawler    CrawlerConfig    `mapstructure:"crawler"`
	Analyzer   AnalyzerConfig   `mapstructure:"analyzer"`
	Similarity SimilarityConfig `mapstructure:"similarity"`
	Progress   ProgressConfig   `mapstructure:"progress"`
	Store      StoreConfig      `mapstructure:"store"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// Load reads configuration from an optional file path plus SITEAUDIT_*
// environment variables, applies defaults, and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("SITEAUDIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %q: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 0)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("server.request_timeout", 60*time.Second)

	v.SetDefault("auth.api_key", "")

	v.SetDefault("crawler.max_pages", 100)
	v.SetDefault("crawler.parallel_requests", 8)
	v.SetDefault("crawler.page_timeout", 10*time.Second)
	v.SetDefault("crawler.crawl_deadline", 10*time.Minute)
	v.SetDefault("crawler.user_agent", "SiteAuditBot/1.0 (+https://github.com/seolens/siteaudit)")
	v.SetDefault("crawler.viewport_width", 1920)
	v.SetDefault("crawler.viewport_height", 1080)
	v.SetDefault("crawler.domain_qps", 0)

	v.SetDefault("analyzer.max_concurrent", 10)
	v.SetDefault("analyzer.unit_timeout", 60*time.Second)
	v.SetDefault("analyzer.title_min_length", 50)
	v.SetDefault("analyzer.title_max_length", 60)
	v.SetDefault("analyzer.desc_min_length", 150)
	v.SetDefault("analyzer.desc_max_length", 160)
	v.SetDefault("analyzer.min_content_words", 300)
	v.SetDefault("analyzer.pagespeed_api_key", "")
	v.SetDefault("analyzer.pagespeed_timeout", 55*time.Second)

	v.SetDefault("similarity.min_words", 80)
	v.SetDefault("similarity.shingle_size", 3)
	v.SetDefault("similarity.num_hashes", 50)
	v.SetDefault("similarity.candidate_threshold", 0.85)
	v.SetDefault("similarity.near_threshold", 0.90)
	v.SetDefault("similarity.min_length_ratio", 0.70)

	v.SetDefault("progress.history_size", 20)
	v.SetDefault("progress.mailbox_size", 64)
	v.SetDefault("progress.sse_keepalive", 60*time.Second)
	v.SetDefault("progress.sse_max_duration", 15*time.Minute)

	v.SetDefault("store.ttl", time.Hour)
	v.SetDefault("store.sweep_interval", 5*time.Minute)

	v.SetDefault("logging.development", false)
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Crawler.MaxPages < 1 {
		return fmt.Errorf("crawler.max_pages must be positive, got %d", c.Crawler.MaxPages)
	}
	if c.Crawler.ParallelRequests < 1 {
		return fmt.Errorf("crawler.parallel_requests must be positive, got %d", c.Crawler.ParallelRequests)
	}
	if c.Crawler.PageTimeout <= 0 {
		return fmt.Errorf("crawler.page_timeout must be positive, got %s", c.Crawler.PageTimeout)
	}
	if c.Analyzer.MaxConcurrent < 1 {
		return fmt.Errorf("analyzer.max_concurrent must be positive, got %d", c.Analyzer.MaxConcurrent)
	}
	if c.Analyzer.UnitTimeout <= 0 {
		return fmt.Errorf("analyzer.unit_timeout must be positive, got %s", c.Analyzer.UnitTimeout)
	}
	if c.Analyzer.TitleMinLength > c.Analyzer.TitleMaxLength {
		return fmt.Errorf("analyzer.title_min_length %d exceeds title_max_length %d",
			c.Analyzer.TitleMinLength, c.Analyzer.TitleMaxLength)
	}
	if c.Analyzer.DescMinLength > c.Analyzer.DescMaxLength {
		return fmt.Errorf("analyzer.desc_min_length %d exceeds desc_max_length %d",
			c.Analyzer.DescMinLength, c.Analyzer.DescMaxLength)
	}
	if c.Similarity.ShingleSize < 1 {
		return fmt.Errorf("similarity.shingle_size must be positive, got %d", c.Similarity.ShingleSize)
	}
	if c.Similarity.NumHashes < 1 {
		return fmt.Errorf("similarity.num_hashes must be positive, got %d", c.Similarity.NumHashes)
	}
	if c.Similarity.CandidateThreshold < 0 || c.Similarity.CandidateThreshold > 1 {
		return fmt.Errorf("similarity.candidate_threshold %v out of [0,1]", c.Similarity.CandidateThreshold)
	}
	if c.Similarity.NearThreshold < 0 || c.Similarity.NearThreshold > 1 {
		return fmt.Errorf("similarity.near_threshold %v out of [0,1]", c.Similarity.NearThreshold)
	}
	if c.Progress.HistorySize < 1 {
		return fmt.Errorf("progress.history_size must be positive, got %d", c.Progress.HistorySize)
	}
	if c.Progress.MailboxSize < 1 {
		return fmt.Errorf("progress.mailbox_size must be positive, got %d", c.Progress.MailboxSize)
	}
	if c.Store.TTL <= 0 {
		return fmt.Errorf("store.ttl must be positive, got %s", c.Store.TTL)
	}
	if c.Store.SweepInterval <= 0 {
		return fmt.Errorf("store.sweep_interval must be positive, got %s", c.Store.SweepInterval)
	}
	return nil
}
