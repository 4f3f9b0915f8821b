package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Output formats accepted by OutputFormat.
const (
	FormatCSV      = "csv"
	FormatJSON     = "json"
	FormatDual     = "dual"
	FormatPostgres = "postgres"
)

// Config holds scraper configuration.
type Config struct {
	BaseURL   string `mapstructure:"base_url"`
	StartPath string `mapstructure:"start_path"`
	// MaxPages caps catalogue traversal in case pagination never terminates.
	MaxPages           int           `mapstructure:"max_pages"`
	Parallelism        int           `mapstructure:"parallelism"`
	Delay              time.Duration `mapstructure:"delay"`
	RandomDelay        time.Duration `mapstructure:"random_delay"`
	Timeout            time.Duration `mapstructure:"timeout"`
	MaxRetries         int           `mapstructure:"max_retries"`
	RetryBackoff       time.Duration `mapstructure:"retry_backoff"`
	RetryBackoffMax    time.Duration `mapstructure:"retry_backoff_max"`
	SummarySentences   int           `mapstructure:"summary_sentences"`
	KeepPartialResults bool          `mapstructure:"keep_partial_results"`
	OutputFile         string        `mapstructure:"output_file"`
	OutputFormat       string        `mapstructure:"output_format"` // csv, json, dual or postgres
	DatabaseURL        string        `mapstructure:"database_url"`
	BatchSize          int           `mapstructure:"batch_size"`
	UserAgent          string        `mapstructure:"user_agent"`
	Verbose            bool          `mapstructure:"verbose"`
	RespectRobotsTxt   bool          `mapstructure:"respect_robots_txt"`
	MetricsAddr        string        `mapstructure:"metrics_addr"`
}

// DefaultConfig returns defaults matching a plain sequential crawl of the demo target.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:            "https://books.toscrape.com",
		StartPath:          "catalogue/page-1.html",
		MaxPages:           100,
		Parallelism:        1,
		Delay:              0,
		RandomDelay:        0,
		Timeout:            10 * time.Second,
		MaxRetries:         0,
		RetryBackoff:       200 * time.Millisecond,
		RetryBackoffMax:    2 * time.Second,
		SummarySentences:   1,
		KeepPartialResults: false,
		OutputFile:         "books_summary.csv",
		OutputFormat:       FormatCSV,
		BatchSize:          64,
		UserAgent:          "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",
		Verbose:            false,
		RespectRobotsTxt:   false,
	}
}

// StartURL resolves StartPath against BaseURL.
func (c *Config) StartURL() (string, error) {
	base, err := url.Parse(c.BaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	ref, err := url.Parse(c.StartPath)
	if err != nil {
		return "", fmt.Errorf("invalid start path: %w", err)
	}
	return base.ResolveReference(ref).String(), nil
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	parsedURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("base URL must include a host")
	}
	if c.StartPath == "" {
		return fmt.Errorf("start path cannot be empty")
	}

	if c.MaxPages <= 0 {
		return fmt.Errorf("max pages must be positive")
	}
	if c.Parallelism <= 0 {
		return fmt.Errorf("parallelism must be positive")
	}
	if c.Delay < 0 {
		return fmt.Errorf("delay cannot be negative")
	}
	if c.RandomDelay < 0 {
		return fmt.Errorf("random delay cannot be negative")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.RetryBackoffMax < 0 {
		return fmt.Errorf("retry backoff max cannot be negative")
	}
	if c.RetryBackoffMax > 0 && c.RetryBackoff > c.RetryBackoffMax {
		return fmt.Errorf("retry backoff (%s) cannot exceed retry backoff max (%s)", c.RetryBackoff, c.RetryBackoffMax)
	}
	if c.SummarySentences <= 0 {
		return fmt.Errorf("summary sentences must be positive")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}

	switch c.OutputFormat {
	case FormatCSV, FormatJSON, FormatDual:
		if c.OutputFile == "" {
			return fmt.Errorf("output file cannot be empty")
		}
	case FormatPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("database URL is required for postgres output")
		}
	default:
		return fmt.Errorf("output format must be csv, json, dual, or postgres")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}

	return nil
}
