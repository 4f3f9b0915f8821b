package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. SCRAPER_MAX_PAGES.
const EnvPrefix = "SCRAPER"

// Load builds a Config from defaults, an optional YAML file, SCRAPER_* environment
// variables and, when flags is non-nil, the command line.
// Priority (highest to lowest): flags > env > file > defaults.
func Load(configPath string, flags *pflag.FlagSet) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v, cfg)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return nil, err
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.OutputFormat = strings.ToLower(strings.TrimSpace(cfg.OutputFormat))
	return cfg, nil
}

// flagKeys maps CLI flag names onto config keys.
var flagKeys = map[string]string{
	"base-url":          "base_url",
	"pages":             "max_pages",
	"parallel":          "parallelism",
	"delay":             "delay",
	"random-delay":      "random_delay",
	"timeout":           "timeout",
	"max-retries":       "max_retries",
	"retry-backoff":     "retry_backoff",
	"retry-backoff-max": "retry_backoff_max",
	"sentences":         "summary_sentences",
	"keep-partial":      "keep_partial_results",
	"output":            "output_file",
	"format":            "output_format",
	"database-url":      "database_url",
	"user-agent":        "user_agent",
	"verbose":           "verbose",
	"respect-robots":    "respect_robots_txt",
	"metrics-addr":      "metrics_addr",
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		flag := flags.Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("bind flag %q: %w", name, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("base_url", cfg.BaseURL)
	v.SetDefault("start_path", cfg.StartPath)
	v.SetDefault("max_pages", cfg.MaxPages)
	v.SetDefault("parallelism", cfg.Parallelism)
	v.SetDefault("delay", cfg.Delay)
	v.SetDefault("random_delay", cfg.RandomDelay)
	v.SetDefault("timeout", cfg.Timeout)
	v.SetDefault("max_retries", cfg.MaxRetries)
	v.SetDefault("retry_backoff", cfg.RetryBackoff)
	v.SetDefault("retry_backoff_max", cfg.RetryBackoffMax)
	v.SetDefault("summary_sentences", cfg.SummarySentences)
	v.SetDefault("keep_partial_results", cfg.KeepPartialResults)
	v.SetDefault("output_file", cfg.OutputFile)
	v.SetDefault("output_format", cfg.OutputFormat)
	v.SetDefault("database_url", cfg.DatabaseURL)
	v.SetDefault("batch_size", cfg.BatchSize)
	v.SetDefault("user_agent", cfg.UserAgent)
	v.SetDefault("verbose", cfg.Verbose)
	v.SetDefault("respect_robots_txt", cfg.RespectRobotsTxt)
	v.SetDefault("metrics_addr", cfg.MetricsAddr)
}
