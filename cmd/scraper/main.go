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
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/aluiziolira/go-book-digest/config"
	"github.com/aluiziolira/go-book-digest/models"
	"github.com/aluiziolira/go-book-digest/pipeline"
	"github.com/aluiziolira/go-book-digest/scraper"
)

var cfgFile string

func main() {
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	defaults := config.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "scraper",
		Short: "Crawl books.toscrape.com and summarize every book description",
		Long: `scraper walks the paginated catalogue of books.toscrape.com, opens every book
page, builds a frequency-based extractive summary of its description and writes
title, price, availability, description and summary to CSV (or JSON Lines,
both, or Postgres).

Settings come from flags, SCRAPER_* environment variables, an optional YAML
config file and a .env file in the working directory.`,
		SilenceUsage: true,
		RunE:         run,
	}

	flags := cmd.Flags()
	flags.StringVar(&cfgFile, "config", "", "YAML config file")
	flags.String("base-url", defaults.BaseURL, "Base URL to crawl")
	flags.Int("pages", defaults.MaxPages, "Maximum catalogue pages to scrape")
	flags.Int("parallel", defaults.Parallelism, "Concurrent book requests per catalogue page")
	flags.Duration("delay", defaults.Delay, "Delay between requests")
	flags.Duration("random-delay", defaults.RandomDelay, "Random jitter added to delay")
	flags.Duration("timeout", defaults.Timeout, "Per-request timeout")
	flags.Int("max-retries", defaults.MaxRetries, "Retries per URL for timeouts, connection errors and 429s")
	flags.Duration("retry-backoff", defaults.RetryBackoff, "Initial retry backoff")
	flags.Duration("retry-backoff-max", defaults.RetryBackoffMax, "Maximum retry backoff")
	flags.Bool("respect-robots", defaults.RespectRobotsTxt, "Respect robots.txt directives")
	flags.String("user-agent", defaults.UserAgent, "User-Agent header")
	flags.Int("sentences", defaults.SummarySentences, "Sentences per summary")
	flags.Bool("keep-partial", defaults.KeepPartialResults, "Write books gathered before a failed catalogue page instead of aborting")
	flags.String("output", defaults.OutputFile, "Output file path")
	flags.String("format", defaults.OutputFormat, "Output format: csv, json, dual or postgres")
	flags.String("database-url", defaults.DatabaseURL, "Postgres DSN for --format=postgres")
	flags.BoolP("verbose", "v", defaults.Verbose, "Enable verbose logging")
	flags.String("metrics-addr", defaults.MetricsAddr, "Prometheus metrics listen address (e.g. :9090)")

	return cmd
}

func run(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, level := newLogger(cfg.Verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		return err
	}

	slog.Info("starting scrape",
		slog.String("base_url", cfg.BaseURL),
		slog.Int("max_pages", cfg.MaxPages),
		slog.Int("workers", cfg.Parallelism),
		slog.String("format", cfg.OutputFormat),
	)

	s, err := scraper.NewScraper(cfg)
	if err != nil {
		slog.Error("initialising scraper", slog.Any("error", err))
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsAddr != "" {
		metricsServer := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           promhttp.HandlerFor(s.Metrics.Registry, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown failed", slog.Any("error", err))
			}
		}()
	}

	result, err := s.ScrapeAll(ctx)
	if err != nil {
		slog.Error("scraping failed, no output written", slog.Any("error", err))
		return err
	}

	writer, err := createWriter(ctx, cfg, result.RunID)
	if err != nil {
		slog.Error("creating writer", slog.Any("error", err))
		return err
	}

	p := pipeline.NewPipeline(writer, cfg.BatchSize)
	if err := p.Process(result.Books...); err != nil {
		writer.Close()
		return err
	}
	slog.Info("writing books",
		slog.Int("books", p.Len()),
		slog.Int("failed", len(result.Failures)),
		slog.String("output", outputTarget(cfg)),
	)
	if err := p.Close(); err != nil {
		slog.Error("pipeline flush failed", slog.Any("error", err))
		writer.Close()
		return err
	}
	if err := writer.Validate(); err != nil {
		slog.Error("output validation failed", slog.Any("error", err))
		writer.Close()
		return err
	}
	if err := writer.Close(); err != nil {
		slog.Error("close writer", slog.Any("error", err))
		return err
	}

	printSummary(result, outputTarget(cfg), p.GetMetrics())
	return nil
}

func createWriter(ctx context.Context, cfg *config.Config, runID string) (pipeline.OutputWriter, error) {
	switch cfg.OutputFormat {
	case config.FormatJSON:
		return pipeline.NewJSONWriter(cfg.OutputFile)
	case config.FormatCSV:
		return pipeline.NewCSVWriter(cfg.OutputFile)
	case config.FormatDual:
		return pipeline.NewDualWriter(cfg.OutputFile, pipeline.JSONSibling(cfg.OutputFile))
	case config.FormatPostgres:
		return pipeline.NewPostgresWriter(ctx, cfg.DatabaseURL, runID)
	default:
		return nil, fmt.Errorf("unsupported format: %s", cfg.OutputFormat)
	}
}

func outputTarget(cfg *config.Config) string {
	if cfg.OutputFormat == config.FormatPostgres {
		return "postgres table " + pipeline.SummaryTable
	}
	return cfg.OutputFile
}

func printSummary(result *models.ScrapeResult, target string, metrics map[string]interface{}) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Scrape complete")

	written := int64(0)
	if processed, ok := metrics["processed_books"].(int64); ok {
		written = processed
	}

	duration := result.Duration()
	booksPerSec := 0.0
	if duration.Seconds() > 0 {
		booksPerSec = float64(written) / duration.Seconds()
	}

	fmt.Printf("  Run ID:        %s\n", result.RunID)
	fmt.Printf("  Pages:         %d\n", result.PageCount)
	if result.Truncated {
		fmt.Println("  Traversal:     stopped early (page cap or pagination cycle)")
	}
	fmt.Printf("  Books written: %d\n", written)
	fmt.Printf("  Failed books:  %d\n", len(result.Failures))
	successRate := 0.0
	if result.RequestCount > 0 {
		successRate = float64(result.RequestCount-result.ErrorCount) / float64(result.RequestCount) * 100
	}
	fmt.Printf("  Success rate:  %.2f%%\n", successRate)
	fmt.Printf("  Errors:        %d\n", result.ErrorCount)
	fmt.Printf("  Retries:       %d\n", result.RetryCount)
	if len(result.ErrorsByType) > 0 {
		fmt.Printf("  Error types:   %v\n", result.ErrorsByType)
	}
	if valErrors, ok := metrics["validation_errors"].(map[string]int); ok && len(valErrors) > 0 {
		fmt.Printf("  Validation:    %v\n", valErrors)
	}
	fmt.Printf("  Duration:      %v\n", duration.Round(time.Millisecond))
	fmt.Printf("  Books/sec:     %.2f\n", booksPerSec)
	fmt.Printf("  Output:        %s\n", target)
	fmt.Println(separator)
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
