package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aluiziolira/go-book-digest/config"
	"github.com/aluiziolira/go-book-digest/pipeline"
)

func TestCreateWriter(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		format string
		check  func(t *testing.T, w pipeline.OutputWriter)
	}{
		{format: config.FormatCSV, check: func(t *testing.T, w pipeline.OutputWriter) {
			if _, ok := w.(*pipeline.CSVWriter); !ok {
				t.Fatalf("writer = %T, want *pipeline.CSVWriter", w)
			}
		}},
		{format: config.FormatJSON, check: func(t *testing.T, w pipeline.OutputWriter) {
			if _, ok := w.(*pipeline.JSONWriter); !ok {
				t.Fatalf("writer = %T, want *pipeline.JSONWriter", w)
			}
		}},
		{format: config.FormatDual, check: func(t *testing.T, w pipeline.OutputWriter) {
			if _, ok := w.(*pipeline.DualWriter); !ok {
				t.Fatalf("writer = %T, want *pipeline.DualWriter", w)
			}
			if _, err := os.Stat(filepath.Join(dir, "dual.json")); err != nil {
				t.Fatalf("json sibling missing: %v", err)
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.OutputFormat = tt.format
			cfg.OutputFile = filepath.Join(dir, tt.format+".csv")

			w, err := createWriter(context.Background(), cfg, "run")
			if err != nil {
				t.Fatalf("create writer: %v", err)
			}
			defer w.Close()
			tt.check(t, w)
		})
	}
}

func TestCreateWriterUnsupported(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.OutputFormat = "xml"
	if _, err := createWriter(context.Background(), cfg, "run"); err == nil {
		t.Fatalf("expected error for unsupported format")
	}
}

func TestRootFlagsFeedConfig(t *testing.T) {
	cmd := newRootCmd()
	args := []string{"--pages=4", "--parallel=3", "--format=JSON", "--sentences=2", "--keep-partial", "--delay=250ms", "-v"}
	if err := cmd.Flags().Parse(args); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := config.Load("", cmd.Flags())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MaxPages != 4 || cfg.Parallelism != 3 || cfg.SummarySentences != 2 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.OutputFormat != config.FormatJSON {
		t.Fatalf("format = %q, want %q", cfg.OutputFormat, config.FormatJSON)
	}
	if !cfg.KeepPartialResults || !cfg.Verbose {
		t.Fatalf("boolean flags not applied: %+v", cfg)
	}
	if cfg.Delay.Milliseconds() != 250 {
		t.Fatalf("delay = %v, want 250ms", cfg.Delay)
	}
	if cfg.OutputFile != config.DefaultConfig().OutputFile {
		t.Fatalf("output file = %q, want default", cfg.OutputFile)
	}
}

func TestOutputTarget(t *testing.T) {
	cfg := config.DefaultConfig()
	if got := outputTarget(cfg); got != "books_summary.csv" {
		t.Fatalf("target = %q", got)
	}
	cfg.OutputFormat = config.FormatPostgres
	if got := outputTarget(cfg); got != "postgres table book_summaries" {
		t.Fatalf("target = %q", got)
	}
}
