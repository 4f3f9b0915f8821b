package pipeline

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/lib/pq"

	"github.com/aluiziolira/go-book-digest/models"
)

// SummaryTable receives one row per book when writing to Postgres.
const SummaryTable = "book_summaries"

const createSummaryTable = `CREATE TABLE IF NOT EXISTS book_summaries (
	id           BIGSERIAL PRIMARY KEY,
	run_id       TEXT NOT NULL,
	position     INTEGER NOT NULL,
	title        TEXT NOT NULL,
	price        TEXT NOT NULL,
	availability TEXT NOT NULL,
	description  TEXT NOT NULL,
	summary      TEXT NOT NULL,
	url          TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresWriter inserts books into the book_summaries table, tagging each
// row with the run ID and its position in discovery order.
type PostgresWriter struct {
	db      *sql.DB
	runID   string
	written int
	mu      sync.Mutex
}

// NewPostgresWriter opens the database, checks connectivity and ensures the table exists.
func NewPostgresWriter(ctx context.Context, dsn, runID string) (*PostgresWriter, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, createSummaryTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("create %s table: %w", SummaryTable, err)
	}
	return &PostgresWriter{db: db, runID: runID}, nil
}

// Write copies one batch inside a transaction.
func (pw *PostgresWriter) Write(books []*models.Book) error {
	if len(books) == 0 {
		return nil
	}

	pw.mu.Lock()
	defer pw.mu.Unlock()

	tx, err := pw.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.Prepare(pq.CopyIn(SummaryTable,
		"run_id", "position", "title", "price", "availability", "description", "summary", "url"))
	if err != nil {
		return fmt.Errorf("prepare copy: %w", err)
	}

	for i, book := range books {
		if _, err := stmt.Exec(pw.runID, pw.written+i, book.Title, book.Price, book.Availability,
			book.Description, book.Summary, book.URL); err != nil {
			stmt.Close()
			return fmt.Errorf("copy row: %w", err)
		}
	}
	if _, err := stmt.Exec(); err != nil {
		stmt.Close()
		return fmt.Errorf("flush copy: %w", err)
	}
	if err := stmt.Close(); err != nil {
		return fmt.Errorf("close copy: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	pw.written += len(books)
	return nil
}

// Close releases the connection pool.
func (pw *PostgresWriter) Close() error {
	return pw.db.Close()
}

// Validate checks that the table holds exactly the rows written for this run.
func (pw *PostgresWriter) Validate() error {
	pw.mu.Lock()
	defer pw.mu.Unlock()

	var count int
	err := pw.db.QueryRow(`SELECT count(*) FROM book_summaries WHERE run_id = $1`, pw.runID).Scan(&count)
	if err != nil {
		return fmt.Errorf("count rows: %w", err)
	}
	if count != pw.written {
		return fmt.Errorf("%s holds %d rows for run %s, want %d", SummaryTable, count, pw.runID, pw.written)
	}
	return nil
}
