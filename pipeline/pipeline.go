package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aluiziolira/go-book-digest/models"
	"github.com/aluiziolira/go-book-digest/parser"
)

var (
	// ErrPipelineClosed is returned when Process is called after shutdown.
	ErrPipelineClosed = errors.New("pipeline: closed")
)

const defaultBatchSize = 64

// OutputWriter defines the interface for data output.
type OutputWriter interface {
	Write(books []*models.Book) error
	Close() error
	Validate() error
}

// Pipeline validates scraped books and buffers them in discovery order.
// The writer sees nothing until Close, so a run that is abandoned before
// Close leaves no partial rows behind.
type Pipeline struct {
	writer    OutputWriter
	batchSize int

	mu      sync.Mutex
	books   []*models.Book
	closed  bool
	metrics metrics
}

// NewPipeline builds a pipeline flushing to writer in batches of batchSize.
func NewPipeline(writer OutputWriter, batchSize int) *Pipeline {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Pipeline{
		writer:    writer,
		batchSize: batchSize,
		metrics:   newMetrics(),
	}
}

// Process validates and appends books. Invalid records are counted and dropped.
func (p *Pipeline) Process(books ...*models.Book) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPipelineClosed
	}

	for _, book := range books {
		if book == nil {
			continue
		}
		if err := parser.ValidateBook(book); err != nil {
			p.metrics.addValidation("invalid_record")
			slog.Warn("dropping invalid book",
				slog.String("url", book.URL),
				slog.Any("error", err),
			)
			continue
		}
		p.books = append(p.books, book)
		p.metrics.incrementProcessed()
	}
	return nil
}

// Len returns the number of buffered books.
func (p *Pipeline) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.books)
}

// Close writes every buffered book in order. The writer stays open; its
// owner closes it. Calling Close more than once returns ErrPipelineClosed.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPipelineClosed
	}
	p.closed = true
	books := p.books
	p.books = nil
	p.mu.Unlock()

	for start := 0; start < len(books); start += p.batchSize {
		end := min(start+p.batchSize, len(books))
		if err := p.writer.Write(books[start:end]); err != nil {
			return fmt.Errorf("write batch: %w", err)
		}
	}
	return nil
}

// GetMetrics returns a snapshot of the internal counters.
func (p *Pipeline) GetMetrics() map[string]interface{} {
	return p.metrics.snapshot()
}

type metrics struct {
	mu         sync.Mutex
	processed  int64
	validation map[string]int
}

func newMetrics() metrics {
	return metrics{
		validation: make(map[string]int),
	}
}

func (m *metrics) incrementProcessed() {
	m.mu.Lock()
	m.processed++
	m.mu.Unlock()
}

func (m *metrics) addValidation(kind string) {
	m.mu.Lock()
	m.validation[kind]++
	m.mu.Unlock()
}

func (m *metrics) snapshot() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	copyValidation := make(map[string]int, len(m.validation))
	for k, v := range m.validation {
		copyValidation[k] = v
	}

	return map[string]interface{}{
		"processed_books":   m.processed,
		"validation_errors": copyValidation,
	}
}
