package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/aluiziolira/go-book-digest/config"
	"github.com/aluiziolira/go-book-digest/models"
	"github.com/aluiziolira/go-book-digest/parser"
	"github.com/aluiziolira/go-book-digest/summarizer"
)

var errEmptyResponse = errors.New("no response received")

// Scraper walks the catalogue pagination and scrapes every listed book.
type Scraper struct {
	cfg        *config.Config
	collector  *colly.Collector
	summarizer *summarizer.Summarizer
	retry      *retryPolicy
	logger     *slog.Logger
	Metrics    *Metrics

	requestCount int64
	errorCount   int64

	mu           sync.Mutex
	errorsByType map[string]int
}

// NewScraper builds a scraper instance configured from cfg.
func NewScraper(cfg *config.Config) (*Scraper, error) {
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("base url must include a host")
	}

	collector := colly.NewCollector(
		colly.AllowedDomains(parsed.Hostname()),
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
	)

	collector.SetRequestTimeout(cfg.Timeout)
	collector.IgnoreRobotsTxt = !cfg.RespectRobotsTxt
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: cfg.Parallelism,
		Delay:       cfg.Delay,
		RandomDelay: cfg.RandomDelay,
	}); err != nil {
		return nil, fmt.Errorf("configure rate limits: %w", err)
	}

	metrics := NewMetrics()
	return &Scraper{
		cfg:          cfg,
		collector:    collector,
		summarizer:   summarizer.Default(),
		retry:        newRetryPolicy(cfg, metrics),
		logger:       slog.Default().With(slog.String("component", "scraper")),
		Metrics:      metrics,
		errorsByType: make(map[string]int),
	}, nil
}

// ScrapeAll follows the next-page pointers from the first catalogue page until
// a page has none, scraping every book link on the way. A failed book is
// logged, recorded in Failures and skipped. A failed catalogue page aborts
// the run unless KeepPartialResults is set, in which case traversal stops
// there and the books gathered so far are returned.
//
// The counts in the result cover this call only. Calls on one Scraper must
// not overlap.
func (s *Scraper) ScrapeAll(ctx context.Context) (*models.ScrapeResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.resetStats()

	start, err := s.cfg.StartURL()
	if err != nil {
		return nil, err
	}
	visited, err := lru.New[string, struct{}](s.cfg.MaxPages)
	if err != nil {
		return nil, fmt.Errorf("create visited page cache: %w", err)
	}

	result := &models.ScrapeResult{
		RunID:     uuid.NewString(),
		StartTime: time.Now(),
	}
	logger := s.logger.With(slog.String("run_id", result.RunID))

	next := start
	for {
		if err := ctx.Err(); err != nil {
			return s.finish(result), fmt.Errorf("scrape interrupted: %w", err)
		}
		if result.PageCount >= s.cfg.MaxPages {
			logger.Warn("page cap reached, stopping traversal",
				slog.Int("max_pages", s.cfg.MaxPages),
				slog.String("next", next),
			)
			result.Truncated = true
			break
		}
		if visited.Contains(next) {
			logger.Warn("pagination cycle detected, stopping traversal", slog.String("url", next))
			result.Truncated = true
			break
		}
		visited.Add(next, struct{}{})

		logger.Info("scraping page", slog.String("url", next))
		page, err := s.ListPage(ctx, next)
		if err != nil {
			s.recordError(err)
			if !s.cfg.KeepPartialResults || ctx.Err() != nil {
				return s.finish(result), fmt.Errorf("scrape page %s: %w", next, err)
			}
			logger.Error("catalogue page failed, keeping partial results",
				slog.String("url", next),
				slog.Any("error", err),
			)
			break
		}
		result.PageCount++
		s.Metrics.IncPages()

		for _, br := range s.scrapeBooks(ctx, logger, page.Links) {
			if br.OK() {
				result.Books = append(result.Books, br.Book)
				continue
			}
			result.Failures = append(result.Failures, models.BookFailure{URL: br.URL, Error: br.Err.Error()})
		}

		if !page.HasNext() {
			break
		}
		next = page.NextPageURL
	}

	return s.finish(result), nil
}

// ListPage fetches one catalogue page and returns its book links and the
// next-page pointer, both resolved against the page's final URL.
func (s *Scraper) ListPage(ctx context.Context, pageURL string) (models.PageResult, error) {
	doc, finalURL, err := s.fetch(ctx, phaseCatalogue, pageURL)
	if err != nil {
		return models.PageResult{}, err
	}
	page, err := parser.ParseCatalogue(doc, finalURL)
	if err != nil {
		return models.PageResult{}, err
	}
	if len(page.Links) == 0 {
		s.logger.Warn("catalogue page lists no books", slog.String("url", pageURL))
	}
	return page, nil
}

// BookDetails fetches one book page and returns its record with the summary filled in.
func (s *Scraper) BookDetails(ctx context.Context, bookURL string) (*models.Book, error) {
	doc, finalURL, err := s.fetch(ctx, phaseBook, bookURL)
	if err != nil {
		return nil, err
	}
	book, err := parser.ParseBook(doc, finalURL)
	if err != nil {
		return nil, err
	}
	book.Summary = s.summarizer.Summarize(book.Description, s.cfg.SummarySentences)
	return book, nil
}

// scrapeBooks fetches links with at most Parallelism requests in flight.
// Results keep the order of links regardless of completion order.
func (s *Scraper) scrapeBooks(ctx context.Context, logger *slog.Logger, links []string) []models.BookResult {
	results := make([]models.BookResult, len(links))

	var g errgroup.Group
	g.SetLimit(s.cfg.Parallelism)
	for i, link := range links {
		g.Go(func() error {
			logger.Info("visiting book", slog.String("url", link))
			book, err := s.BookDetails(ctx, link)
			if err != nil {
				s.recordError(err)
				logger.Error("book scrape failed",
					slog.String("url", link),
					slog.String("category", ErrorCategory(err)),
					slog.Any("error", err),
				)
			} else {
				s.Metrics.IncBooks()
			}
			results[i] = models.BookResult{URL: link, Book: book, Err: err}
			// Book failures never cancel siblings.
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// fetch performs one GET (plus retries) through a clone of the shared
// collector and parses the body. The clone shares transport and limits.
func (s *Scraper) fetch(ctx context.Context, phase, rawURL string) (*goquery.Document, *url.URL, error) {
	var (
		doc      *goquery.Document
		finalURL *url.URL
	)

	err := s.retry.Do(ctx, rawURL, func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		doc, finalURL = nil, nil

		c := s.collector.Clone()
		var (
			status   int
			parseErr error
		)
		c.OnRequest(func(r *colly.Request) {
			r.Ctx.Put("start", time.Now())
			atomic.AddInt64(&s.requestCount, 1)
			s.Metrics.IncRequest(phase)
		})
		c.OnResponse(func(r *colly.Response) {
			s.observe(r)
			status = r.StatusCode
			finalURL = r.Request.URL
			doc, parseErr = parser.NewDocument(r.Request.URL.String(), bytes.NewReader(r.Body))
		})
		c.OnError(func(r *colly.Response, _ error) {
			if r == nil {
				return
			}
			s.observe(r)
			status = r.StatusCode
		})

		if err := c.Visit(rawURL); err != nil {
			return &FetchError{URL: rawURL, StatusCode: status, Err: err}
		}
		if parseErr != nil {
			return parseErr
		}
		if doc == nil || finalURL == nil {
			return &FetchError{URL: rawURL, StatusCode: status, Err: errEmptyResponse}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return doc, finalURL, nil
}

func (s *Scraper) observe(r *colly.Response) {
	if r.Request == nil || r.Ctx == nil {
		return
	}
	if start, ok := r.Ctx.GetAny("start").(time.Time); ok {
		s.Metrics.ObserveDuration(time.Since(start))
	}
}

func (s *Scraper) recordError(err error) {
	atomic.AddInt64(&s.errorCount, 1)
	category := ErrorCategory(err)

	s.mu.Lock()
	s.errorsByType[category]++
	s.mu.Unlock()

	s.Metrics.IncError(category)
}

func (s *Scraper) resetStats() {
	atomic.StoreInt64(&s.requestCount, 0)
	atomic.StoreInt64(&s.errorCount, 0)
	s.retry.reset()

	s.mu.Lock()
	s.errorsByType = make(map[string]int)
	s.mu.Unlock()
}

func (s *Scraper) finish(result *models.ScrapeResult) *models.ScrapeResult {
	result.EndTime = time.Now()
	result.RequestCount = int(atomic.LoadInt64(&s.requestCount))
	result.ErrorCount = int(atomic.LoadInt64(&s.errorCount))
	result.RetryCount = s.retry.TotalRetries()
	result.ErrorsByType = s.snapshotErrors()
	return result
}

func (s *Scraper) snapshotErrors() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.errorsByType))
	for k, v := range s.errorsByType {
		out[k] = v
	}
	return out
}
