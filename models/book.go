// Package models defines data structures for the scraper.
package models

import "time"

// Book is one scraped catalogue entry together with the summary of its description.
type Book struct {
	Title        string `csv:"title" json:"title" validate:"notblank"`
	Price        string `csv:"price" json:"price" validate:"notblank"`
	Availability string `csv:"availability" json:"availability" validate:"notblank"`
	Description  string `csv:"description" json:"description"`
	Summary      string `csv:"summary of desc" json:"summary"`
	URL          string `csv:"-" json:"url,omitempty" validate:"omitempty,url"`
}

// PageResult is what a single catalogue page yields: the book links in
// document order and the pointer to the next listing page, if any.
type PageResult struct {
	Links       []string
	NextPageURL string
}

// HasNext reports whether the page advertised a following page.
func (p PageResult) HasNext() bool {
	return p.NextPageURL != ""
}

// BookResult is the outcome of scraping one book link.
type BookResult struct {
	URL  string
	Book *Book
	Err  error
}

// OK reports whether the book was scraped successfully.
func (r BookResult) OK() bool {
	return r.Err == nil && r.Book != nil
}

// BookFailure records a book that could not be scraped.
type BookFailure struct {
	URL   string
	Error string
}

// ScrapeResult holds the overall result of a scraping run.
type ScrapeResult struct {
	RunID        string
	Books        []*Book
	Failures     []BookFailure
	StartTime    time.Time
	EndTime      time.Time
	PageCount    int
	RequestCount int
	ErrorCount   int
	RetryCount   int
	ErrorsByType map[string]int
	// Truncated is set when traversal stopped at the page cap or on a
	// pagination cycle instead of a missing next pointer.
	Truncated bool
}

// Duration returns the wall time of the run.
func (r *ScrapeResult) Duration() time.Duration {
	if r == nil || r.EndTime.IsZero() {
		return 0
	}
	return r.EndTime.Sub(r.StartTime)
}
