package parser

import (
	"errors"
	"fmt"
)

// ErrMissingElement is wrapped by ParseError when a required selector matched nothing.
var ErrMissingElement = errors.New("required element not found")

// ErrEmptyElement is wrapped by ParseError when a required element has no text.
var ErrEmptyElement = errors.New("required element is empty")

// ParseError reports markup that did not have the expected structure.
type ParseError struct {
	URL      string
	Selector string
	Err      error
}

func (e *ParseError) Error() string {
	if e.Selector == "" {
		return fmt.Sprintf("parse error for %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("parse error for %s (selector=%q): %v", e.URL, e.Selector, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func missing(pageURL, selector string) error {
	return &ParseError{URL: pageURL, Selector: selector, Err: ErrMissingElement}
}

func empty(pageURL, selector string) error {
	return &ParseError{URL: pageURL, Selector: selector, Err: ErrEmptyElement}
}
