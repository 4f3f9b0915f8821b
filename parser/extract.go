package parser

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/aluiziolira/go-book-digest/models"
)

// Selectors used against the books.toscrape.com markup.
const (
	SelectorBookLink     = "article.product_pod h3 a"
	SelectorNextPage     = "li.next a"
	SelectorTitle        = "div.product_main h1"
	SelectorPrice        = "p.price_color"
	SelectorAvailability = "p.availability"
	SelectorDescription  = "#product_description ~ p"
)

// NewDocument parses raw HTML, wrapping failures in a ParseError.
func NewDocument(pageURL string, body io.Reader) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, &ParseError{URL: pageURL, Err: err}
	}
	return doc, nil
}

// ParseCatalogue extracts the book links and the next-page pointer of a
// listing page. Hrefs are resolved against pageURL. A page without products
// or without a next link is not an error; it simply yields nothing for that part.
func ParseCatalogue(doc *goquery.Document, pageURL *url.URL) (models.PageResult, error) {
	if doc == nil || pageURL == nil {
		return models.PageResult{}, fmt.Errorf("parse catalogue: nil document or url")
	}

	var result models.PageResult
	var resolveErr error
	doc.Find(SelectorBookLink).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, ok := sel.Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return true
		}
		abs, err := ResolveURL(pageURL, href)
		if err != nil {
			resolveErr = &ParseError{URL: pageURL.String(), Selector: SelectorBookLink, Err: err}
			return false
		}
		result.Links = append(result.Links, abs)
		return true
	})
	if resolveErr != nil {
		return models.PageResult{}, resolveErr
	}

	if href, ok := doc.Find(SelectorNextPage).First().Attr("href"); ok && strings.TrimSpace(href) != "" {
		next, err := ResolveURL(pageURL, href)
		if err != nil {
			return models.PageResult{}, &ParseError{URL: pageURL.String(), Selector: SelectorNextPage, Err: err}
		}
		result.NextPageURL = next
	}

	return result, nil
}

// ParseBook extracts the fields of a book detail page. Summary is left empty.
// Title, price and availability must be present and non-blank; every book it
// returns passes ValidateBook.
func ParseBook(doc *goquery.Document, pageURL *url.URL) (*models.Book, error) {
	if doc == nil || pageURL == nil {
		return nil, fmt.Errorf("parse book: nil document or url")
	}
	raw := pageURL.String()

	title, err := requiredText(doc, raw, SelectorTitle)
	if err != nil {
		return nil, err
	}
	price, err := requiredText(doc, raw, SelectorPrice)
	if err != nil {
		return nil, err
	}
	availability, err := requiredText(doc, raw, SelectorAvailability)
	if err != nil {
		return nil, err
	}
	description, _ := firstText(doc, SelectorDescription)

	return &models.Book{
		Title:        title,
		Price:        NormalizePrice(price),
		Availability: NormalizeAvailability(availability),
		Description:  description,
		URL:          raw,
	}, nil
}

// ResolveURL joins href onto base the way a browser would and drops any fragment.
func ResolveURL(base *url.URL, href string) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", fmt.Errorf("parse href %q: %w", href, err)
	}
	resolved := base.ResolveReference(ref)
	resolved.Fragment = ""
	return resolved.String(), nil
}

func requiredText(doc *goquery.Document, pageURL, selector string) (string, error) {
	text, ok := firstText(doc, selector)
	if !ok {
		return "", missing(pageURL, selector)
	}
	if text == "" {
		return "", empty(pageURL, selector)
	}
	return text, nil
}

func firstText(doc *goquery.Document, selector string) (string, bool) {
	sel := doc.Find(selector).First()
	if sel.Length() == 0 {
		return "", false
	}
	return strings.TrimSpace(sel.Text()), true
}
