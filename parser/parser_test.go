package parser

import (
	"errors"
	"net/url"
	"strings"
	"testing"

	"github.com/aluiziolira/go-book-digest/models"
)

func TestValidateBook(t *testing.T) {
	tests := []struct {
		name    string
		book    *models.Book
		wantErr bool
	}{
		{
			name: "valid book",
			book: &models.Book{
				Title:        "Test Book",
				Price:        "£10.00",
				Availability: "In stock",
				URL:          "http://example.com/catalogue/test_1/index.html",
			},
			wantErr: false,
		},
		{
			name: "valid book without description",
			book: &models.Book{
				Title:        "Test Book",
				Price:        "£10.00",
				Availability: "In stock",
			},
			wantErr: false,
		},
		{
			name: "missing title",
			book: &models.Book{
				Title:        "",
				Price:        "£10.00",
				Availability: "In stock",
			},
			wantErr: true,
		},
		{
			name: "blank title",
			book: &models.Book{
				Title:        "   ",
				Price:        "£10.00",
				Availability: "In stock",
			},
			wantErr: true,
		},
		{
			name: "missing price",
			book: &models.Book{
				Title:        "Test Book",
				Price:        "",
				Availability: "In stock",
			},
			wantErr: true,
		},
		{
			name: "missing availability",
			book: &models.Book{
				Title: "Test Book",
				Price: "£10.00",
			},
			wantErr: true,
		},
		{
			name: "malformed url",
			book: &models.Book{
				Title:        "Test Book",
				Price:        "£10.00",
				Availability: "In stock",
				URL:          "not a url",
			},
			wantErr: true,
		},
		{
			name:    "nil book",
			book:    nil,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBook(tt.book)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateBook() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNormalizePrice(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "clean", input: "£51.77", expected: "£51.77"},
		{name: "with whitespace", input: "  £10.50  ", expected: "£10.50"},
		{name: "latin-1 mojibake", input: "Â£25.99", expected: "£25.99"},
		{name: "empty string", input: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NormalizePrice(tt.input)
			if result != tt.expected {
				t.Errorf("NormalizePrice(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestNormalizeAvailability(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "with whitespace",
			input:    "  In stock (22 available)  ",
			expected: "In stock (22 available)",
		},
		{
			name:     "markup indentation",
			input:    "\n\n    \n        In stock (19 available)\n    \n",
			expected: "In stock (19 available)",
		},
		{
			name:     "no whitespace",
			input:    "In stock",
			expected: "In stock",
		},
		{
			name:     "empty string",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NormalizeAvailability(tt.input)
			if result != tt.expected {
				t.Errorf("NormalizeAvailability(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestResolveURL(t *testing.T) {
	base, _ := url.Parse("https://books.toscrape.com/catalogue/page-2.html")
	tests := []struct {
		name string
		href string
		want string
	}{
		{
			name: "sibling book link",
			href: "a-light-in-the-attic_1000/index.html",
			want: "https://books.toscrape.com/catalogue/a-light-in-the-attic_1000/index.html",
		},
		{
			name: "parent traversal",
			href: "../../../a-light-in-the-attic_1000/index.html",
			want: "https://books.toscrape.com/a-light-in-the-attic_1000/index.html",
		},
		{
			name: "next page",
			href: "page-3.html",
			want: "https://books.toscrape.com/catalogue/page-3.html",
		},
		{
			name: "absolute",
			href: "http://other.test/x.html#frag",
			want: "http://other.test/x.html",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveURL(base, tt.href)
			if err != nil {
				t.Fatalf("resolve: %v", err)
			}
			if got != tt.want {
				t.Fatalf("ResolveURL(%q) = %q, want %q", tt.href, got, tt.want)
			}
		})
	}
}

const cataloguePage = `<html><body><section><ol class="row">
<li><article class="product_pod">
  <h3><a href="../../../a-light-in-the-attic_1000/index.html" title="A Light in the Attic">A Light in the ...</a></h3>
  <p class="price_color">£51.77</p>
</article></li>
<li><article class="product_pod">
  <h3><a href="../../../tipping-the-velvet_999/index.html" title="Tipping the Velvet">Tipping the Velvet</a></h3>
</article></li>
</ol>
<ul class="pager"><li class="current">Page 1 of 50</li><li class="next"><a href="page-2.html">next</a></li></ul>
</section></body></html>`

func TestParseCatalogue(t *testing.T) {
	pageURL, _ := url.Parse("https://books.toscrape.com/catalogue/category/books/travel_2/index.html")
	doc, err := NewDocument(pageURL.String(), strings.NewReader(cataloguePage))
	if err != nil {
		t.Fatalf("new document: %v", err)
	}

	result, err := ParseCatalogue(doc, pageURL)
	if err != nil {
		t.Fatalf("parse catalogue: %v", err)
	}

	wantLinks := []string{
		"https://books.toscrape.com/catalogue/a-light-in-the-attic_1000/index.html",
		"https://books.toscrape.com/catalogue/tipping-the-velvet_999/index.html",
	}
	if len(result.Links) != len(wantLinks) {
		t.Fatalf("links = %v, want %v", result.Links, wantLinks)
	}
	for i := range wantLinks {
		if result.Links[i] != wantLinks[i] {
			t.Fatalf("link[%d] = %q, want %q", i, result.Links[i], wantLinks[i])
		}
	}
	if want := "https://books.toscrape.com/catalogue/category/books/travel_2/page-2.html"; result.NextPageURL != want {
		t.Fatalf("next = %q, want %q", result.NextPageURL, want)
	}
}

func TestParseCatalogueWithoutSelectors(t *testing.T) {
	pageURL, _ := url.Parse("https://books.toscrape.com/catalogue/page-50.html")
	doc, err := NewDocument(pageURL.String(), strings.NewReader("<html><body><p>maintenance</p></body></html>"))
	if err != nil {
		t.Fatalf("new document: %v", err)
	}

	result, err := ParseCatalogue(doc, pageURL)
	if err != nil {
		t.Fatalf("parse catalogue: %v", err)
	}
	if len(result.Links) != 0 || result.HasNext() {
		t.Fatalf("expected empty result, got %+v", result)
	}
}

const bookPage = `<html><body><article class="product_page">
<div class="row"><div class="col-sm-6 product_main">
  <h1>A Light in the Attic</h1>
  <p class="price_color">£51.77</p>
  <p class="instock availability">
    <i class="icon-ok"></i>
        In stock (22 available)
  </p>
</div></div>
<div id="product_description" class="sub-header"><h2>Product Description</h2></div>
<p>It's hard to imagine a world without A Light in the Attic. This now-classic collection of poetry celebrates its 20th anniversary.</p>
<div class="sub-header"><h2>Product Information</h2></div>
<p>Unrelated paragraph.</p>
</article></body></html>`

func TestParseBook(t *testing.T) {
	pageURL, _ := url.Parse("https://books.toscrape.com/catalogue/a-light-in-the-attic_1000/index.html")
	doc, err := NewDocument(pageURL.String(), strings.NewReader(bookPage))
	if err != nil {
		t.Fatalf("new document: %v", err)
	}

	book, err := ParseBook(doc, pageURL)
	if err != nil {
		t.Fatalf("parse book: %v", err)
	}
	if book.Title != "A Light in the Attic" {
		t.Fatalf("title = %q", book.Title)
	}
	if book.Price != "£51.77" {
		t.Fatalf("price = %q", book.Price)
	}
	if book.Availability != "In stock (22 available)" {
		t.Fatalf("availability = %q", book.Availability)
	}
	if !strings.HasPrefix(book.Description, "It's hard to imagine") {
		t.Fatalf("description = %q", book.Description)
	}
	if book.Summary != "" {
		t.Fatalf("summary should be left empty, got %q", book.Summary)
	}
	if book.URL != pageURL.String() {
		t.Fatalf("url = %q", book.URL)
	}
	if err := ValidateBook(book); err != nil {
		t.Fatalf("parsed book should validate: %v", err)
	}
}

func TestParseBookWithoutDescription(t *testing.T) {
	html := `<div class="product_main"><h1>Quiet</h1><p class="price_color">£1.00</p><p class="availability">In stock</p></div>`
	pageURL, _ := url.Parse("https://books.toscrape.com/catalogue/quiet_1/index.html")
	doc, err := NewDocument(pageURL.String(), strings.NewReader(html))
	if err != nil {
		t.Fatalf("new document: %v", err)
	}

	book, err := ParseBook(doc, pageURL)
	if err != nil {
		t.Fatalf("parse book: %v", err)
	}
	if book.Description != "" {
		t.Fatalf("description = %q, want empty", book.Description)
	}
}

func TestParseBookMissingTitle(t *testing.T) {
	html := `<p class="price_color">£1.00</p><p class="availability">In stock</p>`
	pageURL, _ := url.Parse("https://books.toscrape.com/catalogue/broken_1/index.html")
	doc, err := NewDocument(pageURL.String(), strings.NewReader(html))
	if err != nil {
		t.Fatalf("new document: %v", err)
	}

	_, err = ParseBook(doc, pageURL)
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected ParseError, got %v", err)
	}
	if parseErr.Selector != SelectorTitle {
		t.Fatalf("selector = %q, want %q", parseErr.Selector, SelectorTitle)
	}
	if !errors.Is(err, ErrMissingElement) {
		t.Fatalf("expected ErrMissingElement in chain")
	}
}

func TestParseBookBlankRequiredField(t *testing.T) {
	tests := []struct {
		name     string
		html     string
		selector string
	}{
		{
			name:     "blank title",
			html:     `<div class="product_main"><h1>  </h1><p class="price_color">£1.00</p><p class="availability">In stock</p></div>`,
			selector: SelectorTitle,
		},
		{
			name:     "blank price",
			html:     `<div class="product_main"><h1>Quiet</h1><p class="price_color">
			</p><p class="availability">In stock</p></div>`,
			selector: SelectorPrice,
		},
		{
			name:     "blank availability",
			html:     `<div class="product_main"><h1>Quiet</h1><p class="price_color">£1.00</p><p class="availability"><i class="icon-ok"></i> </p></div>`,
			selector: SelectorAvailability,
		},
	}

	pageURL, _ := url.Parse("https://books.toscrape.com/catalogue/blank_1/index.html")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := NewDocument(pageURL.String(), strings.NewReader(tt.html))
			if err != nil {
				t.Fatalf("new document: %v", err)
			}

			book, err := ParseBook(doc, pageURL)
			if book != nil {
				t.Fatalf("expected no book, got %+v", book)
			}
			var parseErr *ParseError
			if !errors.As(err, &parseErr) {
				t.Fatalf("expected ParseError, got %v", err)
			}
			if parseErr.Selector != tt.selector {
				t.Fatalf("selector = %q, want %q", parseErr.Selector, tt.selector)
			}
			if !errors.Is(err, ErrEmptyElement) {
				t.Fatalf("expected ErrEmptyElement in chain, got %v", err)
			}
		})
	}
}
