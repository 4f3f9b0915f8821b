package parser

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	"github.com/aluiziolira/go-book-digest/models"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(err)
	}
	return v
}

// ValidateBook ensures the scraper captured the required fields.
func ValidateBook(b *models.Book) error {
	if b == nil {
		return fmt.Errorf("book is nil")
	}
	if err := validate.Struct(b); err != nil {
		return fmt.Errorf("invalid book %q: %w", b.Title, err)
	}
	return nil
}

// NormalizePrice trims spacing and repairs a pound sign that was decoded as Latin-1.
func NormalizePrice(price string) string {
	price = strings.TrimSpace(price)
	price = strings.ReplaceAll(price, "Â£", "£")
	return price
}

// NormalizeAvailability collapses the whitespace runs the markup puts around the stock text.
func NormalizeAvailability(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
