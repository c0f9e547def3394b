package model

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// ErrInvalidPrice is returned for display prices without any amount.
var ErrInvalidPrice = errors.New("invalid price")

// FormatPrice normalises an upstream display price: spaces are removed and a
// leading currency symbol is repeated after a range dash, so "€ 5-23"
// becomes "€5-€23".
func FormatPrice(display string) (string, error) {
	price := strings.ReplaceAll(strings.TrimSpace(display), " ", "")
	if !strings.ContainsFunc(price, unicode.IsDigit) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPrice, display)
	}
	for _, currency := range []string{"$", "£", "€"} {
		if strings.HasPrefix(price, currency) {
			price = currency + strings.ReplaceAll(strings.TrimPrefix(price, currency), "-", "-"+currency)
			break
		}
	}
	return price, nil
}
