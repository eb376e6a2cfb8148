package model

import (
	"fmt"
	"strings"
)

type Currency string

const (
	USD Currency = "USD"
	EUR Currency = "EUR"
	GBP Currency = "GBP"
	JPY Currency = "JPY"
	INR Currency = "INR"
)

// ParseCurrency trims and upper-cases a code and checks that it is 3 ASCII
// letters.
func ParseCurrency(s string) (Currency, error) {
	code := Currency(strings.ToUpper(strings.TrimSpace(s)))
	if !code.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidCurrency, s)
	}
	return code, nil
}

func (c Currency) IsValid() bool {
	if len(c) != 3 {
		return false
	}
	for _, r := range c {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

// Same reports whether two codes name the same currency, ignoring case.
func (c Currency) Same(other Currency) bool {
	return strings.EqualFold(strings.TrimSpace(string(c)), strings.TrimSpace(string(other)))
}

func (c Currency) String() string {
	return string(c)
}
