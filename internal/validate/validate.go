// Package validate holds the shape checks applied to teller input before it
// reaches an account record. Nothing here touches state.
package validate

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	amountPattern = regexp.MustCompile(`^[+-]?\d+(\.\d+)?$`)
	namePattern   = regexp.MustCompile(`^[a-zA-Z\s\-']+$`)
)

// ErrInvalidAmount is matched by every *AmountError
var ErrInvalidAmount = errors.New("invalid amount")

// AmountReason names the rule an amount failed
type AmountReason string

const (
	AmountEmpty           AmountReason = "empty"
	AmountNonNumeric      AmountReason = "non_numeric"
	AmountNonPositive     AmountReason = "non_positive"
	AmountTooManyDecimals AmountReason = "too_many_decimals"
)

// AmountError reports why an amount string was rejected
type AmountError struct {
	Input  string
	Reason AmountReason
}

func (e *AmountError) Error() string {
	return fmt.Sprintf("invalid amount %q: %s", e.Input, e.Reason)
}

func (e *AmountError) Is(target error) bool {
	return target == ErrInvalidAmount
}

// IsValidAccountNumber reports whether s is 6 to 12 ASCII digits
func IsValidAccountNumber(s string) bool {
	return len(s) >= 6 && len(s) <= 12 && allDigits(s)
}

// IsValidPin reports whether s is exactly 4 ASCII digits
func IsValidPin(s string) bool {
	return len(s) == 4 && allDigits(s)
}

// IsValidHolderName accepts 2 to 50 letters, spaces, hyphens and apostrophes
func IsValidHolderName(s string) bool {
	s = strings.TrimSpace(s)
	return len(s) >= 2 && len(s) <= 50 && namePattern.MatchString(s)
}

// ParseAmount parses a positive currency amount with at most two decimal
// places. A leading "$" and thousands separators are accepted.
func ParseAmount(s string) (decimal.Decimal, error) {
	amount, err := parseMoney(s)
	if err != nil {
		return decimal.Zero, err
	}

	if !amount.IsPositive() {
		return decimal.Zero, &AmountError{Input: s, Reason: AmountNonPositive}
	}

	return amount, nil
}

// ParseBalance is ParseAmount for opening balances, where zero is allowed
// and an empty string means zero.
func ParseBalance(s string) (decimal.Decimal, error) {
	if strings.TrimSpace(s) == "" {
		return decimal.Zero, nil
	}

	amount, err := parseMoney(s)
	if err != nil {
		return decimal.Zero, err
	}

	if amount.IsNegative() {
		return decimal.Zero, &AmountError{Input: s, Reason: AmountNonPositive}
	}

	return amount, nil
}

func parseMoney(s string) (decimal.Decimal, error) {
	cleaned := strings.TrimSpace(s)
	cleaned = strings.TrimPrefix(cleaned, "$")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	cleaned = strings.TrimSpace(cleaned)

	if cleaned == "" {
		return decimal.Zero, &AmountError{Input: s, Reason: AmountEmpty}
	}

	if !amountPattern.MatchString(cleaned) {
		return decimal.Zero, &AmountError{Input: s, Reason: AmountNonNumeric}
	}

	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, &AmountError{Input: s, Reason: AmountNonNumeric}
	}

	if amount.IsNegative() || amount.IsZero() {
		return amount, nil
	}

	// trailing zeros do not count: "1.500" is 1.5
	if !amount.Equal(amount.Round(2)) {
		return decimal.Zero, &AmountError{Input: s, Reason: AmountTooManyDecimals}
	}

	return amount, nil
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
