package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Validation errors
var (
	ErrInvalidOwner = errors.New("invalid owner")
	ErrInvalidScale = errors.New("invalid amount scale")
)

// Validation constants
const (
	MaxOwnerLength = 255
	MinOwnerLength = 1
	MaxAmountScale = 8
)

// ValidateOwner validates an owner name supplied by a front end.
func ValidateOwner(owner string) error {
	owner = strings.TrimSpace(owner)

	if len(owner) < MinOwnerLength {
		return fmt.Errorf("%w: owner cannot be empty", ErrInvalidOwner)
	}

	if len(owner) > MaxOwnerLength {
		return fmt.Errorf("%w: owner exceeds %d characters", ErrInvalidOwner, MaxOwnerLength)
	}

	return nil
}

// ValidateAmount validates a deposit, withdrawal or transfer amount in minor units.
func ValidateAmount(amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidAmount, amount)
	}
	return nil
}

// ValidateScale checks the number of decimal places used for display.
func ValidateScale(scale int32) error {
	if scale < 0 || scale > MaxAmountScale {
		return fmt.Errorf("%w: %d is outside 0..%d", ErrInvalidScale, scale, MaxAmountScale)
	}
	return nil
}

// ParseAmount converts a human amount such as "12.50" into minor units at the given scale.
// Amounts with more fractional digits than scale are rejected rather than rounded.
func ParseAmount(s string, scale int32) (int64, error) {
	if err := ValidateScale(scale); err != nil {
		return 0, err
	}

	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidAmount, s)
	}

	minor := d.Shift(scale)
	if !minor.IsInteger() {
		return 0, fmt.Errorf("%w: %q has more than %d decimal places", ErrInvalidAmount, s, scale)
	}

	if !minor.BigInt().IsInt64() {
		return 0, fmt.Errorf("%w: %q is out of range", ErrInvalidAmount, s)
	}

	return minor.IntPart(), nil
}

// FormatAmount renders minor units as a fixed-point string, 1250 -> "12.50" at scale 2.
func FormatAmount(minor int64, scale int32) string {
	return decimal.New(minor, -scale).StringFixed(scale)
}

// ValidatePagination validates and limits pagination parameters
func ValidatePagination(limit, offset int) (int, int, error) {
	const MaxPageSize = 100
	const DefaultPageSize = 20

	if limit <= 0 {
		limit = DefaultPageSize
	}

	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	if offset < 0 {
		offset = 0
	}

	return limit, offset, nil
}
