package reading

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidValue is returned for raw values that are not parseable
// as a non-negative decimal. Nothing is persisted on this path.
var ErrInvalidValue = errors.New("invalid reading value")

// ParseRawValue parses a raw cumulative counter value. Sensors report
// either "123.45" or the locale form "123,45"; both parse identically.
func ParseRawValue(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	s = strings.ReplaceAll(s, ",", ".")

	value, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %q is not numeric", ErrInvalidValue, raw)
	}
	if value.IsNegative() {
		return decimal.Decimal{}, fmt.Errorf("%w: negative value %s", ErrInvalidValue, value)
	}

	return value, nil
}

// ComputeDelta derives the incremental consumption attributed to a reading.
//
// Policy: signed delta with reset guard.
//   - no prior reading: delta = raw (the counter started at this value)
//   - raw < prior: counter reset or rollover, delta = raw
//   - otherwise: delta = raw - prior
//
// A raw value equal to the prior one yields delta 0 and is persisted
// like any other reading.
func ComputeDelta(prior *decimal.Decimal, raw decimal.Decimal) decimal.Decimal {
	if prior == nil {
		return raw
	}
	if raw.LessThan(*prior) {
		return raw
	}
	return raw.Sub(*prior)
}
