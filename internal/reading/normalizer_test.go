package reading_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/aglayrton/fluxo-agua/internal/reading"
)

func TestParseRawValue_DotSeparator(t *testing.T) {
	value, err := reading.ParseRawValue("123.45")
	if err != nil {
		t.Fatalf("Failed to parse value: %v", err)
	}

	if value.StringFixed(2) != "123.45" {
		t.Errorf("Expected 123.45, got %s", value.StringFixed(2))
	}
}

func TestParseRawValue_CommaSeparator(t *testing.T) {
	value, err := reading.ParseRawValue("123,45")
	if err != nil {
		t.Fatalf("Failed to parse value: %v", err)
	}

	dotted, _ := reading.ParseRawValue("123.45")
	if !value.Equal(dotted) {
		t.Errorf("Expected \"123,45\" to equal \"123.45\", got %s", value.String())
	}
}

func TestParseRawValue_Whitespace(t *testing.T) {
	value, err := reading.ParseRawValue("  87,30  ")
	if err != nil {
		t.Fatalf("Failed to parse value: %v", err)
	}

	if value.StringFixed(2) != "87.30" {
		t.Errorf("Expected 87.30, got %s", value.StringFixed(2))
	}
}

func TestParseRawValue_Negative(t *testing.T) {
	_, err := reading.ParseRawValue("-5.00")
	if !errors.Is(err, reading.ErrInvalidValue) {
		t.Errorf("Expected ErrInvalidValue for negative value, got %v", err)
	}
}

func TestParseRawValue_NotANumber(t *testing.T) {
	for _, raw := range []string{"", "abc", "12.3.4", "1,2,3"} {
		_, err := reading.ParseRawValue(raw)
		if !errors.Is(err, reading.ErrInvalidValue) {
			t.Errorf("Expected ErrInvalidValue for %q, got %v", raw, err)
		}
	}
}

func TestComputeDelta_FirstReading(t *testing.T) {
	raw := decimal.RequireFromString("87.30")

	delta := reading.ComputeDelta(nil, raw)

	if !delta.Equal(raw) {
		t.Errorf("Expected first reading delta %s, got %s", raw, delta)
	}
}

func TestComputeDelta_Normal(t *testing.T) {
	prior := decimal.RequireFromString("100.00")
	raw := decimal.RequireFromString("112.50")

	delta := reading.ComputeDelta(&prior, raw)

	if delta.StringFixed(2) != "12.50" {
		t.Errorf("Expected delta 12.50, got %s", delta.StringFixed(2))
	}
}

func TestComputeDelta_CounterReset(t *testing.T) {
	prior := decimal.RequireFromString("500.00")
	raw := decimal.RequireFromString("10.00")

	delta := reading.ComputeDelta(&prior, raw)

	if !delta.Equal(raw) {
		t.Errorf("Expected reset delta to equal raw value %s, got %s", raw, delta)
	}
}

func TestComputeDelta_Duplicate(t *testing.T) {
	prior := decimal.RequireFromString("250.75")
	raw := decimal.RequireFromString("250.75")

	delta := reading.ComputeDelta(&prior, raw)

	if !delta.IsZero() {
		t.Errorf("Expected zero delta for duplicate reading, got %s", delta)
	}
}
