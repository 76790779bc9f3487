package timeparser_test

import (
	"testing"
	"time"

	"github.com/aglayrton/fluxo-agua/tools/timeparser"
)

func saoPaulo(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		t.Fatalf("Failed to load location: %v", err)
	}
	return loc
}

func TestParseReadingTimestamp_BrazilianFormat(t *testing.T) {
	loc := saoPaulo(t)

	result, err := timeparser.ParseReadingTimestamp("29/12/2025 10:30:45", loc)
	if err != nil {
		t.Fatalf("Failed to parse timestamp: %v", err)
	}

	expected := time.Date(2025, 12, 29, 10, 30, 45, 0, loc)
	if !result.Equal(expected) {
		t.Errorf("Expected %v, got %v", expected, result)
	}
}

func TestParseReadingTimestamp_ISODateTime(t *testing.T) {
	loc := saoPaulo(t)

	result, err := timeparser.ParseReadingTimestamp("2025-12-29 10:30:45", loc)
	if err != nil {
		t.Fatalf("Failed to parse timestamp: %v", err)
	}

	expected := time.Date(2025, 12, 29, 10, 30, 45, 0, loc)
	if !result.Equal(expected) {
		t.Errorf("Expected %v, got %v", expected, result)
	}
}

func TestParseReadingTimestamp_RFC3339KeepsOffset(t *testing.T) {
	loc := saoPaulo(t)

	result, err := timeparser.ParseReadingTimestamp("2025-12-29T10:30:45Z", loc)
	if err != nil {
		t.Fatalf("Failed to parse timestamp: %v", err)
	}

	expected := time.Date(2025, 12, 29, 10, 30, 45, 0, time.UTC)
	if !result.Equal(expected) {
		t.Errorf("Expected %v, got %v", expected, result)
	}
}

func TestParseReadingTimestamp_Invalid(t *testing.T) {
	loc := saoPaulo(t)

	_, err := timeparser.ParseReadingTimestamp("not a date", loc)
	if err == nil {
		t.Error("Expected error for unparseable timestamp")
	}
}

func TestDayOf_TruncatesToLocalMidnight(t *testing.T) {
	loc := saoPaulo(t)

	// 01:30 UTC on the 30th is still late evening of the 29th in Sao Paulo
	instant := time.Date(2025, 12, 30, 1, 30, 0, 0, time.UTC)

	day := timeparser.DayOf(instant, loc)

	expected := time.Date(2025, 12, 29, 0, 0, 0, 0, loc)
	if !day.Equal(expected) {
		t.Errorf("Expected %v, got %v", expected, day)
	}
}

func TestDayOf_SameLocationPassthrough(t *testing.T) {
	loc := saoPaulo(t)

	instant := time.Date(2025, 12, 29, 14, 45, 10, 0, loc)

	day := timeparser.DayOf(instant, loc)

	if day.Hour() != 0 || day.Minute() != 0 || day.Second() != 0 {
		t.Errorf("Expected midnight, got %v", day)
	}
	if day.Day() != 29 {
		t.Errorf("Expected day 29, got %d", day.Day())
	}
}
