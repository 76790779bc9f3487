package aggregate

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// SensorTotal is one sensor's summed consumption within a window
type SensorTotal struct {
	Sensor string
	Total  decimal.Decimal
}

// DaySensorTotal is one sensor's summed consumption on one calendar day
type DaySensorTotal struct {
	Day    time.Time
	Sensor string
	Total  decimal.Decimal
}

// MonthTotal is the residence consumption for one month
type MonthTotal struct {
	Month time.Month
	Total decimal.Decimal
}

// Store supplies summed reading deltas. Totals are always recomputed
// from the readings table; the daily_consumption cache is never the
// source of truth for these queries.
type Store interface {
	SensorTotalsForDay(ctx context.Context, day time.Time) ([]SensorTotal, error)
	ResidenceTotalForDay(ctx context.Context, day time.Time) (decimal.Decimal, error)
	DailySensorTotalsForMonth(ctx context.Context, year int, month time.Month) ([]DaySensorTotal, error)
	MonthlyTotalsForYear(ctx context.Context, year int) ([]MonthTotal, error)
}

// Service shapes consumption reports for the API and supplies the
// "consumption so far today" figure the flow controller needs.
type Service struct {
	store Store
}

// NewService creates a new aggregation service
func NewService(store Store) *Service {
	return &Service{store: store}
}

// DailyReport is the per-sensor breakdown plus residence total for one day
type DailyReport struct {
	Day     time.Time
	Sensors []SensorTotal
	Total   decimal.Decimal
}

// Daily returns the consumption report for one calendar day.
// A day without readings yields an empty breakdown and a zero total.
func (s *Service) Daily(ctx context.Context, day time.Time) (*DailyReport, error) {
	sensors, err := s.store.SensorTotalsForDay(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate daily consumption: %w", err)
	}

	total := decimal.Zero
	for _, st := range sensors {
		total = total.Add(st.Total)
	}

	return &DailyReport{Day: day, Sensors: sensors, Total: total}, nil
}

// ResidenceTotal returns the whole-residence consumption for one day
func (s *Service) ResidenceTotal(ctx context.Context, day time.Time) (decimal.Decimal, error) {
	total, err := s.store.ResidenceTotalForDay(ctx, day)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("failed to compute residence total: %w", err)
	}
	return total, nil
}

// MonthReport is the per-day, per-sensor breakdown plus total for one month
type MonthReport struct {
	Year  int
	Month time.Month
	Days  []DaySensorTotal
	Total decimal.Decimal
}

// Monthly returns the detailed report for one month of one year
func (s *Service) Monthly(ctx context.Context, year int, month time.Month) (*MonthReport, error) {
	days, err := s.store.DailySensorTotalsForMonth(ctx, year, month)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate monthly consumption: %w", err)
	}

	total := decimal.Zero
	for _, d := range days {
		total = total.Add(d.Total)
	}

	return &MonthReport{Year: year, Month: month, Days: days, Total: total}, nil
}

// YearReport lists all twelve months, zero-filled, plus the year total
type YearReport struct {
	Year   int
	Months []MonthTotal
	Total  decimal.Decimal
}

// Yearly returns per-month totals for a year. Months without readings
// appear with a zero total.
func (s *Service) Yearly(ctx context.Context, year int) (*YearReport, error) {
	recorded, err := s.store.MonthlyTotalsForYear(ctx, year)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate yearly consumption: %w", err)
	}

	byMonth := make(map[time.Month]decimal.Decimal, len(recorded))
	for _, m := range recorded {
		byMonth[m.Month] = m.Total
	}

	report := &YearReport{Year: year, Total: decimal.Zero}
	for m := time.January; m <= time.December; m++ {
		total, ok := byMonth[m]
		if !ok {
			total = decimal.Zero
		}
		report.Months = append(report.Months, MonthTotal{Month: m, Total: total})
		report.Total = report.Total.Add(total)
	}

	return report, nil
}
