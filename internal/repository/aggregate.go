package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aglayrton/fluxo-agua/internal/aggregate"
)

// dayRange returns the [start, end) instants covering one calendar day
// in the residence timezone.
func (r *Repository) dayRange(day time.Time) (time.Time, time.Time) {
	local := day.In(r.loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, r.loc)
	return start, start.AddDate(0, 0, 1)
}

// SensorTotalsForDay sums deltas per sensor for one calendar day
func (r *Repository) SensorTotalsForDay(ctx context.Context, day time.Time) ([]aggregate.SensorTotal, error) {
	start, end := r.dayRange(day)

	query := `
		SELECT s.name, COALESCE(SUM(rd.delta), 0)
		FROM readings rd
		JOIN sensors s ON s.id = rd.sensor_id
		WHERE rd.occurred_at >= $1 AND rd.occurred_at < $2
		GROUP BY s.name
		ORDER BY s.name
	`

	rows, err := r.pool.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query sensor totals: %w", err)
	}
	defer rows.Close()

	var totals []aggregate.SensorTotal
	for rows.Next() {
		var t aggregate.SensorTotal
		if err := rows.Scan(&t.Sensor, &t.Total); err != nil {
			return nil, fmt.Errorf("failed to scan sensor total: %w", err)
		}
		totals = append(totals, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return totals, nil
}

// ResidenceTotalForDay sums deltas across all sensors for one calendar day
func (r *Repository) ResidenceTotalForDay(ctx context.Context, day time.Time) (decimal.Decimal, error) {
	start, end := r.dayRange(day)

	query := `
		SELECT COALESCE(SUM(delta), 0)
		FROM readings
		WHERE occurred_at >= $1 AND occurred_at < $2
	`

	var total decimal.Decimal
	if err := r.pool.QueryRow(ctx, query, start, end).Scan(&total); err != nil {
		return decimal.Decimal{}, fmt.Errorf("failed to query residence total: %w", err)
	}

	return total, nil
}

// DailySensorTotalsForMonth sums deltas per sensor per local calendar day
// across one month
func (r *Repository) DailySensorTotalsForMonth(ctx context.Context, year int, month time.Month) ([]aggregate.DaySensorTotal, error) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, r.loc)
	end := start.AddDate(0, 1, 0)

	query := `
		SELECT (rd.occurred_at AT TIME ZONE $3)::date, s.name, COALESCE(SUM(rd.delta), 0)
		FROM readings rd
		JOIN sensors s ON s.id = rd.sensor_id
		WHERE rd.occurred_at >= $1 AND rd.occurred_at < $2
		GROUP BY 1, s.name
		ORDER BY 1, s.name
	`

	rows, err := r.pool.Query(ctx, query, start, end, r.loc.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query monthly totals: %w", err)
	}
	defer rows.Close()

	var totals []aggregate.DaySensorTotal
	for rows.Next() {
		var t aggregate.DaySensorTotal
		if err := rows.Scan(&t.Day, &t.Sensor, &t.Total); err != nil {
			return nil, fmt.Errorf("failed to scan monthly total: %w", err)
		}
		totals = append(totals, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return totals, nil
}

// MonthlyTotalsForYear sums deltas per local month across one year
func (r *Repository) MonthlyTotalsForYear(ctx context.Context, year int) ([]aggregate.MonthTotal, error) {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, r.loc)
	end := start.AddDate(1, 0, 0)

	query := `
		SELECT EXTRACT(MONTH FROM occurred_at AT TIME ZONE $3)::int, COALESCE(SUM(delta), 0)
		FROM readings
		WHERE occurred_at >= $1 AND occurred_at < $2
		GROUP BY 1
		ORDER BY 1
	`

	rows, err := r.pool.Query(ctx, query, start, end, r.loc.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query yearly totals: %w", err)
	}
	defer rows.Close()

	var totals []aggregate.MonthTotal
	for rows.Next() {
		var month int
		var total decimal.Decimal
		if err := rows.Scan(&month, &total); err != nil {
			return nil, fmt.Errorf("failed to scan yearly total: %w", err)
		}
		totals = append(totals, aggregate.MonthTotal{Month: time.Month(month), Total: total})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return totals, nil
}
