package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/aglayrton/fluxo-agua/internal/db"
)

// Tx is an alias for pgx.Tx
type Tx = pgx.Tx

// Error kinds surfaced to the transport layer. All are detected before
// any persistent mutation.
var (
	ErrUnknownSensor     = errors.New("unknown sensor")
	ErrSensorExists      = errors.New("sensor already exists")
	ErrGoalExists        = errors.New("a consumption goal already exists, use update instead")
	ErrGoalNotFound      = errors.New("no consumption goal configured")
	ErrRecipientExists   = errors.New("notification recipient already exists")
	ErrRecipientNotFound = errors.New("notification recipient not found")
)

// Repository handles database operations
type Repository struct {
	pool *pgxpool.Pool
	loc  *time.Location
}

// NewRepository creates a new repository. loc is the residence timezone
// used to group readings into calendar days.
func NewRepository(pool *pgxpool.Pool, loc *time.Location) *Repository {
	return &Repository{pool: pool, loc: loc}
}

// BeginTx starts a new transaction
func (r *Repository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// CreateSensor registers a new sensor
func (r *Repository) CreateSensor(ctx context.Context, name string) (*db.Sensor, error) {
	query := `
		INSERT INTO sensors (id, name, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO NOTHING
		RETURNING id, name, created_at
	`

	var sensor db.Sensor
	err := r.pool.QueryRow(ctx, query, uuid.New(), name, time.Now()).Scan(
		&sensor.ID,
		&sensor.Name,
		&sensor.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("%w: %q", ErrSensorExists, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create sensor: %w", err)
	}

	return &sensor, nil
}

// GetSensor retrieves a sensor by id
func (r *Repository) GetSensor(ctx context.Context, id uuid.UUID) (*db.Sensor, error) {
	query := `SELECT id, name, created_at FROM sensors WHERE id = $1`

	var sensor db.Sensor
	err := r.pool.QueryRow(ctx, query, id).Scan(&sensor.ID, &sensor.Name, &sensor.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSensor, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query sensor: %w", err)
	}

	return &sensor, nil
}

// GetSensorByName retrieves a sensor by its unique name
func (r *Repository) GetSensorByName(ctx context.Context, name string) (*db.Sensor, error) {
	query := `SELECT id, name, created_at FROM sensors WHERE name = $1`

	var sensor db.Sensor
	err := r.pool.QueryRow(ctx, query, name).Scan(&sensor.ID, &sensor.Name, &sensor.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSensor, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query sensor: %w", err)
	}

	return &sensor, nil
}

// ListSensors returns all registered sensors
func (r *Repository) ListSensors(ctx context.Context) ([]db.Sensor, error) {
	query := `SELECT id, name, created_at FROM sensors ORDER BY name`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list sensors: %w", err)
	}
	defer rows.Close()

	var sensors []db.Sensor
	for rows.Next() {
		var s db.Sensor
		if err := rows.Scan(&s.ID, &s.Name, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan sensor: %w", err)
		}
		sensors = append(sensors, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return sensors, nil
}

// DeleteSensor removes a sensor and, via FK cascade, its readings
func (r *Repository) DeleteSensor(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM sensors WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete sensor: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrUnknownSensor, id)
	}
	return nil
}

// LockSensorTx takes the sensor row lock that serializes concurrent
// delta computations for the same sensor. Returns ErrUnknownSensor if
// the sensor does not exist.
func (r *Repository) LockSensorTx(ctx context.Context, tx pgx.Tx, sensorID uuid.UUID) error {
	var id uuid.UUID
	err := tx.QueryRow(ctx, `SELECT id FROM sensors WHERE id = $1 FOR UPDATE`, sensorID).Scan(&id)
	if err == pgx.ErrNoRows {
		return fmt.Errorf("%w: %s", ErrUnknownSensor, sensorID)
	}
	if err != nil {
		return fmt.Errorf("failed to lock sensor row: %w", err)
	}
	return nil
}

// LatestReadingTx returns the sensor's most recent reading by insertion
// order, or nil if the sensor has no readings yet.
func (r *Repository) LatestReadingTx(ctx context.Context, tx pgx.Tx, sensorID uuid.UUID) (*db.Reading, error) {
	query := `
		SELECT id, sensor_id, occurred_at, raw_value, delta, anomaly_reason, received_at
		FROM readings
		WHERE sensor_id = $1
		ORDER BY id DESC
		LIMIT 1
	`

	var reading db.Reading
	err := tx.QueryRow(ctx, query, sensorID).Scan(
		&reading.ID,
		&reading.SensorID,
		&reading.OccurredAt,
		&reading.RawValue,
		&reading.Delta,
		&reading.AnomalyReason,
		&reading.ReceivedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest reading: %w", err)
	}

	return &reading, nil
}

// InsertReadingTx inserts a reading within a transaction and fills in
// its assigned id.
func (r *Repository) InsertReadingTx(ctx context.Context, tx pgx.Tx, reading *db.Reading) error {
	query := `
		INSERT INTO readings (sensor_id, occurred_at, raw_value, delta, anomaly_reason, received_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	err := tx.QueryRow(ctx, query,
		reading.SensorID,
		reading.OccurredAt,
		reading.RawValue,
		reading.Delta,
		reading.AnomalyReason,
		reading.ReceivedAt,
	).Scan(&reading.ID)
	if err != nil {
		return fmt.Errorf("failed to insert reading: %w", err)
	}

	return nil
}

// RecentDeltasTx returns the sensor's most recent deltas for spike detection
func (r *Repository) RecentDeltasTx(ctx context.Context, tx pgx.Tx, sensorID uuid.UUID, limit int) ([]decimal.Decimal, error) {
	query := `
		SELECT delta
		FROM readings
		WHERE sensor_id = $1 AND anomaly_reason IS NULL
		ORDER BY id DESC
		LIMIT $2
	`

	rows, err := tx.Query(ctx, query, sensorID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent deltas: %w", err)
	}
	defer rows.Close()

	var deltas []decimal.Decimal
	for rows.Next() {
		var d decimal.Decimal
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("failed to scan delta: %w", err)
		}
		deltas = append(deltas, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return deltas, nil
}

// UpsertDailyConsumptionTx folds a delta into the per-sensor daily cache
func (r *Repository) UpsertDailyConsumptionTx(ctx context.Context, tx pgx.Tx, sensorID uuid.UUID, day time.Time, delta decimal.Decimal) error {
	query := `
		INSERT INTO daily_consumption (sensor_id, day, total, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (sensor_id, day)
		DO UPDATE SET total = daily_consumption.total + EXCLUDED.total, updated_at = EXCLUDED.updated_at
	`

	_, err := tx.Exec(ctx, query, sensorID, day, delta, time.Now())
	if err != nil {
		return fmt.Errorf("failed to upsert daily consumption: %w", err)
	}

	return nil
}
