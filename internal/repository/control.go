package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/aglayrton/fluxo-agua/internal/db"
)

// WithState runs fn against the flow control record for one calendar day,
// holding the day's row lock for the whole read-evaluate-write sequence.
// The record is created lazily with status "on" and all flags false; a
// new day never inherits anything from the previous day's record. When fn
// reports a change the mutated record is written back before commit.
func (r *Repository) WithState(ctx context.Context, day time.Time, fn func(st *db.FlowControlState) (bool, error)) (*db.FlowControlState, error) {
	date, _ := r.dayRange(day)

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	insertQuery := `
		INSERT INTO flow_control_states (day, status, auto_shutoff_occurred, user_overrode, notification_sent, updated_at)
		VALUES ($1, $2, false, false, false, $3)
		ON CONFLICT (day) DO NOTHING
	`
	if _, err := tx.Exec(ctx, insertQuery, date, db.StatusOn, time.Now()); err != nil {
		return nil, fmt.Errorf("failed to initialize flow control state: %w", err)
	}

	selectQuery := `
		SELECT day, status, auto_shutoff_occurred, user_overrode, notification_sent, updated_at
		FROM flow_control_states
		WHERE day = $1
		FOR UPDATE
	`

	var st db.FlowControlState
	err = tx.QueryRow(ctx, selectQuery, date).Scan(
		&st.Day,
		&st.Status,
		&st.AutoShutoffOccurred,
		&st.UserOverrode,
		&st.NotificationSent,
		&st.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to lock flow control state: %w", err)
	}

	changed, err := fn(&st)
	if err != nil {
		return nil, err
	}

	if changed {
		updateQuery := `
			UPDATE flow_control_states
			SET status = $2, auto_shutoff_occurred = $3, user_overrode = $4, notification_sent = $5, updated_at = $6
			WHERE day = $1
		`
		st.UpdatedAt = time.Now()
		_, err = tx.Exec(ctx, updateQuery,
			date,
			st.Status,
			st.AutoShutoffOccurred,
			st.UserOverrode,
			st.NotificationSent,
			st.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to update flow control state: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit flow control state: %w", err)
	}

	return &st, nil
}

// CurrentGoal returns the configured daily goal, or ErrGoalNotFound
func (r *Repository) CurrentGoal(ctx context.Context) (*db.ConsumptionGoal, error) {
	query := `
		SELECT id, daily_liters, created_at, updated_at
		FROM consumption_goals
		ORDER BY created_at
		LIMIT 1
	`

	var goal db.ConsumptionGoal
	err := r.pool.QueryRow(ctx, query).Scan(&goal.ID, &goal.DailyLiters, &goal.CreatedAt, &goal.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, ErrGoalNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query goal: %w", err)
	}

	return &goal, nil
}

// CreateGoal creates the singleton consumption goal. The existence check
// and insert run in one transaction; the table additionally carries a
// storage-level guard against a second row.
func (r *Repository) CreateGoal(ctx context.Context, dailyLiters decimal.Decimal) (*db.ConsumptionGoal, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM consumption_goals)`).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check for existing goal: %w", err)
	}
	if exists {
		return nil, ErrGoalExists
	}

	query := `
		INSERT INTO consumption_goals (id, daily_liters, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		RETURNING id, daily_liters, created_at, updated_at
	`

	var goal db.ConsumptionGoal
	err = tx.QueryRow(ctx, query, uuid.New(), dailyLiters, time.Now()).Scan(
		&goal.ID,
		&goal.DailyLiters,
		&goal.CreatedAt,
		&goal.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create goal: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit goal: %w", err)
	}

	return &goal, nil
}

// UpdateGoal updates the singleton consumption goal, or ErrGoalNotFound
func (r *Repository) UpdateGoal(ctx context.Context, dailyLiters decimal.Decimal) (*db.ConsumptionGoal, error) {
	query := `
		UPDATE consumption_goals
		SET daily_liters = $1, updated_at = $2
		RETURNING id, daily_liters, created_at, updated_at
	`

	var goal db.ConsumptionGoal
	err := r.pool.QueryRow(ctx, query, dailyLiters, time.Now()).Scan(
		&goal.ID,
		&goal.DailyLiters,
		&goal.CreatedAt,
		&goal.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, ErrGoalNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update goal: %w", err)
	}

	return &goal, nil
}

// CreateRecipient registers a notification email address
func (r *Repository) CreateRecipient(ctx context.Context, email string) (*db.NotificationRecipient, error) {
	query := `
		INSERT INTO notification_recipients (id, email, active, created_at, updated_at)
		VALUES ($1, $2, true, $3, $3)
		ON CONFLICT (email) DO NOTHING
		RETURNING id, email, active, created_at, updated_at
	`

	var rec db.NotificationRecipient
	err := r.pool.QueryRow(ctx, query, uuid.New(), email, time.Now()).Scan(
		&rec.ID,
		&rec.Email,
		&rec.Active,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("%w: %q", ErrRecipientExists, email)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create recipient: %w", err)
	}

	return &rec, nil
}

// ListRecipients returns all registered recipients, newest first
func (r *Repository) ListRecipients(ctx context.Context) ([]db.NotificationRecipient, error) {
	query := `
		SELECT id, email, active, created_at, updated_at
		FROM notification_recipients
		ORDER BY created_at DESC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list recipients: %w", err)
	}
	defer rows.Close()

	var recipients []db.NotificationRecipient
	for rows.Next() {
		var rec db.NotificationRecipient
		if err := rows.Scan(&rec.ID, &rec.Email, &rec.Active, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan recipient: %w", err)
		}
		recipients = append(recipients, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return recipients, nil
}

// SetRecipientActive toggles a recipient's active flag
func (r *Repository) SetRecipientActive(ctx context.Context, id uuid.UUID, active bool) (*db.NotificationRecipient, error) {
	query := `
		UPDATE notification_recipients
		SET active = $2, updated_at = $3
		WHERE id = $1
		RETURNING id, email, active, created_at, updated_at
	`

	var rec db.NotificationRecipient
	err := r.pool.QueryRow(ctx, query, id, active, time.Now()).Scan(
		&rec.ID,
		&rec.Email,
		&rec.Active,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrRecipientNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update recipient: %w", err)
	}

	return &rec, nil
}

// DeleteRecipient removes a recipient
func (r *Repository) DeleteRecipient(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM notification_recipients WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete recipient: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrRecipientNotFound, id)
	}
	return nil
}

// ActiveRecipientEmails returns the current alert recipient list
func (r *Repository) ActiveRecipientEmails(ctx context.Context) ([]string, error) {
	query := `SELECT email FROM notification_recipients WHERE active ORDER BY created_at`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query active recipients: %w", err)
	}
	defer rows.Close()

	var emails []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, fmt.Errorf("failed to scan recipient email: %w", err)
		}
		emails = append(emails, email)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return emails, nil
}
