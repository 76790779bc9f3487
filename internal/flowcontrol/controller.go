package flowcontrol

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/aglayrton/fluxo-agua/internal/db"
	"github.com/aglayrton/fluxo-agua/internal/metrics"
	"github.com/aglayrton/fluxo-agua/internal/repository"
)

// ErrInvalidStatus is returned for a manual command with a status
// outside {on, off}.
var ErrInvalidStatus = errors.New(`flow status must be "on" or "off"`)

// StateStore runs a function against one day's flow control record with
// the whole read-evaluate-write sequence serialized per day.
type StateStore interface {
	WithState(ctx context.Context, day time.Time, fn func(st *db.FlowControlState) (bool, error)) (*db.FlowControlState, error)
}

// GoalSource supplies the singleton consumption goal. Absence is
// signaled with repository.ErrGoalNotFound.
type GoalSource interface {
	CurrentGoal(ctx context.Context) (*db.ConsumptionGoal, error)
}

// TotalSource supplies the residence-wide consumption for one day
type TotalSource interface {
	ResidenceTotal(ctx context.Context, day time.Time) (decimal.Decimal, error)
}

// Notifier dispatches the goal-exceeded alert. Called after the day's
// state change is committed; implementations swallow delivery failures.
type Notifier interface {
	Notify(ctx context.Context, day time.Time, total, goal decimal.Decimal)
}

// EventSink receives shutoff events after commit
type EventSink interface {
	ShutoffOccurred(ctx context.Context, day time.Time, total, goal decimal.Decimal)
}

// Controller is the per-day flow control state machine. Each calendar
// day owns a fresh record (status on, flags false); the sticky flags
// only move false to true within their day.
type Controller struct {
	states   StateStore
	goals    GoalSource
	totals   TotalSource
	notifier Notifier
	events   EventSink
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewController creates a new flow controller. events may be nil.
func NewController(
	states StateStore,
	goals GoalSource,
	totals TotalSource,
	notifier Notifier,
	events EventSink,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Controller {
	return &Controller{
		states:   states,
		goals:    goals,
		totals:   totals,
		notifier: notifier,
		events:   events,
		metrics:  m,
		logger:   logger,
	}
}

// Evaluate runs the automatic evaluation for one day, triggered after a
// reading for that day was persisted. Without a configured goal it is a
// no-op. The check-then-set of the sticky flags happens under the day's
// row lock; notification delivery and event publishing happen strictly
// after commit.
func (c *Controller) Evaluate(ctx context.Context, day time.Time) error {
	goal, err := c.goals.CurrentGoal(ctx)
	if errors.Is(err, repository.ErrGoalNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load consumption goal: %w", err)
	}

	total, err := c.totals.ResidenceTotal(ctx, day)
	if err != nil {
		return fmt.Errorf("failed to compute daily total: %w", err)
	}

	if total.LessThan(goal.DailyLiters) {
		return nil
	}

	var shutoff, notifyNeeded bool
	_, err = c.states.WithState(ctx, day, func(st *db.FlowControlState) (bool, error) {
		changed := false

		// The automatic shutoff never overrides a manual decision made
		// earlier the same day, and fires at most once per day.
		if !st.AutoShutoffOccurred && !st.UserOverrode {
			st.Status = db.StatusOff
			st.AutoShutoffOccurred = true
			shutoff = true
			changed = true
		}

		// Notification is driven purely by "exceeded today and not yet
		// notified", independent of whether the shutoff branch fired.
		if !st.NotificationSent {
			st.NotificationSent = true
			notifyNeeded = true
			changed = true
		}

		return changed, nil
	})
	if err != nil {
		return fmt.Errorf("failed to apply flow control evaluation: %w", err)
	}

	if shutoff {
		c.metrics.AutoShutoff()
		c.logger.Warn("automatic water shutoff",
			zap.String("day", day.Format("2006-01-02")),
			zap.String("total", total.StringFixed(2)),
			zap.String("goal", goal.DailyLiters.StringFixed(2)),
		)
		if c.events != nil {
			c.events.ShutoffOccurred(ctx, day, total, goal.DailyLiters)
		}
	}

	if notifyNeeded {
		c.metrics.NotificationDispatched()
		c.notifier.Notify(ctx, day, total, goal.DailyLiters)
	}

	return nil
}

// SetStatus applies a manual on/off command for the day. It always wins
// over automatic re-evaluation for the remainder of that day.
func (c *Controller) SetStatus(ctx context.Context, day time.Time, status string) (*db.FlowControlState, error) {
	if status != db.StatusOn && status != db.StatusOff {
		return nil, fmt.Errorf("%w: got %q", ErrInvalidStatus, status)
	}

	st, err := c.states.WithState(ctx, day, func(st *db.FlowControlState) (bool, error) {
		st.Status = status
		st.UserOverrode = true
		return true, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to apply manual status: %w", err)
	}

	c.logger.Info("manual flow status applied",
		zap.String("day", day.Format("2006-01-02")),
		zap.String("status", status),
	)

	return st, nil
}

// Status returns the day's record unmodified, creating it if absent
func (c *Controller) Status(ctx context.Context, day time.Time) (*db.FlowControlState, error) {
	st, err := c.states.WithState(ctx, day, func(st *db.FlowControlState) (bool, error) {
		return false, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load flow control state: %w", err)
	}
	return st, nil
}
