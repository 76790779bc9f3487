package db

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Flow status literals stored in flow_control_states.status
const (
	StatusOn  = "on"
	StatusOff = "off"
)

// Sensor represents a registered water sensor
type Sensor struct {
	ID        uuid.UUID
	Name      string
	CreatedAt time.Time
}

// Reading represents one normalized sensor reading.
// The ID is a sequential key; "latest reading" queries order by it,
// so deltas are fixed against insertion order, not timestamp order.
type Reading struct {
	ID            int64
	SensorID      uuid.UUID
	OccurredAt    time.Time
	RawValue      decimal.Decimal
	Delta         decimal.Decimal
	AnomalyReason *string
	ReceivedAt    time.Time
}

// ConsumptionGoal is the residence-wide daily goal. At most one row exists.
type ConsumptionGoal struct {
	ID          uuid.UUID
	DailyLiters decimal.Decimal
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// FlowControlState is the per-calendar-day control record.
// The three boolean flags are sticky: they only move false->true
// within their day. A new day always starts a fresh row.
type FlowControlState struct {
	Day                 time.Time
	Status              string
	AutoShutoffOccurred bool
	UserOverrode        bool
	NotificationSent    bool
	UpdatedAt           time.Time
}

// NotificationRecipient is a registered alert email address
type NotificationRecipient struct {
	ID        uuid.UUID
	Email     string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
