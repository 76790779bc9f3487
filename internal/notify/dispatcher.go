package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// RecipientSource supplies the current list of active alert addresses
type RecipientSource interface {
	ActiveRecipientEmails(ctx context.Context) ([]string, error)
}

// Sender delivers one message to a list of recipients
type Sender interface {
	Send(subject, body string, recipients []string) error
}

// Dispatcher builds and sends the goal-exceeded alert. The at-most-once
// per day guarantee comes from the notification_sent sticky flag, which
// the flow controller sets transactionally before calling Notify.
type Dispatcher struct {
	recipients RecipientSource
	sender     Sender
	logger     *zap.Logger
}

// NewDispatcher creates a new notification dispatcher
func NewDispatcher(recipients RecipientSource, sender Sender, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		recipients: recipients,
		sender:     sender,
		logger:     logger,
	}
}

// Notify sends the daily consumption alert. Delivery failure is logged
// and swallowed: the shutoff decision was committed before this call and
// must stand regardless of mail transport health. An empty recipient
// list is not a failure.
func (d *Dispatcher) Notify(ctx context.Context, day time.Time, total, goal decimal.Decimal) {
	emails, err := d.recipients.ActiveRecipientEmails(ctx)
	if err != nil {
		d.logger.Error("failed to load alert recipients", zap.Error(err))
		return
	}
	if len(emails) == 0 {
		d.logger.Info("no active alert recipients, skipping notification")
		return
	}

	subject, body := buildAlert(day, total, goal)
	if err := d.sender.Send(subject, body, emails); err != nil {
		d.logger.Error("failed to deliver alert email",
			zap.Error(err),
			zap.Int("recipients", len(emails)),
		)
		return
	}

	d.logger.Info("alert email sent",
		zap.Int("recipients", len(emails)),
		zap.String("day", day.Format("2006-01-02")),
	)
}

func buildAlert(day time.Time, total, goal decimal.Decimal) (subject, body string) {
	overage := total.Sub(goal)

	// A zero goal is a configuration error upstream; goals are validated
	// positive at creation. Skip the percentage rather than divide by zero.
	percentage := "n/a"
	if goal.IsPositive() {
		percentage = overage.Div(goal).Mul(decimal.NewFromInt(100)).StringFixed(1) + "%"
	}

	subject = fmt.Sprintf("Alert: daily water consumption goal exceeded - %s", day.Format("02/01/2006"))
	body = fmt.Sprintf(`This is an automatic alert from the water flow control system.

Consumption summary:

- Date: %s
- Daily goal: %s liters
- Current consumption: %s liters
- Overage: %s liters (%s)

The water consumption exceeded the configured daily goal and the supply
was automatically shut off unless a manual override happened earlier today.
The flow can be turned back on through the control endpoint.

This is an automated message, do not reply.
`,
		day.Format("02/01/2006"),
		goal.StringFixed(2),
		total.StringFixed(2),
		overage.StringFixed(2),
		percentage,
	)

	return subject, body
}
