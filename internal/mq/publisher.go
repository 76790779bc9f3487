package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ShutoffRoutingKey is the routing key of automatic shutoff events
const ShutoffRoutingKey = "water.flow.shutoff"

// Publisher handles event publishing to RabbitMQ
type Publisher struct {
	conn     *Connection
	channel  *amqp.Channel
	exchange string
	logger   *zap.Logger
}

// NewPublisher creates a new RabbitMQ publisher
func NewPublisher(conn *Connection, exchange string, logger *zap.Logger) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}

	// Declare exchange
	err = ch.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &Publisher{
		conn:     conn,
		channel:  ch,
		exchange: exchange,
		logger:   logger,
	}, nil
}

// ReadingAcceptedEvent is published after a reading commits
type ReadingAcceptedEvent struct {
	SensorID      string  `json:"sensor_id"`
	RawValue      string  `json:"raw_value"`
	Delta         string  `json:"delta"`
	OccurredAt    string  `json:"occurred_at"`
	AnomalyReason *string `json:"anomaly_reason,omitempty"`
}

// FlowShutoffEvent is published after an automatic shutoff commits
type FlowShutoffEvent struct {
	Day   string `json:"day"`
	Total string `json:"total"`
	Goal  string `json:"goal"`
}

// PublishReadingAccepted publishes a processed reading event
func (p *Publisher) PublishReadingAccepted(ctx context.Context, event ReadingAcceptedEvent, routingKey string) error {
	if err := p.publish(ctx, event, routingKey); err != nil {
		return err
	}

	p.logger.Debug("published reading accepted event",
		zap.String("routing_key", routingKey),
		zap.String("sensor_id", event.SensorID),
	)

	return nil
}

// ShutoffOccurred publishes an automatic shutoff event. Publish failures
// are logged and swallowed: the shutoff is already committed.
func (p *Publisher) ShutoffOccurred(ctx context.Context, day time.Time, total, goal decimal.Decimal) {
	event := FlowShutoffEvent{
		Day:   day.Format("2006-01-02"),
		Total: total.StringFixed(2),
		Goal:  goal.StringFixed(2),
	}

	if err := p.publish(ctx, event, ShutoffRoutingKey); err != nil {
		p.logger.Error("failed to publish shutoff event",
			zap.Error(err),
			zap.String("day", event.Day),
		)
		return
	}

	p.logger.Info("published shutoff event", zap.String("day", event.Day))
}

func (p *Publisher) publish(ctx context.Context, event interface{}, routingKey string) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = p.channel.PublishWithContext(
		ctx,
		p.exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

// Close closes the publisher channel
func (p *Publisher) Close() error {
	if p.channel != nil {
		return p.channel.Close()
	}
	return nil
}
