package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Connection wraps the shared broker connection. The consumer and the
// publisher each open their own channel on it.
type Connection struct {
	conn *amqp.Connection
}

// NewConnection dials the broker carrying gateway readings and outbound
// events. The connection is named after the service so it can be told
// apart in the broker's management UI.
func NewConnection(lc fx.Lifecycle, logger *zap.Logger, url, serviceName string) (*Connection, error) {
	conn, err := amqp.DialConfig(url, amqp.Config{
		Properties: amqp.Table{"connection_name": serviceName},
	})
	if err != nil {
		return nil, fmt.Errorf("broker is unreachable, gateway readings cannot be consumed and events cannot be published until RABBITMQ_URL points at a running broker: %w", err)
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("broker connection established", zap.String("connection_name", serviceName))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := conn.Close(); err != nil {
				logger.Error("failed to close broker connection", zap.Error(err))
				return err
			}
			logger.Info("broker connection closed")
			return nil
		},
	})

	return &Connection{conn: conn}, nil
}

// Channel opens a new channel on the shared connection
func (c *Connection) Channel() (*amqp.Channel, error) {
	return c.conn.Channel()
}
