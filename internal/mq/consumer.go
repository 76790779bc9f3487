package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// MessageHandler processes one raw reading message. A returned error
// dead-letters the message; nil acknowledges it.
type MessageHandler func(ctx context.Context, body []byte) error

// Consumer drains the gateway reading queue
type Consumer struct {
	channel       *amqp.Channel
	queue         string
	prefetchCount int
	logger        *zap.Logger
	handler       MessageHandler
}

// ConsumerConfig holds consumer configuration
type ConsumerConfig struct {
	Connection    *Connection
	Queue         string
	DLQQueue      string
	Exchange      string
	RoutingKey    string
	PrefetchCount int
	Logger        *zap.Logger
	Handler       MessageHandler
}

// NewConsumer opens a channel on the shared connection and declares the
// ingest topology: topic exchange, the reading queue dead-lettering into
// the DLQ, the DLQ itself, and the routing-key binding.
func NewConsumer(cfg ConsumerConfig) (*Consumer, error) {
	ch, err := cfg.Connection.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open consumer channel: %w", err)
	}

	if err := ch.Qos(cfg.PrefetchCount, 0, false); err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to set prefetch: %w", err)
	}

	if err := declareIngestTopology(ch, cfg); err != nil {
		ch.Close()
		return nil, err
	}

	return &Consumer{
		channel:       ch,
		queue:         cfg.Queue,
		prefetchCount: cfg.PrefetchCount,
		logger:        cfg.Logger,
		handler:       cfg.Handler,
	}, nil
}

func declareIngestTopology(ch *amqp.Channel, cfg ConsumerConfig) error {
	err := ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to declare ingest exchange: %w", err)
	}

	dlxArgs := amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": cfg.DLQQueue,
	}
	if _, err := ch.QueueDeclare(cfg.Queue, true, false, false, false, dlxArgs); err != nil {
		// A pre-existing queue declared without dead-lettering fails the
		// redeclare; fall back to its current arguments.
		cfg.Logger.Warn("reading queue exists with different arguments, redeclaring without dead-lettering",
			zap.Error(err))
		if _, err := ch.QueueDeclare(cfg.Queue, true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare reading queue: %w", err)
		}
	}

	if _, err := ch.QueueDeclare(cfg.DLQQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare dead-letter queue: %w", err)
	}

	if err := ch.QueueBind(cfg.Queue, cfg.RoutingKey, cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind reading queue: %w", err)
	}

	return nil
}

// Start begins draining the reading queue until ctx is cancelled
func (c *Consumer) Start(ctx context.Context) error {
	deliveries, err := c.channel.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to consume reading queue: %w", err)
	}

	c.logger.Info("draining reading queue",
		zap.String("queue", c.queue),
		zap.Int("prefetch", c.prefetchCount),
	)

	go func() {
		for {
			select {
			case <-ctx.Done():
				c.logger.Info("consumer stopping")
				return
			case msg, ok := <-deliveries:
				if !ok {
					c.logger.Warn("delivery channel closed by broker")
					return
				}
				c.handle(ctx, msg)
			}
		}
	}()

	return nil
}

// handle runs one delivery through the handler. Failures are not
// requeued: a reading that cannot be processed now will not process on
// replay either, so it goes straight to the dead-letter queue.
func (c *Consumer) handle(ctx context.Context, msg amqp.Delivery) {
	if err := c.handler(ctx, msg.Body); err != nil {
		c.logger.Error("reading message dead-lettered",
			zap.Error(err),
			zap.String("routing_key", msg.RoutingKey),
			zap.Int("body_size", len(msg.Body)),
		)
		if nackErr := msg.Nack(false, false); nackErr != nil {
			c.logger.Error("failed to nack reading message", zap.Error(nackErr))
		}
		return
	}

	if ackErr := msg.Ack(false); ackErr != nil {
		c.logger.Error("failed to ack reading message", zap.Error(ackErr))
	}
}

// Close closes the consumer channel
func (c *Consumer) Close() error {
	if c.channel != nil {
		return c.channel.Close()
	}
	return nil
}
