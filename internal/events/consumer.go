package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Handler processes one event. A returned error rejects the message without
// requeueing it.
type Handler func(ctx context.Context, ev Event) error

// Consumer binds a durable queue to the event exchange and feeds deliveries to
// a Handler, reconnecting with backoff until its context ends.
type Consumer struct {
	url         string
	exchange    string
	queue       string
	routingKeys []string
	logger      *slog.Logger
}

func NewConsumer(url, exchange, queue string, logger *slog.Logger, routingKeys ...Type) *Consumer {
	keys := make([]string, 0, len(routingKeys))
	for _, k := range routingKeys {
		keys = append(keys, string(k))
	}
	if len(keys) == 0 {
		keys = []string{"#"}
	}
	return &Consumer{url: url, exchange: exchange, queue: queue, routingKeys: keys, logger: logger}
}

// Run blocks until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context, h Handler) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.logger.Warn("consumer dial failed", slog.String("error", err.Error()), slog.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn, h)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn("consume loop ended, reconnecting", slog.String("error", err.Error()))
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection, h Handler) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(20, 0, false); err != nil {
		c.logger.Warn("set qos failed", slog.String("error", err.Error()))
	}
	if err := declareExchange(ch, c.exchange); err != nil {
		return err
	}
	if _, err := ch.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	for _, key := range c.routingKeys {
		if err := ch.QueueBind(c.queue, key, c.exchange, false, nil); err != nil {
			return fmt.Errorf("queue bind %s: %w", key, err)
		}
	}

	msgs, err := ch.ConsumeWithContext(ctx, c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}
	c.logger.Info("consuming events", slog.String("queue", c.queue))

	for d := range msgs {
		if err := c.handle(ctx, d.Body, h); err != nil {
			c.logger.Error("handle event failed", slog.String("error", err.Error()))
			_ = d.Nack(false, false)
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

func (c *Consumer) handle(ctx context.Context, body []byte, h Handler) error {
	ev, err := Decode(body)
	if err != nil {
		return err
	}
	return h(ctx, ev)
}

// Decode parses a message body.
func Decode(body []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return Event{}, fmt.Errorf("unmarshal event: %w", err)
	}
	if ev.Type == "" {
		return Event{}, errors.New("event without type")
	}
	return ev, nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
