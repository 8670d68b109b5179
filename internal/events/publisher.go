// Package events publishes completed sync runs to RabbitMQ.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/peteski22/donorpulse/internal/domain"
)

// Config holds the required configuration for creating a RabbitMQ publisher.
type Config struct {
	// Exchange is the exchange run events are published to.
	Exchange string

	// Logger is the structured logger for the publisher.
	Logger *slog.Logger

	// Queue is bound to the exchange so events survive until consumed.
	Queue string

	// RoutingKey is the routing key run events are published under.
	RoutingKey string

	// URL is the AMQP connection URL.
	URL string
}

// validate checks that all required Config fields are set.
func (c *Config) validate() error {
	var errs []error
	if c.Exchange == "" {
		errs = append(errs, errors.New("exchange is required"))
	}
	if c.Queue == "" {
		errs = append(errs, errors.New("queue is required"))
	}
	if c.RoutingKey == "" {
		errs = append(errs, errors.New("routing key is required"))
	}
	if c.URL == "" {
		errs = append(errs, errors.New("url is required"))
	}
	return errors.Join(errs...)
}

// RunMessage is the payload published for each completed sync run.
type RunMessage struct {
	// PublishedAt is when the event was emitted.
	PublishedAt time.Time `json:"published_at"`

	// Run is the completed run.
	Run domain.SyncRun `json:"run"`
}

// RabbitMQ publishes run events to a durable exchange. It satisfies the
// orchestrator's Publisher interface.
type RabbitMQ struct {
	channel    *amqp.Channel
	conn       *amqp.Connection
	exchange   string
	logger     *slog.Logger
	routingKey string
}

// NewRabbitMQ connects to the broker and declares the exchange, queue and
// binding run events flow through.
func NewRabbitMQ(cfg Config) (*RabbitMQ, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connecting to rabbitmq: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("opening channel: %w", err)
	}

	if err := channel.ExchangeDeclare(cfg.Exchange, "direct", true, false, false, false, nil); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("declaring exchange: %w", err)
	}

	queue, err := channel.QueueDeclare(cfg.Queue, true, false, false, false, nil)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("declaring queue: %w", err)
	}

	if err := channel.QueueBind(queue.Name, cfg.RoutingKey, cfg.Exchange, false, nil); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("binding queue: %w", err)
	}

	logger.Info("connected to rabbitmq", "exchange", cfg.Exchange, "queue", queue.Name)

	return &RabbitMQ{
		channel:    channel,
		conn:       conn,
		exchange:   cfg.Exchange,
		logger:     logger,
		routingKey: cfg.RoutingKey,
	}, nil
}

// RunCompleted publishes a finished run as a persistent JSON message.
func (r *RabbitMQ) RunCompleted(ctx context.Context, run domain.SyncRun) error {
	body, err := json.Marshal(RunMessage{
		PublishedAt: time.Now().UTC(),
		Run:         run,
	})
	if err != nil {
		return fmt.Errorf("marshalling run event: %w", err)
	}

	err = r.channel.PublishWithContext(ctx, r.exchange, r.routingKey, false, false, amqp.Publishing{
		Body:         body,
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
	})
	if err != nil {
		return fmt.Errorf("publishing run event: %w", err)
	}

	r.logger.Debug("published run event", "run_id", run.ID, "outcome", run.Outcome)

	return nil
}

// Close releases the channel and connection.
func (r *RabbitMQ) Close() error {
	var errs []error
	if err := r.channel.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing channel: %w", err))
	}
	if err := r.conn.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing connection: %w", err))
	}
	return errors.Join(errs...)
}
