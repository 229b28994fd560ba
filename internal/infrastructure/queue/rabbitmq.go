// Package queue carries resolution events from the API to the archive worker.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/hszk-dev/vidproxy/internal/domain/repository"
	"github.com/hszk-dev/vidproxy/internal/infrastructure/metrics"
)

const (
	eventType        = "video.resolved"
	retryCountHeader = "x-retry-count"
	contentTypeJSON  = "application/json"

	// requeueTimeout bounds the retry publish, which must outlive a cancelled consumer ctx.
	requeueTimeout = 5 * time.Second
)

// ClientConfig configures the RabbitMQ client.
type ClientConfig struct {
	URL      string
	Queue    string // declared durable; events go through the default exchange
	Prefetch int    // unacked deliveries per consumer; applied only when consuming
}

// DefaultClientConfig keeps one archive download in flight per worker.
func DefaultClientConfig(url string) ClientConfig {
	return ClientConfig{
		URL:      url,
		Queue:    "video_resolved",
		Prefetch: 1,
	}
}

type amqpConnection interface {
	Channel() (amqpChannel, error)
	Close() error
}

type amqpChannel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Qos(prefetchCount, prefetchSize int, global bool) error
	Close() error
}

// dialedConnection narrows *amqp.Connection to amqpConnection.
type dialedConnection struct {
	*amqp.Connection
}

func (c dialedConnection) Channel() (amqpChannel, error) {
	return c.Connection.Channel()
}

// Client publishes and consumes VideoResolvedEvents on one channel.
type Client struct {
	conn    amqpConnection
	channel amqpChannel
	config  ClientConfig
}

var _ repository.MessageQueue = (*Client)(nil)

// NewClient dials the broker and declares the event queue.
func NewClient(ctx context.Context, cfg ClientConfig) (*Client, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	return newClient(dialedConnection{conn}, cfg)
}

func newClient(conn amqpConnection, cfg ClientConfig) (*Client, error) {
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if _, err := ch.QueueDeclare(cfg.Queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue %q: %w", cfg.Queue, err)
	}

	return &Client{conn: conn, channel: ch, config: cfg}, nil
}

// PublishVideoResolved sends a persistent event. The retry count travels both
// in the body and as a header so it is visible in the management UI.
func (c *Client) PublishVideoResolved(ctx context.Context, event repository.VideoResolvedEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  contentTypeJSON,
		Type:         eventType,
		MessageId:    event.Filename + "#" + strconv.Itoa(event.RetryCount),
		Timestamp:    time.Now().UTC(),
		Headers:      amqp.Table{retryCountHeader: int32(event.RetryCount)},
		Body:         body,
	}
	if err := c.channel.PublishWithContext(ctx, "", c.config.Queue, false, false, msg); err != nil {
		metrics.QueueEventsTotal.WithLabelValues(metrics.QueuePublishFailed).Inc()
		return fmt.Errorf("publish event: %w", err)
	}

	metrics.QueueEventsTotal.WithLabelValues(metrics.QueuePublished).Inc()
	return nil
}

// ConsumeVideoResolved hands each event to handler until ctx ends or the
// broker closes the delivery channel.
//
// A handler error requeues the event as a new message with RetryCount+1 and
// acks the original. Redelivering the original with Nack(requeue=true) would
// keep the old count and never reach the worker's retry cap.
func (c *Client) ConsumeVideoResolved(ctx context.Context, handler func(ctx context.Context, event repository.VideoResolvedEvent) error) error {
	if c.config.Prefetch > 0 {
		if err := c.channel.Qos(c.config.Prefetch, 0, false); err != nil {
			return fmt.Errorf("set prefetch: %w", err)
		}
	}

	deliveries, err := c.channel.Consume(c.config.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("register consumer: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed by broker")
			}
			c.handle(ctx, d, handler)
		}
	}
}

func (c *Client) handle(ctx context.Context, d amqp.Delivery, handler func(ctx context.Context, event repository.VideoResolvedEvent) error) {
	var event repository.VideoResolvedEvent
	if err := json.Unmarshal(d.Body, &event); err != nil || event.Filename == "" {
		slog.Warn("dropping malformed event", slog.String("message_id", d.MessageId))
		metrics.QueueEventsTotal.WithLabelValues(metrics.QueueMalformed).Inc()
		_ = d.Nack(false, false)
		return
	}

	handlerErr := handler(ctx, event)
	if handlerErr == nil {
		metrics.QueueEventsTotal.WithLabelValues(metrics.QueueAcked).Inc()
		_ = d.Ack(false)
		return
	}

	event.RetryCount++
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), requeueTimeout)
	defer cancel()
	if err := c.PublishVideoResolved(pubCtx, event); err != nil {
		slog.Error("dropping event, requeue failed",
			slog.String("filename", event.Filename),
			slog.Int("retry_count", event.RetryCount),
			slog.String("handler_error", handlerErr.Error()),
			slog.String("error", err.Error()),
		)
		metrics.QueueEventsTotal.WithLabelValues(metrics.QueueDropped).Inc()
		_ = d.Nack(false, false)
		return
	}
	metrics.QueueEventsTotal.WithLabelValues(metrics.QueueRetried).Inc()
	_ = d.Ack(false)
}

// Close closes the channel, then the connection.
func (c *Client) Close() error {
	var errs []error
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close channel: %w", err))
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close connection: %w", err))
		}
	}
	return errors.Join(errs...)
}
