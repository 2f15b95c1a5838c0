// Package rabbitmq publishes catalog events and carries image cleanup jobs.
package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	amqp "github.com/streadway/amqp"
)

const (
	// ProductEventsQueue receives product lifecycle events.
	ProductEventsQueue = "product_events"
	// ImageCleanupQueue receives image references whose deletion failed.
	ImageCleanupQueue = "image_cleanup"
	// ImageCleanupRetryQueue holds rescheduled cleanup jobs until their
	// per-message TTL expires, then dead-letters them into ImageCleanupQueue.
	ImageCleanupRetryQueue = "image_cleanup.retry"
)

// queueArgs lists the declared queues and their arguments.
var queueArgs = map[string]amqp.Table{
	ProductEventsQueue: nil,
	ImageCleanupQueue:  nil,
	ImageCleanupRetryQueue: {
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": ImageCleanupQueue,
	},
}

// Client holds the RabbitMQ connection and channel.
type Client struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	logger  *slog.Logger
	// amqp channels are not safe for concurrent publishing.
	mu sync.Mutex
}

// Config holds RabbitMQ connection details.
type Config struct {
	URL string
}

// ImageCleanupJob asks the janitor to delete an orphaned image.
type ImageCleanupJob struct {
	Image     string    `json:"image"`
	Reason    string    `json:"reason"`
	Attempt   int       `json:"attempt"`
	CreatedAt time.Time `json:"created_at"`
}

// NewClient connects to RabbitMQ, opens a channel and declares its queues.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	for _, queue := range []string{ProductEventsQueue, ImageCleanupQueue, ImageCleanupRetryQueue} {
		if _, err := ch.QueueDeclare(
			queue,
			true,  // durable
			false, // delete when unused
			false, // exclusive
			false, // no-wait
			queueArgs[queue],
		); err != nil {
			ch.Close()
			conn.Close()
			return nil, fmt.Errorf("failed to declare %s: %w", queue, err)
		}
	}

	logger.Info("RabbitMQ client connected",
		slog.String("queues", ProductEventsQueue+","+ImageCleanupQueue+","+ImageCleanupRetryQueue))

	return &Client{
		conn:    conn,
		channel: ch,
		logger:  logger,
	}, nil
}

// Close closes the RabbitMQ connection and channel.
func (c *Client) Close() error {
	var errs []error
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close channel: %w", err))
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close connection: %w", err))
		}
	}
	return errors.Join(errs...)
}

// PublishProductEvent publishes a JSON-encoded product event.
func (c *Client) PublishProductEvent(ctx context.Context, event any) error {
	return c.publish(ctx, ProductEventsQueue, event, "")
}

// PublishImageCleanup queues an image for deletion by the janitor.
func (c *Client) PublishImageCleanup(ctx context.Context, job ImageCleanupJob) error {
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	return c.publish(ctx, ImageCleanupQueue, job, "")
}

// RetryImageCleanup parks job in the retry queue. The broker moves it back
// to ImageCleanupQueue once delay has passed.
func (c *Client) RetryImageCleanup(ctx context.Context, job ImageCleanupJob, delay time.Duration) error {
	return c.publish(ctx, ImageCleanupRetryQueue, job, expiration(delay))
}

// expiration formats delay as a per-message TTL in milliseconds.
func expiration(delay time.Duration) string {
	ms := delay.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	return strconv.FormatInt(ms, 10)
}

func (c *Client) publish(ctx context.Context, queue string, payload any, ttl string) error {
	if c.channel == nil {
		return errors.New("RabbitMQ channel is not available")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal message for %s: %w", queue, err)
	}

	c.mu.Lock()
	err = c.channel.Publish(
		"",    // default exchange
		queue, // routing key
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Expiration:   ttl,
		})
	c.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", queue, err)
	}

	c.logger.DebugContext(ctx, "message published", slog.String("queue", queue), slog.Int("bytes", len(body)))
	return nil
}

// CleanupHandler processes one cleanup job. A returned error requeues the
// message unless the job is malformed.
type CleanupHandler func(ctx context.Context, job ImageCleanupJob) error

// ConsumeImageCleanup delivers cleanup jobs to handler until ctx is done.
// It returns once the consumer is registered.
func (c *Client) ConsumeImageCleanup(ctx context.Context, handler CleanupHandler) error {
	if c.channel == nil {
		return errors.New("RabbitMQ channel is not available for consumption")
	}

	c.mu.Lock()
	msgs, err := c.channel.Consume(
		ImageCleanupQueue,
		"",    // consumer tag
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	c.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				c.handleDelivery(ctx, msg, handler)
			}
		}
	}()

	return nil
}

func (c *Client) handleDelivery(ctx context.Context, msg amqp.Delivery, handler CleanupHandler) {
	var job ImageCleanupJob
	if err := json.Unmarshal(msg.Body, &job); err != nil || job.Image == "" {
		c.logger.WarnContext(ctx, "dropping malformed cleanup job", slog.Uint64("tag", msg.DeliveryTag))
		if nackErr := msg.Nack(false, false); nackErr != nil {
			c.logger.ErrorContext(ctx, "nack failed", slog.Any("error", nackErr))
		}
		return
	}

	if err := handler(ctx, job); err != nil {
		c.logger.WarnContext(ctx, "cleanup job failed, requeueing",
			slog.String("image", job.Image), slog.Any("error", err))
		if nackErr := msg.Nack(false, true); nackErr != nil {
			c.logger.ErrorContext(ctx, "nack failed", slog.Any("error", nackErr))
		}
		return
	}

	if ackErr := msg.Ack(false); ackErr != nil {
		c.logger.ErrorContext(ctx, "ack failed", slog.Any("error", ackErr))
	}
}
