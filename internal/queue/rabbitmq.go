package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	// DefaultQueueName is the default queue name
	DefaultQueueName = "pantry_reminders"
	// DefaultDLQName is the default dead letter queue name
	DefaultDLQName = "pantry_reminders_dlq"
	// DefaultExchangeName is the default exchange name
	DefaultExchangeName = "pantry_jobs"
	// DefaultDelayedExchangeName is the default delayed exchange name (requires plugin)
	DefaultDelayedExchangeName = "pantry_jobs_delayed"

	routingKeyJobs = "jobs"
	routingKeyDLQ  = "dlq"
)

// RabbitMQQueue implements JobQueue using RabbitMQ
type RabbitMQQueue struct {
	conn                *amqp.Connection
	channel             *amqp.Channel
	mu                  sync.Mutex // guards channel
	queueName           string
	dlqName             string
	exchangeName        string
	delayedExchangeName string
	logger              *zap.Logger
}

var (
	_ JobQueue  = (*RabbitMQQueue)(nil)
	_ DLQPurger = (*RabbitMQQueue)(nil)
)

// NewRabbitMQQueue creates a new RabbitMQ queue
func NewRabbitMQQueue(amqpURL string, logger *zap.Logger) (*RabbitMQQueue, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	queue := &RabbitMQQueue{
		conn:                conn,
		channel:             ch,
		queueName:           DefaultQueueName,
		dlqName:             DefaultDLQName,
		exchangeName:        DefaultExchangeName,
		delayedExchangeName: DefaultDelayedExchangeName,
		logger:              logger,
	}

	if err := queue.setup(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to setup queues: %w", err)
	}

	return queue, nil
}

// exchange and binding describe the reminder topology declared on connect
type exchange struct {
	name     string
	kind     string
	args     amqp.Table
	optional bool // declare failures are logged, not returned
}

type binding struct {
	queue, key, exchange string
	optional             bool
}

func (q *RabbitMQQueue) exchanges() []exchange {
	return []exchange{
		{
			// rabbitmq_delayed_message_exchange plugin, needed for
			// reminders scheduled in the future
			name:     q.delayedExchangeName,
			kind:     "x-delayed-message",
			args:     amqp.Table{"x-delayed-type": "direct"},
			optional: true,
		},
		{name: q.exchangeName, kind: "direct"},
	}
}

func (q *RabbitMQQueue) queues() map[string]amqp.Table {
	return map[string]amqp.Table{
		q.dlqName: {},
		q.queueName: {
			"x-dead-letter-exchange":    q.exchangeName,
			"x-dead-letter-routing-key": routingKeyDLQ,
		},
	}
}

func (q *RabbitMQQueue) bindings() []binding {
	return []binding{
		{queue: q.dlqName, key: routingKeyDLQ, exchange: q.exchangeName},
		{queue: q.queueName, key: routingKeyJobs, exchange: q.exchangeName},
		{queue: q.queueName, key: routingKeyJobs, exchange: q.delayedExchangeName, optional: true},
	}
}

// setup declares the exchanges, the reminder queue and its dead-letter queue
func (q *RabbitMQQueue) setup() error {
	for _, ex := range q.exchanges() {
		err := q.channel.ExchangeDeclare(ex.name, ex.kind, true, false, false, false, ex.args)
		if err == nil {
			continue
		}
		if !ex.optional {
			return fmt.Errorf("failed to declare exchange %s: %w", ex.name, err)
		}
		q.logger.Warn("optional_exchange_unavailable", zap.String("exchange", ex.name), zap.Error(err))
		if err := q.reopenChannel(); err != nil {
			return err
		}
	}

	// The dead-letter queue must exist before the queue that routes to it
	for _, name := range []string{q.dlqName, q.queueName} {
		if _, err := q.channel.QueueDeclare(name, true, false, false, false, q.queues()[name]); err != nil {
			return fmt.Errorf("failed to declare queue %s: %w", name, err)
		}
	}

	for _, b := range q.bindings() {
		if err := q.channel.QueueBind(b.queue, b.key, b.exchange, false, nil); err != nil {
			if !b.optional {
				return fmt.Errorf("failed to bind %s to %s: %w", b.queue, b.exchange, err)
			}
			if err := q.reopenChannel(); err != nil {
				return err
			}
		}
	}
	return nil
}

// reopenChannel replaces the publishing channel after the broker closed it
// in response to a failed declaration
func (q *RabbitMQQueue) reopenChannel() error {
	if !q.channel.IsClosed() {
		return nil
	}
	ch, err := q.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to reopen channel: %w", err)
	}
	q.channel = ch
	return nil
}

// Enqueue adds a job to the queue
func (q *RabbitMQQueue) Enqueue(ctx context.Context, job *Job) error {
	jobJSON, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	publishing := amqp.Publishing{
		ContentType:  "application/json",
		Body:         jobJSON,
		DeliveryMode: amqp.Persistent,
		MessageId:    job.ID.String(),
		Timestamp:    time.Now(),
	}

	exchangeName := q.exchangeName
	if job.NotBefore != nil {
		if delay := time.Until(*job.NotBefore); delay > 0 {
			exchangeName = q.delayedExchangeName
			publishing.Headers = amqp.Table{
				"x-delay": delay.Milliseconds(),
			}
		}
	}

	// Message TTL only applies once the message reaches the queue, so it is
	// measured from NotBefore rather than from now.
	if job.NotAfter != nil {
		start := time.Now()
		if job.NotBefore != nil && job.NotBefore.After(start) {
			start = *job.NotBefore
		}
		if ttl := job.NotAfter.Sub(start); ttl > 0 {
			publishing.Expiration = fmt.Sprintf("%d", ttl.Milliseconds())
		}
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.channel.PublishWithContext(ctx, exchangeName, routingKeyJobs, false, false, publishing); err != nil {
		return fmt.Errorf("failed to publish job: %w", err)
	}

	return nil
}

// Consume returns a channel of messages from the queue using async delivery
func (q *RabbitMQQueue) Consume(ctx context.Context, prefetchCount int) (<-chan *Message, <-chan error, error) {
	// Separate channel for consumers
	consumeCh, err := q.conn.Channel()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create consumer channel: %w", err)
	}

	if err := consumeCh.Qos(prefetchCount, 0, false); err != nil {
		_ = consumeCh.Close()
		return nil, nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	deliveries, err := consumeCh.Consume(
		q.queueName,
		"",    // consumer tag (empty = auto-generate)
		false, // auto-ack (false = manual ack required)
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		_ = consumeCh.Close()
		return nil, nil, fmt.Errorf("failed to start consuming: %w", err)
	}

	msgChan := make(chan *Message, prefetchCount)
	errChan := make(chan error, 1)

	go func() {
		defer close(msgChan)
		defer close(errChan)
		defer func() { _ = consumeCh.Close() }()

		for {
			select {
			case <-ctx.Done():
				return
			case delivery, ok := <-deliveries:
				if !ok {
					errChan <- errors.New("delivery channel closed")
					return
				}

				var job Job
				if err := json.Unmarshal(delivery.Body, &job); err != nil {
					// Invalid message, send to DLQ
					_ = delivery.Nack(false, false)
					q.reportError(errChan, fmt.Errorf("failed to unmarshal job: %w", err))
					continue
				}

				if job.IsExpired() {
					// Past its delivery window, drop without requeue
					_ = delivery.Nack(false, false)
					continue
				}

				msg := &Message{
					Job:         &job,
					DeliveryTag: delivery.DeliveryTag,
					Channel:     consumeCh,
				}

				select {
				case <-ctx.Done():
					_ = delivery.Nack(false, true)
					return
				case msgChan <- msg:
				}
			}
		}
	}()

	return msgChan, errChan, nil
}

func (q *RabbitMQQueue) reportError(errChan chan<- error, err error) {
	select {
	case errChan <- err:
	default:
		q.logger.Warn("queue_error_dropped", zap.Error(err))
	}
}

// PurgeOlderThan acknowledges (and so discards) dead-lettered messages that
// were published more than retention ago. It stops at the first newer message.
func (q *RabbitMQQueue) PurgeOlderThan(ctx context.Context, retention time.Duration) (int, error) {
	cutoff := time.Now().Add(-retention)

	q.mu.Lock()
	defer q.mu.Unlock()

	purged := 0
	for {
		if err := ctx.Err(); err != nil {
			return purged, err
		}

		msg, ok, err := q.channel.Get(q.dlqName, false)
		if err != nil {
			return purged, fmt.Errorf("failed to get DLQ message: %w", err)
		}
		if !ok {
			return purged, nil
		}

		if !msg.Timestamp.IsZero() && msg.Timestamp.After(cutoff) {
			if err := msg.Nack(false, true); err != nil {
				return purged, fmt.Errorf("failed to requeue DLQ message: %w", err)
			}
			return purged, nil
		}

		if err := msg.Ack(false); err != nil {
			return purged, fmt.Errorf("failed to ack DLQ message: %w", err)
		}
		purged++
	}
}

// HealthCheck verifies the connection and channel are open
func (q *RabbitMQQueue) HealthCheck(_ context.Context) error {
	if q.conn == nil || q.conn.IsClosed() {
		return errors.New("rabbitmq connection closed")
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.channel == nil || q.channel.IsClosed() {
		return errors.New("rabbitmq channel closed")
	}
	return nil
}

// Close closes the queue connection
func (q *RabbitMQQueue) Close() error {
	var err error
	if q.channel != nil {
		err = q.channel.Close()
	}
	if q.conn != nil {
		if closeErr := q.conn.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	return err
}
