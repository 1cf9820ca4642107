package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"hashtag-ingest/internal/domain"
	"hashtag-ingest/internal/infra/metrics"
)

// RabbitIngestQueue реализует очередь задач поверх AMQP.
type RabbitIngestQueue struct {
	conn      *amqp.Connection
	ch        *amqp.Channel
	queue     string
	deliverCh <-chan amqp.Delivery
}

// NewRabbitIngestQueue подключается к RabbitMQ и объявляет
// долговечную очередь.
func NewRabbitIngestQueue(amqpURL, queue string) (*RabbitIngestQueue, error) {
	if amqpURL == "" {
		return nil, errors.New("amqp url is empty")
	}
	if queue == "" {
		return nil, errors.New("queue name is empty")
	}
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("set qos: %w", err)
	}
	return &RabbitIngestQueue{conn: conn, ch: ch, queue: queue}, nil
}

// Enqueue публикует задачу в очередь.
func (q *RabbitIngestQueue) Enqueue(ctx context.Context, job domain.IngestJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	start := time.Now()
	err = q.ch.PublishWithContext(ctx, "", q.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         payload,
	})
	metrics.ObserveNetworkRequest("rabbitmq", "publish", q.queue, start, err)
	if err != nil {
		return fmt.Errorf("publish job: %w", err)
	}
	return nil
}

// Receive блокирующе читает задачу. Подтверждение с success=false
// возвращает сообщение в очередь через nack+requeue.
func (q *RabbitIngestQueue) Receive(ctx context.Context) (domain.IngestJob, domain.IngestAckFunc, error) {
	if q.deliverCh == nil {
		deliveries, err := q.ch.Consume(q.queue, "", false, false, false, false, nil)
		if err != nil {
			return domain.IngestJob{}, nil, fmt.Errorf("consume: %w", err)
		}
		q.deliverCh = deliveries
	}
	select {
	case <-ctx.Done():
		return domain.IngestJob{}, nil, ctx.Err()
	case delivery, ok := <-q.deliverCh:
		if !ok {
			return domain.IngestJob{}, nil, errors.New("amqp: канал доставки закрыт")
		}
		var job domain.IngestJob
		if err := json.Unmarshal(delivery.Body, &job); err != nil {
			_ = delivery.Nack(false, false)
			return domain.IngestJob{}, nil, fmt.Errorf("decode job: %w", err)
		}
		ack := func(success bool) error {
			if success {
				return delivery.Ack(false)
			}
			return delivery.Nack(false, true)
		}
		return job, ack, nil
	}
}

// Close закрывает канал и соединение.
func (q *RabbitIngestQueue) Close() error {
	if err := q.ch.Close(); err != nil {
		_ = q.conn.Close()
		return err
	}
	return q.conn.Close()
}
