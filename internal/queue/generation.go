package queue

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// generationQueue carries one message per generation request to fulfil.
const generationQueue = "inventory.generation"

// GenerationJob is the wire format of a queued generation request.
type GenerationJob struct {
	GenerationRequestID string `json:"generation_request_id"`
}

func decodeJob(body []byte) (GenerationJob, error) {
	var job GenerationJob
	if err := json.Unmarshal(body, &job); err != nil {
		return GenerationJob{}, fmt.Errorf("decode generation job: %w", err)
	}
	if job.GenerationRequestID == "" {
		return GenerationJob{}, fmt.Errorf("generation job without request id")
	}
	return job, nil
}

// Publisher enqueues generation jobs.
type Publisher struct {
	conn *amqp.Connection
}

func NewPublisher(conn *amqp.Connection) *Publisher {
	return &Publisher{conn: conn}
}

func (p *Publisher) EnqueueGeneration(ctx context.Context, generationRequestID string) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	q, err := ch.QueueDeclare(generationQueue, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	body, err := json.Marshal(GenerationJob{GenerationRequestID: generationRequestID})
	if err != nil {
		return fmt.Errorf("encode generation job: %w", err)
	}

	err = ch.PublishWithContext(ctx,
		"", q.Name, false, false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish generation job: %w", err)
	}
	return nil
}

// Fulfiller completes a generation request; see app.Generator.Fulfil.
type Fulfiller interface {
	Fulfil(ctx context.Context, generationRequestID string) error
}

// Consumer drains the generation queue, fulfilling one request per message.
// Failed messages are requeued; the created-unit count keeps retried
// fulfilment exact.
type Consumer struct {
	conn      *amqp.Connection
	fulfiller Fulfiller
	logger    *zap.Logger
}

func NewConsumer(conn *amqp.Connection, fulfiller Fulfiller, logger *zap.Logger) *Consumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consumer{conn: conn, fulfiller: fulfiller, logger: logger}
}

// Run consumes until ctx is cancelled or the channel closes.
func (c *Consumer) Run(ctx context.Context) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	q, err := ch.QueueDeclare(generationQueue, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	msgs, err := ch.Consume(q.Name, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume queue: %w", err)
	}

	c.logger.Info("generation worker listening", zap.String("queue", q.Name))

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("generation worker stopping")
			return nil
		case d, ok := <-msgs:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			c.handle(ctx, d)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	job, err := decodeJob(d.Body)
	if err != nil {
		// Malformed messages can never succeed; drop them.
		c.logger.Error("dropping malformed generation job", zap.Error(err))
		_ = d.Nack(false, false)
		return
	}

	if err := c.fulfiller.Fulfil(ctx, job.GenerationRequestID); err != nil {
		c.logger.Error("generation job failed",
			zap.String("generation_request_id", job.GenerationRequestID),
			zap.Error(err),
		)
		_ = d.Nack(false, true)
		return
	}

	c.logger.Info("generation job completed",
		zap.String("generation_request_id", job.GenerationRequestID))
	_ = d.Ack(false)
}
