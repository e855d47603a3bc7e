package rabbitmq

import (
	"context"
	"fmt"
	"log"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"

	"chathive-service/internal/observability"
)

const threadRoutingPrefix = "thread."

// BroadcastFabric carries thread events between service instances through a
// topic exchange. Every instance publishes with its own origin id and binds
// an exclusive queue on thread.#; consumed events that carry the local origin
// id are dropped, since the local hub already delivered them.
type BroadcastFabric struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	originID string
}

// NewBroadcastFabric connects to RabbitMQ and declares the broadcast exchange.
func NewBroadcastFabric(amqpURL, exchange, originID string) (*BroadcastFabric, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, "topic", false, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	log.Printf("broadcast fabric connected exchange=%s origin=%s", exchange, originID)
	return &BroadcastFabric{conn: conn, ch: ch, exchange: exchange, originID: originID}, nil
}

// Publish sends an already-marshaled event frame for a thread to all
// instances.
func (f *BroadcastFabric) Publish(ctx context.Context, threadID string, payload []byte) error {
	err := f.ch.PublishWithContext(ctx, f.exchange, threadRoutingPrefix+threadID, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        payload,
		Headers:     amqp.Table{"x-origin": f.originID},
	})
	if err != nil {
		observability.IncAMQPPublishError()
	}
	return err
}

// Consume binds an exclusive queue and delivers remote-origin events to the
// handler until the channel closes.
func (f *BroadcastFabric) Consume(handler func(threadID string, payload []byte)) error {
	queue, err := f.ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	if err := f.ch.QueueBind(queue.Name, threadRoutingPrefix+"#", f.exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	deliveries, err := f.ch.Consume(queue.Name, "", true, true, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	go func() {
		for d := range deliveries {
			if origin, _ := d.Headers["x-origin"].(string); origin == f.originID {
				continue
			}
			threadID := strings.TrimPrefix(d.RoutingKey, threadRoutingPrefix)
			handler(threadID, d.Body)
		}
		log.Printf("broadcast fabric consumer stopped")
	}()
	return nil
}

func (f *BroadcastFabric) Close() error {
	if f.ch != nil {
		_ = f.ch.Close()
	}
	if f.conn != nil {
		return f.conn.Close()
	}
	return nil
}
