package queue

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/streadway/amqp"
	"go.uber.org/zap"

	"github.com/unclebandit/autoinvite/internal/logging"
)

// AMQPQueue maps topics onto durable RabbitMQ queues.
type AMQPQueue struct {
	conn   *amqp.Connection
	ch     *amqp.Channel
	mu     sync.Mutex
	routes map[string]string
	log    *zap.Logger
}

// DialAMQP connects and declares one durable queue per routed topic.
func DialAMQP(url string, routes map[string]string, log *zap.Logger) (*AMQPQueue, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	for _, name := range routes {
		_, err := ch.QueueDeclare(
			name,
			true,  // durable
			false, // delete when unused
			false, // exclusive
			false, // no-wait
			nil,
		)
		if err != nil {
			ch.Close()
			conn.Close()
			return nil, fmt.Errorf("declare queue %s: %w", name, err)
		}
	}

	return &AMQPQueue{conn: conn, ch: ch, routes: routes, log: logging.OrNop(log)}, nil
}

func (q *AMQPQueue) queueFor(topic string) (string, error) {
	name, ok := q.routes[topic]
	if !ok {
		return "", fmt.Errorf("no queue routed for topic %s", topic)
	}
	return name, nil
}

// Publish sends payload as a persistent JSON message.
func (q *AMQPQueue) Publish(topic string, payload any) error {
	name, err := q.queueFor(topic)
	if err != nil {
		return err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", topic, err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	return q.ch.Publish("", name, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Type:         topic,
		Body:         body,
	})
}

// Subscribe consumes the topic's queue in the background. The handler gets
// a json.RawMessage. Failed deliveries are requeued once, then dropped.
func (q *AMQPQueue) Subscribe(topic string, handler func(payload any) error) error {
	name, err := q.queueFor(topic)
	if err != nil {
		return err
	}

	q.mu.Lock()
	msgs, err := q.ch.Consume(
		name,
		"",
		false, // autoAck = false for reliability
		false,
		false,
		false,
		nil,
	)
	q.mu.Unlock()
	if err != nil {
		return fmt.Errorf("consume %s: %w", name, err)
	}

	go func() {
		for d := range msgs {
			err := handler(json.RawMessage(d.Body))
			if err == nil {
				d.Ack(false)
				continue
			}
			q.log.Warn("delivery failed", zap.String("queue", name), zap.Bool("redelivered", d.Redelivered), zap.Error(err))
			if d.Redelivered {
				d.Nack(false, false)
				continue
			}
			d.Nack(false, true)
		}
		q.log.Info("consumer stopped", zap.String("queue", name))
	}()
	return nil
}

func (q *AMQPQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.ch.Close(); err != nil {
		q.conn.Close()
		return err
	}
	return q.conn.Close()
}

var _ Queue = (*AMQPQueue)(nil)
