package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/abkawan/atm-teller/internal/models"
	"github.com/streadway/amqp"
)

const (
	// queue for committed teller activity
	ActivityQueue = "atm_activity"
)

// handles RabbitMQ operations
type RabbitMQ struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   amqp.Queue
}

func NewRabbitMQ(uri string) (*RabbitMQ, error) {
	conn, err := amqp.Dial(uri)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}
	q, err := ch.QueueDeclare(
		ActivityQueue, // name
		true,          // durable
		false,         // delete when unused
		false,         // exclusive
		false,         // no-wait
		nil,           // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare a queue: %w", err)
	}

	return &RabbitMQ{
		conn:    conn,
		channel: ch,
		queue:   q,
	}, nil
}

func (r *RabbitMQ) Close() error {
	if err := r.channel.Close(); err != nil {
		return err
	}
	return r.conn.Close()
}

// publishes a committed history entry
func (r *RabbitMQ) PublishEntry(ctx context.Context, ev models.EntryEvent) error {
	msg, err := encodeEvent(ev)
	if err != nil {
		return err
	}

	if err := r.channel.Publish(
		"",            // exchange
		ActivityQueue, // routing key
		false,         // mandatory
		false,         // immediate
		msg,
	); err != nil {
		return fmt.Errorf("failed to publish a message: %w", err)
	}

	return nil
}

// consumes entry events until ctx is done or the broker closes the delivery
// channel. Messages stay unacknowledged until the receiver acks or nacks them.
func (r *RabbitMQ) ConsumeEntries(ctx context.Context) (<-chan models.EntryDelivery, error) {
	msgs, err := r.channel.Consume(
		ActivityQueue, // queue
		"",            // consumer
		false,         // auto-ack
		false,         // exclusive
		false,         // no-local
		false,         // no-wait
		nil,           // args
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register a consumer: %w", err)
	}

	deliveries := make(chan models.EntryDelivery)

	go func() {
		defer close(deliveries)

		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}

				d, err := newDelivery(msg)
				if err != nil {
					log.Printf("Dropping activity message: %v", err)
					msg.Reject(false) // Don't requeue
					continue
				}

				select {
				case deliveries <- d:
				case <-ctx.Done():
					msg.Nack(false, true)
					return
				}
			}
		}
	}()

	return deliveries, nil
}

func newDelivery(msg amqp.Delivery) (models.EntryDelivery, error) {
	ev, err := decodeEvent(msg.Body)
	if err != nil {
		return models.EntryDelivery{}, err
	}

	return models.EntryDelivery{
		Event: ev,
		Ack: func() error {
			return msg.Ack(false)
		},
		Nack: func(requeue bool) error {
			return msg.Nack(false, requeue)
		},
	}, nil
}

func encodeEvent(ev models.EntryEvent) (amqp.Publishing, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("failed to marshal entry event: %w", err)
	}

	return amqp.Publishing{
		ContentType:  "application/json",
		MessageId:    ev.Entry.ID,
		Timestamp:    ev.Entry.Timestamp,
		Type:         string(ev.Entry.Kind),
		Body:         body,
		DeliveryMode: amqp.Persistent, // make message persistent
	}, nil
}

func decodeEvent(body []byte) (models.EntryEvent, error) {
	var ev models.EntryEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return models.EntryEvent{}, fmt.Errorf("failed to unmarshal entry event: %w", err)
	}
	if ev.AccountNumber == "" || ev.Entry.ID == "" {
		return models.EntryEvent{}, fmt.Errorf("entry event missing account number or entry id")
	}
	return ev, nil
}
