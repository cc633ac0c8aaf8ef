package publisher

import (
	"context"
	"fmt"
	"rail-hazard-monitor/internal/domain"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	exchangeName = "rail.events"
	queueName    = "speed_transitions"
)

type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitMQPublisher sends phase changes to a durable fanout exchange.
type RabbitMQPublisher struct {
	ch amqpChannel
}

// NewRabbitMQPublisher opens a channel and declares the exchange and the
// default consumer queue bound to it.
func NewRabbitMQPublisher(conn *amqp.Connection) (*RabbitMQPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchangeName, "fanout", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}

	if err := ch.QueueBind(queueName, "", exchangeName, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("bind queue: %w", err)
	}

	return &RabbitMQPublisher{ch: ch}, nil
}

func (p *RabbitMQPublisher) PublishTransition(ctx context.Context, e domain.TransitionEvent) error {
	body, err := encodeTransition(e)
	if err != nil {
		return fmt.Errorf("rabbitmq publish: %w", err)
	}

	err = p.ch.PublishWithContext(ctx, exchangeName, "", false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    e.EventID,
		Timestamp:    e.At,
		Type:         "speed.transition",
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("rabbitmq publish: vehicle %s: %w", e.VehicleID, err)
	}
	return nil
}

func (p *RabbitMQPublisher) Close() error {
	return p.ch.Close()
}
