package event

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

// AMQPPublisher publishes events to a durable topic exchange, routed by
// event type. Messages are persistent.
type AMQPPublisher struct {
	url      string
	exchange string
	log      *zap.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewAMQPPublisher(url, exchange string, log *zap.Logger) (*AMQPPublisher, error) {
	p := &AMQPPublisher{
		url:      url,
		exchange: exchange,
		log:      log.With(zap.String("publisher", "amqp")),
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

// connect must be called with mu held
func (p *AMQPPublisher) connect() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("rabbitmq channel: %w", err)
	}

	if err := ch.ExchangeDeclare(
		p.exchange, // name
		"topic",    // kind
		true,       // durable
		false,      // autoDelete
		false,      // internal
		false,      // noWait
		nil,        // args
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("rabbitmq exchange declare: %w", err)
	}

	p.conn = conn
	p.ch = ch
	return nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, evt BookingEvent) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    evt.BookingID + ":" + string(evt.Type),
		Timestamp:    time.Now().UTC(),
		Type:         string(evt.Type),
		Body:         body,
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.publish(ctx, evt.Type, msg)
	if errors.Is(err, amqp.ErrClosed) {
		p.log.Warn("RabbitMQ channel closed, reconnecting")
		if err = p.connect(); err == nil {
			err = p.publish(ctx, evt.Type, msg)
		}
	}
	if err != nil {
		p.log.Error("Failed to publish event",
			zap.Error(err),
			zap.String("type", string(evt.Type)),
			zap.String("booking_id", evt.BookingID),
		)
		return err
	}

	return nil
}

func (p *AMQPPublisher) publish(ctx context.Context, routingKey Type, msg amqp.Publishing) error {
	if p.ch == nil || p.ch.IsClosed() {
		return amqp.ErrClosed
	}
	return p.ch.PublishWithContext(ctx,
		p.exchange,         // exchange
		string(routingKey), // routing key
		false,              // mandatory
		false,              // immediate
		msg,
	)
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	if p.ch != nil {
		errs = append(errs, p.ch.Close())
	}
	if p.conn != nil {
		errs = append(errs, p.conn.Close())
	}
	p.ch, p.conn = nil, nil
	return errors.Join(errs...)
}
