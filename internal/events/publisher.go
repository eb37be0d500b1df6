package events

import (
	"context"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"familytasks/internal/models"
)

// Publisher delivers one outbox event to downstream consumers
type Publisher interface {
	Publish(ctx context.Context, event models.OutboxEvent) error
}

// session is one broker connection with a channel in confirm mode
type session interface {
	Publish(ctx context.Context, routingKey string, msg amqp.Publishing) error
	IsClosed() bool
	Close() error
}

type dialFunc func() (session, error)

// AMQPPublisher publishes events to a topic exchange, routed by event type.
// Publish returns only after the broker confirms the message. A lost
// connection is dropped and re-dialed on the next Publish.
type AMQPPublisher struct {
	mu      sync.Mutex
	dial    dialFunc
	session session
}

// NewAMQPPublisher dials the broker and declares a durable topic exchange
func NewAMQPPublisher(amqpURL, exchange string) (*AMQPPublisher, error) {
	return newPublisher(func() (session, error) {
		s, err := dialSession(amqpURL, exchange)
		if err != nil {
			return nil, err
		}
		return s, nil
	})
}

func newPublisher(dial dialFunc) (*AMQPPublisher, error) {
	s, err := dial()
	if err != nil {
		return nil, err
	}
	return &AMQPPublisher{dial: dial, session: s}, nil
}

// Publish sends the event payload with the event type as routing key and
// waits for the broker's confirmation
func (p *AMQPPublisher) Publish(ctx context.Context, event models.OutboxEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.session == nil || p.session.IsClosed() {
		if p.session != nil {
			p.session.Close()
			p.session = nil
		}
		s, err := p.dial()
		if err != nil {
			return fmt.Errorf("failed to reconnect to broker: %w", err)
		}
		p.session = s
	}

	err := p.session.Publish(ctx, event.Type, toPublishing(event))
	if err != nil && (errors.Is(err, amqp.ErrClosed) || p.session.IsClosed()) {
		p.session.Close()
		p.session = nil
	}
	return err
}

// Close closes the current session, if any
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.session == nil {
		return nil
	}
	err := p.session.Close()
	p.session = nil
	return err
}

type amqpSession struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
}

func dialSession(amqpURL, exchange string) (*amqpSession, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}
	if err := ch.Confirm(false); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to enable publisher confirms: %w", err)
	}

	return &amqpSession{
		conn:     conn,
		channel:  ch,
		exchange: exchange,
	}, nil
}

func (s *amqpSession) Publish(ctx context.Context, routingKey string, msg amqp.Publishing) error {
	confirm, err := s.channel.PublishWithDeferredConfirmWithContext(ctx, s.exchange, routingKey, false, false, msg)
	if err != nil {
		return err
	}

	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return err
	}
	if !acked {
		return fmt.Errorf("broker rejected message %s", msg.MessageId)
	}
	return nil
}

func (s *amqpSession) IsClosed() bool {
	return s.channel.IsClosed() || s.conn.IsClosed()
}

// Close closes the channel and the connection
func (s *amqpSession) Close() error {
	if err := s.channel.Close(); err != nil {
		s.conn.Close()
		return err
	}
	return s.conn.Close()
}

func toPublishing(event models.OutboxEvent) amqp.Publishing {
	return amqp.Publishing{
		ContentType:  "application/json",
		MessageId:    event.ID,
		Type:         event.Type,
		Timestamp:    event.CreatedAt,
		DeliveryMode: amqp.Persistent,
		Headers:      amqp.Table{"family_id": event.FamilyID},
		Body:         event.Payload,
	}
}
