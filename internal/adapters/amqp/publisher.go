// Package amqpad publishes booking lifecycle events to RabbitMQ. Each event
// type goes to a durable queue of the same name on the default exchange.
package amqpad

import (
	"context"
	crand "crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"

	"jetstay/internal/adapters/observability"
	"jetstay/internal/domain"
)

var Queues = []string{"booking.confirmed", "booking.cancelled"}

// channel is the part of *amqp.Channel the publisher uses.
type channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type dialFunc func(url string) (channel, io.Closer, error)

func dialAMQP(url string) (channel, io.Closer, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	return ch, conn, nil
}

// Publisher keeps one connection and channel open and redials after a
// failed publish.
type Publisher struct {
	url      string
	attempts int
	dial     dialFunc

	mu   sync.Mutex
	ch   channel
	conn io.Closer
}

func New(url string) *Publisher {
	return &Publisher{url: url, attempts: 3, dial: dialAMQP}
}

func (p *Publisher) Publish(ctx context.Context, ev domain.BookingEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", ev.Type, err)
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    fmt.Sprintf("%s:%d", ev.Type, ev.BookingID),
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}

	start := time.Now()
	var lastErr error
	for i := 0; i < p.attempts; i++ {
		if lastErr = p.publishOnce(ctx, ev.Type, msg); lastErr == nil {
			observability.ObserveExternal("rabbitmq", ev.Type, 200, time.Since(start))
			return nil
		}
		log.Debug().Err(lastErr).Int("attempt", i+1).Str("queue", ev.Type).Msg("publish retry")
		if i < p.attempts-1 && !sleepCtx(ctx, backoff(i)) {
			break
		}
	}
	observability.ObserveExternal("rabbitmq", ev.Type, 503, time.Since(start))
	if ctx.Err() != nil {
		return errors.Join(lastErr, ctx.Err())
	}
	return lastErr
}

func (p *Publisher) publishOnce(ctx context.Context, queue string, msg amqp.Publishing) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch == nil {
		if err := p.connectLocked(); err != nil {
			return err
		}
	}
	if err := p.ch.PublishWithContext(ctx, "", queue, false, false, msg); err != nil {
		p.resetLocked()
		return err
	}
	return nil
}

func (p *Publisher) connectLocked() error {
	ch, conn, err := p.dial(p.url)
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}
	for _, q := range Queues {
		if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return fmt.Errorf("rabbitmq declare %s: %w", q, err)
		}
	}
	p.ch, p.conn = ch, conn
	return nil
}

func (p *Publisher) resetLocked() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.ch, p.conn = nil, nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetLocked()
	return nil
}

// LogPublisher is used when no broker is configured.
type LogPublisher struct{}

func (LogPublisher) Publish(_ context.Context, ev domain.BookingEvent) error {
	log.Info().
		Str("type", ev.Type).
		Int64("booking_id", ev.BookingID).
		Str("reference", ev.Reference).
		Msg("booking event")
	return nil
}

// sleepCtx waits for d or returns early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// backoff doubles from 200ms per attempt with up to +50% jitter.
func backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 200 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0
	return base + time.Duration(0.5*f*float64(base))
}
