package amqpad

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"jetstay/internal/domain"
)

type fakeChannel struct {
	mu       sync.Mutex
	declared []string
	sent     []amqp.Publishing
	keys     []string
	failNext int
	closed   bool
}

func (f *fakeChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !durable {
		return amqp.Queue{}, errors.New("queue must be durable")
	}
	f.declared = append(f.declared, name)
	return amqp.Queue{Name: name}, nil
}

func (f *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext > 0 {
		f.failNext--
		return amqp.ErrClosed
	}
	f.keys = append(f.keys, key)
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeChannel) Close() error { f.closed = true; return nil }

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func newTestPublisher(ch *fakeChannel, dials *int) *Publisher {
	p := New("amqp://test")
	p.dial = func(string) (channel, io.Closer, error) {
		*dials++
		return ch, nopCloser{}, nil
	}
	return p
}

func TestPublisher_PublishesPersistentJSON(t *testing.T) {
	ch := &fakeChannel{}
	dials := 0
	p := newTestPublisher(ch, &dials)

	ev := domain.BookingEvent{Type: "booking.confirmed", BookingID: 7, Reference: "r-7", ReservationIDs: []int64{1, 2}}
	if err := p.Publish(context.Background(), ev); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := p.Publish(context.Background(), ev); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if dials != 1 {
		t.Fatalf("dials = %d, want the connection reused", dials)
	}
	if len(ch.declared) != len(Queues) {
		t.Fatalf("declared = %v", ch.declared)
	}
	if ch.keys[0] != "booking.confirmed" {
		t.Fatalf("routing key = %s", ch.keys[0])
	}
	msg := ch.sent[0]
	if msg.DeliveryMode != amqp.Persistent || msg.ContentType != "application/json" || msg.MessageId != "booking.confirmed:7" {
		t.Fatalf("message props: %+v", msg)
	}
	var got domain.BookingEvent
	if err := json.Unmarshal(msg.Body, &got); err != nil || got.Reference != "r-7" || len(got.ReservationIDs) != 2 {
		t.Fatalf("body: %s (%v)", msg.Body, err)
	}
}

func TestPublisher_RedialsAfterFailure(t *testing.T) {
	ch := &fakeChannel{failNext: 1}
	dials := 0
	p := newTestPublisher(ch, &dials)

	if err := p.Publish(context.Background(), domain.BookingEvent{Type: "booking.cancelled", BookingID: 1}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if dials != 2 || len(ch.sent) != 1 {
		t.Fatalf("dials=%d sent=%d", dials, len(ch.sent))
	}
}

func TestPublisher_GivesUpWhenDialFails(t *testing.T) {
	p := New("amqp://nowhere")
	boom := errors.New("connection refused")
	p.dial = func(string) (channel, io.Closer, error) { return nil, nil, boom }

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.Publish(ctx, domain.BookingEvent{Type: "booking.confirmed"}); !errors.Is(err, boom) {
		t.Fatalf("want dial error, got %v", err)
	}
}

func TestBackoff_Bounds(t *testing.T) {
	for i := 0; i < 3; i++ {
		base := time.Duration(1<<i) * 200 * time.Millisecond
		d := backoff(i)
		if d < base || d > base+base/2 {
			t.Fatalf("backoff(%d) = %v", i, d)
		}
	}
}
