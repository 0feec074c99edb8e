package app_test

import (
	"context"
	"encoding/json"
	"sync"

	"jetstay/internal/domain"
)

// ---- fakes ----

// fakeCache round-trips values through JSON like the redis adapter does.
type fakeCache struct {
	mu    sync.Mutex
	store map[string][]byte
	dels  []string
}

func (c *fakeCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.store[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (c *fakeCache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store == nil {
		c.store = map[string][]byte{}
	}
	c.store[key] = b
	return nil
}

func (c *fakeCache) Del(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.store, key)
	c.dels = append(c.dels, key)
	return nil
}

func (c *fakeCache) deleted(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range c.dels {
		if k == key {
			return true
		}
	}
	return false
}

type fakeEvents struct {
	mu  sync.Mutex
	evs []domain.BookingEvent
	err error
}

func (f *fakeEvents) Publish(ctx context.Context, ev domain.BookingEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.evs = append(f.evs, ev)
	return f.err
}

func (f *fakeEvents) ofType(t string) []domain.BookingEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.BookingEvent
	for _, ev := range f.evs {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

type fakeHotelRepo struct {
	mu      sync.Mutex
	hv      domain.HotelView
	rp      domain.ReviewsPage
	reviews map[int64]domain.Review
	calls   int
}

func (f *fakeHotelRepo) GetHotel(ctx context.Context, id int64) (domain.HotelView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.hv.ID != id {
		return domain.HotelView{}, &domain.NotFoundError{Entity: "hotel", ID: id}
	}
	return f.hv, nil
}

func (f *fakeHotelRepo) ListReviews(ctx context.Context, id int64, pg domain.PageQuery) (domain.ReviewsPage, error) {
	return f.rp, nil
}

func (f *fakeHotelRepo) SaveReview(ctx context.Context, r *domain.Review) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reviews == nil {
		f.reviews = map[int64]domain.Review{}
	}
	if _, ok := f.reviews[r.BookingID]; ok {
		return domain.ErrConflict
	}
	r.ID = int64(len(f.reviews) + 1)
	f.reviews[r.BookingID] = *r
	return nil
}

func (f *fakeHotelRepo) DeleteReview(ctx context.Context, bookingID int64) (domain.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reviews[bookingID]
	if !ok {
		return domain.Review{}, &domain.NotFoundError{Entity: "review", ID: bookingID}
	}
	delete(f.reviews, bookingID)
	return r, nil
}

func (f *fakeHotelRepo) GetReview(ctx context.Context, bookingID int64) (domain.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reviews[bookingID]
	if !ok {
		return domain.Review{}, &domain.NotFoundError{Entity: "review", ID: bookingID}
	}
	return r, nil
}

func ptr[T any](v T) *T { return &v }

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
