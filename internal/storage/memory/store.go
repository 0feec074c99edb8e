// Package memory is a process-local ReservationStore. Unit and booking
// locks are one-slot channels acquired with a deadline, and a transaction's
// writes become visible to others only when it commits.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"jetstay/internal/domain"
)

// ErrLockTimeout is wrapped in a domain.TransientLockError when a lock is
// not granted within the store's wait.
var ErrLockTimeout = errors.New("lock wait timeout exceeded")

type lock chan struct{}

func newLock() lock { return make(lock, 1) }

type unitEntry struct {
	unit domain.InventoryUnit
	mu   lock
}

type bookingEntry struct {
	bt domain.BookingTransaction
	mu lock
}

type Store struct {
	lockWait time.Duration

	mu       sync.Mutex
	units    map[domain.UnitRef]*unitEntry
	bookings map[int64]*bookingEntry
	nextBT   int64
	nextRes  int64
}

func New(lockWait time.Duration) *Store {
	return &Store{
		lockWait: lockWait,
		units:    map[domain.UnitRef]*unitEntry{},
		bookings: map[int64]*bookingEntry{},
	}
}

func (s *Store) AddRoomType(hotelID, id int64, capacity int, priceCents int64) {
	s.addUnit(domain.InventoryUnit{Kind: domain.KindRoomType, ID: id, OwnerID: hotelID, Capacity: capacity, PriceCents: priceCents})
}

func (s *Store) AddTripType(flightID, id int64, capacity int, priceCents int64, flightDate time.Time) {
	s.addUnit(domain.InventoryUnit{Kind: domain.KindTripType, ID: id, OwnerID: flightID, Capacity: capacity, PriceCents: priceCents, FlightDate: flightDate})
}

func (s *Store) addUnit(u domain.InventoryUnit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.units[u.Ref()] = &unitEntry{unit: u, mu: newLock()}
}

// WithinTx runs fn and applies its staged writes atomically when it returns
// nil. Locks are released after the writes are visible.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx domain.ReservationTx) error) error {
	tx := &memTx{
		store:    s,
		held:     map[lock]struct{}{},
		statuses: map[int64]domain.Status{},
	}
	defer tx.release()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	s.commit(tx)
	return nil
}

func (s *Store) commit(tx *memTx) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, bt := range tx.inserts {
		s.bookings[bt.ID] = &bookingEntry{bt: cloneBooking(*bt), mu: newLock()}
	}
	for id, st := range tx.statuses {
		if e, ok := s.bookings[id]; ok {
			e.bt.Status = st
		}
	}
}

func (s *Store) GetInventory(_ context.Context, ref domain.UnitRef) (domain.InventoryUnit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.units[ref]
	if !ok {
		return domain.InventoryUnit{}, notFound(ref)
	}
	return e.unit, nil
}

func (s *Store) CommittedUnits(_ context.Context, ref domain.UnitRef, scope domain.Scope) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.committedLocked(ref, scope, nil), nil
}

// committedLocked sums committed reservations, applying the status
// overrides of an open tx when one is given. Callers hold s.mu.
func (s *Store) committedLocked(ref domain.UnitRef, scope domain.Scope, overrides map[int64]domain.Status) int {
	n := 0
	for id, e := range s.bookings {
		st := e.bt.Status
		if o, ok := overrides[id]; ok {
			st = o
		}
		n += countUnits(e.bt, st, ref, scope)
	}
	return n
}

func countUnits(bt domain.BookingTransaction, st domain.Status, ref domain.UnitRef, scope domain.Scope) int {
	if st == domain.StatusCancelled {
		return 0
	}
	n := 0
	for _, r := range bt.Reservations {
		if r.Unit == ref && scope.Covers(r.Dates) {
			n += r.Units
		}
	}
	return n
}

func (s *Store) GetBooking(_ context.Context, id int64) (domain.BookingTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.bookings[id]
	if !ok {
		return domain.BookingTransaction{}, &domain.NotFoundError{Entity: "booking", ID: id}
	}
	return cloneBooking(e.bt), nil
}

func (s *Store) ListBookings(_ context.Context, userID int64, q domain.BookingsQuery) ([]domain.BookingTransaction, error) {
	s.mu.Lock()
	out := []domain.BookingTransaction{}
	for _, e := range s.bookings {
		if e.bt.UserID != userID {
			continue
		}
		upcoming := !sortDay(e.bt).Before(q.Today)
		if upcoming == (q.Scope == domain.ScopeUpcoming) {
			out = append(out, cloneBooking(e.bt))
		}
	}
	s.mu.Unlock()

	asc := q.Scope == domain.ScopeUpcoming
	sort.Slice(out, func(i, j int) bool {
		di, dj := sortDay(out[i]), sortDay(out[j])
		if !di.Equal(dj) {
			return di.Before(dj) == asc
		}
		return (out[i].ID < out[j].ID) == asc
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *Store) ListExpiringPending(_ context.Context, before time.Time, limit int) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []int64
	for id, e := range s.bookings {
		bt := e.bt
		if bt.Status == domain.StatusPending && bt.Kind == domain.BookingHotel && bt.Dates != nil && bt.Dates.Start.Before(before) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

// sortDay is the check-in for stays and the booking date otherwise.
func sortDay(bt domain.BookingTransaction) time.Time {
	if bt.Dates != nil {
		return bt.Dates.Start
	}
	return bt.BookingDate
}

func notFound(ref domain.UnitRef) error {
	name := "room type"
	if ref.Kind == domain.KindTripType {
		name = "trip type"
	}
	return &domain.NotFoundError{Entity: name, ID: ref.ID}
}

func cloneBooking(bt domain.BookingTransaction) domain.BookingTransaction {
	out := bt
	if bt.Dates != nil {
		d := *bt.Dates
		out.Dates = &d
	}
	out.Reservations = make([]domain.ReservationRecord, len(bt.Reservations))
	for i, r := range bt.Reservations {
		if r.Dates != nil {
			d := *r.Dates
			r.Dates = &d
		}
		out.Reservations[i] = r
	}
	return out
}
