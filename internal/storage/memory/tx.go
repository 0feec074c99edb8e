package memory

import (
	"context"
	"errors"
	"time"

	"jetstay/internal/domain"
)

type memTx struct {
	store *Store
	held  map[lock]struct{}

	inserts  []*domain.BookingTransaction
	statuses map[int64]domain.Status
}

// acquire takes l for the rest of the tx. Re-acquiring a held lock is a
// no-op.
func (t *memTx) acquire(ctx context.Context, l lock, ref domain.UnitRef) error {
	if _, ok := t.held[l]; ok {
		return nil
	}
	var timeout <-chan time.Time
	if t.store.lockWait > 0 {
		timer := time.NewTimer(t.store.lockWait)
		defer timer.Stop()
		timeout = timer.C
	}
	select {
	case l <- struct{}{}:
		t.held[l] = struct{}{}
		return nil
	case <-timeout:
		return &domain.TransientLockError{Unit: ref, Err: ErrLockTimeout}
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return &domain.TransientLockError{Unit: ref, Err: ctx.Err()}
		}
		return ctx.Err()
	}
}

func (t *memTx) release() {
	for l := range t.held {
		<-l
	}
	t.held = nil
}

func (t *memTx) LockInventory(ctx context.Context, ref domain.UnitRef) (domain.InventoryUnit, error) {
	t.store.mu.Lock()
	e, ok := t.store.units[ref]
	t.store.mu.Unlock()
	if !ok {
		return domain.InventoryUnit{}, notFound(ref)
	}
	if err := t.acquire(ctx, e.mu, ref); err != nil {
		return domain.InventoryUnit{}, err
	}
	return e.unit, nil
}

// CommittedUnits sees committed state plus this tx's own writes.
func (t *memTx) CommittedUnits(_ context.Context, ref domain.UnitRef, scope domain.Scope) (int, error) {
	t.store.mu.Lock()
	n := t.store.committedLocked(ref, scope, t.statuses)
	t.store.mu.Unlock()

	for _, bt := range t.inserts {
		st := bt.Status
		if o, ok := t.statuses[bt.ID]; ok {
			st = o
		}
		n += countUnits(*bt, st, ref, scope)
	}
	return n, nil
}

func (t *memTx) InsertBooking(_ context.Context, bt *domain.BookingTransaction) error {
	t.store.mu.Lock()
	t.store.nextBT++
	bt.ID = t.store.nextBT
	for i := range bt.Reservations {
		t.store.nextRes++
		bt.Reservations[i].ID = t.store.nextRes
	}
	t.store.mu.Unlock()

	staged := cloneBooking(*bt)
	t.inserts = append(t.inserts, &staged)
	return nil
}

func (t *memTx) LockBooking(ctx context.Context, id int64) (domain.BookingTransaction, error) {
	t.store.mu.Lock()
	e, ok := t.store.bookings[id]
	t.store.mu.Unlock()
	if !ok {
		return domain.BookingTransaction{}, &domain.NotFoundError{Entity: "booking", ID: id}
	}
	if err := t.acquire(ctx, e.mu, domain.UnitRef{}); err != nil {
		return domain.BookingTransaction{}, err
	}

	t.store.mu.Lock()
	bt := cloneBooking(e.bt)
	t.store.mu.Unlock()
	if st, ok := t.statuses[id]; ok {
		bt.Status = st
	}
	return bt, nil
}

func (t *memTx) UpdateStatus(_ context.Context, id int64, status domain.Status) error {
	for _, bt := range t.inserts {
		if bt.ID == id {
			bt.Status = status
			return nil
		}
	}
	t.store.mu.Lock()
	_, ok := t.store.bookings[id]
	t.store.mu.Unlock()
	if !ok {
		return &domain.NotFoundError{Entity: "booking", ID: id}
	}
	t.statuses[id] = status
	return nil
}
