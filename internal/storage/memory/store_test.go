package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"jetstay/internal/domain"
	"jetstay/internal/storage/memory"
)

var roomRef = domain.UnitRef{Kind: domain.KindRoomType, ID: 1}

func stay(in, out string) *domain.DateRange {
	a, _ := time.Parse(time.DateOnly, in)
	b, _ := time.Parse(time.DateOnly, out)
	d := domain.NewDateRange(a, b)
	return &d
}

func insertStay(t *testing.T, s *memory.Store, rooms int, dates *domain.DateRange) int64 {
	t.Helper()
	var id int64
	err := s.WithinTx(context.Background(), func(ctx context.Context, tx domain.ReservationTx) error {
		bt := &domain.BookingTransaction{
			UserID: 7, Kind: domain.BookingHotel, OwnerID: 10, Status: domain.StatusPending, Dates: dates,
			Reservations: []domain.ReservationRecord{{Unit: roomRef, Units: rooms, Dates: dates}},
		}
		if err := tx.InsertBooking(ctx, bt); err != nil {
			return err
		}
		id = bt.ID
		return nil
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	return id
}

func TestStore_LockTimeoutIsTransient(t *testing.T) {
	s := memory.New(50 * time.Millisecond)
	s.AddRoomType(10, 1, 3, 1000)
	ctx := context.Background()

	held := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- s.WithinTx(ctx, func(ctx context.Context, tx domain.ReservationTx) error {
			if _, err := tx.LockInventory(ctx, roomRef); err != nil {
				return err
			}
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	err := s.WithinTx(ctx, func(ctx context.Context, tx domain.ReservationTx) error {
		_, err := tx.LockInventory(ctx, roomRef)
		return err
	})
	close(release)
	if e := <-done; e != nil {
		t.Fatalf("holder: %v", e)
	}

	var tl *domain.TransientLockError
	if !errors.As(err, &tl) || !errors.Is(err, memory.ErrLockTimeout) {
		t.Fatalf("want transient lock timeout, got %v", err)
	}
	if tl.Unit != roomRef {
		t.Fatalf("unit = %+v", tl.Unit)
	}

	// the lock is free again once the holder finished
	if err := s.WithinTx(ctx, func(ctx context.Context, tx domain.ReservationTx) error {
		_, err := tx.LockInventory(ctx, roomRef)
		return err
	}); err != nil {
		t.Fatalf("relock: %v", err)
	}
}

func TestStore_ContextDeadlineIsTransient(t *testing.T) {
	s := memory.New(0)
	s.AddRoomType(10, 1, 3, 1000)

	held := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = s.WithinTx(context.Background(), func(ctx context.Context, tx domain.ReservationTx) error {
			_, _ = tx.LockInventory(ctx, roomRef)
			close(held)
			<-release
			return nil
		})
	}()
	<-held
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := s.WithinTx(ctx, func(ctx context.Context, tx domain.ReservationTx) error {
		_, err := tx.LockInventory(ctx, roomRef)
		return err
	})
	if !domain.IsTransient(err) {
		t.Fatalf("want transient, got %v", err)
	}
}

func TestStore_RollbackDiscardsWrites(t *testing.T) {
	s := memory.New(time.Second)
	s.AddRoomType(10, 1, 3, 1000)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithinTx(ctx, func(ctx context.Context, tx domain.ReservationTx) error {
		d := stay("2030-01-01", "2030-01-03")
		if err := tx.InsertBooking(ctx, &domain.BookingTransaction{
			Kind: domain.BookingHotel, Status: domain.StatusPending,
			Reservations: []domain.ReservationRecord{{Unit: roomRef, Units: 2, Dates: d}},
		}); err != nil {
			return err
		}
		n, _ := tx.CommittedUnits(ctx, roomRef, domain.RangeScope(*d))
		if n != 2 {
			t.Errorf("tx should see its own write, got %d", n)
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if n, _ := s.CommittedUnits(ctx, roomRef, domain.TotalScope()); n != 0 {
		t.Fatalf("rolled back units visible: %d", n)
	}
}

func TestStore_CommittedUnitsScopes(t *testing.T) {
	s := memory.New(time.Second)
	s.AddRoomType(10, 1, 5, 1000)
	ctx := context.Background()

	insertStay(t, s, 2, stay("2030-01-01", "2030-01-05"))
	cancelled := insertStay(t, s, 3, stay("2030-01-02", "2030-01-03"))
	if err := s.WithinTx(ctx, func(ctx context.Context, tx domain.ReservationTx) error {
		return tx.UpdateStatus(ctx, cancelled, domain.StatusCancelled)
	}); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	cases := []struct {
		name string
		sc   domain.Scope
		want int
	}{
		{"overlap", domain.RangeScope(*stay("2030-01-04", "2030-01-06")), 2},
		{"adjacent", domain.RangeScope(*stay("2030-01-05", "2030-01-06")), 0},
		{"total", domain.TotalScope(), 2},
	}
	for _, c := range cases {
		if got, _ := s.CommittedUnits(ctx, roomRef, c.sc); got != c.want {
			t.Fatalf("%s: got %d want %d", c.name, got, c.want)
		}
	}

	bt, err := s.GetBooking(ctx, cancelled)
	if err != nil || bt.Status != domain.StatusCancelled || len(bt.Reservations) != 1 {
		t.Fatalf("cancelled booking record: %+v %v", bt, err)
	}
}

func TestStore_NotFound(t *testing.T) {
	s := memory.New(time.Second)
	ctx := context.Background()
	if _, err := s.GetInventory(ctx, roomRef); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("GetInventory: %v", err)
	}
	err := s.WithinTx(ctx, func(ctx context.Context, tx domain.ReservationTx) error {
		_, err := tx.LockBooking(ctx, 99)
		return err
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("LockBooking: %v", err)
	}
}
