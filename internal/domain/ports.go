package domain

import (
	"context"
	"time"
)

// ReservationStore is the persistence side of the booking path.
type ReservationStore interface {
	// WithinTx runs fn in one unit of work. A nil return commits, anything
	// else rolls back and is returned unchanged. Locks taken through tx are
	// held until WithinTx returns.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx ReservationTx) error) error

	// Unlocked reads.
	GetInventory(ctx context.Context, ref UnitRef) (InventoryUnit, error)
	CommittedUnits(ctx context.Context, ref UnitRef, scope Scope) (int, error)
	GetBooking(ctx context.Context, id int64) (BookingTransaction, error)
	ListBookings(ctx context.Context, userID int64, q BookingsQuery) ([]BookingTransaction, error)
	// ListExpiringPending returns ids of PENDING hotel bookings checking in
	// before the given day.
	ListExpiringPending(ctx context.Context, before time.Time, limit int) ([]int64, error)
}

type ReservationTx interface {
	// LockInventory blocks until the unit is exclusively held by this tx.
	LockInventory(ctx context.Context, ref UnitRef) (InventoryUnit, error)
	// CommittedUnits sums units of non-cancelled reservations on ref within
	// scope, as seen by this tx.
	CommittedUnits(ctx context.Context, ref UnitRef, scope Scope) (int, error)
	// InsertBooking stores bt and its reservations, filling in their ids.
	InsertBooking(ctx context.Context, bt *BookingTransaction) error
	// LockBooking loads bt with its reservations and holds its row.
	LockBooking(ctx context.Context, id int64) (BookingTransaction, error)
	UpdateStatus(ctx context.Context, id int64, status Status) error
}

type HotelRepository interface {
	GetHotel(ctx context.Context, id int64) (HotelView, error)
	ListReviews(ctx context.Context, hotelID int64, pg PageQuery) (ReviewsPage, error)
	// SaveReview inserts r and recomputes the hotel's aggregate rate under
	// the hotel row lock. A second review for the same booking is ErrConflict.
	SaveReview(ctx context.Context, r *Review) error
	DeleteReview(ctx context.Context, bookingID int64) (Review, error)
	GetReview(ctx context.Context, bookingID int64) (Review, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

type EventPublisher interface {
	Publish(ctx context.Context, ev BookingEvent) error
}

type PageQuery struct {
	Limit  int
	Cursor *string
	Sort   string
}

type ReviewsPage struct {
	Items      []Review `json:"items"`
	NextCursor *string  `json:"next_cursor,omitempty"`
}
