package domain

import "time"

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusCancelled Status = "CANCELLED"
	StatusCompleted Status = "COMPLETED"
)

type BookingKind string

const (
	BookingHotel  BookingKind = "HOTEL"
	BookingFlight BookingKind = "FLIGHT"
)

// ReservationRecord is one committed claim on an InventoryUnit. Room bookings
// carry a date range; flight tickets do not and always hold one unit.
type ReservationRecord struct {
	ID         int64      `json:"id"`
	Unit       UnitRef    `json:"unit"`
	Units      int        `json:"units"`
	Dates      *DateRange `json:"dates,omitempty"`
	PriceCents int64      `json:"price_cents"`
}

// BookingTransaction owns its reservations; they are created and cancelled
// with it.
type BookingTransaction struct {
	ID           int64               `json:"id"`
	Reference    string              `json:"reference"`
	UserID       int64               `json:"user_id"`
	Kind         BookingKind         `json:"kind"`
	OwnerID      int64               `json:"owner_id"` // hotel id or flight id
	Status       Status              `json:"status"`
	TotalCents   int64               `json:"total_cents"`
	Guests       int                 `json:"guests"`
	Dates        *DateRange          `json:"dates,omitempty"`
	BookingDate  time.Time           `json:"booking_date"`
	Paid         bool                `json:"paid"`
	Reservations []ReservationRecord `json:"reservations"`
}

// UnitRefs returns the distinct units referenced by the reservations.
func (b BookingTransaction) UnitRefs() []UnitRef {
	seen := map[UnitRef]struct{}{}
	var out []UnitRef
	for _, r := range b.Reservations {
		if _, ok := seen[r.Unit]; ok {
			continue
		}
		seen[r.Unit] = struct{}{}
		out = append(out, r.Unit)
	}
	return out
}

func (b BookingTransaction) ReservationIDs() []int64 {
	ids := make([]int64, 0, len(b.Reservations))
	for _, r := range b.Reservations {
		ids = append(ids, r.ID)
	}
	return ids
}

// MaxUnitsPerRequest bounds the rooms of one room type, or the tickets of
// one trip type, in a single request. MaxStayNights bounds a stay.
const (
	MaxUnitsPerRequest = 10000
	MaxStayNights      = 365
)

type RoomLine struct {
	RoomTypeID int64 `json:"room_type_id" validate:"required,gt=0"`
	Rooms      int   `json:"rooms" validate:"gt=0,max=10000"`
}

type RoomBookingRequest struct {
	HotelID  int64      `json:"hotel_id" validate:"required,gt=0"`
	CheckIn  time.Time  `json:"check_in" validate:"required"`
	CheckOut time.Time  `json:"check_out" validate:"required"`
	Guests   int        `json:"guests" validate:"gt=0"`
	Lines    []RoomLine `json:"lines" validate:"required,min=1,dive"`
}

func (r RoomBookingRequest) Dates() DateRange { return NewDateRange(r.CheckIn, r.CheckOut) }

type TicketBookingRequest struct {
	FlightID   int64 `json:"flight_id" validate:"required,gt=0"`
	TripTypeID int64 `json:"trip_type_id" validate:"required,gt=0"`
	Quantity   int   `json:"quantity" validate:"gt=0,max=10000"`
}

// BookingEvent is emitted after a commit or cancellation, never inside the
// locked section.
type BookingEvent struct {
	Type           string  `json:"type"` // booking.confirmed | booking.cancelled
	BookingID      int64   `json:"booking_id"`
	Reference      string  `json:"reference"`
	UserID         int64   `json:"user_id"`
	Kind           string  `json:"kind"`
	OwnerID        int64   `json:"owner_id"`
	ReservationIDs []int64 `json:"reservation_ids"`
	TotalCents     int64   `json:"total_cents"`
	CheckIn        string  `json:"check_in,omitempty"`
	CheckOut       string  `json:"check_out,omitempty"`
	OccurredAt     string  `json:"occurred_at"`
}

type BookingsScope string

const (
	ScopeUpcoming BookingsScope = "upcoming"
	ScopePast     BookingsScope = "past"
)

type BookingsQuery struct {
	Scope BookingsScope
	Today time.Time
	Limit int
}
