package domain

import "time"

// UnitKind tells which table backs an InventoryUnit.
type UnitKind string

const (
	KindRoomType UnitKind = "room_type"
	KindTripType UnitKind = "trip_type"
)

type UnitRef struct {
	Kind UnitKind `json:"kind"`
	ID   int64    `json:"id"`
}

// InventoryUnit is a bookable category with finite capacity: a hotel room
// type or a flight trip type. Capacity is never decremented by bookings;
// availability is derived from the committed reservations.
type InventoryUnit struct {
	Kind       UnitKind
	ID         int64
	OwnerID    int64 // hotel id or flight id
	Capacity   int
	PriceCents int64
	Name       string
	// FlightDate is only set for trip types.
	FlightDate time.Time
}

func (u InventoryUnit) Ref() UnitRef { return UnitRef{Kind: u.Kind, ID: u.ID} }

// DateRange is a half-open interval of nights [Start, End).
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Day truncates t to midnight UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func NewDateRange(start, end time.Time) DateRange {
	return DateRange{Start: Day(start), End: Day(end)}
}

func (r DateRange) Valid() bool { return r.Start.Before(r.End) }

// Overlaps reports whether [a,b) and [c,d) share a night: a < d && c < b.
func (r DateRange) Overlaps(o DateRange) bool {
	return r.Start.Before(o.End) && o.Start.Before(r.End)
}

func (r DateRange) Nights() int {
	if !r.Valid() {
		return 0
	}
	return int(epochDay(r.End) - epochDay(r.Start))
}

// epochDay counts calendar days since 1970-01-01 for t's UTC date.
func epochDay(t time.Time) int64 {
	return Day(t).Unix() / 86400
}

// Scope selects which committed reservations count against a unit.
// A nil Dates means every reservation of the unit counts (ticket style).
type Scope struct {
	Dates *DateRange
}

func TotalScope() Scope { return Scope{} }

func RangeScope(r DateRange) Scope { return Scope{Dates: &r} }

// Covers reports whether a reservation stored with the given range falls in
// the scope. Reservations without a range count for every scope.
func (s Scope) Covers(r *DateRange) bool {
	if s.Dates == nil || r == nil {
		return true
	}
	return s.Dates.Overlaps(*r)
}

// AvailableUnits never returns a negative number; committed usage above
// capacity reads as zero available.
func AvailableUnits(capacity, committed int) int {
	if avail := capacity - committed; avail > 0 {
		return avail
	}
	return 0
}

// CheckCapacity returns an *InsufficientInventoryError when the unit cannot
// take requested more units on top of committed.
func CheckCapacity(u InventoryUnit, committed, requested int) error {
	if requested <= 0 {
		return ValidationErrors{{Field: "units", Message: "must be greater than 0"}}
	}
	avail := AvailableUnits(u.Capacity, committed)
	if avail >= requested {
		return nil
	}
	return &InsufficientInventoryError{
		Unit:      u.Ref(),
		Requested: requested,
		Available: avail,
	}
}
