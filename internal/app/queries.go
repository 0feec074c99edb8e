package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"jetstay/internal/domain"
)

type QueryService struct {
	repo     domain.HotelRepository
	store    domain.ReservationStore
	cache    domain.Cache
	cacheTTL time.Duration
	now      func() time.Time
}

func NewQueryService(r domain.HotelRepository, st domain.ReservationStore, c domain.Cache, ttl time.Duration) *QueryService {
	return &QueryService{repo: r, store: st, cache: c, cacheTTL: ttl, now: time.Now}
}

func hotelKey(id int64) string { return fmt.Sprintf("hotel:%d", id) }

func reviewsKey(id int64, limit int, sort string) string {
	return fmt.Sprintf("reviews:%d:%d:%s", id, limit, sort)
}

func (s *QueryService) GetHotel(ctx context.Context, id int64) (domain.HotelView, error) {
	key := hotelKey(id)
	var hv domain.HotelView
	if ok, _ := s.cache.Get(ctx, key, &hv); ok {
		return hv, nil
	}
	h, err := s.repo.GetHotel(ctx, id)
	if err != nil {
		return domain.HotelView{}, err
	}
	_ = s.cache.Set(ctx, key, h, int(s.cacheTTL.Seconds()))
	return h, nil
}

func (s *QueryService) ListReviews(ctx context.Context, id int64, pg domain.PageQuery) (domain.ReviewsPage, error) {
	key := reviewsKey(id, pg.Limit, pg.Sort)
	var out domain.ReviewsPage
	if ok, _ := s.cache.Get(ctx, key, &out); ok {
		return out, nil
	}

	rs, err := s.repo.ListReviews(ctx, id, pg)
	if err != nil {
		return domain.ReviewsPage{}, err
	}

	// copy slice to avoid aliasing the repo's backing array
	copyRS := deepCopyReviewsPage(rs)

	if b, _ := json.Marshal(copyRS); len(b) < 1_000_000 {
		_ = s.cache.Set(ctx, key, copyRS, int(s.cacheTTL.Seconds()))
	}
	return copyRS, nil
}

func deepCopyReviewsPage(in domain.ReviewsPage) domain.ReviewsPage {
	out := domain.ReviewsPage{NextCursor: in.NextCursor}
	if n := len(in.Items); n > 0 {
		out.Items = make([]domain.Review, n)
		copy(out.Items, in.Items)
	}
	return out
}

// RoomAvailability is an unlocked reading for display. Booking decisions
// are never made from it.
func (s *QueryService) RoomAvailability(ctx context.Context, hotelID, roomTypeID int64, checkIn, checkOut time.Time) (domain.Availability, error) {
	dates := domain.NewDateRange(checkIn, checkOut)
	if !dates.Valid() {
		return domain.Availability{}, domain.ValidationErrors{{Field: "check_out", Message: "must be after check_in"}}
	}
	ref := domain.UnitRef{Kind: domain.KindRoomType, ID: roomTypeID}
	return s.availability(ctx, ref, hotelID, domain.RangeScope(dates))
}

func (s *QueryService) TicketAvailability(ctx context.Context, flightID, tripTypeID int64) (domain.Availability, error) {
	ref := domain.UnitRef{Kind: domain.KindTripType, ID: tripTypeID}
	return s.availability(ctx, ref, flightID, domain.TotalScope())
}

func (s *QueryService) availability(ctx context.Context, ref domain.UnitRef, ownerID int64, scope domain.Scope) (domain.Availability, error) {
	u, err := s.store.GetInventory(ctx, ref)
	if err != nil {
		return domain.Availability{}, err
	}
	if u.OwnerID != ownerID {
		return domain.Availability{}, &domain.NotFoundError{Entity: entityName(ref.Kind), ID: ref.ID}
	}
	committed, avail, err := availableUnits(ctx, s.store, u, scope)
	if err != nil {
		return domain.Availability{}, err
	}
	return domain.Availability{
		Unit:      ref,
		UnitID:    ref.ID,
		Capacity:  u.Capacity,
		Committed: committed,
		Available: avail,
	}, nil
}

// GetBooking returns a booking owned by userID.
func (s *QueryService) GetBooking(ctx context.Context, id, userID int64) (domain.BookingTransaction, error) {
	key := bookingKey(id)
	var bt domain.BookingTransaction
	if ok, _ := s.cache.Get(ctx, key, &bt); !ok {
		var err error
		bt, err = s.store.GetBooking(ctx, id)
		if err != nil {
			return domain.BookingTransaction{}, err
		}
		_ = s.cache.Set(ctx, key, bt, int(s.cacheTTL.Seconds()))
	}
	if bt.UserID != userID {
		// other users' bookings look absent
		return domain.BookingTransaction{}, &domain.NotFoundError{Entity: "booking", ID: id}
	}
	return bt, nil
}

func (s *QueryService) ListBookings(ctx context.Context, userID int64, scope domain.BookingsScope) ([]domain.BookingTransaction, error) {
	if scope != domain.ScopeUpcoming && scope != domain.ScopePast {
		return nil, domain.ValidationErrors{{Field: "scope", Message: "must be upcoming or past"}}
	}
	key := userBookingsKey(userID, scope)
	var out []domain.BookingTransaction
	if ok, _ := s.cache.Get(ctx, key, &out); ok {
		return out, nil
	}
	out, err := s.store.ListBookings(ctx, userID, domain.BookingsQuery{
		Scope: scope,
		Today: domain.Day(s.now()),
		Limit: 200,
	})
	if err != nil {
		return nil, err
	}
	_ = s.cache.Set(ctx, key, out, int(s.cacheTTL.Seconds()))
	return out, nil
}
