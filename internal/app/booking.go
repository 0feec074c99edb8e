package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"jetstay/internal/adapters/observability"
	"jetstay/internal/domain"
)

// stage names the steps a booking request goes through. Only received and
// the two terminal stages are observable outside the transaction.
type stage string

const (
	stageReceived   stage = "RECEIVED"
	stageLocking    stage = "LOCKING"
	stageChecking   stage = "CHECKING"
	stageCommitting stage = "COMMITTING"
	stageConfirmed  stage = "CONFIRMED"
	stageRejected   stage = "REJECTED"
)

type RoomBookingResult struct {
	BookingID      int64   `json:"booking_transaction_id"`
	Reference      string  `json:"reference"`
	TotalCents     int64   `json:"total_cents"`
	ReservationIDs []int64 `json:"reservation_ids"`
}

type TicketBookingResult struct {
	BookingID  int64   `json:"booking_transaction_id"`
	Reference  string  `json:"reference"`
	TotalCents int64   `json:"total_cents"`
	TicketIDs  []int64 `json:"ticket_ids"`
}

// BookingService is the single entry point that reserves inventory.
type BookingService struct {
	store  domain.ReservationStore
	cache  domain.Cache
	events domain.EventPublisher

	now    func() time.Time
	newRef func() string
}

func NewBookingService(store domain.ReservationStore, cache domain.Cache, events domain.EventPublisher) *BookingService {
	return &BookingService{
		store:  store,
		cache:  cache,
		events: events,
		now:    time.Now,
		newRef: uuid.NewString,
	}
}

// WithClock replaces the clock used for booking dates and expiry cutoffs.
func (s *BookingService) WithClock(now func() time.Time) *BookingService {
	s.now = now
	return s
}

// BookRooms reserves every line of req for [CheckIn, CheckOut) or nothing.
func (s *BookingService) BookRooms(ctx context.Context, req domain.RoomBookingRequest, requesterID int64) (RoomBookingResult, error) {
	start := time.Now()
	trace("rooms", stageReceived).Int64("hotel_id", req.HotelID).Msg("booking stage")

	if err := validateRequester(requesterID); err != nil {
		return RoomBookingResult{}, s.reject("rooms", start, err)
	}
	if err := validateRoomRequest(req); err != nil {
		return RoomBookingResult{}, s.reject("rooms", start, err)
	}

	lines, err := mergeLines(req.Lines)
	if err != nil {
		return RoomBookingResult{}, s.reject("rooms", start, err)
	}
	scope := domain.RangeScope(req.Dates())

	var bt *domain.BookingTransaction
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx domain.ReservationTx) error {
		locked := make([]lockedLine, 0, len(lines))
		for _, l := range lines {
			ref := domain.UnitRef{Kind: domain.KindRoomType, ID: l.RoomTypeID}

			trace("rooms", stageLocking).Int64("room_type_id", l.RoomTypeID).Msg("booking stage")
			u, err := locate(ctx, tx, ref, req.HotelID)
			if err != nil {
				return err
			}

			trace("rooms", stageChecking).Int64("room_type_id", l.RoomTypeID).Msg("booking stage")
			if err := reserve(ctx, tx, u, scope, l.Rooms); err != nil {
				return err
			}
			locked = append(locked, lockedLine{unit: u, units: l.Rooms})
		}

		trace("rooms", stageCommitting).Int("lines", len(locked)).Msg("booking stage")
		var err error
		bt, err = s.commitRooms(ctx, tx, req, requesterID, locked)
		return err
	})
	if err != nil {
		return RoomBookingResult{}, s.reject("rooms", start, classify("book rooms", err))
	}

	s.confirm(ctx, "rooms", start, bt)
	return RoomBookingResult{
		BookingID:      bt.ID,
		Reference:      bt.Reference,
		TotalCents:     bt.TotalCents,
		ReservationIDs: bt.ReservationIDs(),
	}, nil
}

// BookTickets reserves quantity seats of one trip type and returns one id
// per ticket.
func (s *BookingService) BookTickets(ctx context.Context, req domain.TicketBookingRequest, requesterID int64) (TicketBookingResult, error) {
	start := time.Now()
	trace("tickets", stageReceived).Int64("flight_id", req.FlightID).Msg("booking stage")

	if err := validateRequester(requesterID); err != nil {
		return TicketBookingResult{}, s.reject("tickets", start, err)
	}
	if err := validateTicketRequest(req); err != nil {
		return TicketBookingResult{}, s.reject("tickets", start, err)
	}

	ref := domain.UnitRef{Kind: domain.KindTripType, ID: req.TripTypeID}
	var bt *domain.BookingTransaction
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx domain.ReservationTx) error {
		trace("tickets", stageLocking).Int64("trip_type_id", req.TripTypeID).Msg("booking stage")
		u, err := locate(ctx, tx, ref, req.FlightID)
		if err != nil {
			return err
		}

		trace("tickets", stageChecking).Int64("trip_type_id", req.TripTypeID).Msg("booking stage")
		if err := reserve(ctx, tx, u, domain.TotalScope(), req.Quantity); err != nil {
			return err
		}

		trace("tickets", stageCommitting).Int("quantity", req.Quantity).Msg("booking stage")
		bt, err = s.commitTickets(ctx, tx, req, requesterID, u)
		return err
	})
	if err != nil {
		return TicketBookingResult{}, s.reject("tickets", start, classify("book tickets", err))
	}

	s.confirm(ctx, "tickets", start, bt)
	return TicketBookingResult{
		BookingID:  bt.ID,
		Reference:  bt.Reference,
		TotalCents: bt.TotalCents,
		TicketIDs:  bt.ReservationIDs(),
	}, nil
}

func validateRequester(id int64) error {
	if id <= 0 {
		return domain.ValidationErrors{{Field: "requester", Message: "must be an authenticated user"}}
	}
	return nil
}

// classify leaves the typed outcomes alone and wraps anything else as a
// persistence failure.
func classify(op string, err error) error {
	var (
		verrs domain.ValidationErrors
		nf    *domain.NotFoundError
		ii    *domain.InsufficientInventoryError
		tl    *domain.TransientLockError
		pe    *domain.PersistenceError
	)
	switch {
	case errors.As(err, &verrs), errors.As(err, &nf), errors.As(err, &ii),
		errors.As(err, &tl), errors.As(err, &pe),
		errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrForbidden),
		errors.Is(err, domain.ErrConflict), errors.Is(err, context.Canceled):
		return err
	default:
		return &domain.PersistenceError{Op: op, Err: err}
	}
}

func outcomeOf(err error) string {
	var (
		verrs domain.ValidationErrors
		ii    *domain.InsufficientInventoryError
		tl    *domain.TransientLockError
	)
	switch {
	case err == nil:
		return "confirmed"
	case errors.As(err, &verrs):
		return "invalid"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.As(err, &ii):
		return "insufficient"
	case errors.As(err, &tl):
		return "transient"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}

func trace(dom string, st stage) *zerolog.Event {
	return log.Debug().Str("domain", dom).Str("stage", string(st))
}

func (s *BookingService) reject(dom string, start time.Time, err error) error {
	outcome := outcomeOf(err)
	observability.ObserveBooking(dom, outcome, time.Since(start))

	lvl := zerolog.InfoLevel
	if outcome == "error" {
		lvl = zerolog.ErrorLevel
	}
	ev := log.WithLevel(lvl).Err(err).Str("domain", dom).Str("stage", string(stageRejected)).Str("outcome", outcome).Str("err_type", observability.LabelErr(err))
	var ii *domain.InsufficientInventoryError
	if errors.As(err, &ii) {
		ev = ev.Str("kind", string(ii.Unit.Kind)).
			Int64("unit_id", ii.Unit.ID).
			Int("requested", ii.Requested).
			Int("available", ii.Available)
	}
	ev.Msg("booking rejected")
	return err
}

func (s *BookingService) confirm(ctx context.Context, dom string, start time.Time, bt *domain.BookingTransaction) {
	observability.ObserveBooking(dom, "confirmed", time.Since(start))
	log.Info().
		Str("domain", dom).
		Str("stage", string(stageConfirmed)).
		Int64("booking_id", bt.ID).
		Str("reference", bt.Reference).
		Int("reservations", len(bt.Reservations)).
		Msg("booking confirmed")
	s.afterCommit(ctx, bt, "booking.confirmed")
}

// afterCommit runs the side effects that must not happen while inventory
// locks are held: cache eviction and event publication. Failures are
// logged; the booking itself already stands.
func (s *BookingService) afterCommit(ctx context.Context, bt *domain.BookingTransaction, evType string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if s.cache != nil {
		invalidateUserBookings(ctx, s.cache, bt.UserID, bt.ID)
	}
	if s.events == nil {
		return
	}
	ev := domain.BookingEvent{
		Type:           evType,
		BookingID:      bt.ID,
		Reference:      bt.Reference,
		UserID:         bt.UserID,
		Kind:           string(bt.Kind),
		OwnerID:        bt.OwnerID,
		ReservationIDs: bt.ReservationIDs(),
		TotalCents:     bt.TotalCents,
		OccurredAt:     s.now().UTC().Format(time.RFC3339),
	}
	if bt.Dates != nil {
		ev.CheckIn = formatDay(bt.Dates.Start)
		ev.CheckOut = formatDay(bt.Dates.End)
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		log.Warn().Err(err).Int64("booking_id", bt.ID).Str("type", evType).Msg("publish booking event failed")
	}
}

func bookingKey(id int64) string { return fmt.Sprintf("booking:%d", id) }

func userBookingsKey(userID int64, scope domain.BookingsScope) string {
	return fmt.Sprintf("bookings:%d:%s", userID, scope)
}

func invalidateUserBookings(ctx context.Context, c domain.Cache, userID, bookingID int64) {
	_ = c.Del(ctx, bookingKey(bookingID))
	for _, sc := range []domain.BookingsScope{domain.ScopeUpcoming, domain.ScopePast} {
		_ = c.Del(ctx, userBookingsKey(userID, sc))
	}
}
