// internal/adapters/http_server/handlers.go
package httpserver

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"jetstay/internal/app"
	"jetstay/internal/domain"
)

type Queries interface {
	GetHotel(ctx context.Context, id int64) (domain.HotelView, error)
	ListReviews(ctx context.Context, id int64, pg domain.PageQuery) (domain.ReviewsPage, error)
	RoomAvailability(ctx context.Context, hotelID, roomTypeID int64, checkIn, checkOut time.Time) (domain.Availability, error)
	TicketAvailability(ctx context.Context, flightID, tripTypeID int64) (domain.Availability, error)
	GetBooking(ctx context.Context, id, userID int64) (domain.BookingTransaction, error)
	ListBookings(ctx context.Context, userID int64, scope domain.BookingsScope) ([]domain.BookingTransaction, error)
}

type Bookings interface {
	BookRooms(ctx context.Context, req domain.RoomBookingRequest, requesterID int64) (app.RoomBookingResult, error)
	BookTickets(ctx context.Context, req domain.TicketBookingRequest, requesterID int64) (app.TicketBookingResult, error)
	CancelBooking(ctx context.Context, bookingID, requesterID int64) (domain.BookingTransaction, error)
}

type Reviews interface {
	Submit(ctx context.Context, userID int64, req domain.ReviewRequest) (domain.Review, error)
	Delete(ctx context.Context, userID, bookingID int64) error
}

type Handlers struct {
	Q         Queries
	B         Bookings
	R         Reviews
	JWTSecret string
	Limiter   *Limiter
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })

	// public reads
	s.mux.Get("/v1/hotels/{id}", h.getHotel)
	s.mux.Get("/v1/hotels/{id}/reviews", h.listReviews)
	s.mux.Get("/v1/hotels/{id}/room-types/{roomTypeID}/availability", h.roomAvailability)
	s.mux.Get("/v1/flights/{id}/trip-types/{tripTypeID}/availability", h.ticketAvailability)

	s.mux.Group(func(r chi.Router) {
		r.Use(Auth(h.JWTSecret))

		r.With(RateLimit(h.Limiter)).Post("/v1/hotels/bookings", h.bookRooms)
		r.With(RateLimit(h.Limiter)).Post("/v1/flights/tickets", h.bookTickets)
		r.With(RateLimit(h.Limiter)).Post("/v1/bookings/{id}/cancel", h.cancelBooking)
		r.Get("/v1/bookings", h.listBookings)
		r.Get("/v1/bookings/{id}", h.getBooking)

		r.With(RateLimit(h.Limiter)).Post("/v1/hotels/reviews", h.submitReview)
		r.Delete("/v1/hotels/reviews/{bookingID}", h.deleteReview)
	})
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		// Log but don't fail the whole response; return empty ETag and best-effort body.
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

// writeCached writes v with a weak ETag and honors If-None-Match.
func writeCached(w http.ResponseWriter, r *http.Request, v any) {
	etag, body := calcETagAndBody(v)
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("failed to write body")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		badRequest(w, name, "must be a positive integer")
		return 0, false
	}
	return id, true
}

func (h *Handlers) getHotel(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	resp, err := h.Q.GetHotel(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeCached(w, r, resp)
}

func (h *Handlers) listReviews(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	limit := 50
	if ls := r.URL.Query().Get("limit"); ls != "" {
		l, err := strconv.Atoi(ls)
		if err != nil || l <= 0 || l > 200 {
			writeProblem(w, http.StatusBadRequest, "Invalid limit", "limit must be an integer between 1 and 200")
			return
		}
		limit = l
	}

	// Newest first; aligns with DB index on (hotel_id, created_at)
	page := domain.PageQuery{Limit: limit, Cursor: nil, Sort: "-created_at"}
	out, err := h.Q.ListReviews(r.Context(), id, page)
	if err != nil {
		writeError(w, err)
		return
	}
	writeCached(w, r, out)
}

func (h *Handlers) roomAvailability(w http.ResponseWriter, r *http.Request) {
	hotelID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	roomTypeID, ok := pathID(w, r, "roomTypeID")
	if !ok {
		return
	}
	in, ok := queryDate(w, r, "check_in")
	if !ok {
		return
	}
	out, ok := queryDate(w, r, "check_out")
	if !ok {
		return
	}
	av, err := h.Q.RoomAvailability(r.Context(), hotelID, roomTypeID, in, out)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, av)
}

func (h *Handlers) ticketAvailability(w http.ResponseWriter, r *http.Request) {
	flightID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	tripTypeID, ok := pathID(w, r, "tripTypeID")
	if !ok {
		return
	}
	av, err := h.Q.TicketAvailability(r.Context(), flightID, tripTypeID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, av)
}

func queryDate(w http.ResponseWriter, r *http.Request, name string) (time.Time, bool) {
	t, err := time.Parse(time.DateOnly, r.URL.Query().Get(name))
	if err != nil {
		badRequest(w, name, "must be a date in YYYY-MM-DD form")
		return time.Time{}, false
	}
	return t, true
}
