package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"jetstay/internal/domain"
)

const maxBody = 1 << 20

type roomBookingBody struct {
	HotelID  int64             `json:"hotel_id"`
	CheckIn  string            `json:"check_in"`
	CheckOut string            `json:"check_out"`
	Guests   int               `json:"guests"`
	Rooms    []domain.RoomLine `json:"rooms"`
}

func (b roomBookingBody) toRequest() (domain.RoomBookingRequest, error) {
	var verrs domain.ValidationErrors
	in, err := time.Parse(time.DateOnly, b.CheckIn)
	if err != nil {
		verrs = append(verrs, domain.ValidationError{Field: "check_in", Message: "must be a date in YYYY-MM-DD form"})
	}
	out, err := time.Parse(time.DateOnly, b.CheckOut)
	if err != nil {
		verrs = append(verrs, domain.ValidationError{Field: "check_out", Message: "must be a date in YYYY-MM-DD form"})
	}
	if len(verrs) > 0 {
		return domain.RoomBookingRequest{}, verrs
	}
	return domain.RoomBookingRequest{
		HotelID:  b.HotelID,
		CheckIn:  in,
		CheckOut: out,
		Guests:   b.Guests,
		Lines:    b.Rooms,
	}, nil
}

// decodeBody reads one JSON object of at most maxBody bytes into dst.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	if err := dec.Decode(dst); err != nil {
		var mbe *http.MaxBytesError
		switch {
		case errors.As(err, &mbe):
			writeProblem(w, http.StatusRequestEntityTooLarge, "Body too large", "")
		case errors.Is(err, io.EOF):
			badRequest(w, "body", "is required")
		default:
			badRequest(w, "body", "must be valid JSON")
		}
		return false
	}
	return true
}

func (h *Handlers) bookRooms(w http.ResponseWriter, r *http.Request) {
	var body roomBookingBody
	if !decodeBody(w, r, &body) {
		return
	}
	req, err := body.toRequest()
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := h.B.BookRooms(r.Context(), req, UserID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *Handlers) bookTickets(w http.ResponseWriter, r *http.Request) {
	var req domain.TicketBookingRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := h.B.BookTickets(r.Context(), req, UserID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *Handlers) cancelBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	bt, err := h.B.CancelBooking(r.Context(), id, UserID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bt)
}

func (h *Handlers) listBookings(w http.ResponseWriter, r *http.Request) {
	scope := domain.BookingsScope(r.URL.Query().Get("scope"))
	if scope == "" {
		scope = domain.ScopeUpcoming
	}
	out, err := h.Q.ListBookings(r.Context(), UserID(r.Context()), scope)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out})
}

func (h *Handlers) getBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	bt, err := h.Q.GetBooking(r.Context(), id, UserID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bt)
}

func (h *Handlers) submitReview(w http.ResponseWriter, r *http.Request) {
	var req domain.ReviewRequest
	if !decodeBody(w, r, &req) {
		return
	}
	rv, err := h.R.Submit(r.Context(), UserID(r.Context()), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rv)
}

func (h *Handlers) deleteReview(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "bookingID")
	if !ok {
		return
	}
	if err := h.R.Delete(r.Context(), UserID(r.Context()), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
