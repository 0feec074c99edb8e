package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"jetstay/internal/domain"
)

type problem struct {
	Type   string                   `json:"type"`
	Title  string                   `json:"title"`
	Status int                      `json:"status"`
	Detail string                   `json:"detail,omitempty"`
	Errors []domain.ValidationError `json:"errors,omitempty"`
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	writeProblemBody(w, problem{Type: "about:blank", Title: title, Status: status, Detail: detail})
}

func writeProblemBody(w http.ResponseWriter, p problem) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	if err := json.NewEncoder(w).Encode(p); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// writeError maps service errors onto problem responses. Unknown errors
// become a bare 500 so storage details do not leak.
func writeError(w http.ResponseWriter, err error) {
	var (
		verrs domain.ValidationErrors
		ii    *domain.InsufficientInventoryError
		tl    *domain.TransientLockError
	)
	switch {
	case errors.As(err, &verrs):
		writeProblemBody(w, problem{Type: "about:blank", Title: "Invalid request", Status: http.StatusBadRequest, Errors: verrs})
	case errors.Is(err, domain.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, domain.ErrForbidden):
		writeProblem(w, http.StatusForbidden, "Forbidden", "not your booking")
	case errors.As(err, &ii):
		writeProblem(w, http.StatusConflict, "Insufficient inventory", ii.Error())
	case errors.Is(err, domain.ErrConflict):
		writeProblem(w, http.StatusConflict, "Conflict", "the resource is not in a state that allows this")
	case errors.As(err, &tl), errors.Is(err, context.DeadlineExceeded):
		w.Header().Set("Retry-After", "1")
		writeProblem(w, http.StatusServiceUnavailable, "Busy", "inventory is busy, retry shortly")
	case errors.Is(err, context.Canceled):
		writeProblem(w, http.StatusServiceUnavailable, "Canceled", "request canceled")
	default:
		log.Error().Err(err).Msg("request failed")
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "")
	}
}

func badRequest(w http.ResponseWriter, field, msg string) {
	writeError(w, domain.ValidationErrors{{Field: field, Message: msg}})
}
