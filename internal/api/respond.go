package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/safar/orderdesk/internal/invoice"
	"github.com/safar/orderdesk/internal/orders"
)

const retryAfterSeconds = "1"

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("api: failed to encode JSON response")
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, orders.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, orders.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, orders.ErrInvalidTransition),
		errors.Is(err, orders.ErrConflict),
		errors.Is(err, invoice.ErrInvoiceNotAvailable):
		return http.StatusConflict
	case errors.Is(err, orders.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondDomainError writes the mapped status. Internal and transient
// failures are logged and hidden behind a generic message.
func respondDomainError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("api: " + msg)
		respondError(w, status, "internal server error")
		return
	}
	if status == http.StatusServiceUnavailable {
		log.Warn().Err(err).Str("path", r.URL.Path).Msg("api: " + msg)
		w.Header().Set("Retry-After", retryAfterSeconds)
		respondError(w, status, "service temporarily unavailable, retry later")
		return
	}
	log.Debug().Err(err).Str("path", r.URL.Path).Int("status", status).Msg("api: " + msg)
	respondError(w, status, err.Error())
}
