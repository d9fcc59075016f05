package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-farm-market.git/internal/orders"
)

type envelope struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Data      any       `json:"data,omitempty"`
	Error     string    `json:"error,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeOK(w http.ResponseWriter, r *http.Request, code int, message string, data any) {
	writeJSON(w, code, envelope{
		Success:   true,
		Message:   message,
		Data:      data,
		RequestID: middleware.GetReqID(r.Context()),
		Timestamp: time.Now().UTC(),
	})
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code, msg := statusFor(err)
	detail := err.Error()
	if code == http.StatusInternalServerError {
		detail = "internal error"
	}
	writeJSON(w, code, envelope{
		Success:   false,
		Message:   msg,
		Error:     detail,
		RequestID: middleware.GetReqID(r.Context()),
		Timestamp: time.Now().UTC(),
	})
}

// fail logs server-side failures before answering; client errors are not logged.
func fail(log *zap.Logger, w http.ResponseWriter, r *http.Request, err error) {
	if code, _ := statusFor(err); code >= http.StatusInternalServerError && log != nil {
		log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err))
	}
	writeError(w, r, err)
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, errNoIdentity):
		return http.StatusUnauthorized, "Unauthorized"
	case errors.Is(err, errBadRequest),
		errors.Is(err, orders.ErrInvalidQuantity),
		errors.Is(err, orders.ErrInvalidInput):
		return http.StatusBadRequest, "Invalid request"
	case errors.Is(err, orders.ErrNotFound):
		return http.StatusNotFound, "Not found"
	case errors.Is(err, orders.ErrUnauthorized):
		return http.StatusForbidden, "Forbidden"
	case errors.Is(err, orders.ErrInsufficientStock):
		return http.StatusConflict, "Insufficient stock"
	case errors.Is(err, orders.ErrInvalidTransition):
		return http.StatusConflict, "Invalid status transition"
	case errors.Is(err, orders.ErrProductUnavailable):
		return http.StatusConflict, "Product unavailable"
	case errors.Is(err, errRequestInFlight):
		return http.StatusConflict, "Duplicate request"
	case errors.Is(err, orders.ErrTransientConflict):
		return http.StatusServiceUnavailable, "Busy, retry"
	default:
		return http.StatusInternalServerError, "Internal error"
	}
}

var errBadRequest = errors.New("bad request")

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Join(errBadRequest, err)
	}
	return nil
}
