package apperror

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// Status returns the HTTP status bound to a kind.
func Status(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindConflict:
		return http.StatusConflict
	case KindInvalidCredentials, KindUnauthenticated:
		return http.StatusUnauthorized
	case KindAccountLocked:
		return http.StatusLocked
	case KindAccountDeactivated, KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Body is the JSON error envelope.
type Body struct {
	Error   Kind         `json:"error"`
	Message string       `json:"message"`
	Details []FieldError `json:"details,omitempty"`
}

// Write maps err onto the response. Internal failures are logged with their
// cause and answered with an opaque message.
func Write(w http.ResponseWriter, r *http.Request, logger *zap.SugaredLogger, err error) {
	e := From(err)
	status := Status(e.Kind)

	if logger != nil {
		if status >= http.StatusInternalServerError {
			logger.Errorw("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		} else {
			logger.Debugw("request rejected", "method", r.Method, "path", r.URL.Path, "kind", e.Kind, "err", err)
		}
	}

	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	if !e.RetryAt.IsZero() {
		secs := int(math.Ceil(time.Until(e.RetryAt).Seconds()))
		if secs < 1 {
			secs = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(secs))
	}

	msg := e.Message
	if e.Kind == KindInternal || msg == "" {
		msg = http.StatusText(status)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Body{Error: e.Kind, Message: msg, Details: e.Details})
}
