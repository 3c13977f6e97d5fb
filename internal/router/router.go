package router

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/AlessandraU03/stylepin-api/internal/apperror"
	"github.com/AlessandraU03/stylepin-api/internal/auth"
	"github.com/AlessandraU03/stylepin-api/internal/pin"
	"github.com/AlessandraU03/stylepin-api/internal/ratelimit"
	"github.com/AlessandraU03/stylepin-api/internal/user"
	"github.com/AlessandraU03/stylepin-api/pkg/utilities"
)

const (
	APIPrefix       = "/api/v1"
	RequestIDHeader = "X-Request-ID"
)

// Deps carries everything the routes need. Throttle may be nil.
type Deps struct {
	Logger     *zap.SugaredLogger
	AppName    string
	AppVersion string
	Gate       *auth.Gate
	Throttle   ratelimit.Limiter
	ClientIPs  ratelimit.ClientIPs
	Users      *user.Handler
	Pins       *pin.Handler
}

// loggingResponseWriter wraps http.ResponseWriter to capture status and size.
type loggingResponseWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	if lrw.status == 0 {
		lrw.status = code
	}
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Write(b []byte) (int, error) {
	if lrw.status == 0 {
		lrw.status = http.StatusOK
	}
	n, err := lrw.ResponseWriter.Write(b)
	lrw.size += n
	return n, err
}

type requestIDKey struct{}

// RequestIDFromContext returns the id assigned by RequestIDMiddleware.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// RequestIDMiddleware keeps a caller supplied X-Request-ID or mints a KSUID.
func RequestIDMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(RequestIDHeader)
			if id == "" || len(id) > 64 {
				id = utilities.NewKSUID()
			}
			w.Header().Set(RequestIDHeader, id)
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
		})
	}
}

// LoggingMiddleware returns a middleware that logs requests at debug level using the provided sugared logger.
func LoggingMiddleware(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			lrw := &loggingResponseWriter{ResponseWriter: w}
			next.ServeHTTP(lrw, r)
			status := lrw.status
			if status == 0 {
				status = http.StatusOK
			}
			logger.Debugw("http request",
				"request_id", RequestIDFromContext(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"remote", r.RemoteAddr,
				"status", status,
				"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
				"size", lrw.size,
			)
		})
	}
}

// RecoverMiddleware turns a handler panic into a 500 response.
func RecoverMiddleware(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.Errorw("panic recovered", "request_id", RequestIDFromContext(r.Context()), "panic", rec)
				apperror.Write(w, r, nil, apperror.New(apperror.KindInternal, ""))
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// SecurityHeadersMiddleware sets conservative security headers on every response.
func SecurityHeadersMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "no-referrer")
			h.Set("Cache-Control", "no-store")
			if h.Get("Content-Security-Policy") == "" {
				// JSON only
				h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			}
			if r.TLS != nil {
				h.Set("Strict-Transport-Security", "max-age=2592000; includeSubDomains")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RegisterRoutes mounts every endpoint on a standard library ServeMux.
func RegisterRoutes(d Deps) http.Handler {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status":  "healthy",
			"app":     d.AppName,
			"version": d.AppVersion,
		})
	})

	authed := func(h http.HandlerFunc) http.Handler { return d.Gate.Require(h) }
	admin := func(h http.HandlerFunc) http.Handler {
		return d.Gate.Require(auth.RequireRole(logger, auth.RoleAdmin)(h))
	}
	throttled := func(scope string, h http.HandlerFunc) http.Handler {
		if d.Throttle == nil {
			return h
		}
		return ratelimit.Middleware(d.Throttle, scope, d.ClientIPs, logger)(h)
	}
	route := func(pattern string, h http.Handler) {
		method, path, _ := strings.Cut(pattern, " ")
		mux.Handle(method+" "+APIPrefix+path, h)
	}

	route("POST /auth/register", throttled("register", d.Users.Register))
	route("POST /auth/login", throttled("login", d.Users.Login))

	route("GET /users/me", authed(d.Users.Me))
	route("PATCH /users/me", authed(d.Users.UpdateMe))
	route("DELETE /users/me", authed(d.Users.DeleteMe))
	route("GET /users/{id}", http.HandlerFunc(d.Users.Profile))

	route("POST /admin/users/{id}/unlock", admin(d.Users.Unlock))
	route("POST /admin/users/{id}/deactivate", admin(d.Users.Deactivate))
	route("POST /admin/users/{id}/reactivate", admin(d.Users.Reactivate))

	route("POST /pins", authed(d.Pins.Create))
	route("GET /pins", http.HandlerFunc(d.Pins.List))
	route("GET /pins/search", http.HandlerFunc(d.Pins.Search))
	route("GET /pins/me", authed(d.Pins.Mine))
	route("GET /pins/{id}", d.Gate.Optional(http.HandlerFunc(d.Pins.Get)))
	route("PATCH /pins/{id}", authed(d.Pins.Update))
	route("DELETE /pins/{id}", authed(d.Pins.Delete))

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		apperror.Write(w, r, nil, apperror.NotFound("Not found"))
	})

	var h http.Handler = mux
	h = SecurityHeadersMiddleware()(h)
	h = RecoverMiddleware(logger)(h)
	h = LoggingMiddleware(logger)(h)
	return RequestIDMiddleware()(h)
}
