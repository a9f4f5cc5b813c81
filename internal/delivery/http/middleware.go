package httpd

import (
	"crypto/subtle"
	"net/http"
	"time"

	"eco_api/internal/apperrors"
	"eco_api/internal/logger"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

const (
	RequestIDHeader  = "X-Request-ID"
	AdminTokenHeader = "X-Admin-Token"
)

// RequestID propagates the caller's request id or assigns a new one, and
// stores it in the request context for logging.
func RequestID(next http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(logger.WithRequestID(r.Context(), id)))
	}
	return http.HandlerFunc(fn)
}

func AccessLog(next http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		log := logger.FromContext(r.Context())
		args := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"duration", time.Since(start),
			"bytes", ww.BytesWritten(),
		}
		switch {
		case status >= 500:
			log.Error("request", args...)
		case status >= 400:
			log.Warn("request", args...)
		default:
			log.Info("request", args...)
		}
	}
	return http.HandlerFunc(fn)
}

// AdminOnly rejects requests without the configured admin token.
func AdminOnly(token string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(AdminTokenHeader)
			if token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				writeJSON(w, http.StatusUnauthorized, ErrorResp{Error: string(apperrors.CodeAuthenticationFailed), Message: "admin token required"})
				return
			}
			next.ServeHTTP(w, r)
		}
		return http.HandlerFunc(fn)
	}
}
