package httpapi

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/casthq/warden/pkg/errors"
)

// adminKeyHeader carries the operator key for admin-scoped endpoints.
const adminKeyHeader = "X-Admin-Key"

// admin gates a handler on the configured admin key. With no key
// configured (development) every caller is admitted. The comparison is
// constant-time.
func (s *Server) admin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.adminKey != "" {
			supplied := r.Header.Get(adminKeyHeader)
			if subtle.ConstantTimeCompare([]byte(supplied), []byte(s.adminKey)) != 1 {
				s.writeErrorStatus(w, http.StatusForbidden,
					errors.Auth("missing or invalid admin key"))
				return
			}
		}
		next(w, r)
	}
}

// bearerToken extracts the control token from the Authorization header.
func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", errors.Auth("missing bearer token")
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", errors.Auth("authorization header must use the Bearer scheme")
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if token == "" {
		return "", errors.Auth("missing bearer token")
	}
	return token, nil
}

// logRequests emits one access record per request.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
