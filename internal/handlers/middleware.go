package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	apperrors "familytasks/internal/errors"
	"familytasks/internal/security"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const CallerContextKey ContextKey = "caller"

// Middleware holds dependencies for middleware functions
type Middleware struct {
	verifier    *security.TokenVerifier
	joinLimiter *security.RateLimiter
	logger      zerolog.Logger
}

// NewMiddleware creates a new middleware instance
func NewMiddleware(verifier *security.TokenVerifier, joinLimiter *security.RateLimiter, logger zerolog.Logger) *Middleware {
	return &Middleware{
		verifier:    verifier,
		joinLimiter: joinLimiter,
		logger:      logger,
	}
}

// RequireAuth is middleware that requires a valid bearer token
func (m *Middleware) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := security.BearerToken(r.Header.Get("Authorization"))
		if !ok {
			respondWithError(w, m.logger, "missing bearer token", apperrors.New(apperrors.CodeUnauthenticated, "missing bearer token"))
			return
		}

		callerID, err := m.verifier.Verify(token)
		if err != nil {
			respondWithError(w, m.logger, "rejected bearer token", apperrors.Wrap(apperrors.CodeUnauthenticated, "invalid bearer token", err))
			return
		}

		// Add caller to context
		ctx := context.WithValue(r.Context(), CallerContextKey, callerID)
		next(w, r.WithContext(ctx))
	}
}

// RateLimit limits invite-code guessing per caller, or per client IP before authentication
func (m *Middleware) RateLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := GetCallerFromContext(r.Context())
		if key == "" {
			key = security.GetClientIP(r)
		}

		if !m.joinLimiter.Allow(key) {
			m.logger.Warn().Str("client", key).Str("path", r.URL.Path).Msg("rate limit exceeded")
			w.Header().Set("Retry-After", "60")
			respondWithKind(w, http.StatusTooManyRequests, KindRateLimited, "Too many attempts. Please wait a minute and try again.")
			return
		}
		next(w, r)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Logging middleware logs HTTP requests
func Logging(logger zerolog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		// Call next handler
		next.ServeHTTP(rec, r)

		logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

// GetCallerFromContext retrieves the authenticated caller ID from the request context
func GetCallerFromContext(ctx context.Context) string {
	callerID, _ := ctx.Value(CallerContextKey).(string)
	return callerID
}
