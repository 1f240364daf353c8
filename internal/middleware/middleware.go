// Package middleware carries the cross-cutting HTTP concerns: request IDs,
// access logging, panic recovery, and identity extraction.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	userIDKey    contextKey = "user_id"
	userNameKey  contextKey = "user_name"
)

// Identity headers. Authentication is out of scope; the gateway in front of
// this service is trusted to fill them.
const (
	HeaderUserID   = "X-User-ID"
	HeaderUserName = "X-User-Name"
)

// RequestID assigns a UUID to every request and echoes it in the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Identity copies the user headers into the request context. Requests
// without a user id are allowed through; handlers that need one reject them.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if id := r.Header.Get(HeaderUserID); id != "" {
			ctx = context.WithValue(ctx, userIDKey, id)
		}
		if name := r.Header.Get(HeaderUserName); name != "" {
			ctx = context.WithValue(ctx, userNameKey, name)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// LogRequests writes one access log line per request.
func LogRequests(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Info("request",
				"method", r.Method,
				"uri", r.URL.RequestURI(),
				"duration", time.Since(start).String(),
				"request_id", RequestIDFromContext(r.Context()),
			)
		})
	}
}

// RecoverPanic converts handler panics into 500s instead of dropped
// connections.
func RecoverPanic(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					w.Header().Set("Connection", "close")
					logger.Error("panic recovered", "error", err,
						"request_id", RequestIDFromContext(r.Context()))
					http.Error(w, "internal server error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// RequestIDFromContext returns the request id, or empty.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// UserIDFromContext returns the caller's user id, or empty.
func UserIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

// UserNameFromContext returns the caller's display name, or empty.
func UserNameFromContext(ctx context.Context) string {
	name, _ := ctx.Value(userNameKey).(string)
	return name
}
