// Package middleware provides HTTP middleware for request tracing and Bullhorn guards.
package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

// ContextKey is a typed key for context values to avoid collisions.
type ContextKey string

// requestIDKey is the context key for storing the request ID.
const requestIDKey ContextKey = "requestID"

// RequestIDHeader carries the request ID on requests and responses.
const RequestIDHeader = "X-Request-ID"

// NotConnectedMessage is the error body returned while Bullhorn is not authorised.
const NotConnectedMessage = "Bullhorn not connected"

// ConnectionChecker reports whether the search backend has been authorised.
type ConnectionChecker interface {
	Connected() bool
}

// RequestID assigns every request an ID, reusing a valid incoming
// X-Request-ID header, and echoes it on the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(r.Header.Get(RequestIDHeader))
		if err != nil {
			id = uuid.New()
		}

		w.Header().Set(RequestIDHeader, id.String())
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID extracts the request ID from the request context.
func GetRequestID(r *http.Request) (uuid.UUID, error) {
	id, ok := r.Context().Value(requestIDKey).(uuid.UUID)
	if !ok {
		return uuid.Nil, fmt.Errorf("request ID not found in request context")
	}
	return id, nil
}

// RequireConnected rejects requests with 400 until the checker reports a
// connected backend.
func RequireConnected(checker ConnectionChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !checker.Connected() {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": NotConnectedMessage})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestIDKey returns the context key for the request ID (for testing purposes).
func RequestIDKey() ContextKey {
	return requestIDKey
}
