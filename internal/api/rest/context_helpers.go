package rest

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

type contextKey string

const (
	contextKeyUserID    contextKey = "user_id"
	contextKeyRequestID contextKey = "request_id"
)

// userFromContext extracts the authenticated user ID set by the auth
// middleware
func userFromContext(ctx context.Context) (uuid.UUID, error) {
	val := ctx.Value(contextKeyUserID)
	if val == nil {
		return uuid.Nil, errors.New("user ID not found in context")
	}

	userID, ok := val.(uuid.UUID)
	if !ok {
		return uuid.Nil, errors.New("invalid user ID type in context")
	}
	return userID, nil
}

// requestIDFromContext returns the request ID, empty when absent
func requestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(contextKeyRequestID).(string); ok {
		return id
	}
	return ""
}
