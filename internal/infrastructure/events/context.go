package events

import (
	"context"

	"github.com/google/uuid"
)

type ctxKey int

const (
	correlationIDKey ctxKey = iota
	userIDKey
)

// scopedContext builds the request-scoped context for one message: a
// correlation id taken from the event metadata or freshly generated, and
// the acting user when the publisher attached one.
func scopedContext(parent context.Context, correlationID, userID string) context.Context {
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	ctx := context.WithValue(parent, correlationIDKey, correlationID)
	if userID != "" {
		ctx = context.WithValue(ctx, userIDKey, userID)
	}
	return ctx
}

func CorrelationIDFrom(ctx context.Context) string {
	if v, ok := ctx.Value(correlationIDKey).(string); ok {
		return v
	}
	return ""
}

func UserIDFrom(ctx context.Context) string {
	if v, ok := ctx.Value(userIDKey).(string); ok {
		return v
	}
	return ""
}
