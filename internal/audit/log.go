package audit

import (
	"context"
	"errors"
	"strings"

	"royaltyhub.org/internal/auth"
	"royaltyhub.org/internal/obs"
)

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier to the context for audit logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// LogEvent writes an audit entry enriched with the request id and the
// caller identity found in ctx.
func LogEvent(ctx context.Context, event string, fields map[string]any) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("event name is required")
	}
	copied := make(map[string]any, len(fields))
	for k, v := range fields {
		copied[k] = v
	}

	entry := obs.Logger().Info().
		Str("type", "audit").
		Str("event", event)
	if rid := requestIDFromContext(ctx); rid != "" {
		entry = entry.Str("request_id", rid)
	}
	if id, ok := auth.IdentityFromContext(ctx); ok {
		entry = entry.Str("user_id", id.UserID).Str("role", id.Role.String())
		if id.ClientID != "" {
			entry = entry.Str("client_id", id.ClientID)
		}
	}
	entry.Interface("fields", copied).Msg("audit")
	return nil
}
