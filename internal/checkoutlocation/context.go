package checkoutlocation

import (
	"context"

	"github.com/angelmondragon/packfinderz-inventory/pkg/db/models"
)

type contextKey string

const (
	ctxLocation  contextKey = "checkout_location"
	ctxSessionID contextKey = "checkout_session_id"
)

// WithLocation attaches the session's selected location to ctx.
func WithLocation(ctx context.Context, location *models.Location) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxLocation, location)
}

// LocationFromContext returns the selected location, if one was attached.
func LocationFromContext(ctx context.Context) (*models.Location, bool) {
	if ctx == nil {
		return nil, false
	}
	loc, ok := ctx.Value(ctxLocation).(*models.Location)
	return loc, ok && loc != nil
}

func WithSessionID(ctx context.Context, sessionID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxSessionID, sessionID)
}

func SessionIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxSessionID).(string); ok {
		return v
	}
	return ""
}
