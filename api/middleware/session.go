package middleware

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/packfinderz-inventory/api/responses"
	"github.com/angelmondragon/packfinderz-inventory/internal/checkoutlocation"
	pkgerrors "github.com/angelmondragon/packfinderz-inventory/pkg/errors"
	"github.com/angelmondragon/packfinderz-inventory/pkg/logger"
)

const (
	sessionHeader    = "X-Session-Id"
	maxSessionLength = 128
)

// CheckoutSession reads the shopper session header and attaches the session id and,
// when one is stored, the selected location to the request context.
// Requests without the header pass through untouched.
func CheckoutSession(svc checkoutlocation.Service, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := strings.TrimSpace(r.Header.Get(sessionHeader))
			if sessionID == "" || svc == nil {
				next.ServeHTTP(w, r)
				return
			}
			if len(sessionID) > maxSessionLength {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "session id too long"))
				return
			}

			ctx := checkoutlocation.WithSessionID(r.Context(), sessionID)
			if logg != nil {
				ctx = logg.WithSessionID(ctx, sessionID)
			}

			loc, err := svc.GetSelected(ctx, sessionID)
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			if loc != nil {
				ctx = checkoutlocation.WithLocation(ctx, loc)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
