package controllers

import (
	"errors"
	"net/http"

	"github.com/angelmondragon/packfinderz-inventory/api/responses"
	"github.com/angelmondragon/packfinderz-inventory/api/validators"
	"github.com/angelmondragon/packfinderz-inventory/internal/pos"
	pkgerrors "github.com/angelmondragon/packfinderz-inventory/pkg/errors"
	"github.com/angelmondragon/packfinderz-inventory/pkg/logger"
)

// POSSyncLocation runs one synchronous POS sync for the location.
// Per-line failures are reported in the result with a 200; only a sync that
// could not start is an error response.
func POSSyncLocation(syncer pos.Syncer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		locationID, err := validators.ParseUUIDParam(r, "locationId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		result, err := syncer.SyncLocationByID(ctx, locationID)
		if err != nil {
			if errors.Is(err, pos.ErrNotImplemented) {
				err = pkgerrors.Wrap(pkgerrors.CodeNotImplemented, err, "pos provider not implemented")
			}
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
