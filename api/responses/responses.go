package responses

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	pkgerrors "github.com/angelmondragon/packfinderz-inventory/pkg/errors"
	"github.com/angelmondragon/packfinderz-inventory/pkg/logger"
)

var errUnknown = errors.New("unknown error")

func WriteSuccess(w http.ResponseWriter, data any) {
	WriteSuccessStatus(w, http.StatusOK, data)
}

func WriteSuccessStatus(w http.ResponseWriter, status int, data any) {
	_ = encode(w, status, Success{Data: data})
}

// WriteError renders err as a Failure and logs its full diagnostic. Untyped
// errors are reported as internal.
func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	if err == nil {
		err = errUnknown
	}
	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
	}

	problem, status := toProblem(typed)

	if logg != nil {
		ctx = logg.WithFields(ctx, pkgerrors.Diagnose(err).Fields())
		ctx = logg.WithField(ctx, "status", status)
		if status >= http.StatusInternalServerError {
			logg.Error(ctx, "request.error", err)
		} else {
			logg.Warn(ctx, "request.rejected")
		}
	}

	if encodeErr := encode(w, status, Failure{Error: problem}); encodeErr != nil && logg != nil {
		logg.Error(ctx, "response.encode_failed", encodeErr)
	}
}

// toProblem exposes caller-facing messages for client errors and 501, and
// the catalog's public message for everything else.
func toProblem(typed *pkgerrors.Error) (Problem, int) {
	meta := pkgerrors.MetadataFor(typed.Code())
	problem := Problem{Code: string(typed.Code()), Message: meta.PublicMessage}

	exposeMessage := meta.HTTPStatus < http.StatusInternalServerError ||
		typed.Code() == pkgerrors.CodeNotImplemented
	if msg := typed.Message(); exposeMessage && msg != "" {
		problem.Message = msg
	}
	if meta.DetailsAllowed {
		problem.Details = typed.Details()
	}
	return problem, meta.HTTPStatus
}

func encode(w http.ResponseWriter, status int, payload any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(payload)
}
