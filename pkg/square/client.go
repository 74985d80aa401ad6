package square

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	sq "github.com/square/square-go-sdk"
	sqclient "github.com/square/square-go-sdk/client"
	sqcore "github.com/square/square-go-sdk/core"
	sqoption "github.com/square/square-go-sdk/option"

	"github.com/angelmondragon/packfinderz-inventory/pkg/config"
	pkgerrors "github.com/angelmondragon/packfinderz-inventory/pkg/errors"
	"github.com/angelmondragon/packfinderz-inventory/pkg/logger"
)

const (
	sandboxEnv    = "sandbox"
	productionEnv = "production"

	// Square rejects idempotency keys longer than this.
	maxIdempotencyKey = 128
)

var (
	errNoClient            = errors.New("square client not initialized")
	errAccessTokenRequired = errors.New("square access token is required")
	errInvalidSquareEnv    = fmt.Errorf("square environment must be %q or %q", sandboxEnv, productionEnv)
)

var baseURLs = map[string]string{
	sandboxEnv:    "https://connect.squareupsandbox.com",
	productionEnv: "https://connect.squareup.com",
}

// statusCodes maps Square HTTP statuses onto domain codes. Credentials that
// Square refuses are an integration setup problem, not a caller problem.
var statusCodes = map[int]pkgerrors.Code{
	http.StatusBadRequest:          pkgerrors.CodeValidation,
	http.StatusUnauthorized:        pkgerrors.CodeConfiguration,
	http.StatusForbidden:           pkgerrors.CodeConfiguration,
	http.StatusNotFound:            pkgerrors.CodeNotFound,
	http.StatusConflict:            pkgerrors.CodeConflict,
	http.StatusUnprocessableEntity: pkgerrors.CodeStateConflict,
	http.StatusTooManyRequests:     pkgerrors.CodeRateLimit,
}

// Client wraps the Square SDK inventory API for one seller account.
type Client struct {
	sdk  *sqclient.Client
	env  string
	logg *logger.Logger
}

// NewClient builds a client for cfg. Extra SDK options are applied after the
// environment base URL and token.
func NewClient(ctx context.Context, cfg config.SquareConfig, logg *logger.Logger, opts ...sqoption.RequestOption) (*Client, error) {
	if logg == nil {
		return nil, errors.New("square logger is required")
	}
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}
	token := strings.TrimSpace(cfg.AccessToken)
	if token == "" {
		return nil, errAccessTokenRequired
	}

	c := &Client{
		sdk: sqclient.NewClient(append([]sqoption.RequestOption{
			sqoption.WithBaseURL(baseURLs[env]),
			sqoption.WithToken(token),
		}, opts...)...),
		env:  env,
		logg: logg,
	}
	logg.Debug(logg.WithField(ctx, "square_env", env), "square.client_ready")
	return c, nil
}

// call runs one SDK request, maps its error and logs the outcome.
func (c *Client) call(ctx context.Context, op string, fields map[string]any, fn func(context.Context) error) error {
	if c == nil || c.sdk == nil {
		return errNoClient
	}
	ctx = c.logg.WithFields(ctx, fields)
	ctx = c.logg.WithFields(ctx, map[string]any{"square_op": op, "square_env": c.env})

	start := time.Now()
	err := fn(ctx)
	ctx = c.logg.WithField(ctx, "duration_ms", time.Since(start).Milliseconds())
	if err != nil {
		mapped := mapError(err, op)
		c.logg.Error(ctx, "square.call_failed", mapped)
		return mapped
	}
	c.logg.Debug(ctx, "square.call_ok")
	return nil
}

func mapError(err error, op string) error {
	var apiErr *sqcore.APIError
	if !errors.As(err, &apiErr) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "square "+op)
	}

	code, ok := statusCodes[apiErr.StatusCode]
	switch {
	case ok:
	case apiErr.StatusCode >= 400 && apiErr.StatusCode < 500:
		code = pkgerrors.CodeValidation
	default:
		code = pkgerrors.CodeDependency
	}
	for _, e := range squareErrors(apiErr) {
		switch {
		case e.Code == sq.ErrorCodeIdempotencyKeyReused:
			code = pkgerrors.CodeIdempotency
		case e.Category == sq.ErrorCategoryAuthenticationError:
			code = pkgerrors.CodeConfiguration
		case e.Category == sq.ErrorCategoryRateLimitError:
			code = pkgerrors.CodeRateLimit
		}
	}
	return pkgerrors.Wrap(code, err, fmt.Sprintf("square %s (http %d)", op, apiErr.StatusCode))
}

// squareErrors decodes the {"errors":[...]} body the SDK keeps on APIError.
func squareErrors(apiErr *sqcore.APIError) []*sq.Error {
	inner := apiErr.Unwrap()
	if inner == nil {
		return nil
	}
	var body struct {
		Errors []*sq.Error `json:"errors"`
	}
	if json.Unmarshal([]byte(inner.Error()), &body) != nil {
		return nil
	}
	out := body.Errors[:0]
	for _, e := range body.Errors {
		if e != nil {
			out = append(out, e)
		}
	}
	return out
}

// idempotencyKey returns provided when set, else a fresh prefixed key.
func idempotencyKey(prefix, provided string) string {
	if key := strings.TrimSpace(provided); key != "" {
		return key
	}
	if prefix = strings.TrimSpace(prefix); prefix == "" {
		prefix = "pfinv"
	}
	key := prefix + "-" + uuid.NewString()
	if len(key) > maxIdempotencyKey {
		key = key[len(key)-maxIdempotencyKey:]
	}
	return key
}

func normalizeEnv(raw string) (string, error) {
	env := strings.ToLower(strings.TrimSpace(raw))
	if env == "" {
		return sandboxEnv, nil
	}
	if _, ok := baseURLs[env]; !ok {
		return "", errInvalidSquareEnv
	}
	return env, nil
}

func stringValue(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}
