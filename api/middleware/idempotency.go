package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/packfinderz-inventory/api/responses"
	"github.com/angelmondragon/packfinderz-inventory/internal/checkoutlocation"
	pkgerrors "github.com/angelmondragon/packfinderz-inventory/pkg/errors"
	"github.com/angelmondragon/packfinderz-inventory/pkg/logger"
	pkgredis "github.com/angelmondragon/packfinderz-inventory/pkg/redis"
)

const (
	idempotencyHeader = "Idempotency-Key"

	defaultIdempotencyTTL  = 24 * time.Hour
	criticalIdempotencyTTL = 72 * time.Hour
	inFlightTTL            = time.Minute

	maxIdempotentBody = 1 << 20
)

// idempotentRoutes maps "METHOD pattern" to how long a stored response is replayed.
var idempotentRoutes = map[string]time.Duration{
	"POST /api/v1/inventory/reserve":               criticalIdempotencyTTL,
	"POST /api/v1/inventory/release":               criticalIdempotencyTTL,
	"POST /api/v1/inventory/fulfill":               criticalIdempotencyTTL,
	"POST /api/v1/inventory/replenish":             criticalIdempotencyTTL,
	"POST /api/v1/checkout/reserve":                criticalIdempotencyTTL,
	"PUT /api/v1/inventory/records":                defaultIdempotencyTTL,
	"POST /api/v1/pos/locations/{locationId}/sync": defaultIdempotencyTTL,
}

// storedResponse is either an in-flight claim or a completed 2xx response.
type storedResponse struct {
	Pending     bool   `json:"pending,omitempty"`
	Hash        string `json:"hash"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

// Idempotency replays the first successful response for a repeated
// Idempotency-Key. A key is claimed while its request runs; failed attempts
// release the claim so the client can retry.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ttl, ok := routeTTL(r.Method, routePattern(r))
			if !ok || store == nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()

			clientKey := strings.TrimSpace(r.Header.Get(idempotencyHeader))
			if clientKey == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, idempotencyHeader+" header required"))
				return
			}

			body, err := io.ReadAll(io.LimitReader(r.Body, maxIdempotentBody+1))
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
				return
			}
			if len(body) > maxIdempotentBody {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "request body too large"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			hash := fingerprint(body)
			key := store.IdempotencyKey(buildScope(r), clientKey)

			existing, err := lookupStored(ctx, store, key)
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			if existing == nil {
				claim, _ := json.Marshal(storedResponse{Pending: true, Hash: hash})
				claimed, claimErr := store.SetNX(ctx, key, string(claim), inFlightTTL)
				if claimErr != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, claimErr, "claim idempotency key"))
					return
				}
				if !claimed {
					if existing, err = lookupStored(ctx, store, key); err != nil {
						responses.WriteError(ctx, logg, w, err)
						return
					}
				}
			}
			if existing != nil {
				replay(ctx, logg, w, existing, hash)
				return
			}

			rec := &recorder{ResponseWriter: w, capture: true}
			next.ServeHTTP(rec, r)

			// the client may have gone away; the outcome still has to be settled
			settleCtx := context.WithoutCancel(ctx)
			status := rec.Status()
			if status < 200 || status >= 300 {
				if delErr := store.Del(settleCtx, key); delErr != nil && logg != nil {
					logg.Error(settleCtx, "idempotency.release_failed", delErr)
				}
				return
			}

			payload, _ := json.Marshal(storedResponse{
				Hash:        hash,
				Status:      status,
				ContentType: rec.Header().Get("Content-Type"),
				Body:        rec.body.Bytes(),
			})
			if setErr := store.Set(settleCtx, key, string(payload), ttl); setErr != nil && logg != nil {
				logg.Error(settleCtx, "idempotency.persist_failed", setErr)
			}
		})
	}
}

func lookupStored(ctx context.Context, store pkgredis.IdempotencyStore, key string) (*storedResponse, error) {
	raw, err := store.Get(ctx, key)
	if errors.Is(err, redis.Nil) || (err == nil && raw == "") {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency key")
	}
	var stored storedResponse
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode idempotency record")
	}
	return &stored, nil
}

func replay(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, stored *storedResponse, hash string) {
	switch {
	case stored.Hash != hash:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with a different request body"))
	case stored.Pending:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "a request with this idempotency key is still in progress"))
	default:
		if stored.ContentType != "" {
			w.Header().Set("Content-Type", stored.ContentType)
		}
		w.Header().Set("Idempotent-Replayed", "true")
		w.WriteHeader(stored.Status)
		_, _ = w.Write(stored.Body)
	}
}

// buildScope keeps keys from different operators or shopper sessions apart.
func buildScope(r *http.Request) string {
	ctx := r.Context()
	return strings.Join([]string{
		OperatorFromContext(ctx),
		checkoutlocation.SessionIDFromContext(ctx),
		r.Method,
		r.URL.Path,
	}, "|")
}

func fingerprint(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if pattern := rc.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

func routeTTL(method, pattern string) (time.Duration, bool) {
	ttl, ok := idempotentRoutes[method+" "+pattern]
	return ttl, ok
}
