package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/angelmondragon/packfinderz-inventory/internal/checkoutlocation"
	"github.com/angelmondragon/packfinderz-inventory/pkg/db/models"
	pkgerrors "github.com/angelmondragon/packfinderz-inventory/pkg/errors"
	"github.com/google/uuid"
)

type stubCheckoutLocations struct {
	checkoutlocation.Service
	selected map[string]*models.Location
	err      error
}

func (s stubCheckoutLocations) GetSelected(_ context.Context, sessionID string) (*models.Location, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.selected[sessionID], nil
}

func TestCheckoutSessionAttachesLocation(t *testing.T) {
	loc := &models.Location{ID: uuid.New(), Name: "Downtown", Active: true}
	svc := stubCheckoutLocations{selected: map[string]*models.Location{"sess-1": loc}}

	var gotSession string
	var gotLocation *models.Location
	handler := CheckoutSession(svc, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSession = checkoutlocation.SessionIDFromContext(r.Context())
		gotLocation, _ = checkoutlocation.LocationFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(sessionHeader, " sess-1 ")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if gotSession != "sess-1" {
		t.Fatalf("unexpected session %q", gotSession)
	}
	if gotLocation == nil || gotLocation.ID != loc.ID {
		t.Fatalf("expected selected location attached, got %+v", gotLocation)
	}
}

func TestCheckoutSessionWithoutHeaderPassesThrough(t *testing.T) {
	svc := stubCheckoutLocations{err: errors.New("must not be called")}
	var attached bool
	handler := CheckoutSession(svc, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, attached = checkoutlocation.LocationFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
	if resp.Code != http.StatusOK || attached {
		t.Fatalf("expected pass-through, got %d attached=%v", resp.Code, attached)
	}
}

func TestCheckoutSessionErrors(t *testing.T) {
	svc := stubCheckoutLocations{err: pkgerrors.New(pkgerrors.CodeDependency, "redis down")}
	handler := CheckoutSession(svc, nil)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(sessionHeader, "sess-1")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", resp.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(sessionHeader, strings.Repeat("x", maxSessionLength+1))
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}
