package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/packfinderz-inventory/pkg/errors"
)

func TestParseQueryInt(t *testing.T) {
	cases := []struct {
		query   string
		want    int
		wantErr bool
	}{
		{query: "", want: 25},
		{query: "limit=10", want: 10},
		{query: "limit=0", wantErr: true},
		{query: "limit=101", wantErr: true},
		{query: "limit=ten", wantErr: true},
	}
	for _, tc := range cases {
		r := httptest.NewRequest(http.MethodGet, "/?"+tc.query, nil)
		got, err := ParseQueryInt(r, "limit", 25, 1, 100)
		if tc.wantErr {
			if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
				t.Fatalf("%q: expected validation error, got %v", tc.query, err)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("%q: got %d, %v want %d", tc.query, got, err, tc.want)
		}
	}
}

func TestParseQueryFloat(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?lat=40.7128&lng=NaN&bad=north", nil)
	if got, err := ParseQueryFloat(r, "lat"); err != nil || got != 40.7128 {
		t.Fatalf("lat: got %v, %v", got, err)
	}
	for _, key := range []string{"lng", "bad", "missing"} {
		if _, err := ParseQueryFloat(r, key); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
			t.Fatalf("%s: expected validation error, got %v", key, err)
		}
	}
}

func TestParseUUIDParam(t *testing.T) {
	id := uuid.New()
	withParam := func(value string) *http.Request {
		rc := chi.NewRouteContext()
		rc.URLParams.Add("itemId", value)
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rc))
	}

	if got, err := ParseUUIDParam(withParam(id.String()), "itemId"); err != nil || got != id {
		t.Fatalf("got %v, %v", got, err)
	}
	for _, bad := range []string{"", "abc", uuid.Nil.String()} {
		if _, err := ParseUUIDParam(withParam(bad), "itemId"); err == nil {
			t.Fatalf("%q: expected error", bad)
		}
	}
}
