package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultLimit = 25
	MaxLimit     = 100
)

var errMalformedCursor = errors.New("malformed cursor")

// Params is a keyset page request as it arrives from a handler.
type Params struct {
	Limit  int
	Cursor string
}

// Size clamps the requested limit into [1, MaxLimit].
func (p Params) Size() int {
	switch {
	case p.Limit <= 0:
		return DefaultLimit
	case p.Limit > MaxLimit:
		return MaxLimit
	default:
		return p.Limit
	}
}

// Position decodes the opaque cursor; a blank cursor means the first page.
func (p Params) Position() (*Cursor, error) {
	raw := strings.TrimSpace(p.Cursor)
	if raw == "" {
		return nil, nil
	}
	payload, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformedCursor, err)
	}
	var c Cursor
	if err := json.Unmarshal(payload, &c); err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformedCursor, err)
	}
	if c.At.IsZero() || c.ID == uuid.Nil {
		return nil, errMalformedCursor
	}
	return &c, nil
}

// Cursor points at the last row of a page ordered by (created_at, id) descending.
type Cursor struct {
	At time.Time `json:"at"`
	ID uuid.UUID `json:"id"`
}

func (c *Cursor) String() string {
	if c == nil {
		return ""
	}
	payload, _ := json.Marshal(Cursor{At: c.At.UTC(), ID: c.ID})
	return base64.RawURLEncoding.EncodeToString(payload)
}

// Trim cuts rows fetched with size+1 down to size and returns the cursor for
// the next page, or nil when rows was the last page.
func Trim[T any](rows []T, size int, position func(T) Cursor) ([]T, *Cursor) {
	if size <= 0 || len(rows) <= size {
		return rows, nil
	}
	rows = rows[:size]
	next := position(rows[size-1])
	return rows, &next
}
