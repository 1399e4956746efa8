// Package pagination implements opaque keyset cursors for listing feeds.
// A cursor encodes the (created_at, id) pair of the last row served, so pages
// stay stable while new listings keep arriving at the head of the feed.
package pagination

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultLimit is the standard page size when a limit is not provided.
	DefaultLimit = 25
	// MaxLimit caps how many rows any cursor query can request.
	MaxLimit = 100

	cursorSep = "|"
)

// Params holds cursor pagination inputs from controllers or services.
type Params struct {
	Limit  int
	Cursor string
}

// Cursor is a decoded pagination position. Listings use monotonically
// increasing integer IDs, so the ID doubles as a tiebreaker for rows created
// in the same instant.
type Cursor struct {
	CreatedAt time.Time
	ID        int64
}

// NormalizeLimit clamps limit into [1, MaxLimit], using DefaultLimit for
// zero or negative values.
func NormalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}

// LimitWithBuffer returns the normalized limit plus one. Fetching one extra
// row is how callers learn whether a next page exists.
func LimitWithBuffer(limit int) int {
	return NormalizeLimit(limit) + 1
}

// EncodeCursor serializes a cursor position into an opaque base64 token.
func EncodeCursor(cursor Cursor) string {
	ts := cursor.CreatedAt.UTC().Format(time.RFC3339Nano)
	return base64.StdEncoding.EncodeToString([]byte(ts + cursorSep + strconv.FormatInt(cursor.ID, 10)))
}

// ParseCursor decodes a token produced by EncodeCursor. An empty token means
// "start from the top" and yields a nil cursor without error.
func ParseCursor(value string) (*Cursor, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}

	decoded, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}

	ts, rawID, found := strings.Cut(string(decoded), cursorSep)
	if !found {
		return nil, fmt.Errorf("invalid cursor format")
	}
	createdAt, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor timestamp: %w", err)
	}
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor id: %w", err)
	}
	return &Cursor{CreatedAt: createdAt, ID: id}, nil
}
