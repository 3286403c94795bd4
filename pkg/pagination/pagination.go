package pagination

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	// DefaultLimit is the standard page size when a limit is not provided.
	DefaultLimit = 25
	// MaxLimit caps how many rows any cursor query can request.
	MaxLimit = 100
)

// Params holds cursor pagination inputs from controllers or services.
type Params struct {
	Limit  int
	Cursor string
}

// Cursor points at the last row of the previous page, newest first.
type Cursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// Page is a slice of results plus the cursor for the following page.
type Page[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
}

// NormalizeLimit enforces the configured default and maximum limits.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// LimitWithBuffer returns the normalization result plus one to detect the next page.
func LimitWithBuffer(limit int) int {
	return NormalizeLimit(limit) + 1
}

// Keyset restricts query to rows after the cursor and applies the
// created_at DESC, id DESC ordering with a one-row lookahead.
func Keyset(query *gorm.DB, params Params) (*gorm.DB, error) {
	cursor, err := ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}
	return query.Order("created_at DESC").Order("id DESC").Limit(LimitWithBuffer(params.Limit)), nil
}

// Trim cuts a lookahead result set down to the requested page and builds the
// next cursor from the last row that is returned.
func Trim[T any](rows []T, limit int, key func(T) Cursor) Page[T] {
	limit = NormalizeLimit(limit)
	if rows == nil {
		rows = []T{}
	}
	if len(rows) <= limit {
		return Page[T]{Items: rows}
	}
	rows = rows[:limit]
	return Page[T]{
		Items:      rows,
		NextCursor: EncodeCursor(key(rows[limit-1])),
	}
}

// Map converts the items of a page while keeping its cursor.
func Map[T, U any](page Page[T], fn func(T) U) Page[U] {
	out := make([]U, len(page.Items))
	for i, item := range page.Items {
		out[i] = fn(item)
	}
	return Page[U]{Items: out, NextCursor: page.NextCursor}
}

// EncodeCursor builds a URL safe cursor string from the provided values.
func EncodeCursor(cursor Cursor) string {
	payload := fmt.Sprintf("%s|%s", cursor.CreatedAt.UTC().Format(time.RFC3339Nano), cursor.ID.String())
	return base64.RawURLEncoding.EncodeToString([]byte(payload))
}

// ParseCursor decodes the cursor string back into its components. An empty
// value yields a nil cursor.
func ParseCursor(value string) (*Cursor, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}

	decoded, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}
	created, rawID, ok := strings.Cut(string(decoded), "|")
	if !ok {
		return nil, fmt.Errorf("invalid cursor format")
	}

	t, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor timestamp: %w", err)
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor id: %w", err)
	}
	return &Cursor{CreatedAt: t, ID: id}, nil
}
