package pagination

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const cursorSep = "|"

var errCursorFormat = errors.New("invalid cursor format")

// Cursor points at the last row of a newest-first feed.
type Cursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// After restricts a newest-first query to rows strictly older than the
// cursor. Callers order by "created_at DESC, id DESC". A nil cursor is a
// no-op so it can be passed straight from ParseCursor.
func (c *Cursor) After(db *gorm.DB) *gorm.DB {
	if c == nil {
		return db
	}
	return db.Where("(created_at < ?) OR (created_at = ? AND id < ?)", c.CreatedAt, c.CreatedAt, c.ID)
}

// Window fetches one row more than the caller wants so Trim can tell
// whether another page exists.
func Window(limit int) int {
	return NormalizeLimit(limit) + 1
}

// Trim cuts rows fetched with Window back to the requested limit and
// returns the cursor of the last kept row when more rows remain.
func Trim[T any](rows []T, limit int, key func(T) Cursor) ([]T, *Cursor) {
	n := NormalizeLimit(limit)
	if len(rows) <= n {
		return rows, nil
	}
	rows = rows[:n]
	next := key(rows[n-1])
	return rows, &next
}

func EncodeCursor(c Cursor) string {
	raw := c.CreatedAt.UTC().Format(time.RFC3339Nano) + cursorSep + c.ID.String()
	return base64.URLEncoding.EncodeToString([]byte(raw))
}

// ParseCursor decodes a value produced by EncodeCursor. Blank input yields
// a nil cursor, meaning the first page.
func ParseCursor(value string) (*Cursor, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	decoded, err := base64.URLEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}
	stamp, id, ok := strings.Cut(string(decoded), cursorSep)
	if !ok {
		return nil, errCursorFormat
	}
	createdAt, err := time.Parse(time.RFC3339Nano, stamp)
	if err != nil {
		return nil, fmt.Errorf("cursor timestamp: %w", err)
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("cursor id: %w", err)
	}
	return &Cursor{CreatedAt: createdAt, ID: parsed}, nil
}
