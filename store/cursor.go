package store

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// cursor is the position of the last post on a page: creation time with the
// post ID as tie-breaker.
type cursor struct {
	At time.Time
	ID string
}

func encodeCursor(p Post) string {
	raw := strconv.FormatInt(p.CreatedAt.UnixMicro(), 10) + ":" + p.ID
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func decodeCursor(s string) (cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return cursor{}, fmt.Errorf("%w: malformed cursor", ErrInvalidFeedQuery)
	}
	ts, id, ok := strings.Cut(string(raw), ":")
	if !ok || id == "" {
		return cursor{}, fmt.Errorf("%w: malformed cursor", ErrInvalidFeedQuery)
	}
	us, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return cursor{}, fmt.Errorf("%w: malformed cursor", ErrInvalidFeedQuery)
	}
	return cursor{At: time.UnixMicro(us).UTC(), ID: id}, nil
}

// after reports whether p comes after c in the given order.
func (c cursor) after(p Post, order Order) bool {
	if order == OrderAsc {
		return p.CreatedAt.After(c.At) || (p.CreatedAt.Equal(c.At) && p.ID > c.ID)
	}
	return p.CreatedAt.Before(c.At) || (p.CreatedAt.Equal(c.At) && p.ID < c.ID)
}

// now is truncated to the precision Postgres keeps so cursors round-trip.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
