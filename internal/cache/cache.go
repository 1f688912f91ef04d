package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

// ErrMiss is returned by Store.Load when no entry exists for a URL.
var ErrMiss = errors.New("cache miss")

// Entry is a cached upstream response. ETag and LastModified allow a stale
// entry to be revalidated with a conditional request.
type Entry struct {
	URL          string    `json:"url"`
	ContentType  string    `json:"content_type"`
	ETag         string    `json:"etag"`
	LastModified string    `json:"last_modified"`
	SavedAt      time.Time `json:"saved_at"`
	Body         []byte    `json:"body,omitempty"`
}

// Fresh reports whether the entry is younger than ttl at now.
func (e *Entry) Fresh(now time.Time, ttl time.Duration) bool {
	if e == nil || ttl <= 0 {
		return false
	}
	return now.Sub(e.SavedAt) < ttl
}

// Revalidatable reports whether the entry carries a validator.
func (e *Entry) Revalidatable() bool {
	return e != nil && (e.ETag != "" || e.LastModified != "")
}

// Store persists upstream responses keyed by URL.
type Store interface {
	Load(ctx context.Context, url string) (*Entry, error)
	Save(ctx context.Context, e *Entry) error
}

// Key is the storage key for url, shared by all backends.
func Key(url string) string {
	h := sha256.Sum256([]byte(url))
	return hex.EncodeToString(h[:])
}
