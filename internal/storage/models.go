package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Annotation is one time-aligned record inside an entry payload. The
// store does not validate Start < End; payloads round-trip exactly as
// posted.
type Annotation struct {
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Speaker    string  `json:"speaker"`
	Annotation string  `json:"annotation"`
}

// Entry is one immutable revision of a (owner, key) series. Revisions
// are store-assigned, gapless, and start at 1.
type Entry struct {
	ID        int64
	OwnerID   string
	Key       string
	Revision  int
	Payload   []Annotation
	CreatedAt time.Time
}
