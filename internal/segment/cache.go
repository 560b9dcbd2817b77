// Package segment wraps the slow external document segmenter behind a
// single-flight cache: at most one fetch is ever in flight per distinct
// document, and terminal outcomes are sticky.
package segment

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/singleflight"
)

// ErrDocumentMissing means the remote document identifier does not
// resolve to a document. Never retried.
var ErrDocumentMissing = errors.New("document identifier does not resolve")

// ErrDocumentUnreachable means the document could not be accessed.
// Possibly transient, so the cache allows one automatic retry.
var ErrDocumentUnreachable = errors.New("could not access requested document")

// Segment is one region produced by the external segmenter. Opaque to
// the cache.
type Segment struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Speaker string  `json:"speaker"`
}

// FetchFunc performs the external fetch-and-segment call for one
// document. On failure it reports ErrDocumentMissing or
// ErrDocumentUnreachable (possibly wrapped).
type FetchFunc func(ctx context.Context, documentKey string) ([]Segment, error)

type record struct {
	segments []Segment
	err      error
}

// Cache memoizes segmentation results per document key. Entries never
// expire. Concurrent requests for a document not yet cached share a
// single in-flight fetch; waiters block until it resolves and observe
// the same outcome.
type Cache struct {
	mu      sync.Mutex
	records map[string]*record
	retried map[string]bool
	group   singleflight.Group
}

func NewCache() *Cache {
	return &Cache{
		records: make(map[string]*record),
		retried: make(map[string]bool),
	}
}

// Fetch returns the cached result for documentKey or invokes fn exactly
// once to produce it. A recorded ErrDocumentMissing is returned as-is
// forever; a recorded ErrDocumentUnreachable is retried once on a later
// request, after which the failure also sticks.
func (c *Cache) Fetch(ctx context.Context, documentKey string, fn FetchFunc) ([]Segment, error) {
	c.mu.Lock()
	if rec, ok := c.records[documentKey]; ok {
		if rec.err == nil {
			segments := rec.segments
			c.mu.Unlock()
			return segments, nil
		}
		if errors.Is(rec.err, ErrDocumentUnreachable) && !c.retried[documentKey] {
			// Spend the single retry: drop the terminal record so this
			// and any concurrent caller share one fresh fetch.
			c.retried[documentKey] = true
			delete(c.records, documentKey)
		} else {
			err := rec.err
			c.mu.Unlock()
			return nil, err
		}
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do(documentKey, func() (any, error) {
		segments, err := fn(ctx, documentKey)
		if err != nil {
			segments = nil
		}
		c.mu.Lock()
		c.records[documentKey] = &record{segments: segments, err: err}
		c.mu.Unlock()
		if err != nil {
			return nil, err
		}
		return segments, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]Segment), nil
}

// Len reports the number of terminal records, for status reporting.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.records)
}
