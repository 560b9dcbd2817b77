package segment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"golang.org/x/sync/errgroup"
)

func countingFetch(calls *atomic.Int64, segments []Segment, err error) FetchFunc {
	return func(ctx context.Context, documentKey string) ([]Segment, error) {
		calls.Add(1)
		return segments, err
	}
}

func TestFetchCachesSuccess(t *testing.T) {
	c := NewCache()
	var calls atomic.Int64
	want := []Segment{{Start: 0, End: 1.5, Speaker: "1"}, {Start: 1.5, End: 3, Speaker: "2"}}

	for i := 0; i < 3; i++ {
		got, err := c.Fetch(context.Background(), "doc-1", countingFetch(&calls, want, nil))
		if err != nil {
			t.Fatalf("Fetch #%d: %v", i, err)
		}
		if len(got) != len(want) {
			t.Fatalf("Fetch #%d returned %d segments, want %d", i, len(got), len(want))
		}
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("fetch invoked %d times, want 1", n)
	}
}

func TestFetchSingleFlightUnderConcurrency(t *testing.T) {
	c := NewCache()
	var calls atomic.Int64

	release := make(chan struct{})
	slowFetch := func(ctx context.Context, documentKey string) ([]Segment, error) {
		calls.Add(1)
		<-release
		return []Segment{{Start: 0, End: 2, Speaker: "16"}}, nil
	}

	const waiters = 25
	var started sync.WaitGroup
	started.Add(waiters)
	var g errgroup.Group
	results := make([][]Segment, waiters)
	for i := 0; i < waiters; i++ {
		g.Go(func() error {
			started.Done()
			got, err := c.Fetch(context.Background(), "doc-shared", slowFetch)
			results[i] = got
			return err
		})
	}

	started.Wait()
	close(release)
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent Fetch: %v", err)
	}

	if n := calls.Load(); n != 1 {
		t.Errorf("fetch invoked %d times under concurrency, want 1", n)
	}
	for i, r := range results {
		if len(r) != 1 {
			t.Errorf("caller %d saw %d segments, want 1", i, len(r))
		}
	}

	// A later request must read the terminal record, not fetch again.
	got, err := c.Fetch(context.Background(), "doc-shared", slowFetch)
	if err != nil {
		t.Fatalf("post-batch Fetch: %v", err)
	}
	if len(got) != len(results[0]) {
		t.Errorf("post-batch result length = %d, want %d", len(got), len(results[0]))
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("fetch invoked %d times after batch, want still 1", n)
	}
}

func TestFetchMissingDocumentNeverRetried(t *testing.T) {
	c := NewCache()
	var calls atomic.Int64
	missing := fmt.Errorf("%w: no document identifier in %q", ErrDocumentMissing, "u")

	for i := 0; i < 3; i++ {
		_, err := c.Fetch(context.Background(), "doc-gone", countingFetch(&calls, nil, missing))
		if !errors.Is(err, ErrDocumentMissing) {
			t.Fatalf("Fetch #%d error = %v, want ErrDocumentMissing", i, err)
		}
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("fetch invoked %d times for a missing document, want 1", n)
	}
}

func TestFetchUnreachableRetriedExactlyOnce(t *testing.T) {
	c := NewCache()
	var calls atomic.Int64
	unreachable := fmt.Errorf("%w %q: status 502", ErrDocumentUnreachable, "u")

	for i := 0; i < 4; i++ {
		_, err := c.Fetch(context.Background(), "doc-flaky", countingFetch(&calls, nil, unreachable))
		if !errors.Is(err, ErrDocumentUnreachable) {
			t.Fatalf("Fetch #%d error = %v, want ErrDocumentUnreachable", i, err)
		}
	}
	// First call plus the single retry on the second request.
	if n := calls.Load(); n != 2 {
		t.Errorf("fetch invoked %d times for an unreachable document, want 2", n)
	}
}

func TestFetchRetrySuccessReplacesFailure(t *testing.T) {
	c := NewCache()
	var calls atomic.Int64
	want := []Segment{{Start: 0, End: 4}}

	flaky := func(ctx context.Context, documentKey string) ([]Segment, error) {
		if calls.Add(1) == 1 {
			return nil, fmt.Errorf("%w %q: timeout", ErrDocumentUnreachable, documentKey)
		}
		return want, nil
	}

	if _, err := c.Fetch(context.Background(), "doc-recovers", flaky); !errors.Is(err, ErrDocumentUnreachable) {
		t.Fatalf("first Fetch error = %v, want ErrDocumentUnreachable", err)
	}
	got, err := c.Fetch(context.Background(), "doc-recovers", flaky)
	if err != nil {
		t.Fatalf("retry Fetch: %v", err)
	}
	if len(got) != len(want) {
		t.Errorf("retry returned %d segments, want %d", len(got), len(want))
	}

	// Success is now terminal; no further fetches.
	if _, err := c.Fetch(context.Background(), "doc-recovers", flaky); err != nil {
		t.Fatalf("cached Fetch: %v", err)
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("fetch invoked %d times, want 2", n)
	}
}

func TestFetchDistinctKeysFetchIndependently(t *testing.T) {
	c := NewCache()
	var calls atomic.Int64

	for _, key := range []string{"doc-a", "doc-b", "doc-c"} {
		if _, err := c.Fetch(context.Background(), key, countingFetch(&calls, []Segment{{End: 1}}, nil)); err != nil {
			t.Fatalf("Fetch(%q): %v", key, err)
		}
	}
	if n := calls.Load(); n != 3 {
		t.Errorf("fetch invoked %d times for 3 keys, want 3", n)
	}
	if c.Len() != 3 {
		t.Errorf("cache holds %d records, want 3", c.Len())
	}
}
