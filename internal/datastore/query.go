package datastore

import (
	"sort"

	"github.com/kalambet/annex/internal/fault"
	"github.com/kalambet/annex/internal/storage"
)

// Resolve picks the entry rev refers to among entries sharing one
// (owner, key) series. Resolution is total over any non-empty series
// for "latest"; an explicit revision must be present exactly.
func Resolve(series []storage.Entry, rev Revision) (storage.Entry, error) {
	if len(series) == 0 {
		return storage.Entry{}, fault.NotFound("no revisions stored for the requested key")
	}
	if rev.IsLatest() {
		best := series[0]
		for _, e := range series[1:] {
			if e.Revision > best.Revision {
				best = e
			}
		}
		return best, nil
	}
	for _, e := range series {
		if e.Revision == rev.n {
			return e, nil
		}
	}
	return storage.Entry{}, fault.NotFound("revision %s not found for the requested key", rev)
}

// Query filters stored entries by ownerID and/or key (empty string =
// unfiltered) and resolves rev once per distinct (owner, key) series in
// the filtered set. Results come back ascending by id; series lacking
// an explicit revision drop out rather than failing the whole query.
func Query(store *storage.Store, ownerID, key string, rev Revision) ([]storage.Entry, error) {
	entries, err := store.ListSeries(ownerID, key)
	if err != nil {
		return nil, err
	}

	type seriesKey struct{ owner, key string }
	groups := make(map[seriesKey][]storage.Entry)
	for _, e := range entries {
		k := seriesKey{e.OwnerID, e.Key}
		groups[k] = append(groups[k], e)
	}

	resolved := []storage.Entry{}
	for _, series := range groups {
		e, err := Resolve(series, rev)
		if err != nil {
			if fault.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		resolved = append(resolved, e)
	}

	sort.Slice(resolved, func(i, j int) bool { return resolved[i].ID < resolved[j].ID })
	return resolved, nil
}
