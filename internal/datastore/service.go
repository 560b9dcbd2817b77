// Package datastore implements the revisioned annotation store: revision
// resolution, filtered queries, and the list projections the API serves.
package datastore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kalambet/annex/internal/event"
	"github.com/kalambet/annex/internal/fault"
	"github.com/kalambet/annex/internal/storage"
)

// PutResult is the response body for a successful store write.
type PutResult struct {
	ID        int64     `json:"id"`
	Revision  int       `json:"revision"`
	Key       string    `json:"key"`
	CreatedAt time.Time `json:"created_at"`
}

// GetResult is the response body for a direct entry fetch.
type GetResult struct {
	ID       int64                `json:"id"`
	Revision int                  `json:"revision"`
	Key      string               `json:"key"`
	Data     []storage.Annotation `json:"data"`
}

// ListItem is one projected entry in a listing.
type ListItem struct {
	ID  int64  `json:"id"`
	Key string `json:"key,omitempty"`
}

// Listing is the list endpoint response. Either UserID or Key is set
// depending on the grouping dimension; the other stays null. Revision
// echoes the request token, not per-entry resolved revisions.
type Listing struct {
	Revision string     `json:"revision"`
	UserID   *string    `json:"user_id"`
	Key      *string    `json:"key"`
	List     []ListItem `json:"list"`
}

// Service exposes the datastore operations and binds them to the event
// router.
type Service struct {
	store *storage.Store
}

func NewService(store *storage.Store) *Service {
	return &Service{store: store}
}

// Register binds the datastore events. Fails on duplicate registration.
func (s *Service) Register(r *event.Router) error {
	bindings := []struct {
		name    event.Name
		handler event.Handler
	}{
		{event.DatastorePut, s.handlePut},
		{event.DatastoreGet, s.handleGet},
		{event.DatastoreList, s.handleList},
		{event.DatastoreListByKey, s.handleListByKey},
	}
	for _, b := range bindings {
		if err := r.Register(b.name, b.handler); err != nil {
			return fmt.Errorf("binding datastore events: %w", err)
		}
	}
	return nil
}

// Put stores payload as a new revision of (ownerID, key).
func (s *Service) Put(ownerID, key string, payload []storage.Annotation) (PutResult, error) {
	if ownerID == "" {
		return PutResult{}, fault.Invalid("user not specified")
	}
	if key == "" {
		return PutResult{}, fault.Invalid("key not specified")
	}
	e, err := s.store.Put(ownerID, key, payload)
	if err != nil {
		return PutResult{}, fmt.Errorf("storing entry: %w", err)
	}
	return PutResult{ID: e.ID, Revision: e.Revision, Key: e.Key, CreatedAt: e.CreatedAt}, nil
}

// Get returns the entry with the given store id.
func (s *Service) Get(storeID int64) (GetResult, error) {
	if storeID < 1 {
		return GetResult{}, fault.Invalid("store_id not specified")
	}
	e, err := s.store.GetByID(storeID)
	if errors.Is(err, storage.ErrNotFound) {
		return GetResult{}, fault.NotFound("no entry stored under id %d", storeID)
	}
	if err != nil {
		return GetResult{}, fmt.Errorf("fetching entry %d: %w", storeID, err)
	}
	return GetResult{ID: e.ID, Revision: e.Revision, Key: e.Key, Data: e.Payload}, nil
}

// ListByOwner projects one resolved entry per key the owner has written.
func (s *Service) ListByOwner(ownerID string, rev Revision) (Listing, error) {
	if ownerID == "" {
		return Listing{}, fault.Invalid("user not specified")
	}
	entries, err := Query(s.store, ownerID, "", rev)
	if err != nil {
		return Listing{}, err
	}
	items := make([]ListItem, len(entries))
	for i, e := range entries {
		items[i] = ListItem{ID: e.ID}
	}
	return Listing{Revision: rev.String(), UserID: &ownerID, List: items}, nil
}

// ListByKey projects one resolved entry per owner who has written key.
func (s *Service) ListByKey(key string, rev Revision) (Listing, error) {
	if key == "" {
		return Listing{}, fault.Invalid("key not specified")
	}
	entries, err := Query(s.store, "", key, rev)
	if err != nil {
		return Listing{}, err
	}
	items := make([]ListItem, len(entries))
	for i, e := range entries {
		items[i] = ListItem{ID: e.ID, Key: e.Key}
	}
	return Listing{Revision: rev.String(), Key: &key, List: items}, nil
}

func (s *Service) handlePut(ctx context.Context, req event.Request) (any, error) {
	return s.Put(req.OwnerID, req.Key, req.Payload)
}

func (s *Service) handleGet(ctx context.Context, req event.Request) (any, error) {
	return s.Get(req.StoreID)
}

func (s *Service) handleList(ctx context.Context, req event.Request) (any, error) {
	rev, err := ParseRevision(req.Revision)
	if err != nil {
		return nil, err
	}
	return s.ListByOwner(req.OwnerID, rev)
}

func (s *Service) handleListByKey(ctx context.Context, req event.Request) (any, error) {
	rev, err := ParseRevision(req.Revision)
	if err != nil {
		return nil, err
	}
	return s.ListByKey(req.Key, rev)
}
