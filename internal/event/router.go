// Package event decouples transport handlers (HTTP, MCP) from the
// datastore and segmentation services behind a typed event table.
package event

import (
	"context"
	"errors"
	"fmt"

	"github.com/kalambet/annex/internal/storage"
)

// Name identifies a dispatchable operation. All names are bound at
// startup; dispatching an unbound name is a programming error surfaced
// as ErrUnknownEvent.
type Name string

const (
	DatastorePut       Name = "datastore:put"
	DatastoreGet       Name = "datastore:get"
	DatastoreList      Name = "datastore:list"
	DatastoreListByKey Name = "datastore:list_by_key"
	SegmentDocument    Name = "segment:document"
)

// ErrUnknownEvent is returned by Dispatch for a name with no handler.
var ErrUnknownEvent = errors.New("unknown event")

// Request carries the union of arguments the registered handlers
// accept. Handlers read the fields their event defines and ignore the
// rest; the router never interprets them.
type Request struct {
	OwnerID   string
	Key       string
	Revision  string
	StoreID   int64
	RemoteURL string
	APIKey    string
	Payload   []storage.Annotation
}

// Handler executes one event. Errors pass through Dispatch unchanged so
// the transport layer sees the originating classification.
type Handler func(ctx context.Context, req Request) (any, error)

// Router is a static event-name to handler table.
type Router struct {
	handlers map[Name]Handler
}

func NewRouter() *Router {
	return &Router{handlers: make(map[Name]Handler)}
}

// Register binds name to h. Binding the same name twice is a
// configuration error, caught at startup rather than at dispatch time.
func (r *Router) Register(name Name, h Handler) error {
	if h == nil {
		return fmt.Errorf("registering %q: nil handler", name)
	}
	if _, ok := r.handlers[name]; ok {
		return fmt.Errorf("registering %q: already registered", name)
	}
	r.handlers[name] = h
	return nil
}

// MustRegister is Register for startup wiring where a duplicate is fatal.
func (r *Router) MustRegister(name Name, h Handler) {
	if err := r.Register(name, h); err != nil {
		panic(err)
	}
}

// Dispatch forwards req to the handler bound to name and returns its
// result or failure unchanged.
func (r *Router) Dispatch(ctx context.Context, name Name, req Request) (any, error) {
	h, ok := r.handlers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, name)
	}
	return h(ctx, req)
}
