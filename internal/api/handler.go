// Package api wires the HTTP and MCP transports to the event router.
// Handlers translate requests into events and events' failures into
// status codes; business logic stays behind the router.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/annex/internal/event"
	"github.com/kalambet/annex/internal/fault"
	"github.com/kalambet/annex/internal/storage"
)

const maxPutBodySize = 10 << 20 // 10MB

// PutRequest is the POST /datastore/ body.
type PutRequest struct {
	Key   string               `json:"key"`
	Value []storage.Annotation `json:"value"`
}

type Deps struct {
	Router        *event.Router
	Auth          Authenticator
	DefaultDomain string
}

func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(KeyAuth(deps.Auth, deps.DefaultDomain))

		r.Post("/datastore/", handlePut(deps))
		r.Get("/datastore/", handleGet(deps))
		r.Get("/datastore/list/", handleList(deps))
		r.Get("/datastore/list/{key}", handleListByKey(deps))
		r.Get("/segment", handleSegment(deps))
	})

	return r
}

func handlePut(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFrom(r.Context())
		if !ok {
			writeError(w, fault.Unauthenticated("no authenticated user"))
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxPutBodySize)
		defer r.Body.Close()

		var req PutRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, fault.Invalid("invalid request body: %v", err))
			return
		}

		result, err := deps.Router.Dispatch(r.Context(), event.DatastorePut, event.Request{
			OwnerID: id.OwnerID(),
			Key:     req.Key,
			Payload: req.Value,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, result)
	}
}

func handleGet(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := r.URL.Query().Get("store_id")
		if raw == "" {
			writeError(w, fault.Invalid("store_id not specified"))
			return
		}
		storeID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, fault.Invalid("invalid store_id %q", raw))
			return
		}

		result, err := deps.Router.Dispatch(r.Context(), event.DatastoreGet, event.Request{
			StoreID: storeID,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, result)
	}
}

func handleList(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFrom(r.Context())
		if !ok {
			writeError(w, fault.Unauthenticated("no authenticated user"))
			return
		}

		result, err := deps.Router.Dispatch(r.Context(), event.DatastoreList, event.Request{
			OwnerID:  id.OwnerID(),
			Revision: r.URL.Query().Get("revision"),
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, result)
	}
}

func handleListByKey(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := deps.Router.Dispatch(r.Context(), event.DatastoreListByKey, event.Request{
			Key:      chi.URLParam(r, "key"),
			Revision: r.URL.Query().Get("revision"),
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, result)
	}
}

func handleSegment(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFrom(r.Context())
		if !ok {
			writeError(w, fault.Unauthenticated("no authenticated user"))
			return
		}

		result, err := deps.Router.Dispatch(r.Context(), event.SegmentDocument, event.Request{
			RemoteURL: r.URL.Query().Get("remote_url"),
			APIKey:    id.APIKey,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, result)
	}
}
