package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kalambet/annex/internal/fault"
)

func TestKeyAuthStoresIdentity(t *testing.T) {
	var seen Identity
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFrom(r.Context())
		if !ok {
			t.Error("identity missing from request context")
		}
		seen = id
	})

	handler := KeyAuth(stubAuth{testKey: "10"}, testDomain)(next)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Api-Key", testKey)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if seen.UserID != "10" {
		t.Errorf("UserID = %q, want 10", seen.UserID)
	}
	if seen.Domain != testDomain {
		t.Errorf("Domain = %q, want default %q", seen.Domain, testDomain)
	}
	if seen.OwnerID() != testDomain+":10" {
		t.Errorf("OwnerID() = %q", seen.OwnerID())
	}
}

func TestKeyAuthCustomDomain(t *testing.T) {
	var seen Identity
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = IdentityFrom(r.Context())
	})

	handler := KeyAuth(stubAuth{testKey: "10"}, testDomain)(next)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Api-Key", testKey)
	req.Header.Set("X-Api-Domain", "example.trove.edu.au")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if seen.Domain != "example.trove.edu.au" {
		t.Errorf("Domain = %q, want the header value", seen.Domain)
	}
}

func TestKeyAuthMissingKey(t *testing.T) {
	handler := KeyAuth(stubAuth{}, testDomain)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("next handler ran without credentials")
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rr.Code)
	}
}

func TestUpstreamAuthenticatorVerify(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/user" {
			t.Errorf("path = %q, want /user", r.URL.Path)
		}
		switch r.Header.Get("X-Api-Key") {
		case testKey:
			w.Write([]byte(`{"user_id": "10"}`))
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	defer upstream.Close()

	auth := NewUpstreamAuthenticator(upstream.URL, upstream.Client())

	id, err := auth.Verify(context.Background(), testKey, testDomain)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if id.UserID != "10" || id.Domain != testDomain || id.APIKey != testKey {
		t.Errorf("identity = %+v", id)
	}

	if _, err := auth.Verify(context.Background(), "bad-key", testDomain); !fault.IsUnauthenticated(err) {
		t.Errorf("bad key error = %v, want unauthenticated", err)
	}
}

func TestUpstreamAuthenticatorMissingUserID(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer upstream.Close()

	auth := NewUpstreamAuthenticator(upstream.URL, upstream.Client())
	if _, err := auth.Verify(context.Background(), testKey, testDomain); err == nil {
		t.Error("expected an error for a response without user_id")
	}
}
