package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/kalambet/annex/internal/fault"
)

// Identity is the authenticated principal behind a request. Owner
// identity is scoped by the platform domain the key belongs to.
type Identity struct {
	UserID string
	Domain string
	APIKey string
}

// OwnerID is the opaque owner identifier entries are stored under.
func (id Identity) OwnerID() string {
	return id.Domain + ":" + id.UserID
}

// Authenticator verifies a per-request API key against its issuing
// platform.
type Authenticator interface {
	Verify(ctx context.Context, apiKey, domain string) (Identity, error)
}

type identityKeyType struct{}

var identityKey identityKeyType

// IdentityFrom returns the authenticated identity stored by KeyAuth.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

// KeyAuth authenticates requests by their X-Api-Key / X-Api-Domain
// headers and stores the resulting identity on the request context.
func KeyAuth(auth Authenticator, defaultDomain string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey := r.Header.Get("X-Api-Key")
			if apiKey == "" {
				writeError(w, fault.Unauthenticated("API key not provided"))
				return
			}
			domain := r.Header.Get("X-Api-Domain")
			if domain == "" {
				domain = defaultDomain
			}

			id, err := auth.Verify(r.Context(), apiKey, domain)
			if err != nil {
				writeError(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), identityKey, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UpstreamAuthenticator verifies API keys against the annotation
// platform's user endpoint.
type UpstreamAuthenticator struct {
	baseURL    string
	httpClient *http.Client
}

func NewUpstreamAuthenticator(baseURL string, httpClient *http.Client) *UpstreamAuthenticator {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &UpstreamAuthenticator{baseURL: baseURL, httpClient: httpClient}
}

func (a *UpstreamAuthenticator) Verify(ctx context.Context, apiKey, domain string) (Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/user", nil)
	if err != nil {
		return Identity{}, fmt.Errorf("building upstream auth request: %w", err)
	}
	req.Header.Set("X-Api-Key", apiKey)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return Identity{}, fmt.Errorf("verifying API key upstream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return Identity{}, fault.Unauthenticated("API key rejected by %s", domain)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Identity{}, fmt.Errorf("upstream auth returned status %d", resp.StatusCode)
	}

	var body struct {
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Identity{}, fmt.Errorf("decoding upstream auth response: %w", err)
	}
	if body.UserID == "" {
		return Identity{}, fmt.Errorf("upstream auth response missing user_id")
	}

	return Identity{UserID: body.UserID, Domain: domain, APIKey: apiKey}, nil
}
