package segment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const maxDocumentSize = 256 << 20 // 256MB, raw audio documents are large

// Client fetches a remote document and runs it through the external
// segmenter service. All endpoints and credentials come from explicit
// configuration; nothing is read from ambient globals.
type Client struct {
	segmenterURL string
	serviceKey   string
	httpClient   *http.Client
}

// NewClient builds a segmenter client. serviceKey is the optional
// service-to-service credential for the segmenter endpoint.
func NewClient(segmenterURL, serviceKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{segmenterURL: segmenterURL, serviceKey: serviceKey, httpClient: httpClient}
}

// Segment downloads the document at remoteURL using the caller's
// upstream apiKey and posts it to the segmenter. Returns a non-empty
// segment list, ErrDocumentMissing when remoteURL carries no document
// identifier, or ErrDocumentUnreachable for any access failure.
func (c *Client) Segment(ctx context.Context, remoteURL, apiKey string) ([]Segment, error) {
	if err := validateDocumentURL(remoteURL); err != nil {
		return nil, err
	}

	doc, err := c.download(ctx, remoteURL, apiKey)
	if err != nil {
		return nil, err
	}

	segments, err := c.segment(ctx, remoteURL, doc)
	if err != nil {
		return nil, err
	}
	if len(segments) == 0 {
		return nil, fmt.Errorf("%w: segmenter produced no segments for %q", ErrDocumentUnreachable, remoteURL)
	}
	return segments, nil
}

// validateDocumentURL requires a /document/ path component, the shape
// of a concrete document identifier on the annotation platform.
func validateDocumentURL(remoteURL string) error {
	u, err := url.Parse(remoteURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: %q is not a valid document url", ErrDocumentMissing, remoteURL)
	}
	if !strings.Contains(u.Path, "/document/") {
		return fmt.Errorf("%w: no document identifier in %q", ErrDocumentMissing, remoteURL)
	}
	return nil
}

func (c *Client) download(ctx context.Context, remoteURL, apiKey string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, remoteURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrDocumentMissing, remoteURL)
	}
	req.Header.Set("X-Api-Key", apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrDocumentUnreachable, remoteURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %q", ErrDocumentMissing, remoteURL)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w %q: status %d", ErrDocumentUnreachable, remoteURL, resp.StatusCode)
	}

	doc, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrDocumentUnreachable, remoteURL, err)
	}
	return doc, nil
}

func (c *Client) segment(ctx context.Context, remoteURL string, doc []byte) ([]Segment, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.segmenterURL, bytes.NewReader(doc))
	if err != nil {
		return nil, fmt.Errorf("building segmenter request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("X-Document-URL", remoteURL)
	if c.serviceKey != "" {
		req.Header.Set("X-Api-Key", c.serviceKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w %q: segmenter: %v", ErrDocumentUnreachable, remoteURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w %q: segmenter status %d", ErrDocumentUnreachable, remoteURL, resp.StatusCode)
	}

	var segments []Segment
	if err := json.NewDecoder(resp.Body).Decode(&segments); err != nil {
		return nil, fmt.Errorf("%w %q: decoding segmenter response: %v", ErrDocumentUnreachable, remoteURL, err)
	}
	return segments, nil
}
