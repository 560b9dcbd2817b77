package segment

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/kalambet/annex/internal/event"
	"github.com/kalambet/annex/internal/fault"
)

// Result is the response body for a segmentation request.
type Result struct {
	Results []Segment `json:"results"`
}

// Service ties the cache and client together and binds the segmentation
// event.
type Service struct {
	cache  *Cache
	client *Client
}

func NewService(client *Client) *Service {
	return &Service{cache: NewCache(), client: client}
}

// Register binds the segmentation event. Fails on duplicate registration.
func (s *Service) Register(r *event.Router) error {
	if err := r.Register(event.SegmentDocument, s.handleSegment); err != nil {
		return fmt.Errorf("binding segment events: %w", err)
	}
	return nil
}

// CacheLen reports the number of cached documents, for status reporting.
func (s *Service) CacheLen() int { return s.cache.Len() }

func (s *Service) handleSegment(ctx context.Context, req event.Request) (any, error) {
	if req.RemoteURL == "" {
		return nil, fault.Invalid("remote document identifier not specified")
	}

	requestID := uuid.NewString()
	slog.Debug("segmentation requested", "request_id", requestID, "remote_url", req.RemoteURL)

	results, err := s.cache.Fetch(ctx, req.RemoteURL, func(ctx context.Context, documentKey string) ([]Segment, error) {
		slog.Info("fetching document from upstream", "request_id", requestID, "document", documentKey)
		return s.client.Segment(ctx, documentKey, req.APIKey)
	})
	if err != nil {
		return nil, err
	}
	return Result{Results: results}, nil
}
