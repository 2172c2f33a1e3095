// Package docstore implements the policy repository against the document
// store's own HTTP API: policy documents live in a dedicated index of the
// very store the proxy protects.
package docstore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/takenaka/sekimori/internal/repositories"
)

const defaultTimeout = 5 * time.Second

// Store fetches policy documents over HTTP.
type Store struct {
	base   *url.URL
	index  string
	client *http.Client
}

// New creates a Store reading from the given base URL and policy index.
func New(baseURL, index string, timeout time.Duration) (*Store, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid document store URL %q: %w", baseURL, err)
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Store{
		base:   u,
		index:  index,
		client: &http.Client{Timeout: timeout},
	}, nil
}

// Index returns the name of the index holding the policy documents.
func (s *Store) Index() string {
	return s.index
}

// GetPolicy fetches the policy document stored under section/id in the
// policy index. Every call hits the store: policy freshness is guaranteed
// by not caching.
func (s *Store) GetPolicy(ctx context.Context, section, id string) ([]byte, error) {
	return s.getSource(ctx, s.index, section, id)
}

// GetDocument fetches the raw source of an arbitrary stored document.
func (s *Store) GetDocument(ctx context.Context, index, typ, id string) ([]byte, error) {
	return s.getSource(ctx, index, typ, id)
}

func (s *Store) getSource(ctx context.Context, index, typ, id string) ([]byte, error) {
	u := s.base.JoinPath(index, typ, id, "_source")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("document store request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("reading document %s/%s/%s: %w", index, typ, id, err)
		}
		return body, nil
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s/%s/%s", repositories.ErrPolicyNotFound, index, typ, id)
	default:
		return nil, fmt.Errorf("document store returned %s for %s/%s/%s", resp.Status, index, typ, id)
	}
}
