// Package snapshot loads board snapshots from the persistence service and
// reconciles the view against them.
package snapshot

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/bytedance/sonic"

	"lini/command"
	"lini/domain"
)

// Source loads a board snapshot filtered by query.
type Source interface {
	Load(ctx context.Context, query string) (domain.Board, error)
}

// Invalidator is implemented by sources that keep copies of snapshots.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// HTTPSource reads snapshots from the board endpoint.
type HTTPSource struct {
	fetcher  command.Fetcher
	endpoint string
}

// NewHTTPSource creates a source reading endpoint through fetcher.
func NewHTTPSource(fetcher command.Fetcher, endpoint string) *HTTPSource {
	return &HTTPSource{fetcher: fetcher, endpoint: endpoint}
}

func (s *HTTPSource) Load(ctx context.Context, query string) (domain.Board, error) {
	data, err := s.fetcher.Fetch(ctx, withQuery(s.endpoint, query))
	if err != nil {
		return domain.Board{}, fmt.Errorf("load snapshot: %w", err)
	}
	return Decode(data)
}

// Decode parses a snapshot body.
func Decode(data []byte) (domain.Board, error) {
	var b domain.Board
	if err := sonic.Unmarshal(data, &b); err != nil {
		return domain.Board{}, fmt.Errorf("decode snapshot: %w", err)
	}
	b.Role = domain.ParseRole(string(b.Role))
	return b, nil
}

func withQuery(endpoint, query string) string {
	q := strings.TrimSpace(query)
	if q == "" {
		return endpoint
	}
	sep := "?"
	if strings.Contains(endpoint, "?") {
		sep = "&"
	}
	return endpoint + sep + "q=" + url.QueryEscape(q)
}
