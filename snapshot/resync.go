package snapshot

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"

	"lini/domain"
)

// Renderer draws a board snapshot. changes is relative to the previously
// rendered snapshot; on the first render every list and card is reported as
// added.
type Renderer interface {
	Render(b domain.Board, changes Changes)
}

// TokenSink receives the anti-forgery token embedded in each snapshot.
type TokenSink interface {
	Set(token string)
}

// Resyncer is the refetch, diff and re-render step. After a mutation the
// controller calls Resync, which drops any cached copy first; navigation
// calls Load, which may be served from cache.
type Resyncer struct {
	source Source
	view   Renderer
	tokens TokenSink
	logger *log.Logger

	mu      sync.Mutex
	current domain.Board
}

// NewResyncer wires a source to a renderer. tokens may be nil.
func NewResyncer(source Source, view Renderer, tokens TokenSink, logger *log.Logger) *Resyncer {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Resyncer{source: source, view: view, tokens: tokens, logger: logger}
}

// Load fetches the snapshot for query and renders it.
func (r *Resyncer) Load(ctx context.Context, query string) (domain.Board, error) {
	next, err := r.source.Load(ctx, query)
	if err != nil {
		return domain.Board{}, err
	}
	r.apply(next)
	return next, nil
}

// Resync discards cached snapshots, then loads and renders.
func (r *Resyncer) Resync(ctx context.Context, query string) (domain.Board, error) {
	if inv, ok := r.source.(Invalidator); ok {
		if err := inv.Invalidate(ctx); err != nil {
			r.logger.WithError(err).Warn("snapshot.invalidate.failed")
		}
	}
	return r.Load(ctx, query)
}

// Current returns the last rendered snapshot.
func (r *Resyncer) Current() domain.Board {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current.Clone()
}

func (r *Resyncer) apply(next domain.Board) {
	r.mu.Lock()
	changes := Diff(r.current, next)
	r.current = next.Clone()
	r.mu.Unlock()

	if r.tokens != nil {
		r.tokens.Set(next.CSRFToken)
	}
	r.logger.WithFields(log.Fields{
		"board":         next.ID,
		"lists":         len(next.Lists),
		"cards":         next.CardCount(),
		"cards_added":   len(changes.CardsAdded),
		"cards_removed": len(changes.CardsRemoved),
		"cards_moved":   len(changes.CardsMoved),
	}).Debug("snapshot.rendered")
	if r.view != nil {
		r.view.Render(next, changes)
	}
}
