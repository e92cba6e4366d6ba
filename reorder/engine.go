// Package reorder turns drag-and-drop gestures into position-change commands.
package reorder

import (
	"context"
	"fmt"

	"lini/command"
	"lini/domain"
	"lini/perm"
)

// Engine emits exactly one command per completed drag gesture. It never
// diffs against the previous order: a drop back onto the origin still sends.
type Engine struct {
	sender    command.Sender
	endpoints command.Endpoints
	caps      perm.Capabilities
}

// New creates an Engine for a caller with the given capabilities.
func New(sender command.Sender, endpoints command.Endpoints, caps perm.Capabilities) *Engine {
	return &Engine{sender: sender, endpoints: endpoints, caps: caps}
}

// DropList handles the release of a dragged list at toIndex. The working
// board b is reordered in place, the way a drag library moves the dragged
// element, and the complete resulting list order is sent.
func (e *Engine) DropList(ctx context.Context, b *domain.Board, listID int64, toIndex int) (domain.ListReorder, error) {
	if !e.caps.ManageLists() {
		return domain.ListReorder{}, domain.ErrPermissionDenied
	}
	if !b.MoveList(listID, toIndex) {
		return domain.ListReorder{}, fmt.Errorf("list %d: %w", listID, domain.ErrValidationSkip)
	}
	cmd := domain.ListReorder{Order: b.ListOrder()}
	if _, err := e.sender.Send(ctx, e.endpoints.ListReorder, cmd); err != nil {
		return cmd, fmt.Errorf("reorder lists: %w", err)
	}
	return cmd, nil
}

// CommitListOrder sends an order produced elsewhere, e.g. read straight from
// a drag library. The order is sent as given.
func (e *Engine) CommitListOrder(ctx context.Context, order []int64) (domain.ListReorder, error) {
	if !e.caps.ManageLists() {
		return domain.ListReorder{}, domain.ErrPermissionDenied
	}
	cmd := domain.ListReorder{Order: append([]int64{}, order...)}
	if _, err := e.sender.Send(ctx, e.endpoints.ListReorder, cmd); err != nil {
		return cmd, fmt.Errorf("reorder lists: %w", err)
	}
	return cmd, nil
}

// DropCard handles the release of a card in the list toListID at position
// toIndex of that list's order after the drop. toIndex is sent unchanged;
// the service clamps it and renumbers the affected lists.
func (e *Engine) DropCard(ctx context.Context, b *domain.Board, cardID, toListID int64, toIndex int) (domain.CardMove, error) {
	if !e.caps.ManageCards() {
		return domain.CardMove{}, domain.ErrPermissionDenied
	}
	if _, ok := b.MoveCard(cardID, toListID, toIndex); !ok {
		return domain.CardMove{}, fmt.Errorf("card %d to list %d: %w", cardID, toListID, domain.ErrValidationSkip)
	}
	cmd := domain.CardMove{CardID: cardID, ToListID: toListID, ToIndex: toIndex}
	if _, err := e.sender.Send(ctx, e.endpoints.CardMove, cmd); err != nil {
		return cmd, fmt.Errorf("move card: %w", err)
	}
	return cmd, nil
}
