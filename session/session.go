// Package session implements the card detail modal: a two state machine that
// views, edits and deletes one card at a time.
package session

import (
	"context"
	"fmt"
	"strings"

	"lini/command"
	"lini/domain"
	"lini/perm"
)

// State is the modal state.
type State int

const (
	Closed State = iota
	Open
)

func (s State) String() string {
	if s == Open {
		return "open"
	}
	return "closed"
}

// Draft holds the modal fields while the session is open. An empty Tag means
// the view has no tag control.
type Draft struct {
	Title string
	Desc  string
	Tag   domain.Tag
}

// View is the modal surface.
type View interface {
	ShowCard(d Draft, listTitle string)
	// FocusTitle moves focus to the title field, selecting its text when
	// selectAll is set.
	FocusTitle(selectAll bool)
	HideCard()
}

// Confirmer asks the user to confirm a destructive action.
type Confirmer interface {
	Confirm(message string) bool
}

// Key is a key press delivered while the modal may be open.
type Key struct {
	Name string
	Ctrl bool
	Meta bool
}

// Session is the card detail state machine. It is not safe for concurrent use;
// the controller serializes access.
type Session struct {
	sender    command.Sender
	endpoints command.Endpoints
	caps      perm.Capabilities
	view      View
	confirm   Confirmer
	resync    func(ctx context.Context) error

	state  State
	cardID int64
	draft  Draft
}

// New creates a closed session. resync is called after every successful save
// or delete.
func New(sender command.Sender, endpoints command.Endpoints, caps perm.Capabilities, view View, confirm Confirmer, resync func(ctx context.Context) error) *Session {
	return &Session{
		sender:    sender,
		endpoints: endpoints,
		caps:      caps,
		view:      view,
		confirm:   confirm,
		resync:    resync,
	}
}

// State returns the current state and, when open, the associated card.
func (s *Session) State() (State, int64) {
	return s.state, s.cardID
}

// Draft returns the fields being edited.
func (s *Session) Draft() Draft {
	return s.draft
}

// SetTitle, SetDesc and SetTag record edits made in the view.
func (s *Session) SetTitle(v string) {
	if s.state == Open {
		s.draft.Title = v
	}
}

func (s *Session) SetDesc(v string) {
	if s.state == Open {
		s.draft.Desc = v
	}
}

func (s *Session) SetTag(v domain.Tag) {
	if s.state == Open {
		s.draft.Tag = v
	}
}

// Open associates the session with card and fills the draft from its last
// rendered values. Callers who cannot manage cards may still open it to read
// a card; for them Save and Delete fail with domain.ErrPermissionDenied and
// send nothing.
func (s *Session) Open(card domain.Card, listTitle string) {
	s.state = Open
	s.cardID = card.ID
	tag := card.Tag
	if tag == "" {
		tag = domain.TagNotStarted
	}
	s.draft = Draft{Title: card.Title, Desc: card.Desc, Tag: tag}
	if listTitle == "" {
		listTitle = "List"
	}
	if s.view != nil {
		s.view.ShowCard(s.draft, listTitle)
		s.view.FocusTitle(true)
	}
}

// Close discards the draft. Closing a closed session does nothing.
func (s *Session) Close() {
	if s.state == Closed {
		return
	}
	s.state = Closed
	s.cardID = 0
	s.draft = Draft{}
	if s.view != nil {
		s.view.HideCard()
	}
}

// Save sends the draft. On success the session closes and the board is
// resynchronized; on failure it stays open with the draft intact.
func (s *Session) Save(ctx context.Context) error {
	if !s.caps.ManageCards() {
		return domain.ErrPermissionDenied
	}
	if s.state != Open || s.cardID == 0 {
		return domain.ErrValidationSkip
	}
	tag := s.draft.Tag
	if tag == "" {
		tag = domain.TagNotStarted
	}
	body := domain.CardUpdate{
		Title: domain.TitleOrDefault(s.draft.Title),
		Desc:  strings.TrimSpace(s.draft.Desc),
		Tag:   tag,
	}
	if _, err := s.sender.Send(ctx, s.endpoints.CardUpdate(s.cardID), body); err != nil {
		return fmt.Errorf("save card %d: %w", s.cardID, err)
	}
	s.Close()
	return s.resyncAfter(ctx)
}

// Delete removes the associated card after confirmation, then closes and
// resynchronizes.
func (s *Session) Delete(ctx context.Context) error {
	if !s.caps.ManageCards() {
		return domain.ErrPermissionDenied
	}
	if s.state != Open || s.cardID == 0 {
		return domain.ErrValidationSkip
	}
	if s.confirm != nil && !s.confirm.Confirm("Delete this card?") {
		return nil
	}
	if _, err := s.sender.Send(ctx, s.endpoints.CardDelete(s.cardID), domain.Empty{}); err != nil {
		return fmt.Errorf("delete card %d: %w", s.cardID, err)
	}
	s.Close()
	return s.resyncAfter(ctx)
}

// HandleKey applies the modal shortcuts: Escape closes, ctrl/cmd+Enter saves.
// Keys are ignored while closed.
func (s *Session) HandleKey(ctx context.Context, k Key) error {
	if s.state != Open {
		return nil
	}
	switch {
	case k.Name == "Escape":
		s.Close()
	case (k.Ctrl || k.Meta) && strings.EqualFold(k.Name, "enter"):
		return s.Save(ctx)
	}
	return nil
}

func (s *Session) resyncAfter(ctx context.Context) error {
	if s.resync == nil {
		return nil
	}
	return s.resync(ctx)
}
