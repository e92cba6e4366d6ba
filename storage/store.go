package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"lini/domain"
)

// Backend loads and saves whole board states.
type Backend interface {
	// NextID returns an id unused by any list, card or board.
	NextID(ctx context.Context) (int64, error)
	// Load returns ErrBoardNotFound for unknown boards.
	Load(ctx context.Context, boardID int64) (BoardState, error)
	// Save persists next. prev is the state next was derived from, or the
	// zero state for a new board.
	Save(ctx context.Context, prev, next BoardState) error
	// BoardForCode returns ErrBoardNotFound when no board has the code.
	BoardForCode(ctx context.Context, code string) (int64, error)
	// Boards returns every stored board.
	Boards(ctx context.Context) ([]BoardState, error)
}

// Store applies board operations on top of a Backend. Operations on one
// store are serialized; concurrent stores sharing a backend resolve by last
// write wins.
type Store struct {
	backend Backend
	now     func() time.Time
	newCode func() string

	mu sync.Mutex
}

// New creates a Store.
func New(backend Backend) *Store {
	return &Store{backend: backend, now: time.Now, newCode: newJoinCode}
}

func newJoinCode() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

type starterCard struct {
	list        int
	title, desc string
}

var starterCards = []starterCard{
	{0, "Set up your board", "Create lists and add cards."},
	{0, "Drag cards", "Reorder within a list or move across lists."},
	{1, "Click a card to edit", "Edit title and description in a modal."},
	{2, "Persist to database", "Reload the page and your board stays."},
}

// Board returns the stored state of a board.
func (s *Store) Board(ctx context.Context, boardID int64) (BoardState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backend.Load(ctx, boardID)
}

// Memberships lists the boards userID belongs to, most recently joined
// first.
func (s *Store) Memberships(ctx context.Context, userID string) ([]Membership, error) {
	s.mu.Lock()
	boards, err := s.backend.Boards(ctx)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	out := []Membership{}
	for _, b := range boards {
		for _, m := range b.Members {
			if m.UserID == userID {
				out = append(out, Membership{BoardID: b.ID, Name: b.Name, Role: m.Role, JoinedAt: m.JoinedAt})
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].JoinedAt.After(out[j].JoinedAt) })
	return out, nil
}

// CreateBoard creates a board owned by userID, seeded with the default lists
// and a few starter cards.
func (s *Store) CreateBoard(ctx context.Context, userID, name string) (BoardState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	code, err := s.uniqueCode(ctx)
	if err != nil {
		return BoardState{}, err
	}
	id, err := s.backend.NextID(ctx)
	if err != nil {
		return BoardState{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = domain.DefaultBoardName
	}
	now := s.now()
	b := BoardState{
		ID:        id,
		Name:      name,
		JoinCode:  code,
		CreatedBy: userID,
		CreatedAt: now,
		Members:   []Member{{UserID: userID, Role: domain.RoleAdmin, JoinedAt: now}},
	}
	if err := s.seedLists(ctx, &b); err != nil {
		return BoardState{}, err
	}
	for _, sc := range starterCards {
		if _, err := s.appendCard(ctx, &b.Lists[sc.list], sc.title, sc.desc); err != nil {
			return BoardState{}, err
		}
	}
	if err := s.backend.Save(ctx, BoardState{}, b); err != nil {
		return BoardState{}, err
	}
	return b, nil
}

func (s *Store) uniqueCode(ctx context.Context) (string, error) {
	for {
		code := s.newCode()
		_, err := s.backend.BoardForCode(ctx, code)
		if errors.Is(err, ErrBoardNotFound) {
			return code, nil
		}
		if err != nil {
			return "", err
		}
	}
}

// Join adds userID to the board with the join code as a spectator. Existing
// members keep their role.
func (s *Store) Join(ctx context.Context, userID, code string) (int64, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return 0, ErrInvalidCode
	}
	s.mu.Lock()
	id, err := s.backend.BoardForCode(ctx, code)
	s.mu.Unlock()
	if errors.Is(err, ErrBoardNotFound) {
		return 0, ErrInvalidCode
	}
	if err != nil {
		return 0, err
	}
	err = s.update(ctx, id, func(b *BoardState) error {
		if b.RoleOf(userID) != domain.RoleNone {
			return nil
		}
		b.Members = append(b.Members, Member{UserID: userID, Role: domain.RoleSpectator, JoinedAt: s.now()})
		return nil
	})
	return id, err
}

// SetRole changes a member's role. The creator's role is fixed.
func (s *Store) SetRole(ctx context.Context, boardID int64, userID, role string) error {
	r := domain.Role(role)
	if !r.Valid() {
		return ErrBadRole
	}
	return s.update(ctx, boardID, func(b *BoardState) error {
		for i := range b.Members {
			if b.Members[i].UserID != userID {
				continue
			}
			if userID == b.CreatedBy {
				return ErrCreatorRole
			}
			b.Members[i].Role = r
			return nil
		}
		return ErrMemberNotFound
	})
}

// CreateList appends a list and returns its id.
func (s *Store) CreateList(ctx context.Context, boardID int64, title string) (int64, error) {
	var id int64
	err := s.update(ctx, boardID, func(b *BoardState) error {
		var err error
		id, err = s.backend.NextID(ctx)
		if err != nil {
			return err
		}
		b.Lists = append(b.Lists, domain.List{ID: id, Title: domain.TitleOrDefault(title), Position: len(b.Lists)})
		return nil
	})
	return id, err
}

// RenameList sets a list title.
func (s *Store) RenameList(ctx context.Context, boardID, listID int64, title string) error {
	return s.update(ctx, boardID, func(b *BoardState) error {
		i := listIndex(b, listID)
		if i < 0 {
			return ErrListNotFound
		}
		b.Lists[i].Title = domain.TitleOrDefault(title)
		return nil
	})
}

// DeleteList removes a list together with its cards.
func (s *Store) DeleteList(ctx context.Context, boardID, listID int64) error {
	return s.update(ctx, boardID, func(b *BoardState) error {
		i := listIndex(b, listID)
		if i < 0 {
			return ErrListNotFound
		}
		b.Lists = append(b.Lists[:i:i], b.Lists[i+1:]...)
		for j := range b.Lists {
			b.Lists[j].Position = j
		}
		return nil
	})
}

// ReorderLists puts the listed lists first, in the given order. Unknown ids
// are ignored and unlisted lists follow in their current order.
func (s *Store) ReorderLists(ctx context.Context, boardID int64, order []int64) error {
	return s.update(ctx, boardID, func(b *BoardState) error {
		board := domain.Board{Lists: b.Lists}
		board.ApplyListOrder(order)
		b.Lists = board.Lists
		return nil
	})
}

// CreateCard appends a card to a list and returns its id.
func (s *Store) CreateCard(ctx context.Context, boardID, listID int64, title string) (int64, error) {
	title = strings.TrimSpace(title)
	if listID == 0 || title == "" {
		return 0, ErrMissingFields
	}
	var id int64
	err := s.update(ctx, boardID, func(b *BoardState) error {
		i := listIndex(b, listID)
		if i < 0 {
			return ErrListNotFound
		}
		var err error
		id, err = s.appendCard(ctx, &b.Lists[i], title, "")
		return err
	})
	return id, err
}

// UpdateCard replaces a card's fields. Unknown tags become not_started.
func (s *Store) UpdateCard(ctx context.Context, boardID, cardID int64, title, desc, tag string) error {
	return s.update(ctx, boardID, func(b *BoardState) error {
		li, ci, ok := findCard(b, cardID)
		if !ok {
			return ErrCardNotFound
		}
		c := &b.Lists[li].Cards[ci]
		c.Title = domain.TitleOrDefault(title)
		c.Desc = strings.TrimSpace(desc)
		c.Tag = domain.NormalizeTag(tag)
		return nil
	})
}

// DeleteCard removes a card and closes the gap in its list.
func (s *Store) DeleteCard(ctx context.Context, boardID, cardID int64) error {
	return s.update(ctx, boardID, func(b *BoardState) error {
		li, ci, ok := findCard(b, cardID)
		if !ok {
			return ErrCardNotFound
		}
		l := &b.Lists[li]
		l.Cards = append(l.Cards[:ci:ci], l.Cards[ci+1:]...)
		for j := range l.Cards {
			l.Cards[j].Position = j
		}
		return nil
	})
}

// MoveCard removes the card from its list, inserts it into the destination
// at toIndex clamped to [0, len(dest)] and renumbers both lists.
func (s *Store) MoveCard(ctx context.Context, boardID, cardID, toListID int64, toIndex int) error {
	return s.update(ctx, boardID, func(b *BoardState) error {
		board := domain.Board{Lists: b.Lists}
		if _, ok := board.MoveCard(cardID, toListID, toIndex); !ok {
			return ErrNotFound
		}
		b.Lists = board.Lists
		return nil
	})
}

// Reset deletes every list and card and recreates the default lists.
func (s *Store) Reset(ctx context.Context, boardID int64) error {
	return s.update(ctx, boardID, func(b *BoardState) error {
		b.Lists = nil
		return s.seedLists(ctx, b)
	})
}

func (s *Store) update(ctx context.Context, boardID int64, fn func(b *BoardState) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, err := s.backend.Load(ctx, boardID)
	if err != nil {
		return err
	}
	next := prev.Clone()
	if err := fn(&next); err != nil {
		return err
	}
	if err := s.backend.Save(ctx, prev, next); err != nil {
		return fmt.Errorf("save board %d: %w", boardID, err)
	}
	return nil
}

func (s *Store) seedLists(ctx context.Context, b *BoardState) error {
	for i, title := range domain.DefaultListTitles {
		id, err := s.backend.NextID(ctx)
		if err != nil {
			return err
		}
		b.Lists = append(b.Lists, domain.List{ID: id, Title: title, Position: i})
	}
	return nil
}

func (s *Store) appendCard(ctx context.Context, l *domain.List, title, desc string) (int64, error) {
	id, err := s.backend.NextID(ctx)
	if err != nil {
		return 0, err
	}
	l.Cards = append(l.Cards, domain.Card{
		ID:        id,
		ListID:    l.ID,
		Title:     title,
		Desc:      desc,
		Tag:       domain.TagNotStarted,
		Position:  len(l.Cards),
		CreatedAt: s.now(),
	})
	return id, nil
}

func listIndex(b *BoardState, listID int64) int {
	for i, l := range b.Lists {
		if l.ID == listID {
			return i
		}
	}
	return -1
}

func findCard(b *BoardState, cardID int64) (int, int, bool) {
	return domain.Board{Lists: b.Lists}.FindCard(cardID)
}
