// Package storage persists boards for the board service. Store holds the
// board semantics; a Backend only loads and saves whole board states.
package storage

import (
	"errors"
	"sort"
	"strings"
	"time"

	"lini/domain"
)

// Errors carry the wire code the service answers with.
var (
	ErrBoardNotFound  = errors.New("board_not_found")
	ErrListNotFound   = errors.New("list_not_found")
	ErrCardNotFound   = errors.New("card_not_found")
	ErrNotFound       = errors.New("not_found")
	ErrMissingFields  = errors.New("missing_fields")
	ErrInvalidCode    = errors.New("invalid_code")
	ErrBadRole        = errors.New("bad_role")
	ErrMemberNotFound = errors.New("member_not_found")
	ErrCreatorRole    = errors.New("cannot_change_creator_role")
)

// Member is a user's membership of a board.
type Member struct {
	UserID   string      `json:"user_id"`
	Role     domain.Role `json:"role"`
	JoinedAt time.Time   `json:"joined_at"`
}

// BoardState is everything stored for one board. Lists and cards are kept in
// display order with contiguous positions.
type BoardState struct {
	ID        int64
	Name      string
	JoinCode  string
	CreatedBy string
	CreatedAt time.Time
	Members   []Member
	Lists     []domain.List
}

// Clone returns a deep copy.
func (s BoardState) Clone() BoardState {
	out := s
	out.Members = append([]Member(nil), s.Members...)
	b := domain.Board{Lists: s.Lists}.Clone()
	out.Lists = b.Lists
	return out
}

// RoleOf returns the member's role, or RoleNone for non-members.
func (s BoardState) RoleOf(userID string) domain.Role {
	for _, m := range s.Members {
		if m.UserID == userID {
			return m.Role
		}
	}
	return domain.RoleNone
}

// Membership summarizes a board for one of its members.
type Membership struct {
	BoardID  int64       `json:"board_id"`
	Name     string      `json:"name"`
	Role     domain.Role `json:"role"`
	JoinedAt time.Time   `json:"joined_at"`
}

// Snapshot renders the board for a caller. A non-empty query keeps only the
// cards whose title or description contains it, ignoring case; lists are
// always kept.
func (s BoardState) Snapshot(role domain.Role, query string) domain.Board {
	q := strings.ToLower(strings.TrimSpace(query))
	b := domain.Board{
		ID:       s.ID,
		Name:     s.Name,
		JoinCode: s.JoinCode,
		Role:     role,
		Query:    strings.TrimSpace(query),
		Lists:    make([]domain.List, 0, len(s.Lists)),
	}
	for _, l := range s.Lists {
		out := l
		out.Cards = make([]domain.Card, 0, len(l.Cards))
		for _, c := range l.Cards {
			if q == "" || strings.Contains(strings.ToLower(c.Title), q) || strings.Contains(strings.ToLower(c.Desc), q) {
				out.Cards = append(out.Cards, c)
			}
		}
		b.Lists = append(b.Lists, out)
	}
	return b
}

// Export is the full dump of a board.
type Export struct {
	Board   ExportBoard    `json:"board"`
	Members []ExportMember `json:"members"`
	Lists   []ExportList   `json:"lists"`
	Cards   []ExportCard   `json:"cards"`
}

type ExportBoard struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	JoinCode string `json:"join_code"`
}

type ExportMember struct {
	UserID string      `json:"user_id"`
	Role   domain.Role `json:"role"`
}

type ExportList struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	Position int    `json:"position"`
}

type ExportCard struct {
	ID        int64      `json:"id"`
	ListID    int64      `json:"list_id"`
	Title     string     `json:"title"`
	Desc      string     `json:"desc"`
	Tag       domain.Tag `json:"tag"`
	Position  int        `json:"position"`
	CreatedAt string     `json:"created_at"`
}

// Export dumps the board. Members are ordered by role then user id, cards by
// list id then position.
func (s BoardState) Export() Export {
	out := Export{
		Board:   ExportBoard{ID: s.ID, Name: s.Name, JoinCode: s.JoinCode},
		Members: make([]ExportMember, 0, len(s.Members)),
		Lists:   make([]ExportList, 0, len(s.Lists)),
		Cards:   []ExportCard{},
	}
	for _, m := range s.Members {
		out.Members = append(out.Members, ExportMember{UserID: m.UserID, Role: m.Role})
	}
	sort.Slice(out.Members, func(i, j int) bool {
		if out.Members[i].Role != out.Members[j].Role {
			return out.Members[i].Role < out.Members[j].Role
		}
		return out.Members[i].UserID < out.Members[j].UserID
	})
	for _, l := range s.Lists {
		out.Lists = append(out.Lists, ExportList{ID: l.ID, Title: l.Title, Position: l.Position})
		for _, c := range l.Cards {
			out.Cards = append(out.Cards, ExportCard{
				ID:        c.ID,
				ListID:    l.ID,
				Title:     c.Title,
				Desc:      c.Desc,
				Tag:       c.Tag,
				Position:  c.Position,
				CreatedAt: c.CreatedAt.UTC().Format(time.RFC3339Nano),
			})
		}
	}
	sort.SliceStable(out.Cards, func(i, j int) bool {
		if out.Cards[i].ListID != out.Cards[j].ListID {
			return out.Cards[i].ListID < out.Cards[j].ListID
		}
		return out.Cards[i].Position < out.Cards[j].Position
	})
	return out
}
