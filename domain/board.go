package domain

import (
	"strings"
	"time"
)

// Tag is the status marker shown on a card.
type Tag string

const (
	TagNotStarted Tag = "not_started"
	TagInProgress Tag = "in_progress"
	TagFinished   Tag = "finished"
)

// Tags lists every accepted tag in display order.
var Tags = []Tag{TagNotStarted, TagInProgress, TagFinished}

// Valid reports whether t is a known tag.
func (t Tag) Valid() bool {
	for _, v := range Tags {
		if t == v {
			return true
		}
	}
	return false
}

// NormalizeTag coerces unknown or empty values to TagNotStarted.
func NormalizeTag(raw string) Tag {
	t := Tag(strings.TrimSpace(raw))
	if t.Valid() {
		return t
	}
	return TagNotStarted
}

const (
	// DefaultTitle replaces titles that are empty after trimming.
	DefaultTitle = "Untitled"
	// DefaultBoardName is used for boards created without a name.
	DefaultBoardName = "Untitled board"
)

// DefaultListTitles are the lists a fresh or reset board starts with.
var DefaultListTitles = []string{"To do", "Doing", "Done"}

// TitleOrDefault trims title and falls back to DefaultTitle.
func TitleOrDefault(title string) string {
	if t := strings.TrimSpace(title); t != "" {
		return t
	}
	return DefaultTitle
}

// Card is a single item owned by exactly one list.
type Card struct {
	ID        int64     `json:"id"`
	ListID    int64     `json:"list_id"`
	Title     string    `json:"title"`
	Desc      string    `json:"desc"`
	Tag       Tag       `json:"tag"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"created_at"`
}

// List is an ordered container of cards.
type List struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	Position int    `json:"position"`
	Cards    []Card `json:"cards"`
}

// Board is a snapshot of a board as rendered for one caller. Lists and the
// cards inside them are in display order; Position fields mirror that order.
type Board struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	JoinCode  string `json:"join_code,omitempty"`
	Role      Role   `json:"role"`
	Query     string `json:"q,omitempty"`
	CSRFToken string `json:"csrf_token,omitempty"`
	Lists     []List `json:"lists"`
}

// Clone returns a deep copy so callers can mutate ordering freely.
func (b Board) Clone() Board {
	out := b
	out.Lists = make([]List, len(b.Lists))
	for i, l := range b.Lists {
		out.Lists[i] = l
		out.Lists[i].Cards = append([]Card(nil), l.Cards...)
	}
	return out
}

// ListOrder returns the list ids in display order.
func (b Board) ListOrder() []int64 {
	ids := make([]int64, len(b.Lists))
	for i, l := range b.Lists {
		ids[i] = l.ID
	}
	return ids
}

// ListIndex returns the display index of the list, or -1.
func (b Board) ListIndex(listID int64) int {
	for i, l := range b.Lists {
		if l.ID == listID {
			return i
		}
	}
	return -1
}

// FindCard locates a card by id.
func (b Board) FindCard(cardID int64) (listIdx, cardIdx int, ok bool) {
	for li, l := range b.Lists {
		for ci, c := range l.Cards {
			if c.ID == cardID {
				return li, ci, true
			}
		}
	}
	return -1, -1, false
}

// Card returns the card and the title of its owning list.
func (b Board) Card(cardID int64) (Card, string, bool) {
	li, ci, ok := b.FindCard(cardID)
	if !ok {
		return Card{}, "", false
	}
	return b.Lists[li].Cards[ci], b.Lists[li].Title, true
}

// CardCount returns the number of cards across all lists.
func (b Board) CardCount() int {
	n := 0
	for _, l := range b.Lists {
		n += len(l.Cards)
	}
	return n
}

// MoveList relocates a list to toIndex, clamped to the valid range, and
// renumbers list positions. It reports false when the list is unknown.
func (b *Board) MoveList(listID int64, toIndex int) bool {
	from := b.ListIndex(listID)
	if from < 0 {
		return false
	}
	b.Lists = Move(b.Lists, from, toIndex)
	b.renumberLists()
	return true
}

// ApplyListOrder reorders lists to match order. Ids not on the board are
// ignored and lists missing from order keep their relative order after the
// listed ones.
func (b *Board) ApplyListOrder(order []int64) {
	byID := make(map[int64]List, len(b.Lists))
	for _, l := range b.Lists {
		byID[l.ID] = l
	}
	out := make([]List, 0, len(b.Lists))
	seen := make(map[int64]bool, len(order))
	for _, id := range order {
		l, ok := byID[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, l)
	}
	for _, l := range b.Lists {
		if !seen[l.ID] {
			out = append(out, l)
		}
	}
	b.Lists = out
	b.renumberLists()
}

// MoveCard removes the card from its list, inserts it into the destination
// list at toIndex clamped to [0, len(dest)] and renumbers both lists. The
// returned index is the one actually used.
func (b *Board) MoveCard(cardID, toListID int64, toIndex int) (int, bool) {
	li, ci, ok := b.FindCard(cardID)
	if !ok {
		return 0, false
	}
	dest := b.ListIndex(toListID)
	if dest < 0 {
		return 0, false
	}
	card := b.Lists[li].Cards[ci]
	b.Lists[li].Cards = append(b.Lists[li].Cards[:ci:ci], b.Lists[li].Cards[ci+1:]...)

	card.ListID = toListID
	var at int
	b.Lists[dest].Cards, at = InsertAt(b.Lists[dest].Cards, toIndex, card)

	renumberCards(&b.Lists[li])
	if dest != li {
		renumberCards(&b.Lists[dest])
	}
	return at, true
}

func (b *Board) renumberLists() {
	for i := range b.Lists {
		b.Lists[i].Position = i
	}
}

func renumberCards(l *List) {
	for i := range l.Cards {
		l.Cards[i].Position = i
		l.Cards[i].ListID = l.ID
	}
}
