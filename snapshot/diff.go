package snapshot

import "lini/domain"

// Changes describes how a freshly loaded snapshot differs from the one on
// screen. A renderer may use it to patch the view instead of redrawing.
type Changes struct {
	ListsAdded     []int64
	ListsRemoved   []int64
	ListsRenamed   []int64
	ListsReordered bool
	CardsAdded     []int64
	CardsRemoved   []int64
	CardsUpdated   []int64
	CardsMoved     []int64
}

// Empty reports whether nothing changed.
func (c Changes) Empty() bool {
	return len(c.ListsAdded) == 0 && len(c.ListsRemoved) == 0 && len(c.ListsRenamed) == 0 &&
		!c.ListsReordered && len(c.CardsAdded) == 0 && len(c.CardsRemoved) == 0 &&
		len(c.CardsUpdated) == 0 && len(c.CardsMoved) == 0
}

type cardPlace struct {
	card  domain.Card
	list  int64
	index int
}

// Diff compares two snapshots of the same board.
func Diff(prev, next domain.Board) Changes {
	var ch Changes

	prevLists := make(map[int64]domain.List, len(prev.Lists))
	for _, l := range prev.Lists {
		prevLists[l.ID] = l
	}
	nextLists := make(map[int64]bool, len(next.Lists))
	for _, l := range next.Lists {
		nextLists[l.ID] = true
		old, ok := prevLists[l.ID]
		if !ok {
			ch.ListsAdded = append(ch.ListsAdded, l.ID)
			continue
		}
		if old.Title != l.Title {
			ch.ListsRenamed = append(ch.ListsRenamed, l.ID)
		}
	}
	for _, l := range prev.Lists {
		if !nextLists[l.ID] {
			ch.ListsRemoved = append(ch.ListsRemoved, l.ID)
		}
	}
	ch.ListsReordered = !sameRelativeOrder(prev.ListOrder(), next.ListOrder(), nextLists)

	prevCards := placeCards(prev)
	nextCards := placeCards(next)
	for _, l := range next.Lists {
		for _, c := range l.Cards {
			old, ok := prevCards[c.ID]
			if !ok {
				ch.CardsAdded = append(ch.CardsAdded, c.ID)
				continue
			}
			cur := nextCards[c.ID]
			if old.list != cur.list || old.index != cur.index {
				ch.CardsMoved = append(ch.CardsMoved, c.ID)
			}
			if old.card.Title != c.Title || old.card.Desc != c.Desc || old.card.Tag != c.Tag {
				ch.CardsUpdated = append(ch.CardsUpdated, c.ID)
			}
		}
	}
	for _, l := range prev.Lists {
		for _, c := range l.Cards {
			if _, ok := nextCards[c.ID]; !ok {
				ch.CardsRemoved = append(ch.CardsRemoved, c.ID)
			}
		}
	}
	return ch
}

func placeCards(b domain.Board) map[int64]cardPlace {
	out := make(map[int64]cardPlace, b.CardCount())
	for _, l := range b.Lists {
		for i, c := range l.Cards {
			out[c.ID] = cardPlace{card: c, list: l.ID, index: i}
		}
	}
	return out
}

// sameRelativeOrder ignores lists that were removed or added.
func sameRelativeOrder(prev, next []int64, inNext map[int64]bool) bool {
	inPrev := make(map[int64]bool, len(prev))
	for _, id := range prev {
		inPrev[id] = true
	}
	var a, b []int64
	for _, id := range prev {
		if inNext[id] {
			a = append(a, id)
		}
	}
	for _, id := range next {
		if inPrev[id] {
			b = append(b, id)
		}
	}
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
