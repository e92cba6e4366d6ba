package storage

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"lini/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := New(NewMemory())
	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	n := 0
	s.newCode = func() string {
		n++
		return "code" + strings.Repeat("x", n)
	}
	return s
}

func titles(b BoardState) []string {
	out := make([]string, len(b.Lists))
	for i, l := range b.Lists {
		out[i] = l.Title
	}
	return out
}

func cardIDs(l domain.List) []int64 {
	out := make([]int64, len(l.Cards))
	for i, c := range l.Cards {
		out[i] = c.ID
	}
	return out
}

func mustBoard(t *testing.T, s *Store, id int64) BoardState {
	t.Helper()
	b, err := s.Board(context.Background(), id)
	if err != nil {
		t.Fatalf("load board: %v", err)
	}
	return b
}

func assertContiguous(t *testing.T, b BoardState) {
	t.Helper()
	for i, l := range b.Lists {
		if l.Position != i {
			t.Fatalf("list %d at %d has position %d", l.ID, i, l.Position)
		}
		for j, c := range l.Cards {
			if c.Position != j || c.ListID != l.ID {
				t.Fatalf("card %d at %d/%d has position %d list %d", c.ID, l.ID, j, c.Position, c.ListID)
			}
		}
	}
}

func TestCreateBoardSeedsListsAndCards(t *testing.T) {
	s := newTestStore(t)
	b, err := s.CreateBoard(context.Background(), "alice", "  ")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if b.Name != domain.DefaultBoardName {
		t.Fatalf("expected default name, got %q", b.Name)
	}
	if diff := cmp.Diff([]string{"To do", "Doing", "Done"}, titles(b)); diff != "" {
		t.Fatalf("lists mismatch (-want +got):\n%s", diff)
	}
	counts := []int{len(b.Lists[0].Cards), len(b.Lists[1].Cards), len(b.Lists[2].Cards)}
	if diff := cmp.Diff([]int{2, 1, 1}, counts); diff != "" {
		t.Fatalf("card counts mismatch (-want +got):\n%s", diff)
	}
	if b.RoleOf("alice") != domain.RoleAdmin {
		t.Fatalf("expected creator to be admin")
	}
	assertContiguous(t, b)
}

func TestJoinAddsSpectatorOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	b, _ := s.CreateBoard(ctx, "alice", "Plan")

	if _, err := s.Join(ctx, "bob", "nope"); !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("expected invalid code, got %v", err)
	}
	id, err := s.Join(ctx, "bob", " "+b.JoinCode+" ")
	if err != nil || id != b.ID {
		t.Fatalf("join: id=%d err=%v", id, err)
	}
	if err := s.SetRole(ctx, b.ID, "bob", "student"); err != nil {
		t.Fatalf("set role: %v", err)
	}
	if _, err := s.Join(ctx, "bob", b.JoinCode); err != nil {
		t.Fatalf("rejoin: %v", err)
	}
	got := mustBoard(t, s, b.ID)
	if got.RoleOf("bob") != domain.RoleStudent || len(got.Members) != 2 {
		t.Fatalf("expected rejoin to keep role, got %+v", got.Members)
	}
}

func TestSetRoleErrors(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	b, _ := s.CreateBoard(ctx, "alice", "Plan")

	if err := s.SetRole(ctx, b.ID, "alice", "owner"); !errors.Is(err, ErrBadRole) {
		t.Fatalf("expected bad role, got %v", err)
	}
	if err := s.SetRole(ctx, b.ID, "carol", "mentor"); !errors.Is(err, ErrMemberNotFound) {
		t.Fatalf("expected member not found, got %v", err)
	}
	if err := s.SetRole(ctx, b.ID, "alice", "mentor"); !errors.Is(err, ErrCreatorRole) {
		t.Fatalf("expected creator role error, got %v", err)
	}
	if err := s.SetRole(ctx, 999, "alice", "mentor"); !errors.Is(err, ErrBoardNotFound) {
		t.Fatalf("expected board not found, got %v", err)
	}
}

func TestListOperations(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	b, _ := s.CreateBoard(ctx, "alice", "Plan")

	id, err := s.CreateList(ctx, b.ID, "   ")
	if err != nil {
		t.Fatalf("create list: %v", err)
	}
	if err := s.RenameList(ctx, b.ID, b.Lists[1].ID, " Review "); err != nil {
		t.Fatalf("rename: %v", err)
	}
	if err := s.RenameList(ctx, b.ID, 999, "x"); !errors.Is(err, ErrListNotFound) {
		t.Fatalf("expected list not found, got %v", err)
	}
	got := mustBoard(t, s, b.ID)
	if diff := cmp.Diff([]string{"To do", "Review", "Done", domain.DefaultTitle}, titles(got)); diff != "" {
		t.Fatalf("lists mismatch (-want +got):\n%s", diff)
	}

	if err := s.ReorderLists(ctx, b.ID, []int64{id, b.Lists[2].ID, 12345}); err != nil {
		t.Fatalf("reorder: %v", err)
	}
	got = mustBoard(t, s, b.ID)
	if diff := cmp.Diff([]string{domain.DefaultTitle, "Done", "To do", "Review"}, titles(got)); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
	assertContiguous(t, got)

	if err := s.DeleteList(ctx, b.ID, b.Lists[0].ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got = mustBoard(t, s, b.ID)
	if got.Snapshot(domain.RoleAdmin, "").CardCount() != 2 {
		t.Fatalf("expected the list's cards to be deleted with it")
	}
	if err := s.DeleteList(ctx, b.ID, b.Lists[0].ID); !errors.Is(err, ErrListNotFound) {
		t.Fatalf("expected list not found, got %v", err)
	}
	assertContiguous(t, got)
}

func TestCardOperations(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	b, _ := s.CreateBoard(ctx, "alice", "Plan")
	doing := b.Lists[1].ID

	if _, err := s.CreateCard(ctx, b.ID, doing, "  "); !errors.Is(err, ErrMissingFields) {
		t.Fatalf("expected missing fields, got %v", err)
	}
	if _, err := s.CreateCard(ctx, b.ID, 999, "x"); !errors.Is(err, ErrListNotFound) {
		t.Fatalf("expected list not found, got %v", err)
	}
	id, err := s.CreateCard(ctx, b.ID, doing, " Write essay ")
	if err != nil {
		t.Fatalf("create card: %v", err)
	}
	if err := s.UpdateCard(ctx, b.ID, id, "", "  draft ", "bogus"); err != nil {
		t.Fatalf("update: %v", err)
	}
	card, _, _ := mustBoard(t, s, b.ID).Snapshot(domain.RoleAdmin, "").Card(id)
	want := domain.Card{ID: id, ListID: doing, Title: domain.DefaultTitle, Desc: "draft", Tag: domain.TagNotStarted, Position: 1}
	if diff := cmp.Diff(want, card, cmpIgnoreCreated); diff != "" {
		t.Fatalf("card mismatch (-want +got):\n%s", diff)
	}
	if err := s.UpdateCard(ctx, b.ID, 999, "x", "", ""); !errors.Is(err, ErrCardNotFound) {
		t.Fatalf("expected card not found, got %v", err)
	}
	if err := s.DeleteCard(ctx, b.ID, b.Lists[1].Cards[0].ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got := mustBoard(t, s, b.ID)
	if diff := cmp.Diff([]int64{id}, cardIDs(got.Lists[1])); diff != "" {
		t.Fatalf("cards mismatch (-want +got):\n%s", diff)
	}
	assertContiguous(t, got)
}

var cmpIgnoreCreated = cmpopts.IgnoreFields(domain.Card{}, "CreatedAt")

func TestMoveCardShiftsAndRenumbers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	b, _ := s.CreateBoard(ctx, "alice", "Plan")
	todo, done := b.Lists[0], b.Lists[2]
	moved := todo.Cards[0].ID

	if err := s.MoveCard(ctx, b.ID, moved, done.ID, 0); err != nil {
		t.Fatalf("move: %v", err)
	}
	got := mustBoard(t, s, b.ID)
	if diff := cmp.Diff([]int64{moved, done.Cards[0].ID}, cardIDs(got.Lists[2])); diff != "" {
		t.Fatalf("destination mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int64{todo.Cards[1].ID}, cardIDs(got.Lists[0])); diff != "" {
		t.Fatalf("source mismatch (-want +got):\n%s", diff)
	}
	assertContiguous(t, got)

	if err := s.MoveCard(ctx, b.ID, moved, done.ID, 99); err != nil {
		t.Fatalf("move: %v", err)
	}
	got = mustBoard(t, s, b.ID)
	if diff := cmp.Diff([]int64{done.Cards[0].ID, moved}, cardIDs(got.Lists[2])); diff != "" {
		t.Fatalf("clamped move mismatch (-want +got):\n%s", diff)
	}

	if err := s.MoveCard(ctx, b.ID, 999, done.ID, 0); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := s.MoveCard(ctx, b.ID, moved, 999, 0); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestResetRecreatesDefaultLists(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	b, _ := s.CreateBoard(ctx, "alice", "Plan")
	if _, err := s.CreateList(ctx, b.ID, "Extra"); err != nil {
		t.Fatalf("create list: %v", err)
	}
	if err := s.Reset(ctx, b.ID); err != nil {
		t.Fatalf("reset: %v", err)
	}
	got := mustBoard(t, s, b.ID)
	if diff := cmp.Diff([]string{"To do", "Doing", "Done"}, titles(got)); diff != "" {
		t.Fatalf("lists mismatch (-want +got):\n%s", diff)
	}
	if got.Snapshot(domain.RoleAdmin, "").CardCount() != 0 {
		t.Fatalf("expected reset to remove every card")
	}
	if got.Lists[0].ID == b.Lists[0].ID {
		t.Fatalf("expected fresh lists after reset")
	}
}

func TestSnapshotFiltersCards(t *testing.T) {
	s := newTestStore(t)
	b, _ := s.CreateBoard(context.Background(), "alice", "Plan")
	snap := b.Snapshot(domain.RoleMentor, "  DRAG ")
	if snap.Query != "DRAG" || snap.Role != domain.RoleMentor {
		t.Fatalf("unexpected snapshot header %+v", snap)
	}
	if len(snap.Lists) != 3 {
		t.Fatalf("expected lists to be kept, got %d", len(snap.Lists))
	}
	if snap.CardCount() != 1 || snap.Lists[0].Cards[0].Title != "Drag cards" {
		t.Fatalf("expected only the matching card, got %+v", snap.Lists)
	}
}

func TestMembershipsNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	first, _ := s.CreateBoard(ctx, "alice", "First")
	other, _ := s.CreateBoard(ctx, "bob", "Other")
	if _, err := s.Join(ctx, "alice", other.JoinCode); err != nil {
		t.Fatalf("join: %v", err)
	}
	got, err := s.Memberships(ctx, "alice")
	if err != nil {
		t.Fatalf("memberships: %v", err)
	}
	if len(got) != 2 || got[0].BoardID != other.ID || got[0].Role != domain.RoleSpectator || got[1].BoardID != first.ID {
		t.Fatalf("unexpected memberships %+v", got)
	}
}

func TestExportOrdering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	b, _ := s.CreateBoard(ctx, "alice", "Plan")
	if _, err := s.Join(ctx, "bob", b.JoinCode); err != nil {
		t.Fatalf("join: %v", err)
	}
	exp := mustBoard(t, s, b.ID).Export()
	if exp.Board.JoinCode != b.JoinCode || len(exp.Lists) != 3 || len(exp.Cards) != 4 {
		t.Fatalf("unexpected export %+v", exp)
	}
	if exp.Members[0].Role != domain.RoleAdmin || exp.Members[1].UserID != "bob" {
		t.Fatalf("unexpected member order %+v", exp.Members)
	}
	for i := 1; i < len(exp.Cards); i++ {
		a, c := exp.Cards[i-1], exp.Cards[i]
		if a.ListID > c.ListID || (a.ListID == c.ListID && a.Position > c.Position) {
			t.Fatalf("cards out of order: %+v", exp.Cards)
		}
	}
}
