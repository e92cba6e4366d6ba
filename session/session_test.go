package session

import (
	"context"
	"errors"
	"testing"

	"github.com/bytedance/sonic"

	"lini/command"
	"lini/domain"
	"lini/perm"
)

type call struct {
	endpoint string
	payload  any
}

type fakeSender struct {
	calls []call
	err   error
}

func (f *fakeSender) Send(_ context.Context, endpoint string, payload any) (sonic.NoCopyRawMessage, error) {
	f.calls = append(f.calls, call{endpoint, payload})
	if f.err != nil {
		return nil, f.err
	}
	return sonic.NoCopyRawMessage(`{"ok":true}`), nil
}

type fakeView struct {
	shown     []Draft
	listTitle string
	focused   bool
	selected  bool
	hidden    int
}

func (v *fakeView) ShowCard(d Draft, listTitle string) {
	v.shown = append(v.shown, d)
	v.listTitle = listTitle
}

func (v *fakeView) FocusTitle(selectAll bool) {
	v.focused = true
	v.selected = selectAll
}

func (v *fakeView) HideCard() { v.hidden++ }

type answer bool

func (a answer) Confirm(string) bool { return bool(a) }

var endpoints = command.EndpointsFor("http://svc", 3)

type fixture struct {
	sender  *fakeSender
	view    *fakeView
	resyncs int
	s       *Session
}

func newFixture(role domain.Role, confirm Confirmer) *fixture {
	f := &fixture{sender: &fakeSender{}, view: &fakeView{}}
	f.s = New(f.sender, endpoints, perm.For(role), f.view, confirm, func(context.Context) error {
		f.resyncs++
		return nil
	})
	return f
}

var card = domain.Card{ID: 12, ListID: 4, Title: "Write report", Desc: "draft v1", Tag: domain.TagInProgress}

func TestOpenPopulatesDraftFromCard(t *testing.T) {
	f := newFixture(domain.RoleStudent, nil)
	f.s.Open(card, "Doing")

	state, id := f.s.State()
	if state != Open || id != 12 {
		t.Fatalf("expected open on card 12, got %s/%d", state, id)
	}
	want := Draft{Title: "Write report", Desc: "draft v1", Tag: domain.TagInProgress}
	if f.s.Draft() != want {
		t.Fatalf("expected draft %+v, got %+v", want, f.s.Draft())
	}
	if len(f.view.shown) != 1 || f.view.shown[0] != want {
		t.Fatalf("view not populated: %+v", f.view.shown)
	}
	if f.view.listTitle != "Doing" {
		t.Fatalf("expected list title in modal meta, got %q", f.view.listTitle)
	}
	if !f.view.focused || !f.view.selected {
		t.Fatalf("expected title to be focused and selected")
	}
}

func TestOpenDefaultsMissingTag(t *testing.T) {
	f := newFixture(domain.RoleStudent, nil)
	f.s.Open(domain.Card{ID: 1, Title: "x"}, "")
	if f.s.Draft().Tag != domain.TagNotStarted {
		t.Fatalf("expected default tag, got %q", f.s.Draft().Tag)
	}
	if f.view.listTitle != "List" {
		t.Fatalf("expected fallback list title, got %q", f.view.listTitle)
	}
}

func TestSaveTrimsAndDefaultsTitle(t *testing.T) {
	f := newFixture(domain.RoleStudent, nil)
	f.s.Open(card, "Doing")
	f.s.SetTitle("   ")
	f.s.SetDesc("  notes  ")
	f.s.SetTag(domain.TagFinished)

	if err := f.s.Save(context.Background()); err != nil {
		t.Fatalf("save: %v", err)
	}
	if len(f.sender.calls) != 1 {
		t.Fatalf("expected one command, got %d", len(f.sender.calls))
	}
	c := f.sender.calls[0]
	if c.endpoint != endpoints.CardUpdate(12) {
		t.Fatalf("unexpected endpoint %s", c.endpoint)
	}
	want := domain.CardUpdate{Title: domain.DefaultTitle, Desc: "notes", Tag: domain.TagFinished}
	if c.payload != want {
		t.Fatalf("expected payload %+v, got %+v", want, c.payload)
	}
	if state, _ := f.s.State(); state != Closed {
		t.Fatalf("expected closed after save")
	}
	if f.resyncs != 1 {
		t.Fatalf("expected one resync, got %d", f.resyncs)
	}
}

func TestSaveWithoutTagControlUsesDefault(t *testing.T) {
	f := newFixture(domain.RoleMentor, nil)
	f.s.Open(card, "Doing")
	f.s.SetTag("")
	if err := f.s.Save(context.Background()); err != nil {
		t.Fatalf("save: %v", err)
	}
	got := f.sender.calls[0].payload.(domain.CardUpdate)
	if got.Tag != domain.TagNotStarted {
		t.Fatalf("expected default tag, got %q", got.Tag)
	}
}

func TestSaveFailureKeepsSessionOpen(t *testing.T) {
	f := newFixture(domain.RoleAdmin, nil)
	f.sender.err = &domain.RemoteError{Status: 500, Body: "boom"}
	f.s.Open(card, "Doing")
	f.s.SetTitle("New title")

	err := f.s.Save(context.Background())
	if !domain.IsRemote(err) {
		t.Fatalf("expected remote error, got %v", err)
	}
	if state, id := f.s.State(); state != Open || id != 12 {
		t.Fatalf("expected session to stay open on card 12")
	}
	if f.s.Draft().Title != "New title" {
		t.Fatalf("expected draft to be kept, got %q", f.s.Draft().Title)
	}
	if f.resyncs != 0 {
		t.Fatalf("expected no resync on failure")
	}
}

func TestSaveGuards(t *testing.T) {
	f := newFixture(domain.RoleSpectator, nil)
	f.s.Open(card, "Doing")
	if err := f.s.Save(context.Background()); !errors.Is(err, domain.ErrPermissionDenied) {
		t.Fatalf("expected permission denied, got %v", err)
	}

	f = newFixture(domain.RoleStudent, nil)
	if err := f.s.Save(context.Background()); !errors.Is(err, domain.ErrValidationSkip) {
		t.Fatalf("expected validation skip while closed, got %v", err)
	}
	if len(f.sender.calls) != 0 {
		t.Fatalf("expected no command")
	}
}

func TestOpenIsReadOnlyWithoutCardPermission(t *testing.T) {
	f := newFixture(domain.RoleSpectator, answer(true))
	f.s.Open(card, "Doing")
	if state, id := f.s.State(); state != Open || id != 12 {
		t.Fatalf("expected spectator to view card 12, got %s/%d", state, id)
	}
	if len(f.view.shown) != 1 {
		t.Fatalf("expected card to be shown")
	}
	f.s.SetTitle("edited")
	if err := f.s.Save(context.Background()); !errors.Is(err, domain.ErrPermissionDenied) {
		t.Fatalf("expected permission denied on save, got %v", err)
	}
	if err := f.s.Delete(context.Background()); !errors.Is(err, domain.ErrPermissionDenied) {
		t.Fatalf("expected permission denied on delete, got %v", err)
	}
	if len(f.sender.calls) != 0 {
		t.Fatalf("expected no command, got %+v", f.sender.calls)
	}
	if state, _ := f.s.State(); state != Open {
		t.Fatalf("expected modal to stay open for reading")
	}
}

func TestDeleteRequiresConfirmation(t *testing.T) {
	f := newFixture(domain.RoleStudent, answer(false))
	f.s.Open(card, "Doing")
	if err := f.s.Delete(context.Background()); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(f.sender.calls) != 0 {
		t.Fatalf("expected no command when declined")
	}
	if state, _ := f.s.State(); state != Open {
		t.Fatalf("expected session to stay open when declined")
	}

	f = newFixture(domain.RoleStudent, answer(true))
	f.s.Open(card, "Doing")
	if err := f.s.Delete(context.Background()); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(f.sender.calls) != 1 || f.sender.calls[0].endpoint != endpoints.CardDelete(12) {
		t.Fatalf("expected card delete command, got %+v", f.sender.calls)
	}
	if state, _ := f.s.State(); state != Closed {
		t.Fatalf("expected closed after delete")
	}
	if f.resyncs != 1 {
		t.Fatalf("expected resync after delete")
	}
}

func TestDeleteWithoutPermission(t *testing.T) {
	f := newFixture(domain.RoleNone, answer(true))
	f.s.Open(card, "Doing")
	if err := f.s.Delete(context.Background()); !errors.Is(err, domain.ErrPermissionDenied) {
		t.Fatalf("expected permission denied, got %v", err)
	}
	if len(f.sender.calls) != 0 {
		t.Fatalf("expected no command")
	}
}

func TestHandleKey(t *testing.T) {
	f := newFixture(domain.RoleStudent, nil)
	if err := f.s.HandleKey(context.Background(), Key{Name: "Enter", Ctrl: true}); err != nil {
		t.Fatalf("handle key while closed: %v", err)
	}
	if len(f.sender.calls) != 0 {
		t.Fatalf("expected shortcuts to be ignored while closed")
	}

	f.s.Open(card, "Doing")
	if err := f.s.HandleKey(context.Background(), Key{Name: "Escape"}); err != nil {
		t.Fatalf("escape: %v", err)
	}
	if state, _ := f.s.State(); state != Closed {
		t.Fatalf("expected escape to close")
	}

	f.s.Open(card, "Doing")
	if err := f.s.HandleKey(context.Background(), Key{Name: "Enter", Meta: true}); err != nil {
		t.Fatalf("cmd+enter: %v", err)
	}
	if len(f.sender.calls) != 1 {
		t.Fatalf("expected cmd+enter to save")
	}

	f.s.Open(card, "Doing")
	if err := f.s.HandleKey(context.Background(), Key{Name: "Enter"}); err != nil {
		t.Fatalf("enter: %v", err)
	}
	if len(f.sender.calls) != 1 {
		t.Fatalf("expected plain enter not to save")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	f := newFixture(domain.RoleStudent, nil)
	f.s.Close()
	if f.view.hidden != 0 {
		t.Fatalf("closing a closed session should not touch the view")
	}
	f.s.Open(card, "Doing")
	f.s.Close()
	f.s.Close()
	if f.view.hidden != 1 {
		t.Fatalf("expected one hide, got %d", f.view.hidden)
	}
	f.s.SetTitle("ignored")
	if f.s.Draft().Title != "" {
		t.Fatalf("edits while closed must be ignored")
	}
}
