// Package controller is the board controller: it receives user gestures,
// checks them against the caller's role, sends the matching command and
// reconciles the view with a fresh snapshot afterwards.
package controller

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"lini/command"
	"lini/domain"
	"lini/perm"
	"lini/reorder"
	"lini/session"
)

// DefaultSearchDebounce is the quiet period before a search navigates.
const DefaultSearchDebounce = 250 * time.Millisecond

// Synchronizer is the refetch, diff and re-render step.
type Synchronizer interface {
	// Load renders the snapshot for query, possibly from a cached copy.
	Load(ctx context.Context, query string) (domain.Board, error)
	// Resync drops cached copies, then loads and renders.
	Resync(ctx context.Context, query string) (domain.Board, error)
	// Current is the snapshot on screen.
	Current() domain.Board
}

// Presenter is the part of the view the controller talks to directly.
type Presenter interface {
	SetAffordances(a perm.Affordances)
	Alert(message string)
	ShowText(title, text string)
	// MarkStale flags the rendered board as out of sync with the service.
	MarkStale()
}

// Dialogs asks the user questions.
type Dialogs interface {
	Confirm(message string) bool
	// Prompt returns false when the user cancels.
	Prompt(message string) (string, bool)
}

// Clipboard receives exported text.
type Clipboard interface {
	WriteAll(text string) error
}

// Config is fixed for the controller lifetime.
type Config struct {
	Role           domain.Role
	Endpoints      command.Endpoints
	SearchDebounce time.Duration
	Logger         *log.Logger
}

// Deps are the collaborators of a controller. Clipboard may be nil.
type Deps struct {
	Sender    command.Sender
	Fetcher   command.Fetcher
	Sync      Synchronizer
	Presenter Presenter
	Dialogs   Dialogs
	Clipboard Clipboard
	CardView  session.View
}

// Controller serializes every entry point with a mutex, standing in for the
// single event loop of an interactive front end.
type Controller struct {
	cfg     Config
	caps    perm.Capabilities
	deps    Deps
	logger  *log.Logger
	engine  *reorder.Engine
	session *session.Session
	search  *Debouncer

	mu    sync.Mutex
	query string
	stale bool
}

// New wires a controller for one board and one caller role.
func New(cfg Config, deps Deps) *Controller {
	if cfg.SearchDebounce <= 0 {
		cfg.SearchDebounce = DefaultSearchDebounce
	}
	if cfg.Logger == nil {
		cfg.Logger = log.StandardLogger()
	}
	c := &Controller{
		cfg:    cfg,
		caps:   perm.For(cfg.Role),
		deps:   deps,
		logger: cfg.Logger,
	}
	c.engine = reorder.New(deps.Sender, cfg.Endpoints, c.caps)
	c.session = session.New(deps.Sender, cfg.Endpoints, c.caps, deps.CardView, confirmer{deps.Dialogs}, c.resync)
	return c
}

// Capabilities returns what the caller's role allows.
func (c *Controller) Capabilities() perm.Capabilities {
	return c.caps
}

// Query is the active search filter.
func (c *Controller) Query() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.query
}

// Stale reports whether a failed drag left the view out of sync.
func (c *Controller) Stale() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stale
}

// Init applies the role's affordances and renders the board for query.
func (c *Controller) Init(ctx context.Context, query string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.deps.Presenter != nil {
		c.deps.Presenter.SetAffordances(c.caps.Affordances())
	}
	c.query = strings.TrimSpace(query)
	_, err := c.deps.Sync.Load(ctx, c.query)
	return c.surface("load board", err)
}

// Close stops pending searches.
func (c *Controller) Close() {
	c.mu.Lock()
	s := c.search
	c.mu.Unlock()
	if s != nil {
		s.Stop()
	}
}

// RenameList commits an edited list title. The field already shows the new
// value, so the board is not reloaded.
func (c *Controller) RenameList(ctx context.Context, listID int64, title string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.caps.ManageLists() {
		return nil
	}
	_, err := c.deps.Sender.Send(ctx, c.cfg.Endpoints.ListRename(listID), domain.TitleBody{Title: title})
	return c.surface("rename list", err)
}

// DeleteList removes a list and its cards after confirmation.
func (c *Controller) DeleteList(ctx context.Context, listID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.caps.ManageLists() {
		return nil
	}
	if !c.confirm("Delete this list and its cards?") {
		return nil
	}
	return c.mutate(ctx, "delete list", c.cfg.Endpoints.ListDelete(listID), domain.Empty{})
}

// CreateList prompts for a name and appends a list.
func (c *Controller) CreateList(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.caps.ManageLists() || c.deps.Dialogs == nil {
		return nil
	}
	name, ok := c.deps.Dialogs.Prompt("List name?")
	if !ok || strings.TrimSpace(name) == "" {
		return nil
	}
	return c.mutate(ctx, "create list", c.cfg.Endpoints.ListCreate, domain.TitleBody{Title: name})
}

// CreateCard appends a card titled title to the list. Blank titles are
// ignored.
func (c *Controller) CreateCard(ctx context.Context, listID int64, title string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.caps.ManageCards() {
		return nil
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil
	}
	return c.mutate(ctx, "create card", c.cfg.Endpoints.CardCreate, domain.CardCreate{ListID: listID, Title: title})
}

// QuickDeleteCard deletes a card without confirmation.
func (c *Controller) QuickDeleteCard(ctx context.Context, cardID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.caps.ManageCards() {
		return nil
	}
	return c.mutate(ctx, "delete card", c.cfg.Endpoints.CardDelete(cardID), domain.Empty{})
}

// ClickCard opens the detail session for a card. Clicks that originate on
// the card's quick-delete control never open it.
func (c *Controller) ClickCard(cardID int64, fromQuickDelete bool) bool {
	if fromQuickDelete {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	card, listTitle, ok := c.deps.Sync.Current().Card(cardID)
	if !ok {
		return false
	}
	c.session.Open(card, listTitle)
	return true
}

// Session exposes the card detail state for the view.
func (c *Controller) Session() (session.State, int64, session.Draft) {
	c.mu.Lock()
	defer c.mu.Unlock()
	state, id := c.session.State()
	return state, id, c.session.Draft()
}

// EditCard records edits made in the open modal. A nil field is left as is.
func (c *Controller) EditCard(title, desc *string, tag *domain.Tag) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if title != nil {
		c.session.SetTitle(*title)
	}
	if desc != nil {
		c.session.SetDesc(*desc)
	}
	if tag != nil {
		c.session.SetTag(*tag)
	}
}

// SaveCard saves the open modal. On failure the modal stays open and the
// error is shown.
func (c *Controller) SaveCard(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.surface("save card", c.session.Save(ctx))
}

// DeleteCard deletes the card shown in the modal after confirmation.
func (c *Controller) DeleteCard(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.surface("delete card", c.session.Delete(ctx))
}

// CloseCard closes the modal without saving.
func (c *Controller) CloseCard() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session.Close()
}

// HandleKey routes a key press to the modal.
func (c *Controller) HandleKey(ctx context.Context, k session.Key) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.surface("save card", c.session.HandleKey(ctx, k))
}

// DropList completes a list drag that released listID at toIndex.
func (c *Controller) DropList(ctx context.Context, listID int64, toIndex int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	board := c.deps.Sync.Current()
	_, err := c.engine.DropList(ctx, &board, listID, toIndex)
	return c.afterDrop(ctx, "reorder lists", err)
}

// DropCard completes a card drag that released cardID in toListID at
// toIndex of that list's order after the drop.
func (c *Controller) DropCard(ctx context.Context, cardID, toListID int64, toIndex int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	board := c.deps.Sync.Current()
	_, err := c.engine.DropCard(ctx, &board, cardID, toListID, toIndex)
	return c.afterDrop(ctx, "move card", err)
}

// Export copies the board export to the clipboard, or shows it when the
// clipboard is unavailable. The text is passed on exactly as received.
func (c *Controller) Export(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, err := c.deps.Fetcher.Fetch(ctx, c.cfg.Endpoints.Export)
	if err != nil {
		return "", c.surface("export", err)
	}
	text := string(data)
	if c.deps.Clipboard != nil {
		err := c.deps.Clipboard.WriteAll(text)
		if err == nil {
			c.alert("Copied JSON to clipboard.")
			return text, nil
		}
		c.logger.WithError(err).Debug("board.export.clipboard_unavailable")
	}
	if c.deps.Presenter != nil {
		c.deps.Presenter.ShowText("Board export", text)
	}
	return text, nil
}

// Reset clears the board back to its default lists. Only admins may reset;
// others are told so.
func (c *Controller) Reset(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.caps.Reset() {
		c.alert("Only admin can reset.")
		return nil
	}
	if !c.confirm("Reset board?") {
		return nil
	}
	return c.mutate(ctx, "reset board", c.cfg.Endpoints.Reset, domain.Empty{})
}

// Search schedules navigation to query once typing pauses. Only the last
// query of a burst is loaded.
func (c *Controller) Search(ctx context.Context, query string) {
	ctx = context.WithoutCancel(ctx)
	c.mu.Lock()
	if c.search == nil {
		c.search = NewDebouncer(c.cfg.SearchDebounce, func(q string) {
			if err := c.navigate(ctx, q); err != nil {
				c.logger.WithError(err).WithField("query", q).Warn("board.search.failed")
			}
		})
	}
	s := c.search
	c.mu.Unlock()
	s.Trigger(query)
}

func (c *Controller) navigate(ctx context.Context, query string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.query = strings.TrimSpace(query)
	_, err := c.deps.Sync.Load(ctx, c.query)
	if err == nil {
		c.stale = false
	}
	return c.surface("search", err)
}

// mutate sends one command and reloads the board when it succeeds.
func (c *Controller) mutate(ctx context.Context, op, endpoint string, payload any) error {
	if _, err := c.deps.Sender.Send(ctx, endpoint, payload); err != nil {
		return c.surface(op, err)
	}
	return c.surface(op, c.resync(ctx))
}

func (c *Controller) afterDrop(ctx context.Context, op string, err error) error {
	if err != nil {
		if !domain.IsSilent(err) {
			c.stale = true
			if c.deps.Presenter != nil {
				c.deps.Presenter.MarkStale()
			}
		}
		return c.surface(op, err)
	}
	return c.surface(op, c.resync(ctx))
}

func (c *Controller) resync(ctx context.Context) error {
	_, err := c.deps.Sync.Resync(ctx, c.query)
	if err == nil {
		c.stale = false
	}
	return err
}

// surface turns err into the entry point result: permission and validation
// outcomes are swallowed, everything else is shown and returned.
func (c *Controller) surface(op string, err error) error {
	if err == nil || domain.IsSilent(err) {
		return nil
	}
	c.logger.WithFields(log.Fields{
		"op":    op,
		"role":  c.caps.Role.String(),
		"error": err.Error(),
	}).Warn("board.action.failed")

	var remote *domain.RemoteError
	if errors.As(err, &remote) {
		c.alert(alertText(remote))
	} else {
		c.alert(err.Error())
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (c *Controller) alert(msg string) {
	if c.deps.Presenter != nil {
		c.deps.Presenter.Alert(msg)
	}
}

func (c *Controller) confirm(msg string) bool {
	return confirmer{c.deps.Dialogs}.Confirm(msg)
}

// confirmer declines everything when no dialogs are wired.
type confirmer struct{ d Dialogs }

func (c confirmer) Confirm(msg string) bool {
	return c.d != nil && c.d.Confirm(msg)
}

func alertText(e *domain.RemoteError) string {
	if body := strings.TrimSpace(e.Body); body != "" {
		return body
	}
	return fmt.Sprintf("Request failed (%d)", e.Status)
}
