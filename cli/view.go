package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"lini/domain"
	"lini/perm"
	"lini/session"
	"lini/snapshot"
)

const columnWidth = 30

var (
	accent  = lipgloss.Color("#8BC34A")
	muted   = lipgloss.Color("#6A737D")
	warning = lipgloss.Color("#E36209")

	headline   = lipgloss.NewStyle().Bold(true)
	listTitle  = lipgloss.NewStyle().Bold(true).Foreground(accent)
	changed    = lipgloss.NewStyle().Foreground(accent)
	dim        = lipgloss.NewStyle().Foreground(muted)
	alertStyle = lipgloss.NewStyle().Bold(true).Foreground(warning)

	tagSymbols = map[domain.Tag]string{
		domain.TagNotStarted: "○",
		domain.TagInProgress: "◐",
		domain.TagFinished:   "●",
	}
)

var column = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(muted).
	Padding(0, 1).
	Width(columnWidth)

// terminal renders boards, alerts and the card editor to a terminal. Renders
// are buffered; Flush prints the latest board once the command is done.
type terminal struct {
	out    io.Writer
	errOut io.Writer

	mu          sync.Mutex
	board       domain.Board
	changes     snapshot.Changes
	renders     int
	affordances perm.Affordances
	stale       bool
	editing     string
}

func newTerminal(out, errOut io.Writer) *terminal {
	return &terminal{out: out, errOut: errOut}
}

func (t *terminal) Render(b domain.Board, changes snapshot.Changes) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.board = b
	t.renders++
	// The first render reports everything as added.
	if t.renders > 1 {
		t.changes = changes
	}
	t.stale = false
}

func (t *terminal) SetAffordances(a perm.Affordances) {
	t.mu.Lock()
	t.affordances = a
	t.mu.Unlock()
}

func (t *terminal) Alert(message string) {
	fmt.Fprintln(t.errOut, alertStyle.Render("! "+message))
}

func (t *terminal) ShowText(title, text string) {
	fmt.Fprintln(t.errOut, dim.Render(title))
	fmt.Fprintln(t.out, text)
}

func (t *terminal) MarkStale() {
	t.mu.Lock()
	t.stale = true
	t.mu.Unlock()
}

func (t *terminal) ShowCard(d session.Draft, list string) {
	t.mu.Lock()
	t.editing = fmt.Sprintf("%s › %s [%s]", list, d.Title, d.Tag)
	t.mu.Unlock()
}

func (t *terminal) FocusTitle(bool) {}

func (t *terminal) HideCard() {
	t.mu.Lock()
	t.editing = ""
	t.mu.Unlock()
}

// Flush prints the last rendered board.
func (t *terminal) Flush() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.renders == 0 {
		return
	}
	fmt.Fprintln(t.out, t.view())
}

func (t *terminal) view() string {
	b := t.board
	header := headline.Render(b.Name) + dim.Render(fmt.Sprintf("  #%d  %s", b.ID, b.Role))
	if b.Query != "" {
		header += dim.Render(fmt.Sprintf("  filter: %q", b.Query))
	}
	if b.JoinCode != "" {
		header += dim.Render("  code " + b.JoinCode)
	}

	highlight := make(map[int64]bool)
	for _, ids := range [][]int64{t.changes.CardsAdded, t.changes.CardsUpdated, t.changes.CardsMoved} {
		for _, id := range ids {
			highlight[id] = true
		}
	}

	cols := make([]string, 0, len(b.Lists))
	for _, l := range b.Lists {
		var sb strings.Builder
		sb.WriteString(listTitle.Render(l.Title))
		sb.WriteString(dim.Render(" #" + strconv.FormatInt(l.ID, 10)))
		for _, c := range l.Cards {
			line := fmt.Sprintf("%s %s %s", tagSymbols[c.Tag], c.Title, dim.Render("#"+strconv.FormatInt(c.ID, 10)))
			if highlight[c.ID] {
				line = changed.Render("› ") + line
			}
			sb.WriteString("\n" + line)
		}
		if len(l.Cards) == 0 {
			sb.WriteString("\n" + dim.Render("(empty)"))
		}
		cols = append(cols, column.Render(sb.String()))
	}

	parts := []string{header, lipgloss.JoinHorizontal(lipgloss.Top, cols...)}
	if hidden := t.affordances.Hidden; len(hidden) > 0 {
		names := make([]string, len(hidden))
		for i, a := range hidden {
			names[i] = string(a)
		}
		parts = append(parts, dim.Render("read-only: "+strings.Join(names, ", ")))
	}
	if t.editing != "" {
		parts = append(parts, dim.Render("editing: "+t.editing))
	}
	if t.stale {
		parts = append(parts, alertStyle.Render("board may be out of date; run `boardctl show` to refresh"))
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}
