package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/atotto/clipboard"
)

var errClipboardUnavailable = errors.New("clipboard unavailable")

// prompter answers controller dialogs from a line-oriented input. With yes
// set every confirmation is accepted without asking; answer, when set, is
// used for the next prompt.
type prompter struct {
	in     *bufio.Reader
	out    io.Writer
	yes    bool
	answer *string
}

func newPrompter(in io.Reader, out io.Writer, yes bool) *prompter {
	return &prompter{in: bufio.NewReader(in), out: out, yes: yes}
}

func (p *prompter) Confirm(message string) bool {
	if p.yes {
		return true
	}
	fmt.Fprintf(p.out, "%s [y/N] ", message)
	line, _ := p.in.ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

func (p *prompter) Prompt(message string) (string, bool) {
	if p.answer != nil {
		v := *p.answer
		p.answer = nil
		return v, true
	}
	fmt.Fprintf(p.out, "%s ", message)
	line, err := p.in.ReadString('\n')
	if err != nil && line == "" {
		return "", false
	}
	return strings.TrimRight(line, "\r\n"), true
}

type systemClipboard struct{}

func (systemClipboard) WriteAll(text string) error {
	if clipboard.Unsupported {
		return errClipboardUnavailable
	}
	return clipboard.WriteAll(text)
}
