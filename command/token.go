package command

import "sync"

// TokenSource supplies the anti-forgery token attached to every command.
type TokenSource interface {
	Token() string
}

// StaticToken is a fixed token.
type StaticToken string

func (s StaticToken) Token() string { return string(s) }

// PageToken holds the token embedded in the most recently loaded board
// snapshot. It is replaced on every load.
type PageToken struct {
	mu    sync.RWMutex
	token string
}

// Set stores the token of a freshly loaded snapshot. Empty values keep the
// current token.
func (p *PageToken) Set(token string) {
	if token == "" {
		return
	}
	p.mu.Lock()
	p.token = token
	p.mu.Unlock()
}

func (p *PageToken) Token() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.token
}
