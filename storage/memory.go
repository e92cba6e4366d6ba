package storage

import (
	"context"
	"sort"
	"sync"
)

// Memory keeps boards in process memory.
type Memory struct {
	mu     sync.RWMutex
	lastID int64
	boards map[int64]BoardState
}

// NewMemory creates an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{boards: map[int64]BoardState{}}
}

func (m *Memory) NextID(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastID++
	return m.lastID, nil
}

func (m *Memory) Load(_ context.Context, boardID int64) (BoardState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.boards[boardID]
	if !ok {
		return BoardState{}, ErrBoardNotFound
	}
	return b.Clone(), nil
}

func (m *Memory) Save(_ context.Context, _, next BoardState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.boards[next.ID] = next.Clone()
	return nil
}

func (m *Memory) BoardForCode(_ context.Context, code string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for id, b := range m.boards {
		if b.JoinCode == code {
			return id, nil
		}
	}
	return 0, ErrBoardNotFound
}

func (m *Memory) Boards(context.Context) ([]BoardState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]BoardState, 0, len(m.boards))
	for _, b := range m.boards {
		out = append(out, b.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
