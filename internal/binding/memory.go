package binding

import (
	"context"
	"sync"

	"github.com/dvloznov/telegrind/internal/domain"
)

// Memory is an in-memory Store, safe for concurrent use.
// Data is lost on restart; configure DATABASE_URL for persistence.
type Memory struct {
	mu    sync.RWMutex
	chats map[int64]*domain.ChatBinding
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{chats: make(map[int64]*domain.ChatBinding)}
}

func (m *Memory) Ensure(ctx context.Context, chatID int64) (*domain.ChatBinding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.chats[chatID]
	if !ok {
		b = &domain.ChatBinding{ChatID: chatID}
		m.chats[chatID] = b
	}
	// Return a copy to avoid external modifications
	cp := *b
	return &cp, nil
}

func (m *Memory) SetAwaiting(ctx context.Context, chatID int64, awaiting bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.chats[chatID]
	if !ok {
		b = &domain.ChatBinding{ChatID: chatID}
		m.chats[chatID] = b
	}
	b.AwaitingDocument = awaiting
	return nil
}

func (m *Memory) Bind(ctx context.Context, chatID int64, documentURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.chats[chatID] = &domain.ChatBinding{ChatID: chatID, DocumentURL: documentURL}
	return nil
}

var _ Store = (*Memory)(nil)
