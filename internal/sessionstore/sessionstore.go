// Package sessionstore owns persistence of per-user sessions. The
// conversation store mutates a Session in memory; the API layer loads
// it here before a request and saves it after.
package sessionstore

import (
	"context"
	"sync"

	"github.com/onshammemii/iso-26262-assistant-v2/internal/conversation"
)

// Store loads and saves sessions by session id. Load returns an empty
// session for an unknown id; sessions exist lazily on first access.
type Store interface {
	Load(ctx context.Context, id string) (*conversation.Session, error)
	Save(ctx context.Context, id string, s *conversation.Session) error
	Close() error
}

// Memory is an in-process Store used by tests and single-node dev runs.
type Memory struct {
	mu       sync.Mutex
	sessions map[string]*conversation.Session
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{sessions: map[string]*conversation.Session{}}
}

// Load returns the stored session, or a fresh empty one.
func (m *Memory) Load(ctx context.Context, id string) (*conversation.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		return s, nil
	}
	return &conversation.Session{}, nil
}

// Save stores the session under id.
func (m *Memory) Save(ctx context.Context, id string, s *conversation.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[id] = s
	return nil
}

// Close is a no-op for the in-memory store.
func (m *Memory) Close() error { return nil }
