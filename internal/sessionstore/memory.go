// Package sessionstore provides implementations of domain.SessionStore:
// an in-memory store for development and tests, and a Redis-backed store
// for deployments where sessions must survive process restarts.
package sessionstore

import (
	"context"
	"sync"
	"time"

	"github.com/jmlarsen/flock/internal/domain"
)

// Memory is a mutex-guarded in-process session store. Expired sessions are
// dropped lazily on access.
type Memory struct {
	mu       sync.Mutex
	sessions map[string]domain.Session
}

// NewMemory creates an empty in-memory session store.
func NewMemory() *Memory {
	return &Memory{sessions: make(map[string]domain.Session)}
}

func (m *Memory) Create(ctx context.Context, session *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.ID] = *session
	return nil
}

func (m *Memory) Get(ctx context.Context, id string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if time.Now().After(session.ExpiresAt) {
		delete(m.sessions, id)
		return nil, domain.ErrNotFound
	}
	return &session, nil
}

func (m *Memory) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *Memory) RevokeUser(ctx context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, session := range m.sessions {
		if session.UserID == userID {
			delete(m.sessions, id)
		}
	}
	return nil
}
