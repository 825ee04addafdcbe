package memory

import (
	"context"
	"sync"

	"classroom-session-service/internal/domain"
)

// SessionRepository is an in-memory implementation of app.SessionRepository.
// It hands out deep copies and applies version checks on save, so it exhibits
// the same compare-and-swap behavior as the Redis and Postgres backends.
type SessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
}

func NewSessionRepository() *SessionRepository {
	return &SessionRepository{
		sessions: make(map[string]*domain.Session),
	}
}

func (r *SessionRepository) Create(_ context.Context, s *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.sessions {
		if existing.Status == domain.StatusWaiting && existing.JoinCode == s.JoinCode {
			return domain.ErrJoinCodeTaken
		}
	}
	s.Version = 1
	r.sessions[s.ID] = s.Clone()
	return nil
}

// Len reports the number of stored sessions.
func (r *SessionRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *SessionRepository) Get(_ context.Context, id string) (*domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return s.Clone(), nil
}

func (r *SessionRepository) FindJoinableByCode(_ context.Context, code string) (*domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.sessions {
		if s.JoinCode == code && s.Status == domain.StatusWaiting {
			return s.Clone(), nil
		}
	}
	return nil, domain.ErrSessionNotFound
}

func (r *SessionRepository) Update(_ context.Context, s *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.sessions[s.ID]
	if !ok {
		return domain.ErrSessionNotFound
	}
	if current.Version != s.Version {
		return domain.ErrVersionConflict
	}
	s.Version++
	r.sessions[s.ID] = s.Clone()
	return nil
}
