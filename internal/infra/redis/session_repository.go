package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"classroom-session-service/internal/domain"
)

// SessionRepository stores each session as one JSON document and guards
// saves with WATCH/MULTI, so a concurrent write between read and save fails
// the transaction and surfaces as domain.ErrVersionConflict.
//
// Keys:
//
//	session:doc:{id}    JSON session document (incl. version)
//	session:code:{CODE} session id; present only while the session is WAITING
type SessionRepository struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionRepository(client *redis.Client, ttl time.Duration) *SessionRepository {
	return &SessionRepository{client: client, ttl: ttl}
}

func (r *SessionRepository) Create(ctx context.Context, s *domain.Session) error {
	set, err := r.client.SetNX(ctx, r.codeKey(s.JoinCode), s.ID, r.ttl).Result()
	if err != nil {
		return fmt.Errorf("reserve join code: %w", err)
	}
	if !set {
		return domain.ErrJoinCodeTaken
	}

	s.Version = 1
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := r.client.Set(ctx, r.docKey(s.ID), data, r.ttl).Err(); err != nil {
		// Release the code so a retry is not blocked by a half-created session.
		_ = r.client.Del(ctx, r.codeKey(s.JoinCode)).Err()
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

func (r *SessionRepository) Get(ctx context.Context, id string) (*domain.Session, error) {
	return r.getByKey(ctx, r.docKey(id))
}

func (r *SessionRepository) FindJoinableByCode(ctx context.Context, code string) (*domain.Session, error) {
	id, err := r.client.Get(ctx, r.codeKey(code)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("resolve join code: %w", err)
	}
	session, err := r.getByKey(ctx, r.docKey(id))
	if err != nil {
		return nil, err
	}
	if session.Status != domain.StatusWaiting {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

func (r *SessionRepository) Update(ctx context.Context, s *domain.Session) error {
	key := r.docKey(s.ID)

	next := s.Clone()
	next.Version = s.Version + 1
	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return domain.ErrSessionNotFound
		}
		if err != nil {
			return fmt.Errorf("load session: %w", err)
		}
		var current domain.Session
		if err := json.Unmarshal(raw, &current); err != nil {
			return fmt.Errorf("unmarshal session: %w", err)
		}
		if current.Version != s.Version {
			return domain.ErrVersionConflict
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, r.ttl)
			// Codes are only unique among joinable sessions; drop the index
			// entry once the session leaves WAITING. While still WAITING the
			// reservation must outlive the doc, so its TTL is refreshed along
			// with every save.
			if next.Status != domain.StatusWaiting {
				pipe.Del(ctx, r.codeKey(next.JoinCode))
			} else {
				pipe.Expire(ctx, r.codeKey(next.JoinCode), r.ttl)
			}
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return domain.ErrVersionConflict
	}
	if err != nil {
		return err
	}
	s.Version = next.Version
	return nil
}

func (r *SessionRepository) getByKey(ctx context.Context, key string) (*domain.Session, error) {
	raw, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	var session domain.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &session, nil
}

func (r *SessionRepository) docKey(id string) string {
	return "session:doc:" + id
}

func (r *SessionRepository) codeKey(code string) string {
	return "session:code:" + code
}
