package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"classroom-session-service/internal/domain"
)

const uniqueViolationCode = "23505"

// SessionRepository persists session JSONB documents in Postgres. The
// version column drives compare-and-swap saves: an UPDATE guarded by the
// version the caller read affects zero rows when a concurrent write won.
type SessionRepository struct {
	pool *pgxpool.Pool
}

func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

func (r *SessionRepository) Create(ctx context.Context, s *domain.Session) error {
	s.Version = 1
	doc, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	const query = `INSERT INTO sessions (id, join_code, status, doc, version)
		VALUES ($1, $2, $3, $4, $5)`
	_, err = r.pool.Exec(ctx, query, s.ID, s.JoinCode, string(s.Status), doc, s.Version)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return domain.ErrJoinCodeTaken
		}
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (r *SessionRepository) Get(ctx context.Context, id string) (*domain.Session, error) {
	const query = `SELECT doc, version FROM sessions WHERE id = $1`
	return r.scanOne(r.pool.QueryRow(ctx, query, id))
}

func (r *SessionRepository) FindJoinableByCode(ctx context.Context, code string) (*domain.Session, error) {
	const query = `SELECT doc, version FROM sessions WHERE join_code = $1 AND status = $2`
	return r.scanOne(r.pool.QueryRow(ctx, query, code, string(domain.StatusWaiting)))
}

func (r *SessionRepository) Update(ctx context.Context, s *domain.Session) error {
	next := s.Clone()
	next.Version = s.Version + 1
	doc, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	const query = `UPDATE sessions
		SET doc = $1, status = $2, version = $3, updated_at = now()
		WHERE id = $4 AND version = $5`
	tag, err := r.pool.Exec(ctx, query, doc, string(next.Status), next.Version, next.ID, s.Version)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrVersionConflict
	}
	s.Version = next.Version
	return nil
}

func (r *SessionRepository) scanOne(row pgx.Row) (*domain.Session, error) {
	var (
		raw     []byte
		version int64
	)
	if err := row.Scan(&raw, &version); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	var session domain.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	session.Version = version
	return &session, nil
}
