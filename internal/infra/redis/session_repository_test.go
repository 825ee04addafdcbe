package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"classroom-session-service/internal/domain"
)

func newTestRepository(t *testing.T) *SessionRepository {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSessionRepository(client, time.Hour)
}

func newStoredSession(t *testing.T, repo *SessionRepository, id, code string) *domain.Session {
	t.Helper()
	s := domain.NewSession(id, "Review", "verbs", "teacher-1", code, []domain.Question{
		{
			ID:            "q1",
			Topic:         "verbs",
			Prompt:        "pick A",
			Alternatives:  []domain.Alternative{{Letter: "A", Text: "yes"}, {Letter: "B", Text: "no"}},
			CorrectLetter: "A",
		},
	}, domain.SessionConfig{DurationMinutes: 5}, time.Now().UTC())
	if err := repo.Create(context.Background(), s); err != nil {
		t.Fatalf("create: %v", err)
	}
	return s
}

func TestCreateAndGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	newStoredSession(t, repo, "s1", "ABC123")

	got, err := repo.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.JoinCode != "ABC123" || got.Status != domain.StatusWaiting || got.Version != 1 {
		t.Fatalf("unexpected session: %+v", got)
	}
	if len(got.Questions) != 1 || got.Questions[0].CorrectLetter != "A" {
		t.Fatalf("questions did not survive the round trip: %+v", got.Questions)
	}
}

func TestCreateRejectsReservedCode(t *testing.T) {
	repo := newTestRepository(t)
	newStoredSession(t, repo, "s1", "ABC123")

	dup := domain.NewSession("s2", "Other", "verbs", "teacher-1", "ABC123", nil,
		domain.SessionConfig{DurationMinutes: 5}, time.Now().UTC())
	if err := repo.Create(context.Background(), dup); !errors.Is(err, domain.ErrJoinCodeTaken) {
		t.Fatalf("expected code collision, got %v", err)
	}
}

func TestFindJoinableByCode(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	s := newStoredSession(t, repo, "s1", "ABC123")

	found, err := repo.FindJoinableByCode(ctx, "ABC123")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if found.ID != "s1" {
		t.Fatalf("found wrong session: %s", found.ID)
	}

	if _, err := repo.FindJoinableByCode(ctx, "NOPE99"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("unknown code, got %v", err)
	}

	// Starting the session drops the code index entry, so the code stops
	// resolving and becomes free for a new session.
	if err := s.Start("teacher-1", time.Now().UTC()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := repo.Update(ctx, s); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := repo.FindJoinableByCode(ctx, "ABC123"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("started session must be unjoinable, got %v", err)
	}
	newStoredSession(t, repo, "s2", "ABC123")
}

func TestUpdateDetectsStaleVersion(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	newStoredSession(t, repo, "s1", "ABC123")

	a, err := repo.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("get a: %v", err)
	}
	b, err := repo.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("get b: %v", err)
	}

	if _, err := a.Join("student-1", "Alice"); err != nil {
		t.Fatalf("join a: %v", err)
	}
	if err := repo.Update(ctx, a); err != nil {
		t.Fatalf("update a: %v", err)
	}
	if a.Version != 2 {
		t.Fatalf("update must bump the caller's version, got %d", a.Version)
	}

	if _, err := b.Join("student-2", "Bob"); err != nil {
		t.Fatalf("join b: %v", err)
	}
	if err := repo.Update(ctx, b); !errors.Is(err, domain.ErrVersionConflict) {
		t.Fatalf("stale save must conflict, got %v", err)
	}

	got, err := repo.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("get final: %v", err)
	}
	if len(got.Participants) != 1 {
		t.Fatalf("only the winning write may land, got %d participants", len(got.Participants))
	}
	if _, ok := got.Participants["student-1"]; !ok {
		t.Fatalf("winning write lost: %+v", got.Participants)
	}
}

func TestUpdateRefreshesCodeReservationWhileWaiting(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	repo := NewSessionRepository(client, time.Hour)

	s := newStoredSession(t, repo, "s1", "ABC123")

	// A save inside the original TTL window renews both the doc and the code
	// reservation, so a long-lived WAITING session keeps its code past the
	// initial expiry.
	mr.FastForward(45 * time.Minute)
	if _, err := s.Join("student-1", "Alice"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := repo.Update(ctx, s); err != nil {
		t.Fatalf("update: %v", err)
	}

	mr.FastForward(45 * time.Minute)
	found, err := repo.FindJoinableByCode(ctx, "ABC123")
	if err != nil {
		t.Fatalf("code reservation expired despite the refresh: %v", err)
	}
	if found.ID != "s1" {
		t.Fatalf("found wrong session: %s", found.ID)
	}
	if err := repo.Create(ctx, domain.NewSession("s2", "Other", "verbs", "teacher-1", "ABC123", nil,
		domain.SessionConfig{DurationMinutes: 5}, time.Now().UTC())); !errors.Is(err, domain.ErrJoinCodeTaken) {
		t.Fatalf("code must stay reserved for the waiting session, got %v", err)
	}
}

func TestUpdateUnknownSession(t *testing.T) {
	repo := newTestRepository(t)
	s := domain.NewSession("ghost", "Review", "verbs", "teacher-1", "ABC123", nil,
		domain.SessionConfig{DurationMinutes: 5}, time.Now().UTC())
	s.Version = 1
	if err := repo.Update(context.Background(), s); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
