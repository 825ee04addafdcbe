package app

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"classroom-session-service/internal/domain"
)

// SessionRepository abstracts durable storage for session documents
// (in-memory, Redis, Postgres). A save either fully succeeds or fully fails;
// Update applies a compare-and-swap on Session.Version and reports
// domain.ErrVersionConflict when it loses against a concurrent write.
type SessionRepository interface {
	Create(ctx context.Context, s *domain.Session) error
	Get(ctx context.Context, id string) (*domain.Session, error)
	// FindJoinableByCode resolves an uppercase join code to a WAITING session.
	// Missing and non-WAITING sessions are both domain.ErrSessionNotFound.
	FindJoinableByCode(ctx context.Context, code string) (*domain.Session, error)
	Update(ctx context.Context, s *domain.Session) error
}

// QuestionStore supplies questions for a topic. Backed by a generative
// service in production, so calls may be slow and can fail.
type QuestionStore interface {
	GenerateQuestions(ctx context.Context, topic string, count int) ([]domain.Question, error)
}

const (
	joinCodeLength   = 6
	joinCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	// casRetries bounds re-reads after a lost compare-and-swap so a hot
	// session cannot pin a handler.
	casRetries = 3
	// codeRetries bounds join-code regeneration on collision.
	codeRetries = 10

	minNameLength    = 3
	maxQuestionCount = 50
)

// CreateParams are the teacher-supplied inputs for a new session.
type CreateParams struct {
	Name            string
	Topic           string
	QuestionCount   int
	DurationMinutes int
	PomodoroEnabled bool
}

// RankingView is the on-demand scoreboard plus the caller's own position.
// MyPosition is zero when the caller is not ranked, which is distinct from
// rank 1.
type RankingView struct {
	Status     domain.Status      `json:"status"`
	Entries    []domain.RankEntry `json:"entries"`
	MyPosition int                `json:"myPosition,omitempty"`
}

// SessionService owns the session lifecycle: creation, joining, starting,
// answer submission with scoring, and finalization with ranking. Each
// operation is a short-lived read-modify-write against one session document;
// there is no background process and no server-side timer.
type SessionService struct {
	sessions  SessionRepository
	questions QuestionStore
	now       func() time.Time
	sf        singleflight.Group
}

func NewSessionService(sessions SessionRepository, questions QuestionStore) *SessionService {
	return &SessionService{
		sessions:  sessions,
		questions: questions,
		now:       time.Now,
	}
}

// NewSessionServiceWithClock is test-only for deterministic timestamps.
func NewSessionServiceWithClock(sessions SessionRepository, questions QuestionStore, now func() time.Time) *SessionService {
	s := NewSessionService(sessions, questions)
	s.now = now
	return s
}

// Create validates the request, pulls questions from the question store, and
// persists a WAITING session. Creation is all-or-nothing: if generation
// fails nothing is written, and a join-code collision regenerates the code.
func (s *SessionService) Create(ctx context.Context, caller domain.Principal, params CreateParams) (*domain.Session, error) {
	if caller.Role != domain.RoleTeacher {
		return nil, domain.ErrTeacherOnly
	}
	if err := validateCreateParams(params); err != nil {
		return nil, err
	}

	questions, err := s.questions.GenerateQuestions(ctx, params.Topic, params.QuestionCount)
	if err != nil {
		return nil, &domain.UpstreamError{Err: err}
	}
	if len(questions) == 0 {
		return nil, &domain.UpstreamError{Err: errors.New("question store returned no questions")}
	}

	cfg := domain.SessionConfig{
		DurationMinutes: params.DurationMinutes,
		PomodoroEnabled: params.PomodoroEnabled,
	}

	for attempt := 0; attempt < codeRetries; attempt++ {
		session := domain.NewSession(
			uuid.NewString(),
			params.Name,
			params.Topic,
			caller.ID,
			newJoinCode(),
			questions,
			cfg,
			s.now(),
		)
		err := s.sessions.Create(ctx, session)
		if errors.Is(err, domain.ErrJoinCodeTaken) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return session, nil
	}
	return nil, domain.ErrJoinCodeTaken
}

// Join adds the calling student to a WAITING session found by code. Joining
// a session the student already belongs to succeeds and returns the current
// state. Codes are matched case-insensitively and stored uppercase.
func (s *SessionService) Join(ctx context.Context, caller domain.Principal, code string) (*domain.Session, error) {
	if caller.Role != domain.RoleStudent {
		return nil, domain.ErrStudentOnly
	}
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, domain.Validationf("join code is required")
	}

	var session *domain.Session
	err := s.withConflictRetry(ctx, func(ctx context.Context) error {
		found, err := s.sessions.FindJoinableByCode(ctx, code)
		if err != nil {
			return err
		}
		joined, err := found.Join(caller.ID, caller.DisplayName)
		if err != nil {
			return err
		}
		if !joined {
			session = found
			return nil
		}
		if err := s.sessions.Update(ctx, found); err != nil {
			return err
		}
		session = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// Status returns the session for its owner or one of its participants.
// Concurrent reads of the same session collapse into a single repository
// fetch, since clients poll this endpoint on a fixed cadence. The fetch runs
// on a detached context: it serves every collapsed caller, so the first
// caller hanging up must not fail the rest.
func (s *SessionService) Status(ctx context.Context, caller domain.Principal, sessionID string) (*domain.Session, error) {
	fetchCtx := context.WithoutCancel(ctx)
	v, err, _ := s.sf.Do("status:"+sessionID, func() (interface{}, error) {
		return s.sessions.Get(fetchCtx, sessionID)
	})
	if err != nil {
		return nil, err
	}
	session := v.(*domain.Session).Clone()
	if !session.CanView(caller.ID) {
		return nil, domain.ErrNotParticipant
	}
	return session, nil
}

// Start transitions the session to ACTIVE and stamps its start time.
func (s *SessionService) Start(ctx context.Context, caller domain.Principal, sessionID string) (*domain.Session, error) {
	if caller.Role != domain.RoleTeacher {
		return nil, domain.ErrTeacherOnly
	}
	return s.mutate(ctx, sessionID, func(session *domain.Session) error {
		return session.Start(caller.ID, s.now())
	})
}

// SubmitAnswer grades one answer for the calling student and persists the
// updated participant state atomically with the session document.
func (s *SessionService) SubmitAnswer(ctx context.Context, caller domain.Principal, sessionID, questionID, answer string) (domain.AnswerResult, error) {
	if caller.Role != domain.RoleStudent {
		return domain.AnswerResult{}, domain.ErrStudentOnly
	}
	if questionID == "" || answer == "" {
		return domain.AnswerResult{}, domain.Validationf("questionId and answer are required")
	}

	var result domain.AnswerResult
	_, err := s.mutate(ctx, sessionID, func(session *domain.Session) error {
		r, err := session.SubmitAnswer(caller.ID, questionID, answer)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return domain.AnswerResult{}, err
	}
	return result, nil
}

// Finalize transitions the session to FINISHED. The engine never does this
// on its own when the timer runs out; callers decide when time is up.
func (s *SessionService) Finalize(ctx context.Context, caller domain.Principal, sessionID string) (*domain.Session, error) {
	if caller.Role != domain.RoleTeacher {
		return nil, domain.ErrTeacherOnly
	}
	return s.mutate(ctx, sessionID, func(session *domain.Session) error {
		return session.Finalize(caller.ID)
	})
}

// Ranking computes the scoreboard for the owner or a participant.
func (s *SessionService) Ranking(ctx context.Context, caller domain.Principal, sessionID string) (RankingView, error) {
	session, err := s.Status(ctx, caller, sessionID)
	if err != nil {
		return RankingView{}, err
	}
	view := RankingView{
		Status:  session.Status,
		Entries: session.Ranking(),
	}
	if pos, ok := session.RankOf(caller.ID); ok {
		view.MyPosition = pos
	}
	return view, nil
}

// mutate runs one read-modify-write cycle against the session document,
// retrying a bounded number of times when the compare-and-swap save loses.
func (s *SessionService) mutate(ctx context.Context, sessionID string, apply func(*domain.Session) error) (*domain.Session, error) {
	var session *domain.Session
	err := s.withConflictRetry(ctx, func(ctx context.Context) error {
		found, err := s.sessions.Get(ctx, sessionID)
		if err != nil {
			return err
		}
		if err := apply(found); err != nil {
			return err
		}
		if err := s.sessions.Update(ctx, found); err != nil {
			return err
		}
		session = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

func (s *SessionService) withConflictRetry(ctx context.Context, fn func(context.Context) error) error {
	var err error
	for attempt := 0; attempt < casRetries; attempt++ {
		err = fn(ctx)
		if !errors.Is(err, domain.ErrVersionConflict) {
			return err
		}
	}
	return err
}

func validateCreateParams(p CreateParams) error {
	if len(strings.TrimSpace(p.Name)) < minNameLength {
		return domain.Validationf("name must be at least %d characters", minNameLength)
	}
	if strings.TrimSpace(p.Topic) == "" {
		return domain.Validationf("topic is required")
	}
	if p.QuestionCount < 1 || p.QuestionCount > maxQuestionCount {
		return domain.Validationf("questionCount must be between 1 and %d", maxQuestionCount)
	}
	if p.DurationMinutes < 1 {
		return domain.Validationf("durationMinutes must be at least 1")
	}
	return nil
}

// newJoinCode returns 6 uppercase alphanumeric characters. Uniqueness among
// joinable sessions is enforced by the repository; collisions regenerate.
func newJoinCode() string {
	b := make([]byte, joinCodeLength)
	for i := range b {
		b[i] = joinCodeAlphabet[rand.Intn(len(joinCodeAlphabet))]
	}
	return string(b)
}
