package domain

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestJoinIsIdempotent(t *testing.T) {
	s := newTestSession()

	joined, err := s.Join("student-1", "Alice")
	if err != nil || !joined {
		t.Fatalf("first join: joined=%v err=%v", joined, err)
	}
	joined, err = s.Join("student-1", "Alice")
	if err != nil {
		t.Fatalf("second join errored: %v", err)
	}
	if joined {
		t.Fatalf("second join should be a no-op")
	}
	if len(s.Participants) != 1 {
		t.Fatalf("expected 1 participant, got %d", len(s.Participants))
	}
}

func TestJoinAfterStartLooksLikeNotFound(t *testing.T) {
	s := newTestSession()
	if err := s.Start("teacher-1", time.Now()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := s.Join("student-1", "Alice"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected not-found conflation, got %v", err)
	}
}

func TestStartStampsTimeOnce(t *testing.T) {
	s := newTestSession()
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	if err := s.Start("student-1", now); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected owner check, got %v", err)
	}
	if err := s.Start("teacher-1", now); err != nil {
		t.Fatalf("start: %v", err)
	}
	if s.Status != StatusActive || s.StartedAt == nil || !s.StartedAt.Equal(now) {
		t.Fatalf("expected ACTIVE with startedAt=%v, got %s %v", now, s.Status, s.StartedAt)
	}

	err := s.Start("teacher-1", now.Add(time.Minute))
	var stateErr *InvalidStateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("expected invalid state on second start, got %v", err)
	}
	if !strings.Contains(err.Error(), string(StatusActive)) {
		t.Fatalf("state error must name the current status: %q", err.Error())
	}
}

func TestSubmitAnswerScoringAndConflict(t *testing.T) {
	s := newActiveSession(t, "student-1")

	res, err := s.SubmitAnswer("student-1", s.Questions[0].ID, "B")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !res.WasCorrect || res.NewScore != PointsPerCorrectAnswer {
		t.Fatalf("expected correct +10, got %+v", res)
	}

	if _, err := s.SubmitAnswer("student-1", s.Questions[0].ID, "B"); !errors.Is(err, ErrAlreadyAnswered) {
		t.Fatalf("expected duplicate conflict, got %v", err)
	}
	p := s.Participants["student-1"]
	if len(p.Answers) != 1 || p.Score != PointsPerCorrectAnswer {
		t.Fatalf("duplicate must not change state: %+v", p)
	}

	// Wrong answers record but never score.
	res, err = s.SubmitAnswer("student-1", s.Questions[1].ID, "A")
	if err != nil {
		t.Fatalf("submit wrong: %v", err)
	}
	if res.WasCorrect || res.NewScore != PointsPerCorrectAnswer {
		t.Fatalf("wrong answer must award nothing, got %+v", res)
	}
}

func TestSubmitAnswerChecksPrecedence(t *testing.T) {
	s := newActiveSession(t, "student-1")

	if _, err := s.SubmitAnswer("student-1", "missing-question", "A"); !errors.Is(err, ErrQuestionNotFound) {
		t.Fatalf("expected question not found, got %v", err)
	}
	if _, err := s.SubmitAnswer("stranger", s.Questions[0].ID, "A"); !errors.Is(err, ErrNotParticipant) {
		t.Fatalf("expected participant check, got %v", err)
	}

	if err := s.Finalize("teacher-1"); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	_, err := s.SubmitAnswer("student-1", s.Questions[0].ID, "A")
	var stateErr *InvalidStateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("expected invalid state after finish, got %v", err)
	}
}

func TestProgressIndexTracksAnsweredPosition(t *testing.T) {
	s := newActiveSession(t, "student-1")

	// Answering the third question first moves the indicator to 3, not 1.
	if _, err := s.SubmitAnswer("student-1", s.Questions[2].ID, "B"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if got := s.Participants["student-1"].CurrentQuestionIndex; got != 3 {
		t.Fatalf("expected index 3 after answering position 2, got %d", got)
	}

	// A later answer to an earlier question moves it back down to p+1.
	if _, err := s.SubmitAnswer("student-1", s.Questions[0].ID, "B"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if got := s.Participants["student-1"].CurrentQuestionIndex; got != 1 {
		t.Fatalf("expected index 1 after answering position 0, got %d", got)
	}
}

func TestFinalizeIsOneShot(t *testing.T) {
	s := newTestSession()

	// WAITING -> FINISHED directly is legal.
	if err := s.Finalize("teacher-1"); err != nil {
		t.Fatalf("finalize from waiting: %v", err)
	}
	err := s.Finalize("teacher-1")
	var stateErr *InvalidStateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("second finalize must error, got %v", err)
	}
}

func TestRankingBreaksTiesByJoinOrder(t *testing.T) {
	s := newActiveSessionMulti(t, "a", "b", "c")

	// a and b tie at 30; c scores 10.
	for _, qi := range []int{0, 1, 2} {
		if _, err := s.SubmitAnswer("a", s.Questions[qi].ID, "B"); err != nil {
			t.Fatalf("a submit: %v", err)
		}
		if _, err := s.SubmitAnswer("b", s.Questions[qi].ID, "B"); err != nil {
			t.Fatalf("b submit: %v", err)
		}
	}
	if _, err := s.SubmitAnswer("c", s.Questions[0].ID, "B"); err != nil {
		t.Fatalf("c submit: %v", err)
	}

	ranking := s.Ranking()
	got := []string{ranking[0].StudentID, ranking[1].StudentID, ranking[2].StudentID}
	want := []string{"a", "b", "c"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, got)
		}
	}
	if ranking[0].Position != 1 || ranking[1].Position != 2 || ranking[2].Position != 3 {
		t.Fatalf("positions must be 1-based sequential: %+v", ranking)
	}

	if pos, ok := s.RankOf("b"); !ok || pos != 2 {
		t.Fatalf("expected b at rank 2, got %d ok=%v", pos, ok)
	}
	if _, ok := s.RankOf("stranger"); ok {
		t.Fatalf("non-participant must not be ranked")
	}
}

func TestCloneIsDeep(t *testing.T) {
	s := newActiveSession(t, "student-1")
	clone := s.Clone()

	if _, err := clone.SubmitAnswer("student-1", clone.Questions[0].ID, "B"); err != nil {
		t.Fatalf("submit on clone: %v", err)
	}
	if s.Participants["student-1"].Score != 0 {
		t.Fatalf("mutating the clone leaked into the original")
	}
}

func newTestSession() *Session {
	questions := make([]Question, 3)
	for i := range questions {
		questions[i] = Question{
			ID:     "q" + string(rune('1'+i)),
			Topic:  "grammar",
			Prompt: "pick B",
			Alternatives: []Alternative{
				{Letter: "A", Text: "wrong"},
				{Letter: "B", Text: "right"},
			},
			CorrectLetter: "B",
		}
	}
	return NewSession("session-1", "Review", "grammar", "teacher-1", "ABC123", questions,
		SessionConfig{DurationMinutes: 10}, time.Now())
}

func newActiveSession(t *testing.T, studentID string) *Session {
	t.Helper()
	return newActiveSessionMulti(t, studentID)
}

func newActiveSessionMulti(t *testing.T, studentIDs ...string) *Session {
	t.Helper()
	s := newTestSession()
	for _, id := range studentIDs {
		if _, err := s.Join(id, "Student "+id); err != nil {
			t.Fatalf("join %s: %v", id, err)
		}
	}
	if err := s.Start("teacher-1", time.Now()); err != nil {
		t.Fatalf("start: %v", err)
	}
	return s
}
