package domain

import (
	"sort"
	"time"
)

// Status is the session lifecycle state. Transitions are one-directional:
// WAITING -> ACTIVE -> FINISHED.
type Status string

const (
	StatusWaiting  Status = "WAITING"
	StatusActive   Status = "ACTIVE"
	StatusFinished Status = "FINISHED"
)

// PointsPerCorrectAnswer is the flat award for a correct answer. No time
// bonus, no partial credit, no difficulty weighting.
const PointsPerCorrectAnswer = 10

// SessionConfig is the immutable timing configuration chosen at creation.
// The engine never runs a timer off it; clients derive remaining time from
// StartedAt + DurationMinutes.
type SessionConfig struct {
	DurationMinutes int  `json:"durationMinutes"`
	PomodoroEnabled bool `json:"pomodoroEnabled"`
}

// Answer records one graded submission. Entries are append-only and unique
// per question within a participant.
type Answer struct {
	QuestionID string `json:"questionId"`
	WasCorrect bool   `json:"wasCorrect"`
}

// Participant is a student's membership and progress record within a session.
type Participant struct {
	StudentID   string   `json:"studentId"`
	DisplayName string   `json:"displayName"`
	JoinOrder   int      `json:"joinOrder"`
	Answers     []Answer `json:"answers"`
	Score       int      `json:"score"`
	// CurrentQuestionIndex is the canonical position of the most recently
	// answered question plus one, not a count of answers.
	CurrentQuestionIndex int `json:"currentQuestionIndex"`
}

// Session is the aggregate root for one timed classroom quiz. All mutating
// methods assume the caller holds the single authoritative copy; persistence
// layers guard concurrent read-modify-write cycles with Version.
type Session struct {
	ID           string                  `json:"id"`
	Name         string                  `json:"name"`
	Topic        string                  `json:"topic"`
	OwnerID      string                  `json:"ownerId"`
	JoinCode     string                  `json:"joinCode"`
	Status       Status                  `json:"status"`
	Questions    []Question              `json:"questions"`
	Config       SessionConfig           `json:"config"`
	StartedAt    *time.Time              `json:"startedAt,omitempty"`
	Participants map[string]*Participant `json:"participants"`
	CreatedAt    time.Time               `json:"createdAt"`

	// Version is the optimistic concurrency token maintained by repositories.
	Version int64 `json:"version"`
}

// AnswerResult is the only feedback a submission discloses. The correct
// letter is deliberately absent.
type AnswerResult struct {
	WasCorrect bool `json:"wasCorrect"`
	NewScore   int  `json:"newScore"`
}

// RankEntry is one row of the on-demand ranking.
type RankEntry struct {
	Position    int    `json:"position"`
	StudentID   string `json:"studentId"`
	DisplayName string `json:"displayName"`
	Score       int    `json:"score"`
}

// NewSession builds a WAITING session owned by the given teacher.
func NewSession(id, name, topic, ownerID, joinCode string, questions []Question, cfg SessionConfig, now time.Time) *Session {
	return &Session{
		ID:           id,
		Name:         name,
		Topic:        topic,
		OwnerID:      ownerID,
		JoinCode:     joinCode,
		Status:       StatusWaiting,
		Questions:    questions,
		Config:       cfg,
		Participants: make(map[string]*Participant),
		CreatedAt:    now,
	}
}

// Join adds the student as a participant. Joining twice is a no-op; the
// second call reports joined=false and no error. Sessions that have left
// WAITING are indistinguishable from missing ones for join purposes.
func (s *Session) Join(studentID, displayName string) (joined bool, err error) {
	if s.Status != StatusWaiting {
		return false, ErrSessionNotFound
	}
	if _, ok := s.Participants[studentID]; ok {
		return false, nil
	}
	s.Participants[studentID] = &Participant{
		StudentID:   studentID,
		DisplayName: displayName,
		JoinOrder:   len(s.Participants),
		Answers:     []Answer{},
	}
	return true, nil
}

// Start transitions WAITING -> ACTIVE and stamps StartedAt exactly once.
func (s *Session) Start(callerID string, now time.Time) error {
	if callerID != s.OwnerID {
		return ErrNotOwner
	}
	if s.Status != StatusWaiting {
		return &InvalidStateError{Op: "start", Status: s.Status}
	}
	s.Status = StatusActive
	s.StartedAt = &now
	return nil
}

// SubmitAnswer grades the student's answer for one question. Exactly-once
// per (student, question): a duplicate submission is rejected, never merged.
func (s *Session) SubmitAnswer(studentID, questionID, answer string) (AnswerResult, error) {
	pos := s.questionIndex(questionID)
	if pos < 0 {
		return AnswerResult{}, ErrQuestionNotFound
	}
	if s.Status != StatusActive {
		return AnswerResult{}, &InvalidStateError{Op: "answer", Status: s.Status}
	}
	participant, ok := s.Participants[studentID]
	if !ok {
		return AnswerResult{}, ErrNotParticipant
	}
	for _, a := range participant.Answers {
		if a.QuestionID == questionID {
			return AnswerResult{}, ErrAlreadyAnswered
		}
	}

	wasCorrect := s.Questions[pos].CorrectLetter == answer
	if wasCorrect {
		participant.Score += PointsPerCorrectAnswer
	}
	participant.Answers = append(participant.Answers, Answer{QuestionID: questionID, WasCorrect: wasCorrect})
	// Progress points past the answered question's canonical position, not
	// past however many answers the student has. An out-of-order answer moves
	// the indicator to the most recently answered question.
	participant.CurrentQuestionIndex = pos + 1

	return AnswerResult{WasCorrect: wasCorrect, NewScore: participant.Score}, nil
}

// Finalize transitions to FINISHED. A second call is an error, not a no-op,
// so double submissions in callers surface instead of passing silently.
func (s *Session) Finalize(callerID string) error {
	if callerID != s.OwnerID {
		return ErrNotOwner
	}
	if s.Status == StatusFinished {
		return &InvalidStateError{Op: "finalize", Status: s.Status}
	}
	s.Status = StatusFinished
	return nil
}

// CanView reports whether the caller may read this session's state.
func (s *Session) CanView(callerID string) bool {
	if callerID == s.OwnerID {
		return true
	}
	_, ok := s.Participants[callerID]
	return ok
}

// Ranking computes the scoreboard on demand: score descending, ties broken
// by join order. The sort key pair is total, so the result is deterministic.
func (s *Session) Ranking() []RankEntry {
	participants := make([]*Participant, 0, len(s.Participants))
	for _, p := range s.Participants {
		participants = append(participants, p)
	}
	sort.Slice(participants, func(i, j int) bool {
		if participants[i].Score != participants[j].Score {
			return participants[i].Score > participants[j].Score
		}
		return participants[i].JoinOrder < participants[j].JoinOrder
	})

	entries := make([]RankEntry, len(participants))
	for i, p := range participants {
		entries[i] = RankEntry{
			Position:    i + 1,
			StudentID:   p.StudentID,
			DisplayName: p.DisplayName,
			Score:       p.Score,
		}
	}
	return entries
}

// RankOf returns the 1-based position of the student in Ranking, or ok=false
// when the student is not a participant.
func (s *Session) RankOf(studentID string) (int, bool) {
	for _, e := range s.Ranking() {
		if e.StudentID == studentID {
			return e.Position, true
		}
	}
	return 0, false
}

func (s *Session) questionIndex(questionID string) int {
	for i := range s.Questions {
		if s.Questions[i].ID == questionID {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy. Repositories hand out clones so callers can
// mutate freely between read and compare-and-swap save.
func (s *Session) Clone() *Session {
	out := *s
	out.Questions = make([]Question, len(s.Questions))
	copy(out.Questions, s.Questions)
	for i := range out.Questions {
		alts := make([]Alternative, len(s.Questions[i].Alternatives))
		copy(alts, s.Questions[i].Alternatives)
		out.Questions[i].Alternatives = alts
	}
	out.Participants = make(map[string]*Participant, len(s.Participants))
	for id, p := range s.Participants {
		cp := *p
		cp.Answers = make([]Answer, len(p.Answers))
		copy(cp.Answers, p.Answers)
		out.Participants[id] = &cp
	}
	if s.StartedAt != nil {
		t := *s.StartedAt
		out.StartedAt = &t
	}
	return &out
}
