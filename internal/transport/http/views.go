package http

import (
	"sort"
	"time"

	"classroom-session-service/internal/domain"
)

type alternativeView struct {
	Letter string `json:"letter"`
	Text   string `json:"text"`
}

type questionView struct {
	ID           string            `json:"id"`
	Topic        string            `json:"topic"`
	Prompt       string            `json:"prompt"`
	ImageURL     string            `json:"imageUrl,omitempty"`
	Alternatives []alternativeView `json:"alternatives"`
	// CorrectLetter is populated only for the owning teacher.
	CorrectLetter string `json:"correctLetter,omitempty"`
}

type participantView struct {
	StudentID            string `json:"studentId"`
	DisplayName          string `json:"displayName"`
	Score                int    `json:"score"`
	CurrentQuestionIndex int    `json:"currentQuestionIndex"`
	// Answers carry per-question correctness, so they are serialized only for
	// the owner and for the participant's own entry. Other students see score
	// totals and progress, nothing per question.
	Answers []domain.Answer `json:"answers,omitempty"`
}

type sessionView struct {
	ID           string               `json:"id"`
	Name         string               `json:"name"`
	Topic        string               `json:"topic"`
	OwnerID      string               `json:"ownerId"`
	JoinCode     string               `json:"joinCode"`
	Status       domain.Status        `json:"status"`
	Config       domain.SessionConfig `json:"config"`
	StartedAt    *time.Time           `json:"startedAt,omitempty"`
	Questions    []questionView       `json:"questions"`
	Participants []participantView    `json:"participants"`
}

// newSessionView serializes a session for the given caller. Students never
// see correct letters or another participant's per-question answers; everyone
// sees participants in join order.
func newSessionView(s *domain.Session, caller domain.Principal) sessionView {
	isOwner := caller.ID == s.OwnerID

	questions := make([]questionView, len(s.Questions))
	for i, q := range s.Questions {
		qv := questionView{
			ID:       q.ID,
			Topic:    q.Topic,
			Prompt:   q.Prompt,
			ImageURL: q.ImageURL,
		}
		for _, alt := range q.Alternatives {
			qv.Alternatives = append(qv.Alternatives, alternativeView{Letter: alt.Letter, Text: alt.Text})
		}
		if isOwner {
			qv.CorrectLetter = q.CorrectLetter
		}
		questions[i] = qv
	}

	participants := make([]*domain.Participant, 0, len(s.Participants))
	for _, p := range s.Participants {
		participants = append(participants, p)
	}
	sort.Slice(participants, func(i, j int) bool {
		return participants[i].JoinOrder < participants[j].JoinOrder
	})
	views := make([]participantView, len(participants))
	for i, p := range participants {
		pv := participantView{
			StudentID:            p.StudentID,
			DisplayName:          p.DisplayName,
			Score:                p.Score,
			CurrentQuestionIndex: p.CurrentQuestionIndex,
		}
		if isOwner || p.StudentID == caller.ID {
			pv.Answers = p.Answers
		}
		views[i] = pv
	}

	return sessionView{
		ID:           s.ID,
		Name:         s.Name,
		Topic:        s.Topic,
		OwnerID:      s.OwnerID,
		JoinCode:     s.JoinCode,
		Status:       s.Status,
		Config:       s.Config,
		StartedAt:    s.StartedAt,
		Questions:    questions,
		Participants: views,
	}
}
