package memory

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"classroom-session-service/internal/domain"
)

var placeholderLetters = []string{"A", "B", "C", "D", "E"}

// StaticQuestionStore fabricates placeholder questions locally. It stands in
// for the generative backend in tests and when no API key is configured.
type StaticQuestionStore struct{}

func NewStaticQuestionStore() *StaticQuestionStore {
	return &StaticQuestionStore{}
}

func (s *StaticQuestionStore) GenerateQuestions(_ context.Context, topic string, count int) ([]domain.Question, error) {
	questions := make([]domain.Question, count)
	for i := range questions {
		alts := make([]domain.Alternative, len(placeholderLetters))
		for j, letter := range placeholderLetters {
			alts[j] = domain.Alternative{
				Letter: letter,
				Text:   fmt.Sprintf("Choice %s for question %d", letter, i+1),
			}
		}
		questions[i] = domain.Question{
			ID:            uuid.NewString(),
			Topic:         topic,
			Prompt:        fmt.Sprintf("Placeholder question %d about %s", i+1, topic),
			Alternatives:  alts,
			CorrectLetter: placeholderLetters[i%len(placeholderLetters)],
		}
	}
	return questions, nil
}
