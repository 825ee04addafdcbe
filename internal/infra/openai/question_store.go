package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"classroom-session-service/internal/domain"
)

// QuestionStore generates multiple-choice questions through an
// OpenAI-compatible chat-completions endpoint. Generation is slow and can
// fail; callers treat any error as an upstream failure and create nothing.
type QuestionStore struct {
	httpClient *http.Client
	apiURL     string
	apiKey     string
	model      string
}

func NewQuestionStore(apiURL, apiKey, model string) *QuestionStore {
	return &QuestionStore{
		httpClient: &http.Client{Timeout: 120 * time.Second},
		apiURL:     strings.TrimSuffix(apiURL, "/"),
		apiKey:     apiKey,
		model:      model,
	}
}

const systemPrompt = `You are an exam question writer. The user names a topic and a question count. Respond with ONLY a valid JSON object (no markdown, no code fences) of the form:

{
  "questions": [
    {
      "topic": "the topic",
      "prompt": "Question text?",
      "imageUrl": null,
      "alternatives": [
        {"letter": "A", "text": "..."},
        {"letter": "B", "text": "..."},
        {"letter": "C", "text": "..."},
        {"letter": "D", "text": "..."},
        {"letter": "E", "text": "..."}
      ],
      "correctLetter": "C"
    }
  ]
}

Rules:
- Produce exactly the requested number of questions, all about the requested topic
- Each question has five alternatives lettered A through E
- correctLetter names exactly one of the alternatives
- Use supporting text and plausible distractors; keep commands unambiguous
- Return ONLY the JSON object, nothing else`

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	ResponseFormat responseFormat `json:"response_format"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type generatedPayload struct {
	Questions []generatedQuestion `json:"questions"`
}

type generatedQuestion struct {
	Topic        string `json:"topic"`
	Prompt       string `json:"prompt"`
	ImageURL     string `json:"imageUrl"`
	Alternatives []struct {
		Letter string `json:"letter"`
		Text   string `json:"text"`
	} `json:"alternatives"`
	CorrectLetter string `json:"correctLetter"`
}

func (s *QuestionStore) GenerateQuestions(ctx context.Context, topic string, count int) ([]domain.Question, error) {
	reqBody := chatRequest{
		Model: s.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: fmt.Sprintf("Topic: %s. Generate %d questions.", topic, count)},
		},
		ResponseFormat: responseFormat{Type: "json_object"},
	}
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("question API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("question API returned status %d: %s", resp.StatusCode, string(body))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return nil, fmt.Errorf("parse API response: %w", err)
	}
	if chatResp.Error != nil {
		return nil, fmt.Errorf("question API error: %s", chatResp.Error.Message)
	}
	if len(chatResp.Choices) == 0 {
		return nil, fmt.Errorf("empty response from question API")
	}

	content := cleanJSONContent(chatResp.Choices[0].Message.Content)
	var payload generatedPayload
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return nil, fmt.Errorf("question API returned invalid JSON: %w", err)
	}

	return convertQuestions(topic, payload)
}

// cleanJSONContent strips markdown code fences some models wrap around JSON.
func cleanJSONContent(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}

func convertQuestions(topic string, payload generatedPayload) ([]domain.Question, error) {
	if len(payload.Questions) == 0 {
		return nil, fmt.Errorf("question API returned no questions")
	}
	questions := make([]domain.Question, 0, len(payload.Questions))
	for i, gq := range payload.Questions {
		if strings.TrimSpace(gq.Prompt) == "" {
			return nil, fmt.Errorf("question %d has no prompt", i+1)
		}
		if len(gq.Alternatives) < 2 {
			return nil, fmt.Errorf("question %d has fewer than two alternatives", i+1)
		}
		q := domain.Question{
			ID:            uuid.NewString(),
			Topic:         topic,
			Prompt:        gq.Prompt,
			ImageURL:      gq.ImageURL,
			CorrectLetter: gq.CorrectLetter,
		}
		correctSeen := false
		for _, alt := range gq.Alternatives {
			q.Alternatives = append(q.Alternatives, domain.Alternative{Letter: alt.Letter, Text: alt.Text})
			if alt.Letter == gq.CorrectLetter {
				correctSeen = true
			}
		}
		if !correctSeen {
			return nil, fmt.Errorf("question %d marks %q correct but has no such alternative", i+1, gq.CorrectLetter)
		}
		questions = append(questions, q)
	}
	return questions, nil
}
