package domain

// Alternative is one lettered choice of a multiple-choice question.
type Alternative struct {
	Letter string `json:"letter"`
	Text   string `json:"text"`
}

// Question is a multiple-choice question with exactly one correct letter.
// CorrectLetter is never serialized to students; the transport layer strips it.
type Question struct {
	ID            string        `json:"id"`
	Topic         string        `json:"topic"`
	Prompt        string        `json:"prompt"`
	ImageURL      string        `json:"imageUrl,omitempty"`
	Alternatives  []Alternative `json:"alternatives"`
	CorrectLetter string        `json:"correctLetter"`
}

// Role is the closed set of caller roles the engine dispatches on.
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleStudent || r == RoleTeacher
}

// Principal is the authenticated identity attached to every request.
// The engine trusts it without re-validating credentials.
type Principal struct {
	ID          string
	DisplayName string
	Role        Role
}
