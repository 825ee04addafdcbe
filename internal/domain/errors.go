package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionNotFound is returned when no session matches the id or join code.
	// A join attempt against a session that already left WAITING returns this
	// same error on purpose, so a late or mistyped code cannot be used to probe
	// session state.
	ErrSessionNotFound = errors.New("session not found or already started")
	// ErrQuestionNotFound indicates a submitted question id is not part of the session.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrTeacherOnly is returned when a non-teacher calls a teacher operation.
	ErrTeacherOnly = errors.New("only teachers may perform this action")
	// ErrStudentOnly is returned when a non-student calls a student operation.
	ErrStudentOnly = errors.New("only students may perform this action")
	// ErrNotOwner is returned when a teacher other than the session owner
	// tries to mutate it.
	ErrNotOwner = errors.New("only the owning teacher may perform this action")
	// ErrNotParticipant is returned when a student acts on a session they never joined.
	ErrNotParticipant = errors.New("caller is not a participant of this session")
	// ErrAlreadyAnswered is the conflict returned on a duplicate answer for the
	// same question by the same student.
	ErrAlreadyAnswered = errors.New("question already answered")

	// ErrVersionConflict is returned by repositories when a compare-and-swap
	// save loses against a concurrent write. Callers re-read and retry.
	ErrVersionConflict = errors.New("session was modified concurrently")
	// ErrJoinCodeTaken is returned by repositories when a freshly generated
	// join code collides with another joinable session.
	ErrJoinCodeTaken = errors.New("join code already in use")
)

// ValidationError rejects malformed or out-of-range input before any write.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid request: " + e.Reason
}

// Validationf builds a ValidationError from a format string.
func Validationf(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// InvalidStateError rejects an operation that is not legal in the session's
// current state. The message always names the current status.
type InvalidStateError struct {
	Op     string
	Status Status
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s session (current status: %s)", e.Op, e.Status)
}

// UpstreamError wraps a question-store failure during session creation.
type UpstreamError struct {
	Err error
}

func (e *UpstreamError) Error() string {
	return "question generation failed: " + e.Err.Error()
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// IsAuthorization reports whether err is one of the authorization failures.
func IsAuthorization(err error) bool {
	return errors.Is(err, ErrTeacherOnly) ||
		errors.Is(err, ErrStudentOnly) ||
		errors.Is(err, ErrNotOwner) ||
		errors.Is(err, ErrNotParticipant)
}
