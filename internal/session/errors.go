package session

import "errors"

// Error kinds surfaced by session operations. Callers distinguish them with
// errors.Is; the HTTP layer maps each to its own status code.
var (
	// ErrNotFound: session, quiz, question, or answer choice does not exist.
	ErrNotFound = errors.New("not found")
	// ErrForbidden: requester is not the session's owning student.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidState: mutation attempted on a session not in progress.
	ErrInvalidState = errors.New("session not in progress")
	// ErrValidation: question/answer does not belong to the expected quiz/question.
	ErrValidation = errors.New("invalid submission")
)
