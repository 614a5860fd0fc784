package session

import (
	"context"
	"fmt"
)

// QuestionRef locates a question within its quiz.
type QuestionRef struct {
	ID     string
	QuizID string
}

// AnswerRef locates an answer choice within its question and carries the
// correctness flag used to grade a submission.
type AnswerRef struct {
	ID         string
	QuestionID string
	Correct    bool
}

// QuizContent is the student-safe rendering of a quiz: prompts and choices,
// no correctness flags.
type QuizContent struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Questions []RenderQuestion `json:"questions"`
}

type RenderQuestion struct {
	ID      string         `json:"id"`
	Prompt  string         `json:"prompt"`
	Choices []RenderChoice `json:"choices"`
}

type RenderChoice struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

// ContentReader is the read-only view of quiz content the session engine
// depends on. Every lookup is a single-purpose call; the engine never asks
// for more than it needs. Implementations return ErrNotFound (possibly
// wrapped) for missing rows.
type ContentReader interface {
	QuizQuestionCount(ctx context.Context, quizID string) (int, error)
	Question(ctx context.Context, questionID string) (QuestionRef, error)
	AnswerChoice(ctx context.Context, answerID string) (AnswerRef, error)
	QuizForStudent(ctx context.Context, quizID string) (QuizContent, error)
}

// Store is the assessment session engine. Both implementations (memory, SQL)
// enforce the same contract:
//
//   - Start is an idempotent resume: at most one in-progress session exists
//     per (student, quiz), and starting again returns it unchanged.
//   - SaveAnswer upserts, last write wins, and never double-counts a
//     re-answered question.
//   - Finish is an atomic check-then-act; a save racing a finish either lands
//     before it or fails with ErrInvalidState.
//   - Every read or mutation checks ownership first.
type Store interface {
	Start(ctx context.Context, studentID, quizID string) (StartResult, error)
	Get(ctx context.Context, sessionID, studentID string) (Detail, error)
	SaveAnswer(ctx context.Context, sessionID, studentID, questionID, selectedAnswerID string) (Session, error)
	Finish(ctx context.Context, sessionID, studentID string) (Session, error)

	// Cancel is administrative; it bypasses the ownership guard and is not
	// part of the student-facing surface.
	Cancel(ctx context.Context, sessionID string) (Session, error)

	List(ctx context.Context, opts ListOpts) ([]Session, error)
}

// authorize is the ownership guard: only the owning student may read or
// mutate a session. Stateless, no side effects.
func authorize(s Session, studentID string) error {
	if s.StudentID != studentID {
		return fmt.Errorf("%w: session %s does not belong to requester", ErrForbidden, s.ID)
	}
	return nil
}

// scoreOf counts correct recorded answers. Questions never answered are
// implicitly incorrect, so the score never exceeds the answered count.
func scoreOf(answers []RecordedAnswer) int {
	n := 0
	for _, a := range answers {
		if a.IsCorrect {
			n++
		}
	}
	return n
}
