package content

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/QuangPhat16/its-main-app/internal/session"
)

// SQLStore is both the authoring store for quiz content and the
// session.ContentReader the assessment engine consumes.
type SQLStore struct{ db *sql.DB }

func NewSQLStore(db *sql.DB) *SQLStore { return &SQLStore{db: db} }

/* ---------------- session.ContentReader ---------------- */

func (s *SQLStore) QuizQuestionCount(ctx context.Context, quizID string) (int, error) {
	var exist int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM quizzes WHERE id=$1`, quizID).Scan(&exist)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: quiz %s", session.ErrNotFound, quizID)
	}
	if err != nil {
		return 0, err
	}
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM questions WHERE quiz_id=$1`, quizID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *SQLStore) Question(ctx context.Context, questionID string) (session.QuestionRef, error) {
	var ref session.QuestionRef
	err := s.db.QueryRowContext(ctx, `SELECT id, quiz_id FROM questions WHERE id=$1`, questionID).
		Scan(&ref.ID, &ref.QuizID)
	if errors.Is(err, sql.ErrNoRows) {
		return session.QuestionRef{}, fmt.Errorf("%w: question %s", session.ErrNotFound, questionID)
	}
	return ref, err
}

func (s *SQLStore) AnswerChoice(ctx context.Context, answerID string) (session.AnswerRef, error) {
	var ref session.AnswerRef
	err := s.db.QueryRowContext(ctx, `SELECT id, question_id, correct FROM answers WHERE id=$1`, answerID).
		Scan(&ref.ID, &ref.QuestionID, &ref.Correct)
	if errors.Is(err, sql.ErrNoRows) {
		return session.AnswerRef{}, fmt.Errorf("%w: answer %s", session.ErrNotFound, answerID)
	}
	return ref, err
}

func (s *SQLStore) QuizForStudent(ctx context.Context, quizID string) (session.QuizContent, error) {
	q, err := s.GetQuiz(ctx, quizID, true)
	if err != nil {
		return session.QuizContent{}, err
	}
	out := session.QuizContent{ID: q.ID, Name: q.Name}
	for _, qq := range q.Questions {
		rq := session.RenderQuestion{ID: qq.ID, Prompt: qq.Prompt}
		for _, a := range qq.Answers {
			rq.Choices = append(rq.Choices, session.RenderChoice{ID: a.ID, Content: a.Content})
		}
		out.Questions = append(out.Questions, rq)
	}
	return out, nil
}

/* ---------------- authoring ---------------- */

func (s *SQLStore) CreateQuiz(ctx context.Context, courseID string, in QuizInput) (Quiz, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Quiz{}, err
	}
	defer tx.Rollback()

	q := Quiz{
		ID:           uuid.NewString(),
		CourseID:     courseID,
		Name:         in.Name,
		TimeLimitSec: in.TimeLimitSec,
		CreatedAt:    time.Now().Unix(),
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO quizzes (id, course_id, name, time_limit_sec, created_at) VALUES ($1,$2,$3,$4,$5)`,
		q.ID, q.CourseID, q.Name, q.TimeLimitSec, q.CreatedAt)
	if err != nil {
		return Quiz{}, err
	}
	for _, qi := range in.Questions {
		qq, err := insertQuestion(ctx, tx, q.ID, qi)
		if err != nil {
			return Quiz{}, err
		}
		q.Questions = append(q.Questions, qq)
	}
	if err := tx.Commit(); err != nil {
		return Quiz{}, err
	}
	return q, nil
}

func (s *SQLStore) AddQuestion(ctx context.Context, quizID string, in QuestionInput) (Question, error) {
	if _, err := s.GetQuiz(ctx, quizID, false); err != nil {
		return Question{}, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Question{}, err
	}
	defer tx.Rollback()

	q, err := insertQuestion(ctx, tx, quizID, in)
	if err != nil {
		return Question{}, err
	}
	if err := tx.Commit(); err != nil {
		return Question{}, err
	}
	return q, nil
}

func insertQuestion(ctx context.Context, tx *sql.Tx, quizID string, in QuestionInput) (Question, error) {
	q := Question{ID: uuid.NewString(), QuizID: quizID, Prompt: in.Prompt}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO questions (id, quiz_id, prompt) VALUES ($1,$2,$3)`,
		q.ID, q.QuizID, q.Prompt)
	if err != nil {
		return Question{}, err
	}
	for _, ai := range in.Answers {
		a := Answer{ID: uuid.NewString(), QuestionID: q.ID, Content: ai.Content, Correct: ai.Correct}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO answers (id, question_id, content, correct) VALUES ($1,$2,$3,$4)`,
			a.ID, a.QuestionID, a.Content, a.Correct)
		if err != nil {
			return Question{}, err
		}
		q.Answers = append(q.Answers, a)
	}
	return q, nil
}

// GetQuiz loads a quiz, optionally with its questions and answers. Correctness
// flags come back as stored; callers serving students must not use this
// directly (see QuizForStudent).
func (s *SQLStore) GetQuiz(ctx context.Context, id string, withQuestions bool) (Quiz, error) {
	var q Quiz
	err := s.db.QueryRowContext(ctx,
		`SELECT id, course_id, name, time_limit_sec, created_at FROM quizzes WHERE id=$1`, id).
		Scan(&q.ID, &q.CourseID, &q.Name, &q.TimeLimitSec, &q.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Quiz{}, fmt.Errorf("%w: quiz %s", session.ErrNotFound, id)
	}
	if err != nil {
		return Quiz{}, err
	}
	if !withQuestions {
		return q, nil
	}
	q.Questions, err = s.questionsOf(ctx, id)
	return q, err
}

func (s *SQLStore) questionsOf(ctx context.Context, quizID string) ([]Question, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, quiz_id, prompt FROM questions WHERE quiz_id=$1 ORDER BY id`, quizID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var qs []Question
	for rows.Next() {
		var q Question
		if err := rows.Scan(&q.ID, &q.QuizID, &q.Prompt); err != nil {
			return nil, err
		}
		qs = append(qs, q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range qs {
		arows, err := s.db.QueryContext(ctx,
			`SELECT id, question_id, content, correct FROM answers WHERE question_id=$1 ORDER BY id`, qs[i].ID)
		if err != nil {
			return nil, err
		}
		for arows.Next() {
			var a Answer
			if err := arows.Scan(&a.ID, &a.QuestionID, &a.Content, &a.Correct); err != nil {
				arows.Close()
				return nil, err
			}
			qs[i].Answers = append(qs[i].Answers, a)
		}
		if err := arows.Err(); err != nil {
			arows.Close()
			return nil, err
		}
		arows.Close()
	}
	return qs, nil
}

func (s *SQLStore) ListQuizzesByCourse(ctx context.Context, courseID string) ([]Quiz, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, course_id, name, time_limit_sec, created_at FROM quizzes WHERE course_id=$1 ORDER BY created_at DESC`,
		courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Quiz{}
	for rows.Next() {
		var q Quiz
		if err := rows.Scan(&q.ID, &q.CourseID, &q.Name, &q.TimeLimitSec, &q.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (s *SQLStore) UpdateQuiz(ctx context.Context, id, name string, timeLimitSec int) (Quiz, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE quizzes SET name=$1, time_limit_sec=$2 WHERE id=$3`, name, timeLimitSec, id)
	if err != nil {
		return Quiz{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Quiz{}, fmt.Errorf("%w: quiz %s", session.ErrNotFound, id)
	}
	return s.GetQuiz(ctx, id, false)
}

func (s *SQLStore) DeleteQuiz(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM quizzes WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: quiz %s", session.ErrNotFound, id)
	}
	return nil
}

func (s *SQLStore) DeleteQuestion(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM questions WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: question %s", session.ErrNotFound, id)
	}
	return nil
}

// CourseOwner returns the instructor that owns a course, for authoring
// ownership checks.
func (s *SQLStore) CourseOwner(ctx context.Context, courseID string) (string, error) {
	var owner string
	err := s.db.QueryRowContext(ctx, `SELECT instructor_id FROM courses WHERE id=$1`, courseID).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: course %s", session.ErrNotFound, courseID)
	}
	return owner, err
}

// QuizCourse returns the course a quiz belongs to.
func (s *SQLStore) QuizCourse(ctx context.Context, quizID string) (string, error) {
	var courseID string
	err := s.db.QueryRowContext(ctx, `SELECT course_id FROM quizzes WHERE id=$1`, quizID).Scan(&courseID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: quiz %s", session.ErrNotFound, quizID)
	}
	return courseID, err
}

// QuestionQuiz returns the quiz a question belongs to.
func (s *SQLStore) QuestionQuiz(ctx context.Context, questionID string) (string, error) {
	var quizID string
	err := s.db.QueryRowContext(ctx, `SELECT quiz_id FROM questions WHERE id=$1`, questionID).Scan(&quizID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: question %s", session.ErrNotFound, questionID)
	}
	return quizID, err
}
