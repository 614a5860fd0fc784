package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	syncx "github.com/QuangPhat16/its-main-app/internal/sync"
)

// SQLStore persists sessions and recorded answers through database/sql,
// working against either the sqlite or postgres schema. Every operation runs
// in a single transaction; state checks are re-validated by guarded UPDATEs
// so concurrent mutations never interleave into a corrupted row.
type SQLStore struct {
	db      *sql.DB
	content ContentReader
	events  *syncx.EventRepo
}

func NewSQLStore(db *sql.DB, content ContentReader, events *syncx.EventRepo) *SQLStore {
	return &SQLStore{db: db, content: content, events: events}
}

func (s *SQLStore) Start(ctx context.Context, studentID, quizID string) (StartResult, error) {
	total, err := s.content.QuizQuestionCount(ctx, quizID)
	if err != nil {
		return StartResult{}, err
	}
	quiz, err := s.content.QuizForStudent(ctx, quizID)
	if err != nil {
		return StartResult{}, err
	}

	// Resume: at most one in-progress session per (student, quiz). The
	// partial unique index backs this up against concurrent starts.
	sess, err := s.findInProgress(ctx, studentID, quizID)
	if err == nil {
		return StartResult{Session: sess, Quiz: quiz}, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return StartResult{}, err
	}

	sess = Session{
		ID:             uuid.NewString(),
		StudentID:      studentID,
		QuizID:         quizID,
		Status:         StatusInProgress,
		TotalQuestions: total,
		StartedAt:      time.Now().Unix(),
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return StartResult{}, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO sessions (id, student_id, quiz_id, status, total_questions, answered_count, started_at)
		 VALUES ($1,$2,$3,$4,$5,0,$6)`,
		sess.ID, studentID, quizID, string(StatusInProgress), total, sess.StartedAt)
	if err != nil {
		// Lost the race: another request created the in-progress session.
		if prev, ferr := s.findInProgress(ctx, studentID, quizID); ferr == nil {
			return StartResult{Session: prev, Quiz: quiz}, nil
		}
		return StartResult{}, err
	}
	s.appendEvent(ctx, tx, syncx.TypeSessionStarted, sess)
	if err := tx.Commit(); err != nil {
		return StartResult{}, err
	}
	return StartResult{Session: sess, Quiz: quiz}, nil
}

func (s *SQLStore) Get(ctx context.Context, sessionID, studentID string) (Detail, error) {
	sess, err := s.getSession(ctx, s.db, sessionID)
	if err != nil {
		return Detail{}, err
	}
	if err := authorize(sess, studentID); err != nil {
		return Detail{}, err
	}
	answers, err := s.answersOf(ctx, sessionID)
	if err != nil {
		return Detail{}, err
	}
	return Detail{Session: sess, Answers: answers}, nil
}

func (s *SQLStore) SaveAnswer(ctx context.Context, sessionID, studentID, questionID, selectedAnswerID string) (Session, error) {
	sess, err := s.getSession(ctx, s.db, sessionID)
	if err != nil {
		return Session{}, err
	}
	if err := authorize(sess, studentID); err != nil {
		return Session{}, err
	}
	if sess.Status != StatusInProgress {
		return Session{}, fmt.Errorf("%w: session %s is %s", ErrInvalidState, sessionID, sess.Status)
	}

	// Quiz content is immutable once a session references it, so these
	// lookups can safely run outside the write transaction.
	q, err := s.content.Question(ctx, questionID)
	if err != nil {
		return Session{}, err
	}
	if q.QuizID != sess.QuizID {
		return Session{}, fmt.Errorf("%w: question %s does not belong to quiz %s", ErrValidation, questionID, sess.QuizID)
	}
	a, err := s.content.AnswerChoice(ctx, selectedAnswerID)
	if err != nil {
		return Session{}, err
	}
	if a.QuestionID != questionID {
		return Session{}, fmt.Errorf("%w: answer %s does not belong to question %s", ErrValidation, selectedAnswerID, questionID)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Session{}, err
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO session_answers (session_id, question_id, selected_answer_id, is_correct, updated_at)
		 VALUES ($1,$2,$3,$4,$5)
		 ON CONFLICT (session_id, question_id) DO UPDATE SET
		   selected_answer_id=EXCLUDED.selected_answer_id,
		   is_correct=EXCLUDED.is_correct,
		   updated_at=EXCLUDED.updated_at`,
		sessionID, questionID, selectedAnswerID, a.Correct, now)
	if err != nil {
		return Session{}, err
	}

	// Recompute the distinct-question count inside the same transaction and
	// gate it on the session still being in progress. Zero rows means a
	// finish or cancel committed in between: roll the answer back.
	res, err := tx.ExecContext(ctx,
		`UPDATE sessions
		    SET answered_count = (SELECT COUNT(*) FROM session_answers WHERE session_id=$1)
		  WHERE id=$1 AND status=$2`,
		sessionID, string(StatusInProgress))
	if err != nil {
		return Session{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Session{}, fmt.Errorf("%w: session %s is no longer in progress", ErrInvalidState, sessionID)
	}
	if err := tx.Commit(); err != nil {
		return Session{}, err
	}
	return s.getSession(ctx, s.db, sessionID)
}

func (s *SQLStore) Finish(ctx context.Context, sessionID, studentID string) (Session, error) {
	sess, err := s.getSession(ctx, s.db, sessionID)
	if err != nil {
		return Session{}, err
	}
	if err := authorize(sess, studentID); err != nil {
		return Session{}, err
	}
	if sess.Status != StatusInProgress {
		return Session{}, fmt.Errorf("%w: session %s is %s", ErrInvalidState, sessionID, sess.Status)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Session{}, err
	}
	defer tx.Rollback()

	// Score and completion flip in one guarded statement: the sessions row
	// lock serializes this against a racing SaveAnswer, whose own guarded
	// UPDATE then sees the completed status and rolls its answer back.
	now := time.Now().Unix()
	res, err := tx.ExecContext(ctx,
		`UPDATE sessions
		    SET status=$1,
		        score=(SELECT COUNT(*) FROM session_answers WHERE session_id=$4 AND is_correct=TRUE),
		        finished_at=$2
		  WHERE id=$4 AND status=$3`,
		string(StatusCompleted), now, string(StatusInProgress), sessionID)
	if err != nil {
		return Session{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Session{}, fmt.Errorf("%w: session %s is no longer in progress", ErrInvalidState, sessionID)
	}
	sess, err = s.getSession(ctx, tx, sessionID)
	if err != nil {
		return Session{}, err
	}
	s.appendEvent(ctx, tx, syncx.TypeSessionCompleted, sess)
	if err := tx.Commit(); err != nil {
		return Session{}, err
	}
	return sess, nil
}

func (s *SQLStore) Cancel(ctx context.Context, sessionID string) (Session, error) {
	if _, err := s.getSession(ctx, s.db, sessionID); err != nil {
		return Session{}, err
	}
	// score and finished_at stay NULL: they belong to completed sessions only.
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET status=$1 WHERE id=$2 AND status=$3`,
		string(StatusCancelled), sessionID, string(StatusInProgress))
	if err != nil {
		return Session{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Session{}, fmt.Errorf("%w: session %s is not in progress", ErrInvalidState, sessionID)
	}
	return s.getSession(ctx, s.db, sessionID)
}

func (s *SQLStore) List(ctx context.Context, opts ListOpts) ([]Session, error) {
	sqlStr := `SELECT id, student_id, quiz_id, status, total_questions, answered_count, score, started_at, finished_at
	             FROM sessions WHERE 1=1`
	args := []any{}
	add := func(clause string, v any) {
		args = append(args, v)
		sqlStr += fmt.Sprintf(" AND %s=$%d", clause, len(args))
	}
	if opts.QuizID != "" {
		add("quiz_id", opts.QuizID)
	}
	if opts.StudentID != "" {
		add("student_id", opts.StudentID)
	}
	if opts.Status != "" {
		add("status", opts.Status)
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, opts.Offset)
	sqlStr += fmt.Sprintf(" ORDER BY started_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Session{}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (Session, error) {
	var (
		sess     Session
		status   string
		score    sql.NullInt64
		finished sql.NullInt64
	)
	err := row.Scan(&sess.ID, &sess.StudentID, &sess.QuizID, &status,
		&sess.TotalQuestions, &sess.AnsweredCount, &score, &sess.StartedAt, &finished)
	if err != nil {
		return Session{}, err
	}
	sess.Status = Status(status)
	if score.Valid {
		v := int(score.Int64)
		sess.Score = &v
	}
	if finished.Valid {
		v := finished.Int64
		sess.FinishedAt = &v
	}
	return sess, nil
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLStore) getSession(ctx context.Context, q querier, id string) (Session, error) {
	row := q.QueryRowContext(ctx,
		`SELECT id, student_id, quiz_id, status, total_questions, answered_count, score, started_at, finished_at
		   FROM sessions WHERE id=$1`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, fmt.Errorf("%w: session %s", ErrNotFound, id)
	}
	return sess, err
}

func (s *SQLStore) findInProgress(ctx context.Context, studentID, quizID string) (Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, student_id, quiz_id, status, total_questions, answered_count, score, started_at, finished_at
		   FROM sessions WHERE student_id=$1 AND quiz_id=$2 AND status=$3`,
		studentID, quizID, string(StatusInProgress))
	return scanSession(row)
}

func (s *SQLStore) answersOf(ctx context.Context, sessionID string) ([]RecordedAnswer, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, question_id, selected_answer_id, is_correct, updated_at
		   FROM session_answers WHERE session_id=$1 ORDER BY question_id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []RecordedAnswer{}
	for rows.Next() {
		var a RecordedAnswer
		if err := rows.Scan(&a.SessionID, &a.QuestionID, &a.SelectedAnswerID, &a.IsCorrect, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLStore) appendEvent(ctx context.Context, tx *sql.Tx, typ string, sess Session) {
	if s.events == nil {
		return
	}
	data, _ := json.Marshal(sess)
	// Best effort: the event log feeds reporting, not correctness.
	_ = s.events.AppendTx(ctx, tx, syncx.Event{Type: typ, Key: sess.ID, DataJSON: string(data)})
}
