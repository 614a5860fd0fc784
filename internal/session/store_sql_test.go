package session_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/QuangPhat16/its-main-app/internal/content"
	"github.com/QuangPhat16/its-main-app/internal/db"
	"github.com/QuangPhat16/its-main-app/internal/session"
	syncx "github.com/QuangPhat16/its-main-app/internal/sync"

	_ "modernc.org/sqlite" // driver for "sqlite"
)

type fixture struct {
	db       *sql.DB
	store    *session.SQLStore
	content  *content.SQLStore
	events   *syncx.EventRepo
	quiz     content.Quiz
	courseID string
}

// openFixture spins up an in-memory sqlite database with the real schema and
// seeds one course with a three-question quiz (first choice of each question
// is the correct one).
func openFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	dbh, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { dbh.Close() })
	// The shared in-memory database vanishes when its last connection
	// closes; pin one open for the test's lifetime.
	dbh.SetMaxOpenConns(1)

	if err := db.EnsureSchema(ctx, dbh, db.DriverSQLite); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}

	now := time.Now().Unix()
	for _, u := range []struct{ id, email, role string }{
		{"u-alice", "alice@example.com", "student"},
		{"u-bob", "bob@example.com", "student"},
		{"u-carol", "carol@example.com", "instructor"},
	} {
		if _, err := dbh.Exec(
			`INSERT INTO users (id, email, name, password_hash, role, created_at) VALUES ($1,$2,'','x',$3,$4)`,
			u.id, u.email, u.role, now); err != nil {
			t.Fatalf("seed user %s: %v", u.id, err)
		}
	}
	courseID := "c-1"
	if _, err := dbh.Exec(
		`INSERT INTO courses (id, name, instructor_id, created_at) VALUES ($1,'Intro','u-carol',$2)`,
		courseID, now); err != nil {
		t.Fatalf("seed course: %v", err)
	}

	cs := content.NewSQLStore(dbh)
	in := content.QuizInput{Name: "Quiz One", TimeLimitSec: 600}
	for i := 1; i <= 3; i++ {
		in.Questions = append(in.Questions, content.QuestionInput{
			Prompt: fmt.Sprintf("Question %d", i),
			Answers: []content.AnswerInput{
				{Content: "right", Correct: true},
				{Content: "wrong", Correct: false},
			},
		})
	}
	quiz, err := cs.CreateQuiz(ctx, courseID, in)
	if err != nil {
		t.Fatalf("create quiz: %v", err)
	}

	events := syncx.NewEventRepo(dbh)
	return fixture{
		db:       dbh,
		store:    session.NewSQLStore(dbh, cs, events),
		content:  cs,
		events:   events,
		quiz:     quiz,
		courseID: courseID,
	}
}

func (f fixture) answer(q content.Question, correct bool) string {
	for _, a := range q.Answers {
		if a.Correct == correct {
			return a.ID
		}
	}
	return ""
}

func TestSQLStoreFullFlow(t *testing.T) {
	f := openFixture(t)
	ctx := context.Background()

	res, err := f.store.Start(ctx, "u-alice", f.quiz.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if res.Session.TotalQuestions != 3 || res.Session.Status != session.StatusInProgress {
		t.Fatalf("unexpected session: %+v", res.Session)
	}
	if len(res.Quiz.Questions) != 3 {
		t.Fatalf("rendered questions = %d, want 3", len(res.Quiz.Questions))
	}

	// Resume returns the same row.
	again, err := f.store.Start(ctx, "u-alice", f.quiz.ID)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if again.Session.ID != res.Session.ID {
		t.Fatalf("resume created a second session")
	}

	q1, q2 := f.quiz.Questions[0], f.quiz.Questions[1]

	// Answer q1 wrong, then overwrite with the correct choice.
	if _, err := f.store.SaveAnswer(ctx, res.Session.ID, "u-alice", q1.ID, f.answer(q1, false)); err != nil {
		t.Fatalf("save q1: %v", err)
	}
	s, err := f.store.SaveAnswer(ctx, res.Session.ID, "u-alice", q1.ID, f.answer(q1, true))
	if err != nil {
		t.Fatalf("overwrite q1: %v", err)
	}
	if s.AnsweredCount != 1 {
		t.Fatalf("answered_count = %d, want 1 after overwrite", s.AnsweredCount)
	}

	// Answer q2 wrong; leave q3 untouched.
	if s, err = f.store.SaveAnswer(ctx, res.Session.ID, "u-alice", q2.ID, f.answer(q2, false)); err != nil {
		t.Fatalf("save q2: %v", err)
	}
	if s.AnsweredCount != 2 {
		t.Fatalf("answered_count = %d, want 2", s.AnsweredCount)
	}

	done, err := f.store.Finish(ctx, res.Session.ID, "u-alice")
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if done.Score == nil || *done.Score != 1 {
		t.Fatalf("score = %v, want 1 (q1 correct, q2 wrong, q3 unanswered)", done.Score)
	}
	if done.FinishedAt == nil || done.Status != session.StatusCompleted {
		t.Fatalf("finish did not complete the session: %+v", done)
	}

	// Terminal immutability, straight from the database state.
	if _, err := f.store.SaveAnswer(ctx, res.Session.ID, "u-alice", q1.ID, f.answer(q1, true)); !errors.Is(err, session.ErrInvalidState) {
		t.Fatalf("save after finish err = %v, want ErrInvalidState", err)
	}
	if _, err := f.store.Finish(ctx, res.Session.ID, "u-alice"); !errors.Is(err, session.ErrInvalidState) {
		t.Fatalf("double finish err = %v, want ErrInvalidState", err)
	}

	// Completed means a fresh start opens a new session.
	fresh, err := f.store.Start(ctx, "u-alice", f.quiz.ID)
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	if fresh.Session.ID == res.Session.ID {
		t.Fatal("restart resumed a completed session")
	}

	// Event log carries one started pair plus the completion.
	evts, err := f.events.Since(ctx, 0, 10)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	var started, completed int
	for _, e := range evts {
		switch e.Type {
		case syncx.TypeSessionStarted:
			started++
		case syncx.TypeSessionCompleted:
			completed++
		}
	}
	if started != 2 || completed != 1 {
		t.Fatalf("events started=%d completed=%d, want 2/1", started, completed)
	}
}

func TestSQLStoreOwnershipAndValidation(t *testing.T) {
	f := openFixture(t)
	ctx := context.Background()

	res, err := f.store.Start(ctx, "u-alice", f.quiz.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	q1 := f.quiz.Questions[0]

	if _, err := f.store.Get(ctx, res.Session.ID, "u-bob"); !errors.Is(err, session.ErrForbidden) {
		t.Fatalf("get err = %v, want ErrForbidden", err)
	}
	if _, err := f.store.SaveAnswer(ctx, res.Session.ID, "u-bob", q1.ID, f.answer(q1, true)); !errors.Is(err, session.ErrForbidden) {
		t.Fatalf("save err = %v, want ErrForbidden", err)
	}
	if _, err := f.store.Finish(ctx, res.Session.ID, "u-bob"); !errors.Is(err, session.ErrForbidden) {
		t.Fatalf("finish err = %v, want ErrForbidden", err)
	}

	// An answer from a different question fails validation and writes nothing.
	q2 := f.quiz.Questions[1]
	if _, err := f.store.SaveAnswer(ctx, res.Session.ID, "u-alice", q1.ID, f.answer(q2, true)); !errors.Is(err, session.ErrValidation) {
		t.Fatalf("foreign answer err = %v, want ErrValidation", err)
	}
	d, err := f.store.Get(ctx, res.Session.ID, "u-alice")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(d.Answers) != 0 || d.Session.AnsweredCount != 0 {
		t.Fatalf("validation failure persisted state: %+v", d)
	}

	if _, err := f.store.Start(ctx, "u-alice", "no-such-quiz"); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("unknown quiz err = %v, want ErrNotFound", err)
	}
}

func TestSQLStoreCancel(t *testing.T) {
	f := openFixture(t)
	ctx := context.Background()

	res, err := f.store.Start(ctx, "u-bob", f.quiz.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	s, err := f.store.Cancel(ctx, res.Session.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if s.Status != session.StatusCancelled || s.Score != nil {
		t.Fatalf("cancel state: %+v", s)
	}
	if s.FinishedAt != nil {
		t.Fatalf("cancelled session carries finished_at=%d", *s.FinishedAt)
	}
	d, err := f.store.Get(ctx, res.Session.ID, "u-bob")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if d.Session.FinishedAt != nil || d.Session.Score != nil {
		t.Fatalf("stored cancel state: %+v", d.Session)
	}
	if _, err := f.store.Finish(ctx, res.Session.ID, "u-bob"); !errors.Is(err, session.ErrInvalidState) {
		t.Fatalf("finish after cancel err = %v, want ErrInvalidState", err)
	}
}

func TestSQLStoreFinishScoreMatchesRecordedAnswers(t *testing.T) {
	f := openFixture(t)
	ctx := context.Background()

	res, err := f.store.Start(ctx, "u-alice", f.quiz.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	q1, q2 := f.quiz.Questions[0], f.quiz.Questions[1]
	if _, err := f.store.SaveAnswer(ctx, res.Session.ID, "u-alice", q1.ID, f.answer(q1, true)); err != nil {
		t.Fatalf("save q1: %v", err)
	}
	if _, err := f.store.SaveAnswer(ctx, res.Session.ID, "u-alice", q2.ID, f.answer(q2, false)); err != nil {
		t.Fatalf("save q2: %v", err)
	}
	if _, err := f.store.Finish(ctx, res.Session.ID, "u-alice"); err != nil {
		t.Fatalf("finish: %v", err)
	}

	// The committed row must agree with the committed answers: the score is
	// computed inside the completion statement, never carried in from an
	// earlier read.
	var stored, correct int
	if err := f.db.QueryRow(`SELECT score FROM sessions WHERE id=$1`, res.Session.ID).Scan(&stored); err != nil {
		t.Fatalf("read score: %v", err)
	}
	if err := f.db.QueryRow(
		`SELECT COUNT(*) FROM session_answers WHERE session_id=$1 AND is_correct=TRUE`,
		res.Session.ID).Scan(&correct); err != nil {
		t.Fatalf("count answers: %v", err)
	}
	if stored != correct || stored != 1 {
		t.Fatalf("stored score=%d, correct answers=%d, want both 1", stored, correct)
	}
}

func TestSQLStoreEmptyQuiz(t *testing.T) {
	f := openFixture(t)
	ctx := context.Background()

	empty, err := f.content.CreateQuiz(ctx, f.courseID, content.QuizInput{Name: "Empty"})
	if err != nil {
		t.Fatalf("create quiz: %v", err)
	}
	res, err := f.store.Start(ctx, "u-alice", empty.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if res.Session.TotalQuestions != 0 || len(res.Quiz.Questions) != 0 {
		t.Fatalf("empty quiz session: %+v", res)
	}
	done, err := f.store.Finish(ctx, res.Session.ID, "u-alice")
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if done.Score == nil || *done.Score != 0 || done.AnsweredCount != 0 {
		t.Fatalf("empty quiz result: %+v", done)
	}
}

func TestSQLStoreStudentViewHidesCorrectness(t *testing.T) {
	f := openFixture(t)

	qc, err := f.content.QuizForStudent(context.Background(), f.quiz.ID)
	if err != nil {
		t.Fatalf("student view: %v", err)
	}
	if len(qc.Questions) != 3 {
		t.Fatalf("questions = %d, want 3", len(qc.Questions))
	}
	for _, q := range qc.Questions {
		if len(q.Choices) != 2 {
			t.Fatalf("question %s choices = %d, want 2", q.ID, len(q.Choices))
		}
	}
}
