package session_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/QuangPhat16/its-main-app/internal/session"
)

/* ---------------- in-memory fake satisfying session.ContentReader ---------------- */

type fakeContent struct {
	quizzes   map[string][]string          // quizID -> questionIDs
	questions map[string]string            // questionID -> quizID
	answers   map[string]session.AnswerRef // answerID -> ref
}

func newFakeContent() *fakeContent {
	return &fakeContent{
		quizzes:   map[string][]string{},
		questions: map[string]string{},
		answers:   map[string]session.AnswerRef{},
	}
}

func (f *fakeContent) addQuiz(quizID string, questions int) {
	for i := 0; i < questions; i++ {
		qID := fmt.Sprintf("%s-q%d", quizID, i+1)
		f.quizzes[quizID] = append(f.quizzes[quizID], qID)
		f.questions[qID] = quizID
		for j, correct := range []bool{true, false} {
			aID := fmt.Sprintf("%s-a%d", qID, j+1)
			f.answers[aID] = session.AnswerRef{ID: aID, QuestionID: qID, Correct: correct}
		}
	}
	if questions == 0 {
		f.quizzes[quizID] = []string{}
	}
}

func (f *fakeContent) QuizQuestionCount(ctx context.Context, quizID string) (int, error) {
	qs, ok := f.quizzes[quizID]
	if !ok {
		return 0, fmt.Errorf("%w: quiz %s", session.ErrNotFound, quizID)
	}
	return len(qs), nil
}

func (f *fakeContent) Question(ctx context.Context, questionID string) (session.QuestionRef, error) {
	quizID, ok := f.questions[questionID]
	if !ok {
		return session.QuestionRef{}, fmt.Errorf("%w: question %s", session.ErrNotFound, questionID)
	}
	return session.QuestionRef{ID: questionID, QuizID: quizID}, nil
}

func (f *fakeContent) AnswerChoice(ctx context.Context, answerID string) (session.AnswerRef, error) {
	ref, ok := f.answers[answerID]
	if !ok {
		return session.AnswerRef{}, fmt.Errorf("%w: answer %s", session.ErrNotFound, answerID)
	}
	return ref, nil
}

func (f *fakeContent) QuizForStudent(ctx context.Context, quizID string) (session.QuizContent, error) {
	qs, ok := f.quizzes[quizID]
	if !ok {
		return session.QuizContent{}, fmt.Errorf("%w: quiz %s", session.ErrNotFound, quizID)
	}
	out := session.QuizContent{ID: quizID, Name: quizID}
	for _, qID := range qs {
		out.Questions = append(out.Questions, session.RenderQuestion{ID: qID, Prompt: qID})
	}
	return out, nil
}

/* ---------------- tests ---------------- */

func newStore(t *testing.T) (session.Store, *fakeContent) {
	t.Helper()
	fc := newFakeContent()
	fc.addQuiz("quiz-1", 3)
	fc.addQuiz("quiz-2", 2)
	fc.addQuiz("quiz-empty", 0)
	return session.NewMemoryStore(fc), fc
}

func TestStartIsIdempotentResume(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	first, err := store.Start(ctx, "alice", "quiz-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if first.Session.Status != session.StatusInProgress {
		t.Fatalf("status = %s, want in_progress", first.Session.Status)
	}
	if first.Session.TotalQuestions != 3 {
		t.Fatalf("total_questions = %d, want 3", first.Session.TotalQuestions)
	}
	if len(first.Quiz.Questions) != 3 {
		t.Fatalf("quiz content has %d questions, want 3", len(first.Quiz.Questions))
	}

	second, err := store.Start(ctx, "alice", "quiz-1")
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if second.Session.ID != first.Session.ID {
		t.Fatalf("resume created a new session: %s != %s", second.Session.ID, first.Session.ID)
	}

	// A different quiz or student gets its own session.
	other, err := store.Start(ctx, "alice", "quiz-2")
	if err != nil {
		t.Fatalf("start quiz-2: %v", err)
	}
	if other.Session.ID == first.Session.ID {
		t.Fatal("different quiz reused the same session")
	}
}

func TestStartUnknownQuiz(t *testing.T) {
	store, _ := newStore(t)
	if _, err := store.Start(context.Background(), "alice", "nope"); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestSaveAnswerOverwrite(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()
	res, _ := store.Start(ctx, "alice", "quiz-1")
	id := res.Session.ID

	s, err := store.SaveAnswer(ctx, id, "alice", "quiz-1-q1", "quiz-1-q1-a1")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if s.AnsweredCount != 1 {
		t.Fatalf("answered_count = %d, want 1", s.AnsweredCount)
	}

	// Re-answering the same question overwrites, never duplicates.
	s, err = store.SaveAnswer(ctx, id, "alice", "quiz-1-q1", "quiz-1-q1-a2")
	if err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if s.AnsweredCount != 1 {
		t.Fatalf("answered_count after overwrite = %d, want 1", s.AnsweredCount)
	}

	d, err := store.Get(ctx, id, "alice")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(d.Answers) != 1 {
		t.Fatalf("recorded answers = %d, want 1", len(d.Answers))
	}
	if d.Answers[0].SelectedAnswerID != "quiz-1-q1-a2" {
		t.Fatalf("selected = %s, want the later answer", d.Answers[0].SelectedAnswerID)
	}
	if d.Answers[0].IsCorrect {
		t.Fatal("a2 is the wrong choice; is_correct should be false")
	}
}

func TestSaveAnswerValidation(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()
	res, _ := store.Start(ctx, "alice", "quiz-1")
	id := res.Session.ID

	// Question from another quiz.
	if _, err := store.SaveAnswer(ctx, id, "alice", "quiz-2-q1", "quiz-2-q1-a1"); !errors.Is(err, session.ErrValidation) {
		t.Fatalf("cross-quiz question err = %v, want ErrValidation", err)
	}
	// Answer belonging to a different question.
	if _, err := store.SaveAnswer(ctx, id, "alice", "quiz-1-q1", "quiz-1-q2-a1"); !errors.Is(err, session.ErrValidation) {
		t.Fatalf("foreign answer err = %v, want ErrValidation", err)
	}
	// Unknown ids.
	if _, err := store.SaveAnswer(ctx, id, "alice", "ghost", "quiz-1-q1-a1"); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("unknown question err = %v, want ErrNotFound", err)
	}
	if _, err := store.SaveAnswer(ctx, id, "alice", "quiz-1-q1", "ghost"); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("unknown answer err = %v, want ErrNotFound", err)
	}

	// None of the failures recorded anything.
	d, _ := store.Get(ctx, id, "alice")
	if len(d.Answers) != 0 {
		t.Fatalf("recorded answers = %d, want 0", len(d.Answers))
	}
	if d.Session.AnsweredCount != 0 {
		t.Fatalf("answered_count = %d, want 0", d.Session.AnsweredCount)
	}
}

func TestFinishScoresOnlyCorrectAnswers(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()
	res, _ := store.Start(ctx, "alice", "quiz-1")
	id := res.Session.ID

	// Answer q1 correctly, leave q2 and q3 unanswered.
	if _, err := store.SaveAnswer(ctx, id, "alice", "quiz-1-q1", "quiz-1-q1-a1"); err != nil {
		t.Fatalf("save: %v", err)
	}

	s, err := store.Finish(ctx, id, "alice")
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if s.Status != session.StatusCompleted {
		t.Fatalf("status = %s, want completed", s.Status)
	}
	if s.Score == nil || *s.Score != 1 {
		t.Fatalf("score = %v, want 1", s.Score)
	}
	if s.TotalQuestions != 3 {
		t.Fatalf("total_questions = %d, want 3", s.TotalQuestions)
	}
	if s.FinishedAt == nil {
		t.Fatal("finished_at not set")
	}
}

func TestFinishWithWrongAnswersOnly(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()
	res, _ := store.Start(ctx, "bob", "quiz-2")
	id := res.Session.ID

	for _, q := range []string{"quiz-2-q1", "quiz-2-q2"} {
		if _, err := store.SaveAnswer(ctx, id, "bob", q, q+"-a2"); err != nil {
			t.Fatalf("save %s: %v", q, err)
		}
	}
	s, err := store.Finish(ctx, id, "bob")
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if s.Score == nil || *s.Score != 0 {
		t.Fatalf("score = %v, want 0", s.Score)
	}
	if s.AnsweredCount != 2 {
		t.Fatalf("answered_count = %d, want 2", s.AnsweredCount)
	}
}

func TestEmptyQuizRoundTrip(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	res, err := store.Start(ctx, "alice", "quiz-empty")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if res.Session.TotalQuestions != 0 {
		t.Fatalf("total_questions = %d, want 0", res.Session.TotalQuestions)
	}
	if len(res.Quiz.Questions) != 0 {
		t.Fatalf("quiz content has %d questions, want 0", len(res.Quiz.Questions))
	}

	s, err := store.Finish(ctx, res.Session.ID, "alice")
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if s.Score == nil || *s.Score != 0 {
		t.Fatalf("score = %v, want 0", s.Score)
	}
	if s.AnsweredCount != 0 {
		t.Fatalf("answered_count = %d, want 0", s.AnsweredCount)
	}
}

func TestTerminalImmutability(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()
	res, _ := store.Start(ctx, "alice", "quiz-1")
	id := res.Session.ID

	if _, err := store.Finish(ctx, id, "alice"); err != nil {
		t.Fatalf("finish: %v", err)
	}
	if _, err := store.SaveAnswer(ctx, id, "alice", "quiz-1-q1", "quiz-1-q1-a1"); !errors.Is(err, session.ErrInvalidState) {
		t.Fatalf("save after finish err = %v, want ErrInvalidState", err)
	}
	if _, err := store.Finish(ctx, id, "alice"); !errors.Is(err, session.ErrInvalidState) {
		t.Fatalf("double finish err = %v, want ErrInvalidState", err)
	}
	// Reads still work.
	if _, err := store.Get(ctx, id, "alice"); err != nil {
		t.Fatalf("get after finish: %v", err)
	}
}

func TestCancelledSessionRejectsMutations(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()
	res, _ := store.Start(ctx, "alice", "quiz-1")
	id := res.Session.ID

	s, err := store.Cancel(ctx, id)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if s.Status != session.StatusCancelled {
		t.Fatalf("status = %s, want cancelled", s.Status)
	}
	if s.Score != nil {
		t.Fatal("cancelled session must not carry a score")
	}
	if s.FinishedAt != nil {
		t.Fatal("cancelled session must not carry finished_at")
	}
	if _, err := store.SaveAnswer(ctx, id, "alice", "quiz-1-q1", "quiz-1-q1-a1"); !errors.Is(err, session.ErrInvalidState) {
		t.Fatalf("save after cancel err = %v, want ErrInvalidState", err)
	}
	if _, err := store.Finish(ctx, id, "alice"); !errors.Is(err, session.ErrInvalidState) {
		t.Fatalf("finish after cancel err = %v, want ErrInvalidState", err)
	}
	if _, err := store.Cancel(ctx, id); !errors.Is(err, session.ErrInvalidState) {
		t.Fatalf("double cancel err = %v, want ErrInvalidState", err)
	}

	// The slate is clean: the student can start the quiz again.
	again, err := store.Start(ctx, "alice", "quiz-1")
	if err != nil {
		t.Fatalf("restart after cancel: %v", err)
	}
	if again.Session.ID == id {
		t.Fatal("restart reused the cancelled session")
	}
}

func TestOwnershipIsolation(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()
	res, _ := store.Start(ctx, "alice", "quiz-1")
	id := res.Session.ID

	if _, err := store.Get(ctx, id, "mallory"); !errors.Is(err, session.ErrForbidden) {
		t.Fatalf("get err = %v, want ErrForbidden", err)
	}
	if _, err := store.SaveAnswer(ctx, id, "mallory", "quiz-1-q1", "quiz-1-q1-a1"); !errors.Is(err, session.ErrForbidden) {
		t.Fatalf("save err = %v, want ErrForbidden", err)
	}
	if _, err := store.Finish(ctx, id, "mallory"); !errors.Is(err, session.ErrForbidden) {
		t.Fatalf("finish err = %v, want ErrForbidden", err)
	}

	// Ownership still holds after completion.
	if _, err := store.Finish(ctx, id, "alice"); err != nil {
		t.Fatalf("owner finish: %v", err)
	}
	if _, err := store.Get(ctx, id, "mallory"); !errors.Is(err, session.ErrForbidden) {
		t.Fatalf("get completed err = %v, want ErrForbidden", err)
	}
}

func TestListFilters(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	a, _ := store.Start(ctx, "alice", "quiz-1")
	store.Start(ctx, "alice", "quiz-2")
	store.Start(ctx, "bob", "quiz-1")
	if _, err := store.Finish(ctx, a.Session.ID, "alice"); err != nil {
		t.Fatalf("finish: %v", err)
	}

	byStudent, err := store.List(ctx, session.ListOpts{StudentID: "alice"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(byStudent) != 2 {
		t.Fatalf("alice sessions = %d, want 2", len(byStudent))
	}
	done, err := store.List(ctx, session.ListOpts{Status: string(session.StatusCompleted)})
	if err != nil {
		t.Fatalf("list completed: %v", err)
	}
	if len(done) != 1 || done[0].ID != a.Session.ID {
		t.Fatalf("completed list = %+v, want just the finished session", done)
	}
	byQuiz, err := store.List(ctx, session.ListOpts{QuizID: "quiz-1"})
	if err != nil {
		t.Fatalf("list by quiz: %v", err)
	}
	if len(byQuiz) != 2 {
		t.Fatalf("quiz-1 sessions = %d, want 2", len(byQuiz))
	}
}

func TestGetUnknownSession(t *testing.T) {
	store, _ := newStore(t)
	if _, err := store.Get(context.Background(), "ghost", "alice"); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
