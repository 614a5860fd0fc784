package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type answerKey struct {
	sessionID  string
	questionID string
}

type memoryStore struct {
	mu       sync.Mutex
	content  ContentReader
	sessions map[string]Session
	answers  map[answerKey]RecordedAnswer
}

// NewMemoryStore returns an in-process Store. Useful for tests and single-node
// dev runs; the mutex gives it the same serialization the SQL store gets from
// transactions.
func NewMemoryStore(content ContentReader) Store {
	return &memoryStore{
		content:  content,
		sessions: map[string]Session{},
		answers:  map[answerKey]RecordedAnswer{},
	}
}

func (m *memoryStore) Start(ctx context.Context, studentID, quizID string) (StartResult, error) {
	total, err := m.content.QuizQuestionCount(ctx, quizID)
	if err != nil {
		return StartResult{}, err
	}
	quiz, err := m.content.QuizForStudent(ctx, quizID)
	if err != nil {
		return StartResult{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range m.sessions {
		if s.StudentID == studentID && s.QuizID == quizID && s.Status == StatusInProgress {
			return StartResult{Session: s, Quiz: quiz}, nil
		}
	}
	s := Session{
		ID:             uuid.NewString(),
		StudentID:      studentID,
		QuizID:         quizID,
		Status:         StatusInProgress,
		TotalQuestions: total,
		StartedAt:      time.Now().Unix(),
	}
	m.sessions[s.ID] = s
	return StartResult{Session: s, Quiz: quiz}, nil
}

func (m *memoryStore) Get(ctx context.Context, sessionID, studentID string) (Detail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return Detail{}, fmt.Errorf("%w: session %s", ErrNotFound, sessionID)
	}
	if err := authorize(s, studentID); err != nil {
		return Detail{}, err
	}
	return Detail{Session: s, Answers: m.answersOf(sessionID)}, nil
}

func (m *memoryStore) SaveAnswer(ctx context.Context, sessionID, studentID, questionID, selectedAnswerID string) (Session, error) {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	m.mu.Unlock()
	if !ok {
		return Session{}, fmt.Errorf("%w: session %s", ErrNotFound, sessionID)
	}
	if err := authorize(s, studentID); err != nil {
		return Session{}, err
	}
	if s.Status != StatusInProgress {
		return Session{}, fmt.Errorf("%w: session %s is %s", ErrInvalidState, sessionID, s.Status)
	}

	q, err := m.content.Question(ctx, questionID)
	if err != nil {
		return Session{}, err
	}
	if q.QuizID != s.QuizID {
		return Session{}, fmt.Errorf("%w: question %s does not belong to quiz %s", ErrValidation, questionID, s.QuizID)
	}
	a, err := m.content.AnswerChoice(ctx, selectedAnswerID)
	if err != nil {
		return Session{}, err
	}
	if a.QuestionID != questionID {
		return Session{}, fmt.Errorf("%w: answer %s does not belong to question %s", ErrValidation, selectedAnswerID, questionID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Re-check under the lock so a concurrent Finish is observed.
	s, ok = m.sessions[sessionID]
	if !ok {
		return Session{}, fmt.Errorf("%w: session %s", ErrNotFound, sessionID)
	}
	if s.Status != StatusInProgress {
		return Session{}, fmt.Errorf("%w: session %s is %s", ErrInvalidState, sessionID, s.Status)
	}
	m.answers[answerKey{sessionID, questionID}] = RecordedAnswer{
		SessionID:        sessionID,
		QuestionID:       questionID,
		SelectedAnswerID: selectedAnswerID,
		IsCorrect:        a.Correct,
		UpdatedAt:        time.Now().Unix(),
	}
	s.AnsweredCount = len(m.answersOf(sessionID))
	m.sessions[sessionID] = s
	return s, nil
}

func (m *memoryStore) Finish(ctx context.Context, sessionID, studentID string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return Session{}, fmt.Errorf("%w: session %s", ErrNotFound, sessionID)
	}
	if err := authorize(s, studentID); err != nil {
		return Session{}, err
	}
	if s.Status != StatusInProgress {
		return Session{}, fmt.Errorf("%w: session %s is %s", ErrInvalidState, sessionID, s.Status)
	}

	score := scoreOf(m.answersOf(sessionID))
	now := time.Now().Unix()
	s.Status = StatusCompleted
	s.Score = &score
	s.FinishedAt = &now
	m.sessions[sessionID] = s
	return s, nil
}

func (m *memoryStore) Cancel(ctx context.Context, sessionID string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return Session{}, fmt.Errorf("%w: session %s", ErrNotFound, sessionID)
	}
	if s.Status != StatusInProgress {
		return Session{}, fmt.Errorf("%w: session %s is %s", ErrInvalidState, sessionID, s.Status)
	}
	// score and FinishedAt stay unset: they belong to completed sessions only.
	s.Status = StatusCancelled
	m.sessions[sessionID] = s
	return s, nil
}

func (m *memoryStore) List(ctx context.Context, opts ListOpts) ([]Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []Session{}
	for _, s := range m.sessions {
		if opts.QuizID != "" && s.QuizID != opts.QuizID {
			continue
		}
		if opts.StudentID != "" && s.StudentID != opts.StudentID {
			continue
		}
		if opts.Status != "" && string(s.Status) != opts.Status {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt > out[j].StartedAt })
	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return []Session{}, nil
		}
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

// answersOf returns the recorded answers for a session. Callers hold the lock.
func (m *memoryStore) answersOf(sessionID string) []RecordedAnswer {
	var out []RecordedAnswer
	for k, a := range m.answers {
		if k.sessionID == sessionID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QuestionID < out[j].QuestionID })
	return out
}
