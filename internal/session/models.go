package session

// Status is the lifecycle state of an assessment session.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether no further mutation is allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Session is one student's attempt at one quiz.
type Session struct {
	ID             string `json:"id"`
	StudentID      string `json:"student_id"`
	QuizID         string `json:"quiz_id"`
	Status         Status `json:"status"`
	TotalQuestions int    `json:"total_questions"`
	AnsweredCount  int    `json:"answered_count"`
	Score          *int   `json:"score,omitempty"`
	StartedAt      int64  `json:"started_at"`
	FinishedAt     *int64 `json:"finished_at,omitempty"`
}

// RecordedAnswer is the student's current choice for one question within a
// session. At most one row exists per (session, question); re-answering
// overwrites in place. IsCorrect is frozen at submission time.
type RecordedAnswer struct {
	SessionID        string `json:"session_id"`
	QuestionID       string `json:"question_id"`
	SelectedAnswerID string `json:"selected_answer_id"`
	IsCorrect        bool   `json:"is_correct"`
	UpdatedAt        int64  `json:"updated_at"`
}

// StartResult is returned by Start: the (new or resumed) session plus the
// quiz content the client needs to render it. Correctness flags are stripped.
type StartResult struct {
	Session Session     `json:"session"`
	Quiz    QuizContent `json:"quiz"`
}

// Detail is the full session state returned by Get.
type Detail struct {
	Session Session          `json:"session"`
	Answers []RecordedAnswer `json:"answers"`
}

// ListOpts filters List. An empty field means "any".
type ListOpts struct {
	QuizID    string
	StudentID string
	Status    string
	Limit     int
	Offset    int
}
