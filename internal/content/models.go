package content

// Quiz as stored, including its question graph when loaded with WithQuestions.
type Quiz struct {
	ID           string     `json:"id"`
	CourseID     string     `json:"course_id"`
	Name         string     `json:"name"`
	TimeLimitSec int        `json:"time_limit_sec"` // stored, not enforced
	CreatedAt    int64      `json:"created_at,omitempty"`
	Questions    []Question `json:"questions,omitempty"`
}

type Question struct {
	ID      string   `json:"id"`
	QuizID  string   `json:"quiz_id"`
	Prompt  string   `json:"prompt"`
	Answers []Answer `json:"answers,omitempty"`
}

type Answer struct {
	ID         string `json:"id"`
	QuestionID string `json:"question_id"`
	Content    string `json:"content"`
	// Correct is only serialized on instructor views; student-facing
	// responses go through session.QuizContent which drops it entirely.
	Correct bool `json:"correct"`
}

// QuizInput is the authoring payload for creating a quiz with its questions
// and answer choices in one call.
type QuizInput struct {
	Name         string          `json:"name"`
	TimeLimitSec int             `json:"time_limit_sec"`
	Questions    []QuestionInput `json:"questions"`
}

type QuestionInput struct {
	Prompt  string        `json:"prompt"`
	Answers []AnswerInput `json:"answers"`
}

type AnswerInput struct {
	Content string `json:"content"`
	Correct bool   `json:"correct"`
}
