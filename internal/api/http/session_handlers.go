package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	authmw "github.com/QuangPhat16/its-main-app/internal/auth/middleware"
	"github.com/QuangPhat16/its-main-app/internal/rbac"
	"github.com/QuangPhat16/its-main-app/internal/session"
)

// POST /sessions  { "quiz_id": "..." }
// Starting twice while a session is in progress returns the same session.
func StartSessionHandler(store session.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		studentID := authmw.SubjectFromContext(r.Context())
		var req struct {
			QuizID string `json:"quiz_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.QuizID) == "" {
			http.Error(w, "quiz_id required", http.StatusBadRequest)
			return
		}
		res, err := store.Start(r.Context(), studentID, req.QuizID)
		if err != nil {
			writeSessionErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// GET /sessions/{sessionID}
func GetSessionHandler(store session.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		studentID := authmw.SubjectFromContext(r.Context())
		d, err := store.Get(r.Context(), chi.URLParam(r, "sessionID"), studentID)
		if err != nil {
			writeSessionErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, d)
	}
}

// POST /sessions/{sessionID}/answers  { "question_id", "selected_answer_id" }
// Re-answering a question overwrites the previous choice.
func SaveAnswerHandler(store session.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		studentID := authmw.SubjectFromContext(r.Context())
		var req struct {
			QuestionID       string `json:"question_id"`
			SelectedAnswerID string `json:"selected_answer_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil ||
			req.QuestionID == "" || req.SelectedAnswerID == "" {
			http.Error(w, "question_id and selected_answer_id required", http.StatusBadRequest)
			return
		}
		s, err := store.SaveAnswer(r.Context(), chi.URLParam(r, "sessionID"), studentID,
			req.QuestionID, req.SelectedAnswerID)
		if err != nil {
			writeSessionErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"session_id":      s.ID,
			"answered_count":  s.AnsweredCount,
			"total_questions": s.TotalQuestions,
		})
	}
}

// POST /sessions/{sessionID}/finish
func FinishSessionHandler(store session.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		studentID := authmw.SubjectFromContext(r.Context())
		s, err := store.Finish(r.Context(), chi.URLParam(r, "sessionID"), studentID)
		if err != nil {
			writeSessionErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"session_id":      s.ID,
			"score":           s.Score,
			"total_questions": s.TotalQuestions,
			"finished_at":     s.FinishedAt,
		})
	}
}

// POST /sessions/{sessionID}/cancel (admin)
func CancelSessionHandler(store session.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := store.Cancel(r.Context(), chi.URLParam(r, "sessionID"))
		if err != nil {
			writeSessionErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, s)
	}
}

// GET /sessions?quiz_id=&student_id=&status=&limit=&offset=
// Callers without session:view-all only ever see their own sessions.
func ListSessionsHandler(store session.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role := rbac.RoleFromContext(r.Context())
		sub := authmw.SubjectFromContext(r.Context())

		opts := session.ListOpts{
			QuizID:    strings.TrimSpace(r.URL.Query().Get("quiz_id")),
			StudentID: strings.TrimSpace(r.URL.Query().Get("student_id")),
			Status:    strings.TrimSpace(r.URL.Query().Get("status")),
			Limit:     parseIntDefault(r.URL.Query().Get("limit"), 50),
			Offset:    parseIntDefault(r.URL.Query().Get("offset"), 0),
		}
		if role != "instructor" && role != "admin" {
			opts.StudentID = sub
		}
		list, err := store.List(r.Context(), opts)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}
