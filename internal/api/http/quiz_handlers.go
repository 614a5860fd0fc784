package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/QuangPhat16/its-main-app/internal/content"
	"github.com/QuangPhat16/its-main-app/internal/rbac"
)

// requireQuizOwnership checks that the requester owns the course the quiz
// belongs to. Admins pass unconditionally.
func requireQuizOwnership(r *http.Request, store *content.SQLStore, quizID string) error {
	if rbac.RoleFromContext(r.Context()) == "admin" {
		return nil
	}
	courseID, err := store.QuizCourse(r.Context(), quizID)
	if err != nil {
		return err
	}
	return requireCourseOwnership(r, store, courseID)
}

// POST /courses/{courseID}/quizzes
func CreateQuizHandler(store *content.SQLStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		courseID := chi.URLParam(r, "courseID")
		if rbac.RoleFromContext(r.Context()) != "admin" {
			if err := requireCourseOwnership(r, store, courseID); err != nil {
				writeSessionErr(w, err)
				return
			}
		}
		var in content.QuizInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil || strings.TrimSpace(in.Name) == "" {
			http.Error(w, "quiz name required", http.StatusBadRequest)
			return
		}
		q, err := store.CreateQuiz(r.Context(), courseID, in)
		if err != nil {
			writeSessionErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, q)
	}
}

// GET /courses/{courseID}/quizzes
func ListQuizzesHandler(store *content.SQLStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := store.ListQuizzesByCourse(r.Context(), chi.URLParam(r, "courseID"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// GET /quizzes/{quizID}
// Students get the rendering view with correctness stripped; holders of
// quiz:view-full (instructors, admins) get the full definition.
func GetQuizHandler(store *content.SQLStore, checker *rbac.Checker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		quizID := chi.URLParam(r, "quizID")
		role := rbac.RoleFromContext(r.Context())
		if checker.Has(role, "quiz:view-full") {
			q, err := store.GetQuiz(r.Context(), quizID, true)
			if err != nil {
				writeSessionErr(w, err)
				return
			}
			writeJSON(w, http.StatusOK, q)
			return
		}
		qc, err := store.QuizForStudent(r.Context(), quizID)
		if err != nil {
			writeSessionErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, qc)
	}
}

// PUT /quizzes/{quizID}
func UpdateQuizHandler(store *content.SQLStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		quizID := chi.URLParam(r, "quizID")
		if err := requireQuizOwnership(r, store, quizID); err != nil {
			writeSessionErr(w, err)
			return
		}
		var req struct {
			Name         string `json:"name"`
			TimeLimitSec int    `json:"time_limit_sec"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Name) == "" {
			http.Error(w, "quiz name required", http.StatusBadRequest)
			return
		}
		q, err := store.UpdateQuiz(r.Context(), quizID, req.Name, req.TimeLimitSec)
		if err != nil {
			writeSessionErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, q)
	}
}

// DELETE /quizzes/{quizID}
func DeleteQuizHandler(store *content.SQLStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		quizID := chi.URLParam(r, "quizID")
		if err := requireQuizOwnership(r, store, quizID); err != nil {
			writeSessionErr(w, err)
			return
		}
		if err := store.DeleteQuiz(r.Context(), quizID); err != nil {
			writeSessionErr(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// POST /quizzes/{quizID}/questions
func AddQuestionHandler(store *content.SQLStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		quizID := chi.URLParam(r, "quizID")
		if err := requireQuizOwnership(r, store, quizID); err != nil {
			writeSessionErr(w, err)
			return
		}
		var in content.QuestionInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil || strings.TrimSpace(in.Prompt) == "" {
			http.Error(w, "question prompt required", http.StatusBadRequest)
			return
		}
		q, err := store.AddQuestion(r.Context(), quizID, in)
		if err != nil {
			writeSessionErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, q)
	}
}

// DELETE /questions/{questionID}
func DeleteQuestionHandler(store *content.SQLStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		questionID := chi.URLParam(r, "questionID")
		quizID, err := store.QuestionQuiz(r.Context(), questionID)
		if err != nil {
			writeSessionErr(w, err)
			return
		}
		if err := requireQuizOwnership(r, store, quizID); err != nil {
			writeSessionErr(w, err)
			return
		}
		if err := store.DeleteQuestion(r.Context(), questionID); err != nil {
			writeSessionErr(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
