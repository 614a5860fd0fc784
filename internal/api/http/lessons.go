package http

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/QuangPhat16/its-main-app/internal/content"
	"github.com/QuangPhat16/its-main-app/internal/rbac"
)

type LessonContent struct {
	ID      string `json:"id"`
	Serial  int    `json:"serial"`
	Name    string `json:"name,omitempty"`
	Type    string `json:"type"` // text|image|video|audio
	Content string `json:"content,omitempty"`
	URL     string `json:"url,omitempty"`
}

type Lesson struct {
	ID       string          `json:"id"`
	CourseID string          `json:"course_id"`
	Name     string          `json:"name"`
	Contents []LessonContent `json:"contents,omitempty"`
}

func validContentType(t string) bool {
	switch t {
	case "text", "image", "video", "audio":
		return true
	}
	return false
}

// POST /courses/{courseID}/lessons
func CreateLessonHandler(db *sql.DB, store *content.SQLStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		courseID := chi.URLParam(r, "courseID")
		if rbac.RoleFromContext(r.Context()) != "admin" {
			if err := requireCourseOwnership(r, store, courseID); err != nil {
				writeSessionErr(w, err)
				return
			}
		}
		var req struct {
			Name     string          `json:"name"`
			Contents []LessonContent `json:"contents"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Name) == "" {
			http.Error(w, "lesson name required", http.StatusBadRequest)
			return
		}
		for _, c := range req.Contents {
			if !validContentType(c.Type) {
				http.Error(w, "invalid content type: "+c.Type, http.StatusBadRequest)
				return
			}
		}

		tx, err := db.BeginTx(r.Context(), nil)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		defer tx.Rollback()

		l := Lesson{ID: uuid.NewString(), CourseID: courseID, Name: req.Name}
		_, err = tx.ExecContext(r.Context(),
			`INSERT INTO lessons (id, course_id, name, created_at) VALUES ($1,$2,$3,$4)`,
			l.ID, l.CourseID, l.Name, time.Now().Unix())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		for i, c := range req.Contents {
			c.ID = uuid.NewString()
			if c.Serial == 0 {
				c.Serial = i + 1
			}
			_, err = tx.ExecContext(r.Context(),
				`INSERT INTO lesson_contents (id, lesson_id, serial, name, type, content, url) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
				c.ID, l.ID, c.Serial, c.Name, c.Type, c.Content, c.URL)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			l.Contents = append(l.Contents, c)
		}
		if err := tx.Commit(); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusCreated, l)
	}
}

// GET /courses/{courseID}/lessons
func ListLessonsHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := db.QueryContext(r.Context(),
			`SELECT id, course_id, name FROM lessons WHERE course_id=$1 ORDER BY created_at`,
			chi.URLParam(r, "courseID"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		defer rows.Close()

		out := []Lesson{}
		for rows.Next() {
			var l Lesson
			if err := rows.Scan(&l.ID, &l.CourseID, &l.Name); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			out = append(out, l)
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// GET /lessons/{lessonID} — lesson with ordered contents
func GetLessonHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var l Lesson
		err := db.QueryRowContext(r.Context(),
			`SELECT id, course_id, name FROM lessons WHERE id=$1`, chi.URLParam(r, "lessonID")).
			Scan(&l.ID, &l.CourseID, &l.Name)
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "lesson not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		rows, err := db.QueryContext(r.Context(),
			`SELECT id, serial, name, type, content, url FROM lesson_contents WHERE lesson_id=$1 ORDER BY serial`, l.ID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		defer rows.Close()
		for rows.Next() {
			var c LessonContent
			if err := rows.Scan(&c.ID, &c.Serial, &c.Name, &c.Type, &c.Content, &c.URL); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			l.Contents = append(l.Contents, c)
		}
		writeJSON(w, http.StatusOK, l)
	}
}

// DELETE /lessons/{lessonID}
func DeleteLessonHandler(db *sql.DB, store *content.SQLStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lessonID := chi.URLParam(r, "lessonID")
		var courseID string
		err := db.QueryRowContext(r.Context(),
			`SELECT course_id FROM lessons WHERE id=$1`, lessonID).Scan(&courseID)
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "lesson not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if rbac.RoleFromContext(r.Context()) != "admin" {
			if err := requireCourseOwnership(r, store, courseID); err != nil {
				writeSessionErr(w, err)
				return
			}
		}
		if _, err := db.ExecContext(r.Context(), `DELETE FROM lessons WHERE id=$1`, lessonID); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
