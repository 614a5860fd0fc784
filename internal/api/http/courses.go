package http

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	authmw "github.com/QuangPhat16/its-main-app/internal/auth/middleware"
	"github.com/QuangPhat16/its-main-app/internal/content"
	"github.com/QuangPhat16/its-main-app/internal/rbac"
	"github.com/QuangPhat16/its-main-app/internal/session"
)

// Handlers only — routes remain in main.go

type Course struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Description  string  `json:"description,omitempty"`
	Price        float64 `json:"price"`
	InstructorID string  `json:"instructor_id"`
}

// requireCourseOwnership verifies the requester is the instructor owning the
// course. Admins are exempted by callers before reaching here.
func requireCourseOwnership(r *http.Request, store *content.SQLStore, courseID string) error {
	owner, err := store.CourseOwner(r.Context(), courseID)
	if err != nil {
		return err
	}
	if owner != authmw.SubjectFromContext(r.Context()) {
		return fmt.Errorf("%w: course %s belongs to another instructor", session.ErrForbidden, courseID)
	}
	return nil
}

// POST /courses
func CreateCourseHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub := authmw.SubjectFromContext(r.Context())
		var req struct {
			Name        string  `json:"name"`
			Description string  `json:"description"`
			Price       float64 `json:"price"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Name) == "" {
			http.Error(w, "course name required", http.StatusBadRequest)
			return
		}
		c := Course{
			ID:           uuid.NewString(),
			Name:         req.Name,
			Description:  req.Description,
			Price:        req.Price,
			InstructorID: sub,
		}
		_, err := db.ExecContext(r.Context(),
			`INSERT INTO courses (id, name, description, price, instructor_id, created_at) VALUES ($1,$2,$3,$4,$5,$6)`,
			c.ID, c.Name, c.Description, c.Price, c.InstructorID, time.Now().Unix())
		if err != nil {
			http.Error(w, "db error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusCreated, c)
	}
}

// GET /courses?q=&instructor_id=&limit=&offset=
func ListCoursesHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := strings.TrimSpace(r.URL.Query().Get("q"))
		instructorID := strings.TrimSpace(r.URL.Query().Get("instructor_id"))
		limit := parseIntDefault(r.URL.Query().Get("limit"), 50)
		if limit > 200 {
			limit = 200
		}
		offset := parseIntDefault(r.URL.Query().Get("offset"), 0)

		sqlStr := `SELECT id, name, description, price, instructor_id FROM courses WHERE 1=1`
		args := []any{}
		if q != "" {
			args = append(args, "%"+q+"%")
			sqlStr += fmt.Sprintf(" AND name LIKE $%d", len(args))
		}
		if instructorID != "" {
			args = append(args, instructorID)
			sqlStr += fmt.Sprintf(" AND instructor_id=$%d", len(args))
		}
		args = append(args, limit, offset)
		sqlStr += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

		rows, err := db.QueryContext(r.Context(), sqlStr, args...)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		defer rows.Close()

		out := []Course{}
		for rows.Next() {
			var c Course
			if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.Price, &c.InstructorID); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			out = append(out, c)
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// GET /courses/{courseID}
func GetCourseHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var c Course
		err := db.QueryRowContext(r.Context(),
			`SELECT id, name, description, price, instructor_id FROM courses WHERE id=$1`,
			chi.URLParam(r, "courseID")).
			Scan(&c.ID, &c.Name, &c.Description, &c.Price, &c.InstructorID)
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "course not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}

// PUT /courses/{courseID}
func UpdateCourseHandler(db *sql.DB, store *content.SQLStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		courseID := chi.URLParam(r, "courseID")
		if rbac.RoleFromContext(r.Context()) != "admin" {
			if err := requireCourseOwnership(r, store, courseID); err != nil {
				writeSessionErr(w, err)
				return
			}
		}
		var req struct {
			Name        string  `json:"name"`
			Description string  `json:"description"`
			Price       float64 `json:"price"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Name) == "" {
			http.Error(w, "course name required", http.StatusBadRequest)
			return
		}
		_, err := db.ExecContext(r.Context(),
			`UPDATE courses SET name=$1, description=$2, price=$3 WHERE id=$4`,
			req.Name, req.Description, req.Price, courseID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		GetCourseHandler(db)(w, r)
	}
}

// DELETE /courses/{courseID}
func DeleteCourseHandler(db *sql.DB, store *content.SQLStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		courseID := chi.URLParam(r, "courseID")
		if rbac.RoleFromContext(r.Context()) != "admin" {
			if err := requireCourseOwnership(r, store, courseID); err != nil {
				writeSessionErr(w, err)
				return
			}
		}
		res, err := db.ExecContext(r.Context(), `DELETE FROM courses WHERE id=$1`, courseID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if n, _ := res.RowsAffected(); n == 0 {
			http.Error(w, "course not found", http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
