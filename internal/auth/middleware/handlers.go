package auth

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type userInfo struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	Role  string `json:"role"`
}

type tokenResponse struct {
	AccessToken string   `json:"access_token"`
	User        userInfo `json:"user"`
}

func validRole(r string) bool {
	return r == "student" || r == "instructor" || r == "admin"
}

// POST /auth/register  { "email", "password", "name", "role" }
// Role defaults to student. Duplicate email is a 409.
func RegisterHandler(db *sql.DB, a *AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
			Name     string `json:"name"`
			Role     string `json:"role"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		req.Email = strings.ToLower(strings.TrimSpace(req.Email))
		if req.Email == "" || req.Password == "" {
			http.Error(w, "email and password required", http.StatusBadRequest)
			return
		}
		if req.Role == "" {
			req.Role = "student"
		}
		if !validRole(req.Role) {
			http.Error(w, "invalid role: "+req.Role, http.StatusBadRequest)
			return
		}

		var exist int
		err := db.QueryRowContext(r.Context(), `SELECT 1 FROM users WHERE email=$1`, req.Email).Scan(&exist)
		if err == nil {
			http.Error(w, "email already in use", http.StatusConflict)
			return
		}
		if !errors.Is(err, sql.ErrNoRows) {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), 12)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		u := userInfo{ID: uuid.NewString(), Email: req.Email, Name: req.Name, Role: req.Role}
		_, err = db.ExecContext(r.Context(),
			`INSERT INTO users (id, email, name, password_hash, role, created_at) VALUES ($1,$2,$3,$4,$5,$6)`,
			u.ID, u.Email, u.Name, string(hash), u.Role, time.Now().Unix())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeToken(w, a, u)
	}
}

// POST /auth/login  { "email", "password" }
func LoginHandler(db *sql.DB, a *AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		req.Email = strings.ToLower(strings.TrimSpace(req.Email))

		var u userInfo
		var hash string
		err := db.QueryRowContext(r.Context(),
			`SELECT id, email, name, password_hash, role FROM users WHERE email=$1`, req.Email).
			Scan(&u.ID, &u.Email, &u.Name, &hash, &u.Role)
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)) != nil {
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		writeToken(w, a, u)
	}
}

func writeToken(w http.ResponseWriter, a *AuthService, u userInfo) {
	tok, err := a.IssueJWT(u.ID, u.Email, u.Role)
	if err != nil {
		http.Error(w, "issue token", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(tokenResponse{AccessToken: tok, User: u})
}
