package http

import (
	"database/sql"
	"net/http"
)

// GET /users?role=student (admin)
func ListUsersHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role := r.URL.Query().Get("role")
		var rows *sql.Rows
		var err error
		if role == "" {
			rows, err = db.QueryContext(r.Context(), `SELECT id, email, name, role FROM users ORDER BY email`)
		} else {
			rows, err = db.QueryContext(r.Context(), `SELECT id, email, name, role FROM users WHERE role=$1 ORDER BY email`, role)
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		defer rows.Close()

		out := []map[string]string{}
		for rows.Next() {
			var id, email, name, role string
			if err := rows.Scan(&id, &email, &name, &role); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			out = append(out, map[string]string{"id": id, "email": email, "name": name, "role": role})
		}
		writeJSON(w, http.StatusOK, out)
	}
}
