package main

import (
	"context"
	"log"
	"net/http"
	"time"

	api "github.com/QuangPhat16/its-main-app/internal/api/http"
	auth "github.com/QuangPhat16/its-main-app/internal/auth/middleware"
	"github.com/QuangPhat16/its-main-app/internal/config"
	"github.com/QuangPhat16/its-main-app/internal/content"
	"github.com/QuangPhat16/its-main-app/internal/db"
	"github.com/QuangPhat16/its-main-app/internal/rbac"
	"github.com/QuangPhat16/its-main-app/internal/session"
	"github.com/QuangPhat16/its-main-app/internal/storage"
	syncx "github.com/QuangPhat16/its-main-app/internal/sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func main() {
	cfg := config.FromEnv()

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}

	contentStore := content.NewSQLStore(dbh)
	events := syncx.NewEventRepo(dbh)
	sessions := session.NewSQLStore(dbh, contentStore, events)

	authSvc := auth.NewAuthService(cfg.AuthSecret)

	bs, err := storage.NewFSStore(cfg.BlobBasePath)
	if err != nil {
		log.Fatalf("blob store: %v", err)
	}

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Post("/auth/register", auth.RegisterHandler(dbh, authSvc))
	r.Post("/auth/login", auth.LoginHandler(dbh, authSvc))

	checker := rbac.NewChecker(nil)

	// Protected API (JWT → subject+role in context → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))

		// Courses
		pr.With(rbac.Require("course:create")).Post("/courses", api.CreateCourseHandler(dbh))
		pr.With(rbac.Require("course:view")).Get("/courses", api.ListCoursesHandler(dbh))
		pr.With(rbac.Require("course:view")).Get("/courses/{courseID}", api.GetCourseHandler(dbh))
		pr.With(rbac.Require("course:manage_own")).
			Put("/courses/{courseID}", api.UpdateCourseHandler(dbh, contentStore))
		pr.With(rbac.Require("course:manage_own")).
			Delete("/courses/{courseID}", api.DeleteCourseHandler(dbh, contentStore))

		// Lessons
		pr.With(rbac.Require("lesson:manage")).
			Post("/courses/{courseID}/lessons", api.CreateLessonHandler(dbh, contentStore))
		pr.With(rbac.Require("lesson:view")).
			Get("/courses/{courseID}/lessons", api.ListLessonsHandler(dbh))
		pr.With(rbac.Require("lesson:view")).
			Get("/lessons/{lessonID}", api.GetLessonHandler(dbh))
		pr.With(rbac.Require("lesson:manage")).
			Delete("/lessons/{lessonID}", api.DeleteLessonHandler(dbh, contentStore))

		// Quiz authoring + viewing
		pr.With(rbac.Require("quiz:create")).
			Post("/courses/{courseID}/quizzes", api.CreateQuizHandler(contentStore))
		pr.With(rbac.Require("quiz:view")).
			Get("/courses/{courseID}/quizzes", api.ListQuizzesHandler(contentStore))
		pr.With(rbac.Require("quiz:view")).
			Get("/quizzes/{quizID}", api.GetQuizHandler(contentStore, checker))
		pr.With(rbac.Require("quiz:manage")).
			Put("/quizzes/{quizID}", api.UpdateQuizHandler(contentStore))
		pr.With(rbac.Require("quiz:manage")).
			Delete("/quizzes/{quizID}", api.DeleteQuizHandler(contentStore))
		pr.With(rbac.Require("quiz:manage")).
			Post("/quizzes/{quizID}/questions", api.AddQuestionHandler(contentStore))
		pr.With(rbac.Require("quiz:manage")).
			Delete("/questions/{questionID}", api.DeleteQuestionHandler(contentStore))

		// Assessment sessions (student flow)
		pr.With(rbac.Require("session:start")).
			Post("/sessions", api.StartSessionHandler(sessions))
		pr.With(rbac.RequireAny("session:view-own", "session:view-all")).
			Get("/sessions", api.ListSessionsHandler(sessions))
		pr.With(rbac.RequireAny("session:view-own", "session:view-all")).
			Get("/sessions/{sessionID}", api.GetSessionHandler(sessions))
		pr.With(rbac.Require("session:save")).
			Post("/sessions/{sessionID}/answers", api.SaveAnswerHandler(sessions))
		pr.With(rbac.Require("session:finish")).
			Post("/sessions/{sessionID}/finish", api.FinishSessionHandler(sessions))
		pr.With(rbac.Require("session:cancel")).
			Post("/sessions/{sessionID}/cancel", api.CancelSessionHandler(sessions))

		// Users (admin) + self-service password change
		pr.With(rbac.Require("users:list")).Get("/users", api.ListUsersHandler(dbh))
		pr.With(rbac.Require("user:change_password")).
			Post("/users/change-password", api.ChangePasswordHandler(dbh))

		// Lesson media
		pr.Route("/media", func(mr chi.Router) {
			mr.With(rbac.Require("media:upload")).Post("/", api.MountMediaUpload(bs))
			mr.With(rbac.Require("lesson:view")).Get("/*", api.MediaGetHandler(bs))
			mr.With(rbac.Require("media:upload")).Delete("/*", api.MediaDeleteHandler(bs))
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	log.Printf("listening on %s (db=%s)", cfg.HTTPAddr, cfg.DBDriver)
	log.Fatal(http.ListenAndServe(cfg.HTTPAddr, r))
}
