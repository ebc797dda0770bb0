package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	api "github.com/tecsrilankaworldwide/grade5-scholarship-exam/internal/api/http"
	"github.com/tecsrilankaworldwide/grade5-scholarship-exam/internal/attempt"
	"github.com/tecsrilankaworldwide/grade5-scholarship-exam/internal/auth"
	"github.com/tecsrilankaworldwide/grade5-scholarship-exam/internal/config"
	"github.com/tecsrilankaworldwide/grade5-scholarship-exam/internal/db"
	"github.com/tecsrilankaworldwide/grade5-scholarship-exam/internal/exam"
	"github.com/tecsrilankaworldwide/grade5-scholarship-exam/internal/logging"
	"github.com/tecsrilankaworldwide/grade5-scholarship-exam/internal/progress"
	"github.com/tecsrilankaworldwide/grade5-scholarship-exam/internal/rbac"
	"github.com/tecsrilankaworldwide/grade5-scholarship-exam/internal/session"
)

func main() {
	_ = godotenv.Load()
	cfg := config.FromEnv()

	logger, err := logging.New(cfg.LogMode)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		logger.Fatal("db open failed", "err", err)
	}

	var catalog exam.AuthoringStore = exam.NewSQLCatalog(dbh)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, exam cache disabled", "err", err)
		} else {
			catalog = exam.NewCachedCatalog(catalog, rdb, cfg.ExamCacheTTL)
		}
	}

	store := attempt.NewSQLStore(dbh)
	engine := session.New(catalog, store, logger)
	aggregator := progress.NewAggregator(catalog, store)
	authSvc := auth.NewService(cfg.AuthHMACSecret, cfg.TokenTTL)

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

	r.Post("/auth/login", auth.LoginHandler(authSvc, dbh))

	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))

		pr.With(rbac.Require("exam:create")).
			Post("/exams", api.UploadExamHandler(catalog))
		pr.With(rbac.Require("exam:publish")).
			Post("/exams/{examID}/publish", api.PublishExamHandler(catalog))
		pr.With(rbac.Require("exam:view")).
			Get("/exams/{examID}", api.GetExamHandler(catalog))

		pr.With(rbac.Require("attempt:create")).
			Post("/attempts/start", api.StartAttemptHandler(engine))
		pr.With(rbac.Require("attempt:save")).
			Post("/attempts/{attemptID}/answers", api.SaveAnswerHandler(engine))
		pr.With(rbac.Require("attempt:submit")).
			Post("/attempts/{attemptID}/submit", api.SubmitAttemptHandler(engine))
		pr.With(rbac.Require("attempt:view-own")).
			Get("/attempts/{attemptID}", api.GetAttemptHandler(engine))

		pr.With(rbac.Require("paper2:mark")).
			Post("/paper2/marks", api.MarkPaper2Handler(store))

		pr.With(rbac.RequireAny("progress:view-own", "progress:view-all")).
			Get("/students/{studentID}/progress", api.GetProgressHandler(aggregator))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := dbh.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	logger.Info("listening", "addr", cfg.HTTPAddr, "db", cfg.DBDriver)
	if err := http.ListenAndServe(cfg.HTTPAddr, r); err != nil {
		logger.Fatal("server stopped", "err", err)
	}
}
