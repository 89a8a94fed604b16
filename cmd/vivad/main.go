package main

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	api "github.com/notch8/viva-sub001/internal/api/http"
	auth "github.com/notch8/viva-sub001/internal/auth/middleware"
	"github.com/notch8/viva-sub001/internal/bank"
	"github.com/notch8/viva-sub001/internal/config"
	"github.com/notch8/viva-sub001/internal/db"
	"github.com/notch8/viva-sub001/internal/metrics"
	"github.com/notch8/viva-sub001/internal/question"
	"github.com/notch8/viva-sub001/internal/storage"
	"github.com/notch8/viva-sub001/pkg/logger"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel, cfg.LogPath)
	defer log.Sync()

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatal("db open failed", zap.Error(err))
	}
	store := question.NewSQLStore(dbh, cfg.DBDriver)
	if err := store.EnsureUser(ctx, cfg.AdminUser, cfg.AdminUser, "author"); err != nil {
		log.Fatal("seeding admin user", zap.Error(err))
	}

	bs, err := storage.NewFSStore(cfg.BlobBasePath)
	if err != nil {
		log.Fatal("blob store", zap.Error(err))
	}

	pipeline := bank.NewPipeline(store, bs, log)
	authSvc := auth.NewAuthService(cfg.AuthSecret)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Post("/auth/login", auth.LoginHandler(authSvc, cfg.AdminUser, cfg.AdminPassHash))

	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))

		pr.Post("/api/questions/import", api.ImportHandler(pipeline))
		pr.Post("/api/questions/export", api.BatchExportHandler(store))
		pr.Get("/api/questions", api.ListQuestionsHandler(store))
		pr.Get("/api/questions/{id}", api.GetQuestionHandler(store))
		pr.Get("/api/questions/{id}/export", api.ExportQTIHandler(store))
		pr.Delete("/api/questions/{id}", api.DeleteQuestionHandler(store, bs))

		pr.Route("/assets", func(ar chi.Router) {
			api.MountAssets(ar, store, bs)
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Method("GET", "/metrics", metrics.Handler())

	log.Info("listening", zap.String("addr", cfg.HTTPAddr), zap.String("db", cfg.DBDriver))
	if err := http.ListenAndServe(cfg.HTTPAddr, r); err != nil {
		log.Fatal("server", zap.Error(err))
	}
}
