package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"reup-suggest-backend/internal/analytics"
	"reup-suggest-backend/internal/auth"
	"reup-suggest-backend/internal/config"
	"reup-suggest-backend/internal/db"
	"reup-suggest-backend/internal/logging"
	"reup-suggest-backend/internal/suggest"
	"reup-suggest-backend/internal/tasks"
	"reup-suggest-backend/internal/usage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := logging.New(os.Stdout, cfg.LogLevel)
	slog.SetDefault(log)

	database, err := db.Connect(cfg.DBDriver, cfg.ConnString())
	if err != nil {
		log.Error("failed to connect db", "driver", cfg.DBDriver, "error", err)
		os.Exit(1)
	}
	defer database.Close()

	log.Info("connected to database", "driver", cfg.DBDriver)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, closeBackend, err := openUsage(ctx, cfg, database)
	if err != nil {
		log.Error("failed to open usage store", "backend", cfg.UsageBackend, "error", err)
		os.Exit(1)
	}
	defer closeBackend()

	recorder := analytics.NewRecorder(database, cfg.DBDriver, log)
	if err := migrateMain(ctx, database, cfg.DBDriver, recorder); err != nil {
		log.Error("failed to migrate database", "driver", cfg.DBDriver, "error", err)
		os.Exit(1)
	}

	catalog, err := suggest.LoadCatalog(cfg.TemplatesPath)
	if err != nil {
		log.Error("failed to load templates", "path", cfg.TemplatesPath, "error", err)
		os.Exit(1)
	}

	source := tasks.NewRepository(database)

	hub := suggest.NewHub(func(uid int) *suggest.Engine {
		return suggest.NewEngine(suggest.EngineConfig{
			Limit:   cfg.SuggestLimit,
			Timeout: cfg.SuggestTimeout,
			Catalog: catalog,
			Usage:   usage.For(backend, uid),
			Logger:  log.With("user_id", uid),
		})
	})
	defer hub.Close()

	authMW := auth.New([]byte(cfg.JWTSecret), log)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	mux.HandleFunc("GET /suggestions", authMW.Wrap(suggest.GetSuggestionsHandler(hub)))
	mux.HandleFunc("POST /suggestions/generate", authMW.Wrap(suggest.GenerateSuggestionsHandler(hub, source, recorder, log)))
	mux.HandleFunc("POST /suggestions/learn", authMW.Wrap(suggest.LearnHandler(hub, recorder)))

	mux.HandleFunc("POST /analytics/suggestion_shown", authMW.Wrap(analytics.SuggestionShownHandler(recorder)))
	mux.HandleFunc("POST /analytics/suggestion_dismissed", authMW.Wrap(analytics.SuggestionDismissedHandler(recorder)))

	// CORS
	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Session-Id", "X-Platform", "X-App-Version", "X-Device-Locale", "Idempotency-Key", "X-Source-Event-Key"},
		AllowCredentials: true,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           h2c.NewHandler(c.Handler(mux), &http2.Server{}),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("api server is running", "addr", srv.Addr, "usage_backend", cfg.UsageBackend)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", "error", err)
		}
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
	}
}
