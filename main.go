package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"nodebucket/internal/config"
	"nodebucket/internal/handlers"
	"nodebucket/internal/store"
	"nodebucket/internal/tasks"
	"nodebucket/internal/validation"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize store
	s, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize store: %v", err)
	}
	defer s.Close()

	if cfg.SeedFile != "" {
		if err := seedEmployees(ctx, s, cfg.SeedFile, logger); err != nil {
			logger.Fatalf("Failed to seed employees: %v", err)
		}
	}

	schemas, err := validation.Compile(validation.Options{StrictCreate: cfg.StrictCreate})
	if err != nil {
		logger.Fatalf("Failed to compile request schemas: %v", err)
	}

	// Initialize handlers
	h := handlers.New(tasks.NewService(s, schemas, logger), logger, cfg.MaxBodyBytes)

	// Create router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: logger, NoColor: true}))
	r.Use(middleware.Compress(5))
	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.CORSOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
	}

	h.Routes(r)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("Graceful shutdown failed")
		}
	}()

	logger.WithFields(log.Fields{"addr": cfg.Addr(), "store": cfg.StoreDriver}).Info("Starting server")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("Server failed: %v", err)
	}
	logger.Info("Server stopped")
}

func newLogger(cfg *config.Config) *log.Logger {
	logger := log.New()
	if cfg.LogFormat == "json" {
		logger.SetFormatter(&log.JSONFormatter{})
	} else {
		logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	if cfg.Debug {
		logger.SetLevel(log.DebugLevel)
	}
	return logger
}

func openStore(ctx context.Context, cfg *config.Config, logger *log.Logger) (store.Store, error) {
	var base store.Store

	switch cfg.StoreDriver {
	case config.DriverSQLite:
		// Ensure data directory exists
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
			return nil, err
		}
		s, err := store.NewSQLiteStore(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		base = s
	default:
		connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		s, err := store.NewMongoStore(connectCtx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		base = s
	}

	if cfg.RedisURL == "" {
		return base, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		base.Close()
		return nil, err
	}
	logger.WithField("ttl", cfg.CacheTTL).Info("Caching employee documents in redis")
	return store.NewCache(base, redis.NewClient(opts), cfg.CacheTTL), nil
}

func seedEmployees(ctx context.Context, s store.Store, path string, logger *log.Logger) error {
	employees, err := store.LoadSeedFile(path)
	if err != nil {
		return err
	}

	n, err := s.SeedEmployees(ctx, employees)
	if err != nil {
		return err
	}

	logger.WithFields(log.Fields{"file": path, "inserted": n, "total": len(employees)}).Info("Seeded employees")
	return nil
}
