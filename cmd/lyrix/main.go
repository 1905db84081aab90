package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"lyrix/internal/arbiter"
	"lyrix/internal/config"
	database "lyrix/internal/db"
	"lyrix/internal/library"
	"lyrix/internal/scheduler"
	"lyrix/internal/session"
	"lyrix/internal/storage"

	// Use an alias to prevent naming collisions with the 'server' variable
	apiserver "lyrix/internal/api/server"
)

func main() {
	seed := flag.Bool("seed", false, "Seed demo songs and the admin user before starting")
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Starting Lyrix Sync Server...")

	// 1. Setup Configuration
	cfg := config.Load()
	setupLogging(cfg.Server.LogLevel)

	// 2. Initialize Infrastructure
	db := database.New(cfg)
	db.AutoMigrate()
	if *seed {
		if err := db.Seed(cfg.Server.AdminUser, cfg.Server.AdminPassword); err != nil {
			log.Printf("⚠️ Seeding failed: %v", err)
		}
	}
	store := storage.New(cfg)

	// 3. Sessions write their edits and transport history through the library
	repo := library.NewRepository(db.DB)
	state := library.NewStateManager(db.DB)
	registry := session.NewRegistry(session.Options{
		Clock:    scheduler.RealClock{},
		Embedded: cfg.Sync.Embedded,
		GraceMs:  cfg.Sync.GraceMs,
		Arbiter: arbiter.Config{
			ResetGuardMs:       cfg.Sync.ResetGuardMs,
			ContentionWindowMs: cfg.Sync.ContentionWindowMs,
			ThrottleMs:         cfg.Sync.ThrottleMs,
		},
	}, time.Duration(cfg.Sync.WatchdogIntervalMs)*time.Millisecond)
	registry.OnOpen(func(s *session.Session) {
		library.NewPersister(repo, state, nil).Attach(s)
	})
	defer registry.CloseAll()

	// 4. Setup Metrics
	session.RegisterMetrics()
	mux := http.NewServeMux()
	mux.Handle("/_metrics", promhttp.Handler())
	metricsSrv := &http.Server{Addr: cfg.Server.MetricsPort, Handler: mux}

	apiSrv := &http.Server{
		Addr:              cfg.Server.Port,
		Handler:           apiserver.New(cfg, db, store, registry).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("📊 Metrics exposed at http://localhost%s/_metrics", cfg.Server.MetricsPort)
		return serve(metricsSrv)
	})
	g.Go(func() error {
		log.Printf("🚀 API Server starting on %s", cfg.Server.Port)
		return serve(apiSrv)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Println("🛑 Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return errors.Join(apiSrv.Shutdown(shutdownCtx), metricsSrv.Shutdown(shutdownCtx))
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("❌ Server stopped: %v", err)
	}
}

func serve(srv *http.Server) error {
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func setupLogging(level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
