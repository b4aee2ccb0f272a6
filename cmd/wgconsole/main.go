package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"wg-console/internal/audit"
	"wg-console/internal/auth"
	"wg-console/internal/config"
	"wg-console/internal/database"
	"wg-console/internal/peermeta"
	"wg-console/internal/server"
	"wg-console/internal/settings"
	"wg-console/internal/stats"
	"wg-console/internal/system"
	"wg-console/internal/update"
	"wg-console/internal/version"
	"wg-console/internal/vpn"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		logrus.Fatalf("Configuration error: %v", err)
	}
	if cfg.ShowVersion {
		fmt.Println(version.Current().String())
		return
	}

	setupLogging(cfg.LogLevel)

	db, err := database.Open(cfg.DatabasePath())
	if err != nil {
		logrus.Fatalf("Open database: %v", err)
	}
	defer db.Close()

	settingsStore := settings.NewStore(db, settings.Defaults{
		PublicEndpoint: cfg.DefaultEndpoint,
		DNS:            cfg.DefaultDNS,
		ConfigDir:      cfg.WGDir,
	})
	meta := peermeta.NewStore(db, cfg.EncryptionPassphrase)
	authService := auth.NewService(db, cfg.JWTSecret)
	recorder := audit.NewRecorder(db)

	backend := selectBackend(cfg)

	engine, err := vpn.NewManager(cfg.WGDir, backend, settingsStore, meta, cfg.AllowCustomScripts)
	if err != nil {
		logrus.Fatalf("Initialize engine: %v", err)
	}

	sampler := stats.NewSampler(db, engine, settingsStore, stats.DefaultInterval)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sampler.Run(ctx)

	checker := update.NewChecker(update.DefaultRepo, version.Current().Version, nil)
	srv := server.New(authService, engine, meta, settingsStore, sampler, recorder, backend, checker)

	httpServer := &http.Server{
		Addr:    cfg.Listen,
		Handler: srv.Router(),
		// WriteTimeout leaves room for the 60 s handler budget.
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 75 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logrus.Infof("%s listening on %s", version.Current().String(), cfg.Listen)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logrus.Info("Shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logrus.Warnf("Graceful shutdown: %v", err)
	}
}

// selectBackend picks the exec backend when the host has the WireGuard
// tooling, falling back to the in-memory simulation otherwise so the UI
// stays usable on development machines.
func selectBackend(cfg *config.Config) system.Backend {
	if cfg.Mock {
		logrus.Info("Using in-memory backend (mock mode)")
		return system.NewMemoryBackend(cfg.WGDir)
	}
	backend := system.NewExecBackend(cfg.CommandTimeout)
	if !backend.Installed(context.Background()) {
		logrus.Warn("WireGuard tooling not found, falling back to the in-memory backend")
		return system.NewMemoryBackend(cfg.WGDir)
	}
	return backend
}

func setupLogging(level string) {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		logrus.Warnf("Unknown log level %q, using info", level)
		parsed = logrus.InfoLevel
	}
	logrus.SetLevel(parsed)
}
