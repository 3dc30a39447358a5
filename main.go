package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/edu-moreno89/erado-export/internal/auth"
	"github.com/edu-moreno89/erado-export/internal/bridge"
	"github.com/edu-moreno89/erado-export/internal/config"
	"github.com/edu-moreno89/erado-export/internal/db"
	"github.com/edu-moreno89/erado-export/internal/exporter"
	"github.com/edu-moreno89/erado-export/internal/extractor"
	"github.com/edu-moreno89/erado-export/internal/folder"
	"github.com/edu-moreno89/erado-export/internal/gmail"
	"github.com/edu-moreno89/erado-export/internal/handlers"
	"github.com/edu-moreno89/erado-export/internal/logger"
	"github.com/edu-moreno89/erado-export/internal/metrics"
	"github.com/edu-moreno89/erado-export/internal/render"
	"github.com/edu-moreno89/erado-export/internal/session"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Development: cfg.LogDevelopment,
		LogFile:     cfg.LogFile,
		Compress:    true,
	})
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Ensure database directory exists
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		log.Fatal("Failed to create database directory", zap.Error(err))
	}

	// Open database
	database, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Fatal("Failed to open database", zap.Error(err))
	}
	defer database.Close()
	log.Info("Database opened", zap.String("path", cfg.DBPath))

	m := metrics.New()

	renderer, err := render.New(cfg.ExportFormat, render.Options{Compress: cfg.CompressPDF})
	if err != nil {
		log.Fatal("Failed to create renderer", zap.Error(err))
	}

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	limiter := rate.NewLimiter(rate.Limit(cfg.GmailRateLimit), int(cfg.GmailRateLimit)+1)

	exp := exporter.New(renderer, log.Named("exporter"))
	exp.SetPrefix(cfg.ExportPrefix)
	exp.SetHTTPClient(httpClient)
	exp.SetJournal(database)
	exp.SetMetrics(m)
	exp.SetDialer(func(ctx context.Context, token string) (exporter.Mailbox, error) {
		client, err := gmail.NewClient(ctx, token, gmail.Options{
			Endpoint:   cfg.GmailEndpoint,
			HTTPClient: httpClient,
			Limiter:    limiter,
			Logger:     log.Named("gmail"),
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	})

	ext := extractor.New(extractor.Options{
		NoiseDomains:          cfg.NoiseDomains,
		DropUnresolvedSenders: cfg.DropUnresolvedSenders,
	})

	sessions := session.NewRegistry()
	deps := bridge.Deps{
		Sessions:    sessions,
		Credentials: &auth.Credentials{},
		Extractor:   ext,
		Exporter:    exp,
		Picker:      folder.DirPicker{Default: cfg.DefaultFolder, Create: cfg.DefaultFolder != ""},
		Journal:     database,
		Metrics:     m,
		Logger:      log.Named("bridge"),

		RememberFolder: cfg.RememberFolder,
	}

	// Interactive sign-in is only available with client credentials
	if _, err := os.Stat(cfg.CredentialsFile); err == nil {
		provider, err := auth.NewOAuthProvider(cfg.CredentialsFile, cfg.TokenFile, log.Named("auth"))
		if err != nil {
			log.Fatal("Failed to load credentials", zap.Error(err))
		}
		provider.SetPrompt(auth.ConsolePrompt(os.Stdin, os.Stdout))
		deps.Provider = provider
	} else {
		log.Info("No client credentials, sign-in disabled", zap.String("path", cfg.CredentialsFile))
	}

	// Create shutdown signal channel
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	h := handlers.New(bridge.New(deps), database, m, log.Named("http"))
	h.SetShutdownChannel(sigChan)
	h.SetAllowedOrigins(cfg.AllowedOrigins)

	// Create server
	srv := &http.Server{
		Addr:         cfg.Address(),
		Handler:      h.Routes(),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(context.Background())

	group.Go(func() error {
		log.Info("Starting server", zap.String("url", cfg.URL()))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed", zap.Error(err))
			return err
		}
		return nil
	})

	stop := make(chan struct{})
	group.Go(func() error {
		housekeeping(stop, database, cfg.JournalRetention, sessions, cfg.SessionIdleTimeout, log)
		return nil
	})

	// Wait for interrupt signal or a server failure
	select {
	case <-sigChan:
	case <-groupCtx.Done():
	}
	log.Info("Shutting down gracefully")
	close(stop)

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server shutdown error", zap.Error(err))
	}
	if err := group.Wait(); err != nil {
		log.Error("Server stopped with error", zap.Error(err))
		return
	}

	log.Info("Server stopped")
}

// housekeeping drops old journal entries and idle sessions once at start and
// then hourly until stop is closed. A zero duration disables that cleanup.
func housekeeping(stop <-chan struct{}, database *db.DB, retention time.Duration, sessions *session.Registry, idle time.Duration, log *zap.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		if retention > 0 {
			n, err := database.PruneExports(time.Now().Add(-retention))
			if err != nil {
				log.Error("Failed to prune export journal", zap.Error(err))
			} else if n > 0 {
				log.Info("Export journal pruned", zap.Int64("removed", n))
			}
		}
		if idle > 0 {
			if n := sessions.Evict(idle); n > 0 {
				log.Info("Idle sessions evicted", zap.Int("removed", n))
			}
		}

		select {
		case <-stop:
			return
		case <-ticker.C:
		}
	}
}
