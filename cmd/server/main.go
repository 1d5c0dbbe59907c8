package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mstelder/authd/internal"
	"github.com/mstelder/authd/internal/auth"
	authdb "github.com/mstelder/authd/internal/auth/db"
	"github.com/mstelder/authd/internal/db"
	"github.com/mstelder/authd/internal/db/migrate"
	"github.com/mstelder/authd/internal/httpapi"
	"github.com/mstelder/authd/internal/krypto"
	"github.com/mstelder/authd/internal/logredact"
	"github.com/mstelder/authd/migrations"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Stderr))
}

func run(ctx context.Context, w io.Writer) int {
	// A missing .env file is fine, the environment may be set directly.
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(w, nil))

	cfg, err := configFromEnv()
	if err != nil {
		logger.Error("failed to get config from environment", "error", err)
		return 1
	}

	// From here on all log output goes through the PII redactor.
	redactor, err := logredact.New(cfg.log.redactFields, cfg.log.redaction, cfg.log.redactSeparator)
	if err != nil {
		logger.Error("failed to create log redactor", "error", err)
		return 1
	}

	logger = slog.New(logredact.NewHandler(slog.NewTextHandler(w, nil), redactor))

	encryptor, err := krypto.NewEncryptor(cfg.db.encryptionKeys)
	if err != nil {
		logger.Error("failed to create encryptor", "error", err)
		return 1
	}

	writeDB, err := db.OpenSQLite(cfg.db.filename, true)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		return 1
	}
	defer writeDB.Close()

	migrateCtx, cancel := context.WithTimeout(ctx, time.Second*60)
	defer cancel()

	ran, err := migrate.RunFS(migrateCtx, writeDB, migrations.FS, migrate.Metadata{
		AppVersion: internal.BuildRevision,
		Timestamp:  time.Now(),
	})
	if err != nil {
		logger.Error("failed to run migrations", "error", err)
		return 1
	}

	for _, m := range ran {
		logger.Info("ran migration", "sequence", m.Sequence, "filename", m.Filename)
	}

	store := authdb.New(writeDB, encryptor, cfg.db.blindIndexKey)

	svc, err := auth.NewService(store, func(err error) {
		logger.Error("auth service error", "error", err)
	})
	if err != nil {
		logger.Error("failed to create auth service", "error", err)
		return 1
	}

	srv := &http.Server{
		Addr:         cfg.http.addr,
		ReadTimeout:  cfg.http.readTimeout,
		WriteTimeout: cfg.http.writeTimeout,
		IdleTimeout:  cfg.http.idleTimeout,
		Handler: httpapi.NewServer(&httpapi.ServerDeps{
			Logger:      logger,
			AuthService: svc,
		}, httpapi.ServerConfig{
			SecureCookie: cfg.http.secureCookie,
		}),
	}

	// We need to run two tasks concurrently:
	// - Listen and serving of the HTTP server.
	// - Waiting for a signal to stop the server.

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server",
			"addr", cfg.http.addr,
			"buildRevision", internal.BuildRevision,
			"buildRevisionTime", internal.BuildRevisionTime,
			"buildLocalModified", internal.BuildLocalModified,
		)
		// ListenAndServe always returns a non-nil error,
		// g will cancel gCtx when an error is returned, so
		// this will also stop the other goroutine.
		return srv.ListenAndServe()
	})

	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("stopping http server")

		shutCtx, cancel := context.WithTimeout(context.Background(), cfg.http.shutdownTimeout)
		defer cancel()

		return srv.Shutdown(shutCtx)
	})

	err = g.Wait()
	if err != nil && err != http.ErrServerClosed {
		logger.Error("http server stopped with error", "error", err)
		return 1
	}

	logger.Info("http server stopped successfully")

	return 0
}
