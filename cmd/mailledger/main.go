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

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	imapadapter "github.com/ericfisherdev/mailledger/internal/adapter/driven/imap"
	oauthadapter "github.com/ericfisherdev/mailledger/internal/adapter/driven/oauth"
	sqliteadapter "github.com/ericfisherdev/mailledger/internal/adapter/driven/sqlite"
	httphandler "github.com/ericfisherdev/mailledger/internal/adapter/driving/http"
	"github.com/ericfisherdev/mailledger/internal/application"
	"github.com/ericfisherdev/mailledger/internal/config"
	"github.com/ericfisherdev/mailledger/internal/parser"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on invalid env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"imap_host", cfg.IMAPHost,
		"sync_interval", cfg.SyncInterval,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("database opened", "path", cfg.DBPath)

	// 4. Run migrations on writer connection.
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	slog.Info("migrations complete")

	// 5. Wire driven adapters.
	accountStore := sqliteadapter.NewAccountRepo(db, cfg.SecretKey)
	transactionStore := sqliteadapter.NewTransactionRepo(db)
	mailClient := imapadapter.NewClient(cfg.IMAPHost, cfg.IMAPPort)

	if !cfg.HasOAuthCredentials() {
		slog.Info("no oauth client credentials configured, token refresh will fail for expired accounts")
	}
	refresher := oauthadapter.NewRefresher(cfg.TokenEndpoint, cfg.OAuthClientID, cfg.OAuthClientSecret)

	// 6. Create services.
	tokenSvc := application.NewTokenService(refresher, accountStore, cfg.RefreshMargin)
	syncSvc := application.NewSyncService(
		accountStore,
		transactionStore,
		mailClient,
		tokenSvc,
		parser.DefaultRegistry(),
		cfg.FetchTimeout,
		cfg.SyncInterval,
	)
	go syncSvc.Start(ctx)

	// 7. Create HTTP handler and server.
	apiHandler := httphandler.NewHandler(accountStore, transactionStore, syncSvc, slog.Default())
	handler := httphandler.NewServeMux(apiHandler, slog.Default())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// Sync endpoints hold the connection while IMAP searches run,
		// so the write timeout must cover a full multi-account pass.
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
		}
	}()

	// 8. Log startup complete.
	slog.Info("mailledger started",
		"listen_addr", cfg.ListenAddr,
		"sync_interval", cfg.SyncInterval,
		"parsers", parser.DefaultRegistry().Names(),
	)

	// 9. Wait for shutdown signal.
	<-ctx.Done()
	slog.Info("shutting down")

	// 10. Graceful shutdown with 10s timeout for HTTP server drain.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	// 11. Log shutdown complete.
	slog.Info("shutdown complete")
	return nil
}
