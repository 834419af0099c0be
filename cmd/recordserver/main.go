// Command recordserver is the reference record backend: it serves the
// fetch/upsert/ping API the sync engine consumes, backed by sqlite, with
// bearer-token auth. Intended for development and integration testing
// against a real HTTP backend.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/finledger/syncengine/internal/server/handlers"
	"github.com/finledger/syncengine/internal/server/jwt"
	"github.com/finledger/syncengine/internal/server/middleware"
	"github.com/finledger/syncengine/internal/storage/sqlite"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	addr := flag.String("addr", ":8080", "Listen address")
	dbPath := flag.String("db", "recordserver.db", "Path to sqlite database")
	tokenTTL := flag.Duration("token-ttl", 24*time.Hour, "Access token lifetime")
	issueToken := flag.String("issue-token", "", "Issue a token for the given client id and exit")
	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	secret := os.Getenv("RECORDSERVER_SECRET")
	if secret == "" {
		fmt.Fprintln(os.Stderr, "RECORDSERVER_SECRET must be set")
		os.Exit(1)
	}
	tokens := jwt.NewService(secret, *tokenTTL)

	if *issueToken != "" {
		token, expiresAt, err := tokens.GenerateToken(*issueToken)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to issue token: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%s\n", token)
		fmt.Fprintf(os.Stderr, "expires %s\n", expiresAt.Format(time.RFC3339))
		os.Exit(0)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := sqlite.New(ctx, *dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}()

	records := handlers.NewRecordsHandler(logger, store)
	health := handlers.NewHealthHandler(logger, Version)

	auth := middleware.AuthMiddleware(logger, tokens)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/health", health.Health)
	mux.Handle("/api/v1/ping", auth(http.HandlerFunc(records.HandlePing)))
	mux.Handle("/api/v1/records", auth(http.HandlerFunc(records.HandleRecords)))
	mux.Handle("/api/v1/records/", auth(http.HandlerFunc(records.HandleRecord)))

	handler := middleware.RecoveryMiddleware(logger)(
		middleware.LoggingWithSkip(logger, []string{"/api/v1/ping", "/api/v1/health"})(
			middleware.RateLimitMiddleware(300, time.Minute, logger)(mux)))

	srv := &http.Server{
		Addr:              *addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errC := make(chan error, 1)
	go func() {
		logger.Info("recordserver listening", "addr", *addr, "db", *dbPath)
		errC <- srv.ListenAndServe()
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case s := <-sig:
		logger.Info("shutting down", "signal", s.String())
	case err := <-errC:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}

func printVersion() {
	fmt.Printf("recordserver\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
