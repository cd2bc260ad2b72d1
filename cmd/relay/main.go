package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"homechat/internal"
	"homechat/observability"
	"homechat/repositories"
	"homechat/runtime"
	"homechat/runtime/workers"
	"homechat/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and centralizes error reporting.
// This pattern is preferred over calling os.Exit or panic directly because:
// 1. It ensures all 'defer' statements (like database cleanup) are executed before the program exits.
// 2. It improves testability by decoupling the initialization logic from the main entry point.
// 3. It provides a structured way to handle graceful shutdowns for the relay and background workers.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.INFO))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	// Defer will be executed before run() returns anything to main()
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Relay core
	stats := observability.NewRelayStats()
	registry := runtime.NewRegistry()
	presence := runtime.NewPresenceTracker(log, registry)
	router := runtime.NewRouter(log, registry, stats)
	messageRepository := repositories.NewMessageRepository(db, log, config.LimitMessages)

	srv := server.NewServer(log, presence, router, messageRepository, stats, server.Options{
		ConnectionBufferSize: config.ConnectionBufferSize,
		MaxContentLength:     config.MaxContentLength,
		AllowedOrigins:       strings.Split(config.AllowedOrigins, ";"),
	})

	// 4. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 5. Supervision
	sup := workers.NewSupervisor(log, config.RestartInterval)
	sup.Add(workers.NewStatsWorker(log, config.StatsInterval, stats, registry))
	go sup.Run(ctx)

	if config.DebugPort > 0 {
		internal.StartDebugServer(db, log, config.DebugPort, func() map[string]any {
			snapshot := stats.GetLatest()
			return map[string]any{
				"online":    registry.Count(),
				"joined":    snapshot.ConnectionsJoined,
				"relayed":   snapshot.EventsRelayed,
				"dropped":   snapshot.EventsDropped,
				"persisted": snapshot.MessagesPersisted,
			}
		})
	}

	// 6. HTTP server (websocket + REST surface)
	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	httpServer := &http.Server{Addr: address, Handler: srv.Routes()}

	// Use an error channel to capture ListenAndServe() issues
	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting relay server", "address", address, "at", time.Now().UTC())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("relay server error: %w", err)
		}
	}()

	// 7. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 8. Final Cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownGracePeriod)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
	sup.Stop()
	log.Info("Program stopped cleanly")

	return nil
}
