package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"panel-lab/ai"
	"panel-lab/infrastructure/httpapi"
	"panel-lab/internal"
	"panel-lab/moderation"
	"panel-lab/observability"
	"panel-lab/repositories"
	"panel-lab/runtime"
	"panel-lab/runtime/workers"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	// The main function acts as a thin wrapper.
	// Its only responsibility is to call run() and handle the OS exit code.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run initializes all components, manages the server lifecycle, and centralizes error reporting.
// This pattern is preferred over calling os.Exit or panic directly because:
// 1. It ensures all 'defer' statements (like database cleanup) are executed before the program exits.
// 2. It improves testability by decoupling the initialization logic from the main entry point.
// 3. It provides a structured way to handle graceful shutdowns for HTTP and background workers.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()

	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	maskRune, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return exitConfig, err
	}

	logger := logs.GetLoggerFromString(config.LogLevel)
	ctx := context.Background()

	// 2. Storage (BadgerDB + Bluge)
	db, err := badger.Open(buildBadgerOpts(config, logger, ctx))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		// Defer ensures the database lock is released and buffers are flushed before the function returns.
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	blugeWriter, err := bluge.OpenWriter(bluge.DefaultConfig(config.BlugeFilepath))
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to open bluge writer: %w", err)
	}
	defer func() {
		logger.Info("Closing Bluge...")
		_ = blugeWriter.Close()
	}()

	monitoring := observability.NewManager()

	if config.DebugPort > 0 && logger.Enabled(ctx, slog.LevelDebug) {
		logger.Info("Debug transcript inspector available",
			"url", fmt.Sprintf("http://localhost:%d/inspect", config.DebugPort))
		internal.StartDebugServer(db, config.DebugPort, func() map[string]any {
			snap := monitoring.Snapshot()
			return map[string]any{
				"turns":          snap.Turns,
				"generations":    snap.Generations,
				"failed":         snap.FailedGenerations,
				"active_streams": snap.ActiveStreams,
				"alloc_mb":       snap.AllocMemMb,
			}
		})
	}

	// 3. Roster & Moderation
	validate := validator.New()
	roster, err := runtime.LoadRoster(config.ParticipantsFile, validate)
	if err != nil {
		return exitConfig, fmt.Errorf("roster loading failed: %w", err)
	}
	logger.Info("Roster loaded", "participants", roster.Size(), "ids", roster.IDs())

	wordList, err := moderation.LoadDefaultWords()
	if err != nil {
		return exitConfig, fmt.Errorf("loading embedded word lists: %w", err)
	}
	words := wordList.Words
	if config.CensoredWordsFile != "" {
		extra, err := moderation.LoadWordsFile(config.CensoredWordsFile)
		if err != nil {
			return exitConfig, fmt.Errorf("loading censored words file: %w", err)
		}
		words = append(words, extra...)
	}
	moderator, err := moderation.NewModerator(words, maskRune)
	if err != nil {
		return exitConfig, fmt.Errorf("building moderator: %w", err)
	}
	logger.Info("Moderation ready", "words", len(words), "languages", wordList.Languages)

	// 4. Repositories & Turn pipeline
	transcriptStore := repositories.NewTranscriptRepository(db, logger)
	searchRepository := repositories.NewSearchRepository(blugeWriter, logger, config.SearchLimit)
	transcripts := repositories.NewIndexedTranscriptRepository(transcriptStore, searchRepository, logger)

	gate := runtime.NewGate(config.MaxConcurrent)
	retrier := runtime.NewRetrier(logger, config.MaxAttempts(), config.AttemptTimeout, config.BackoffBase)
	generator := ai.NewGenerator(config.GeneratorBaseURL, config.GeneratorAPIKey,
		config.GeneratorModel, config.GeneratorTemp)
	prompts := ai.NewPromptBuilder(config.SharedContext)

	orchestrator := runtime.NewOrchestrator(logger, gate, retrier, generator,
		transcripts, prompts, moderator, monitoring, config.StaggerDelta)

	// 5. Context & Signals
	// NotifyContext captures OS signals and cancels the context to trigger a shutdown.
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 2)

	// 6. Background workers under supervision
	sup := workers.NewSupervisor(logger)
	sup.Add(
		workers.NewStoreGCWorker(logger, transcriptStore, config.StoreGCInterval),
		workers.NewHealthMonitoringWorker(logger, monitoring, config.MetricInterval),
	)
	go func() {
		logger.Info("Starting background workers...")
		sup.Run(ctx)
	}()

	// 7. HTTP server
	apiServer := httpapi.NewServer(logger, orchestrator, roster, transcripts,
		searchRepository, monitoring, config.HeartbeatInterval, config.EmitTimeout)

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	httpServer := &http.Server{
		Addr:    address,
		Handler: apiServer.Routes(),
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		logger.Info("Starting HTTP server", "address", address, "at", time.Now().UTC())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// 8. Wait for Stop or Error
	// The execution blocks here until either a signal is received or the server crashes.
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errChan:
		return exitRuntime, err
	}

	// 9. Final Cleanup (Graceful Shutdown)
	// Active push streams get a grace period to settle before the listener dies.
	logger.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown did not complete cleanly", "error", err)
	}
	sup.Stop()
	logger.Info("Program stopped cleanly")

	return exitOK, nil
}

func buildBadgerOpts(config internal.Config, logger *slog.Logger, ctx context.Context) badger.Options {
	options := badger.DefaultOptions(config.BadgerFilepath)

	if logger.Enabled(ctx, slog.LevelDebug) {
		options = options.WithLoggingLevel(badger.DEBUG).
			WithBypassLockGuard(true)
	} else {
		options = options.WithLoggingLevel(badger.INFO)
	}

	return options
}
