package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/tally/internal/adapters/http/api"
	"github.com/okian/tally/internal/adapters/sources/twitch"
	"github.com/okian/tally/internal/adapters/view"
	app "github.com/okian/tally/internal/app"
	"github.com/okian/tally/internal/config"
	"github.com/okian/tally/internal/console"
	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/pkg/logger"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func main() {
	// Initialize logging
	if err := logger.Init(); err != nil {
		// Logger isn't available yet
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}

	loggerInstance := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		loggerInstance.Warn(ctx, "invalid log_level; falling back to info",
			logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	// Create and start the service with configuration options
	svc := app.New(serviceOptions(cfg, loggerInstance)...)
	if err := svc.Start(ctx); err != nil {
		os.Stderr.WriteString("failed to start service: " + err.Error() + "\n")
		return
	}
	defer svc.Stop()

	// HTTP mux and routes.
	mux := http.NewServeMux()
	apiServer := api.NewServer(svc, cfg.MaxLeaderboardLimit)
	apiServer.Register(ctx, mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	// Start the HTTP server
	go func() {
		loggerInstance.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			os.Stderr.WriteString("HTTP server failed: " + err.Error() + "\n")
			return
		}
	}()

	// Interactive manual vote entry on stdin. Typing "exit" shuts the whole
	// process down, matching operator expectations from the prompt.
	go func() {
		if err := console.New(svc).Run(ctx); err != nil && ctx.Err() == nil {
			loggerInstance.Warn(ctx, "console stopped", logger.Error(err))
		}
		stop()
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	loggerInstance.Info(ctx, "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		loggerInstance.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	loggerInstance.Info(ctx, "server stopped")
}

// serviceOptions translates the loaded config into service options, wiring
// the optional Twitch source and spreadsheet view when configured.
func serviceOptions(cfg *config.Config, l logger.Logger) []app.Option {
	opts := []app.Option{
		app.WithLogger(l),
		app.WithDBPath(cfg.DBPath),
		app.WithThreshold(cfg.Threshold),
		app.WithWeights(model.Weights{
			Normal: cfg.NormalWeight,
			Super:  cfg.SuperWeight,
			Ultra:  cfg.UltraWeight,
		}),
		app.WithCacheTTL(cfg.CacheTTL()),
		app.WithQueueSize(cfg.EventQueueSize),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithDedupeSize(cfg.DedupeSize),
		app.WithSyncInterval(cfg.SyncInterval()),
		app.WithSyncRetries(cfg.SyncMaxRetries),
		app.WithCreateMissing(cfg.CreateMissing),
	}

	if cfg.Sheet.SpreadsheetID != "" {
		opts = append(opts, app.WithView(view.NewSheetsView(
			cfg.Sheet.SpreadsheetID,
			view.StaticToken(cfg.Sheet.Token),
			view.WithSheetName(cfg.Sheet.SheetName),
		)))
	}

	if cfg.Twitch.ClientID != "" {
		client := twitch.NewClient(cfg.Twitch.ClientID, cfg.Twitch.Token, cfg.Twitch.BroadcasterID)
		rewards := map[string]model.VoteType{}
		if cfg.Twitch.NormalRewardID != "" {
			rewards[cfg.Twitch.NormalRewardID] = model.VoteNormal
		}
		if cfg.Twitch.SuperRewardID != "" {
			rewards[cfg.Twitch.SuperRewardID] = model.VoteSuper
		}
		if cfg.Twitch.UltraRewardID != "" {
			rewards[cfg.Twitch.UltraRewardID] = model.VoteUltra
		}
		interval := time.Duration(cfg.Twitch.PollIntervalSeconds) * time.Second
		opts = append(opts, app.WithTwitch(client, rewards, interval))
	}

	return opts
}
