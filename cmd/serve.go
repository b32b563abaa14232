package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/board/internal/api"
	"github.com/joescharf/board/internal/daemon"
	webui "github.com/joescharf/board/internal/ui"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web UI and REST API server",
	Long: `Start an HTTP server that serves the embedded board UI and the REST API
under /api/v1. By default it listens on port 8080. Use --port to change it.

The server stops gracefully on SIGINT or SIGTERM (board serve stop).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveRun()
	},
}

var serveStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the server is running",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStatusRun()
	},
}

var serveStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop a running server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStopRun()
	},
}

func init() {
	serveCmd.AddCommand(serveStatusCmd)
	serveCmd.AddCommand(serveStopCmd)
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 8080, "port to listen on")
	_ = viper.BindPFlag("port", serveCmd.Flags().Lookup("port"))
}

// pidFile returns the server's PID file in state_dir.
func pidFile() *daemon.PIDFile {
	return daemon.NewPIDFile(filepath.Join(viper.GetString("state_dir"), "board-serve.pid"))
}

// purgeInterval is how often expired sessions are removed while serving.
const purgeInterval = time.Hour

func serveRun() error {
	if err := os.MkdirAll(viper.GetString("state_dir"), 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	pf := pidFile()
	if err := pf.Acquire(); err != nil {
		return err
	}
	defer func() { _ = pf.Release() }()

	logger := newLogger(os.Stderr)

	s, err := getStore()
	if err != nil {
		return err
	}
	svc, err := getAuthService(logger)
	if err != nil {
		return err
	}

	apiServer := api.NewServer(s, svc, logger)
	handler, err := webui.Handler(apiServer.Router())
	if err != nil {
		return fmt.Errorf("failed to initialize UI handler: %w", err)
	}

	addr := fmt.Sprintf(":%d", viper.GetInt("port"))
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), shutdownSignals()...)
	defer stop()

	go purgeSessions(ctx, logger, svc.PurgeExpired)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving", "addr", "http://localhost"+addr, "pid", os.Getpid())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// purgeSessions deletes expired sessions at startup and every purgeInterval.
func purgeSessions(ctx context.Context, logger *slog.Logger, purge func(context.Context) (int64, error)) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()
	for {
		if n, err := purge(ctx); err != nil {
			logger.Warn("failed to purge expired sessions", "error", err)
		} else if n > 0 {
			logger.Info("purged expired sessions", "count", n)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func serveStatusRun() error {
	pid, running := pidFile().IsRunning()
	if !running {
		ui.Info("Server is not running.")
		return nil
	}
	ui.Success("Server is running (PID %d) on port %d", pid, viper.GetInt("port"))
	return nil
}

func serveStopRun() error {
	pf := pidFile()
	pid, running := pf.IsRunning()
	if !running {
		return fmt.Errorf("server is not running")
	}
	if dryRun {
		ui.DryRunMsg("Would stop server (PID %d)", pid)
		return nil
	}
	if err := pf.Signal(stopSignal()); err != nil {
		return fmt.Errorf("stop server (PID %d): %w", pid, err)
	}
	ui.Success("Sent stop signal to server (PID %d)", pid)
	return nil
}
