package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/kalambet/annex/internal/api"
	"github.com/kalambet/annex/internal/config"
	"github.com/kalambet/annex/internal/datastore"
	"github.com/kalambet/annex/internal/event"
	"github.com/kalambet/annex/internal/segment"
	"github.com/kalambet/annex/internal/storage"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the annex server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running annex server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show annex system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "annex.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func logLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "annex version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Initialize structured logging.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel(cfg.Log.Level)})))

	// Both upstream endpoints must be configured before the server can
	// authenticate users or segment documents.
	if cfg.Upstream.BaseURL == "" {
		return fmt.Errorf("upstream.base_url is not set: run `annex config set upstream.base_url <url>`")
	}
	if cfg.Segmenter.URL == "" {
		return fmt.Errorf("segmenter.url is not set: run `annex config set segmenter.url <url>`")
	}

	// Write PID file. Check if server is already running via health endpoint.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("annex is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("annex is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Open storage.
	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	// Build the segmenter client.
	segTimeout, err := time.ParseDuration(cfg.Segmenter.Timeout)
	if err != nil {
		slog.Warn("invalid segmenter timeout, using default 60s", "value", cfg.Segmenter.Timeout, "error", err)
		segTimeout = 60 * time.Second
	}
	segClient := segment.NewClient(cfg.Segmenter.URL, cfg.Segmenter.APIKey, &http.Client{Timeout: segTimeout})

	// Bind all services onto the event router. Both the HTTP API and
	// the MCP server dispatch through it.
	router := event.NewRouter()
	if err := datastore.NewService(store).Register(router); err != nil {
		return fmt.Errorf("registering datastore events: %w", err)
	}
	if err := segment.NewService(segClient).Register(router); err != nil {
		return fmt.Errorf("registering segment events: %w", err)
	}

	auth := api.NewUpstreamAuthenticator(cfg.Upstream.BaseURL, &http.Client{Timeout: 15 * time.Second})
	handler := api.NewHandler(api.Deps{
		Router:        router,
		Auth:          auth,
		DefaultDomain: cfg.Upstream.Domain,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// Build and start MCP server (stdio transport in a goroutine).
	mcpSrv := api.NewMCPServer(api.MCPDeps{Router: router})
	stdioSrv := server.NewStdioServer(mcpSrv)
	go func() {
		if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("MCP stdio server error", "error", err)
		}
	}()
	slog.Info("MCP server started (stdio transport)")

	// Start server in a goroutine.
	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "annex listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for signal or server error.
	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	// Graceful shutdown with timeout.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("annex is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop annex (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to annex (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port))
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == 200 {
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	// Check the annotation platform.
	if cfg.Upstream.BaseURL == "" {
		printStatus("Upstream", "not configured")
	} else if upResp, err := client.Get(cfg.Upstream.BaseURL + "/version"); err != nil {
		printStatus("Upstream", "unreachable at %s", cfg.Upstream.BaseURL)
	} else {
		upResp.Body.Close()
		printStatus("Upstream", "reachable at %s", cfg.Upstream.BaseURL)
	}

	if cfg.Segmenter.URL == "" {
		printStatus("Segmenter", "not configured")
	} else {
		printStatus("Segmenter", "%s", cfg.Segmenter.URL)
	}

	printStatus("Domain", "%s", cfg.Upstream.Domain)
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}
