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
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/ucportal/internal/api"
	"github.com/kalambet/ucportal/internal/config"
	"github.com/kalambet/ucportal/internal/flows"
	"github.com/kalambet/ucportal/internal/ingest"
	"github.com/kalambet/ucportal/internal/storage"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the portal server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		accessLog, _ := cmd.Flags().GetBool("access-log")
		origins, _ := cmd.Flags().GetStringSlice("cors-origin")
		return runServer(serverOptions{accessLog: accessLog, corsOrigins: origins})
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running portal server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show server and vendor status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the MCP tools over stdio",
	Long: `Serve the portal's MCP tools (phone lookup, device status, user search,
call flows and results) over stdio, for use from an MCP-capable assistant.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMCP()
	},
}

func init() {
	startCmd.Flags().Bool("access-log", false, "write an access log line per request to stderr")
	startCmd.Flags().StringSlice("cors-origin", nil, "allow cross-origin requests from this origin (repeatable)")
}

type serverOptions struct {
	accessLog   bool
	corsOrigins []string
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "ucportal.pid")
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

func setupLogging(level string) {
	logLevel := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))
}

func runServer(opts serverOptions) error {
	fmt.Fprintf(os.Stderr, "ucportal version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg.Log.Level)

	apiToken, err := config.GetAPIToken(config.NewKeychain())
	if err != nil {
		return fmt.Errorf("initializing API token: %w", err)
	}
	slog.Info("API bearer token available")

	// Refuse to start twice on the same port.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("ucportal is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("ucportal is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	vendors := newVendors(cfg, newVendorHTTPClient(cfg))
	slog.Info("vendors configured", "vendors", configuredNames(vendors))

	deps := api.Deps{
		Store:        store,
		Vendors:      vendors,
		Voicemail:    newVoicemail(cfg, vendors),
		Token:        apiToken,
		UploadDir:    filepath.Join(cfg.Storage.DataDir, "uploads"),
		CheckTimeout: 5 * time.Second,
		CORSOrigins:  opts.corsOrigins,
	}
	if opts.accessLog {
		deps.AccessLog = os.Stderr
	}

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.NewHandler(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	var spaces ingest.SpaceLister
	if vendors.CMS != nil {
		spaces = vendors.CMS
	}
	worker := ingest.NewWorker(store, spaces, 500*time.Millisecond)
	g.Go(func() error {
		worker.Run(gctx)
		return nil
	})

	if cfg.Flows.Dir != "" {
		sum, err := flows.ImportDir(store, cfg.Flows.Dir)
		if err != nil {
			slog.Warn("initial call flow import", "dir", cfg.Flows.Dir, "error", err)
		} else {
			slog.Info("call flows imported", "dir", cfg.Flows.Dir, "created", len(sum.Created), "updated", len(sum.Updated))
		}
		watcher, err := flows.NewWatcher(store, cfg.Flows.Dir)
		if err != nil {
			return fmt.Errorf("watching %s: %w", cfg.Flows.Dir, err)
		}
		g.Go(func() error { return watcher.Run(gctx) })
	}

	g.Go(func() error {
		fmt.Fprintf(os.Stderr, "ucportal listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		fmt.Fprintln(os.Stderr, "shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func runMCP() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	// stdout carries the protocol; logs go to stderr only.
	setupLogging(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer store.Close()

	deps := mcpDeps(newVendors(cfg, newVendorHTTPClient(cfg)))
	deps.Store = store

	stdio := server.NewStdioServer(api.NewMCPServer(deps))
	slog.Info("MCP server started (stdio transport)")
	if err := stdio.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("MCP stdio server: %w", err)
	}
	return nil
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
		printError("ucportal is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop ucportal (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to ucportal (PID %d)", pid)
	return nil
}

type vendorStatus struct {
	Vendor     string `json:"vendor"`
	Reachable  bool   `json:"reachable"`
	Detail     string `json:"detail"`
	Error      string `json:"error"`
	DurationMS int64  `json:"durationMs"`
}

func showStatus(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port))
	running := err == nil && resp.StatusCode == http.StatusOK
	switch {
	case err != nil:
		printStatus("Server", "stopped")
	case running:
		resp.Body.Close()
		printStatus("Server", "running on port %d", cfg.Server.Port)
	default:
		resp.Body.Close()
		printStatus("Server", "error (HTTP %d)", resp.StatusCode)
	}
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	if cfg.Flows.Dir != "" {
		printStatus("Flows dir", "%s", cfg.Flows.Dir)
	}

	if !running {
		return nil
	}
	c, err := newAPIClient()
	if err != nil {
		return err
	}
	statusResp, err := c.get(ctx, "/api/status")
	if err != nil {
		return err
	}
	var checks []vendorStatus
	if err := decodeResult(statusResp, &checks); err != nil {
		return err
	}
	if len(checks) == 0 {
		printStatus("Vendors", "none configured")
	}
	for _, p := range checks {
		printStatus(p.Vendor, "%s", vendorLabel(p))
	}
	return nil
}

func vendorLabel(p vendorStatus) string {
	if !p.Reachable {
		return colorize(colorRed, "unreachable") + " (" + p.Error + ")"
	}
	label := colorize(colorGreen, "ok")
	if p.Detail != "" {
		label += " " + p.Detail
	}
	return fmt.Sprintf("%s [%dms]", label, p.DurationMS)
}
