package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/apkbridge/apkbridge/internal/api"
	"github.com/apkbridge/apkbridge/internal/apktool"
	"github.com/apkbridge/apkbridge/internal/config"
	"github.com/apkbridge/apkbridge/internal/dispatch"
	"github.com/apkbridge/apkbridge/internal/doctor"
	"github.com/apkbridge/apkbridge/internal/history"
	"github.com/apkbridge/apkbridge/internal/lock"
	"github.com/apkbridge/apkbridge/internal/log"
	"github.com/apkbridge/apkbridge/internal/mcp"
	"github.com/apkbridge/apkbridge/internal/runner"
	"github.com/apkbridge/apkbridge/internal/tool"
	"github.com/apkbridge/apkbridge/internal/tui/watch"
	"github.com/apkbridge/apkbridge/internal/workspace"
)

var (
	version   = "0.1.0-dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	os.Exit(runCLI(os.Args[1:]))
}

func runCLI(cliArgs []string) int {
	if len(cliArgs) < 1 {
		printUsage()
		return 1
	}

	cmd := cliArgs[0]
	args := cliArgs[1:]

	switch cmd {
	case "serve":
		if hasHelpFlag(args) {
			printServeHelp()
			return 0
		}
		return runServe(args)
	case "check":
		if hasHelpFlag(args) {
			printCheckHelp()
			return 0
		}
		return runCheck(args)
	case "watch":
		if hasHelpFlag(args) {
			printWatchHelp()
			return 0
		}
		return runWatch(args)
	case "version", "--version":
		return runVersion(args)
	case "help", "--help", "-h":
		printUsage()
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		return 1
	}
}

func hasHelpFlag(args []string) bool {
	for _, arg := range args {
		if arg == "--help" || arg == "-h" {
			return true
		}
	}
	return false
}

// --- serve ---

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	httpOnly := fs.Bool("http", false, "Serve the HTTP API only, without the stdio transport")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	cfg, err := config.LoadOrDefaults(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}
	if *httpOnly {
		cfg.API.Enabled = true
	}

	// The stdio transport owns stdout, so all logging goes to stderr.
	log.Setup(cfg.Service.LogLevel)
	logger := log.WithComponent("main")
	logger.Info("apkbridge starting", "version", version, "workspace", cfg.Workspace.Dir)

	if err := os.MkdirAll(cfg.Workspace.Dir, 0o755); err != nil {
		logger.Error("failed to create workspace directory", "dir", cfg.Workspace.Dir, "error", err)
		return 1
	}

	pidLockPath := filepath.Join(cfg.Workspace.Dir, "apkbridge.pid")
	pidLock, err := lock.Acquire(pidLockPath)
	if err != nil {
		logger.Error("failed to acquire PID lock (another instance may be running)", "path", pidLockPath, "error", err)
		return 1
	}
	defer pidLock.Release()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db, err := history.OpenSQLite(ctx, cfg.History.Path)
	if err != nil {
		logger.Error("failed to open history database", "path", cfg.History.Path, "error", err)
		return 1
	}
	defer db.Close()
	store := history.NewStore(db)

	workspaces := workspace.NewRegistry(cfg.Workspace.Dir)
	run := runner.New(runner.Options{
		Grace:      cfg.Timeouts.Grace,
		MaxCapture: cfg.Capture.MaxBytes,
	})

	tools := tool.NewRegistry()
	svc := apktool.NewService(cfg, run, workspaces)
	if err := svc.Register(tools); err != nil {
		logger.Error("tool registration failed", "error", err)
		return 1
	}
	logger.Info("tools registered", "count", len(tools.All()))

	disp := dispatch.New(tools, workspaces, store, cfg.Timeouts.Metadata)

	if cfg.History.Retention > 0 {
		go pruneHistory(ctx, store, cfg.History.Retention, logger)
	}

	errCh := make(chan error, 2)

	if cfg.API.Enabled {
		apiServer := api.New(api.Config{
			Listen: cfg.API.Listen,
			APIKey: cfg.API.APIKey,
		}, disp, tools, workspaces, store, log.WithComponent("api"))
		go func() {
			if err := apiServer.Start(ctx); err != nil && err != context.Canceled {
				errCh <- fmt.Errorf("api: %w", err)
			}
		}()
		logger.Info("HTTP API enabled", "listen", cfg.API.Listen)
	}

	if *httpOnly {
		logger.Info("apkbridge running, HTTP only (press Ctrl+C to stop)")
		select {
		case <-ctx.Done():
		case err := <-errCh:
			logger.Error("component failed", "error", err)
			return 1
		}
		logger.Info("apkbridge stopped")
		return 0
	}

	mcpServer := mcp.New(cfg.Service.Name, version, disp, tools)
	go func() {
		errCh <- mcpServer.Run(ctx)
	}()
	logger.Info("stdio transport ready")

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && err != context.Canceled {
			logger.Error("component failed", "error", err)
			return 1
		}
	}

	logger.Info("apkbridge stopped")
	return 0
}

// pruneHistory trims expired invocation records once at startup and then
// every hour until the context ends.
func pruneHistory(ctx context.Context, store *history.Store, retention time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		removed, err := store.Prune(ctx, retention)
		if err != nil {
			logger.Warn("history prune failed", "error", err)
		} else if removed > 0 {
			logger.Debug("history pruned", "removed", removed)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// --- check ---

func runCheck(args []string) int {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	jsonOut := fs.Bool("json", false, "Output validation results as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	cfg, err := config.LoadOrDefaults(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	result := doctor.New(cfg).Validate()

	if *jsonOut {
		out, err := doctor.FormatJSON(result)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render JSON: %v\n", err)
			return 1
		}
		fmt.Println(out)
	} else {
		fmt.Print(doctor.FormatHuman(result))
	}

	if !result.Valid {
		return 1
	}
	return 0
}

// --- watch ---

func runWatch(args []string) int {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	apiURL := fs.String("api-url", "http://127.0.0.1:8722", "Bridge API URL")
	apiKey := fs.String("api-key", os.Getenv("APKBRIDGE_API_KEY"), "API bearer token")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	m := watch.New(*apiURL, *apiKey)
	p := tea.NewProgram(m)
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
		return 1
	}
	return 0
}

// --- version ---

type versionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

func runVersion(args []string) int {
	fs := flag.NewFlagSet("version", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "Output version metadata as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	info := currentVersionInfo()

	if *jsonOut {
		data, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render version JSON: %v\n", err)
			return 1
		}
		fmt.Println(string(data))
		return 0
	}

	fmt.Printf("apkbridge %s\n", info.Version)
	fmt.Printf("commit: %s\n", info.Commit)
	fmt.Printf("built_at: %s\n", info.BuildTime)
	return 0
}

func currentVersionInfo() versionInfo {
	info := versionInfo{
		Version:   strings.TrimSpace(version),
		Commit:    "unknown",
		BuildTime: "unknown",
	}
	if info.Version == "" {
		info.Version = "0.0.0-dev"
	}

	commit := strings.TrimSpace(gitCommit)
	if commit == "" || commit == "unknown" {
		commit = strings.TrimSpace(readBuildSetting("vcs.revision"))
	}
	if commit != "" {
		if len(commit) > 12 {
			commit = commit[:12]
		}
		info.Commit = commit
	}

	builtAt := strings.TrimSpace(buildDate)
	if builtAt == "" || builtAt == "unknown" {
		builtAt = strings.TrimSpace(readBuildSetting("vcs.time"))
	}
	if t, err := time.Parse(time.RFC3339Nano, builtAt); err == nil {
		info.BuildTime = t.UTC().Format(time.RFC3339)
	}

	return info
}

func readBuildSetting(key string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, setting := range info.Settings {
		if setting.Key == key {
			return setting.Value
		}
	}
	return ""
}

// --- help text ---

func printUsage() {
	fmt.Print(`apkbridge - APK decode/rebuild bridge over MCP and HTTP

Usage:
  apkbridge <command> [flags]

Commands:
  serve     Run the bridge (stdio transport, plus HTTP API when enabled)
  check     Validate configuration and environment
  watch     Real-time workspace monitoring TUI (needs the HTTP API)
  version   Show version information
  help      Show this help message

Use 'apkbridge <command> --help' for command-specific flags.
`)
}

func printServeHelp() {
	fmt.Println("Usage: apkbridge serve [--config PATH] [--http]")
	fmt.Println()
	fmt.Println("Run the bridge in the foreground. Tools are exposed over stdio by")
	fmt.Println("default; --http skips the stdio transport and serves the HTTP API only.")
}

func printCheckHelp() {
	fmt.Println("Usage: apkbridge check [--config PATH] [--json]")
	fmt.Println()
	fmt.Println("Validate configuration, apktool availability, and workspace access.")
	fmt.Println()
	fmt.Println("Exit codes:")
	fmt.Println("  0  All required checks passed")
	fmt.Println("  1  One or more checks failed")
}

func printWatchHelp() {
	fmt.Println("Usage: apkbridge watch [flags]")
	fmt.Println()
	fmt.Println("Live workspace and invocation history dashboard.")
	fmt.Println()
	fmt.Println("Flags:")
	fmt.Println("  --api-url URL    Bridge API URL (default: http://127.0.0.1:8722)")
	fmt.Println("  --api-key KEY    API bearer token (or APKBRIDGE_API_KEY env var)")
	fmt.Println()
	fmt.Println("Keybindings:")
	fmt.Println("  q, Ctrl+C        Quit")
	fmt.Println("  r                Refresh now")
}
