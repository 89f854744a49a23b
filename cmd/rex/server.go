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
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/buonappetort/rex/internal/api"
	"github.com/buonappetort/rex/internal/config"
	"github.com/buonappetort/rex/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API (and optionally the MCP stdio server) in the foreground",
	RunE: func(cmd *cobra.Command, args []string) error {
		withMCP, _ := cmd.Flags().GetBool("mcp")
		return runServer(withMCP)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show server and configuration status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().Bool("mcp", false, "also serve MCP tools over stdin/stdout")
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "rex.pid")
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

func runServer(withMCP bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	slog.SetDefault(a.logger)

	pidPath := pidFilePath(a.cfg.Storage.DataDir)
	if err := writePIDFile(pidPath); err != nil {
		slog.Warn("could not write PID file", "error", err)
	}
	defer removePIDFile(pidPath)

	addr := net.JoinHostPort(a.cfg.Server.Host, strconv.Itoa(a.cfg.Server.Port))
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.NewHandler(api.Deps{Service: a.svc, Logger: a.logger}),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	if withMCP {
		stdioSrv := server.NewStdioServer(api.NewMCPServer(a.svc, version))
		go func() {
			if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("MCP stdio server error", "error", err)
			}
		}()
		slog.Info("MCP server started (stdio transport)")
	}

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "rex listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func showStatus(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	client := newAPIClient(cfg.Server.Host, cfg.Server.Port)
	if status, err := client.health(ctx); err != nil {
		printStatus("Server", "stopped")
	} else {
		printStatus("Server", "%s on %s:%d", status, cfg.Server.Host, cfg.Server.Port)
	}
	if pid, err := readPIDFile(pidFilePath(cfg.Storage.DataDir)); err == nil {
		printStatus("PID", "%d", pid)
	}

	printStatus("Storage", "%s in %s", cfg.Storage.Backend, cfg.Storage.DataDir)
	if schema, err := schemaStatus(cfg.Storage.DataDir); err != nil {
		printStatus("Schema", "unavailable (%v)", err)
	} else {
		printStatus("Schema", "%s", schema)
	}
	printStatus("Enrichment", "%s", strings.Join(cfg.Enrichment.DomainList(), ", "))
	if cfg.Enrichment.RedisAddr != "" {
		printStatus("Cache", "redis at %s", cfg.Enrichment.RedisAddr)
	}
	switch {
	case cfg.Keywords.Provider == "openai" && cfg.Keywords.APIKey == "":
		printStatus("Keywords", "split (no OpenAI API key)")
	case cfg.Keywords.Provider == "none":
		printStatus("Keywords", "split")
	default:
		printStatus("Keywords", "%s / %s", cfg.Keywords.Provider, cfg.Keywords.Model)
	}
	return nil
}

// schemaStatus reports the migrations applied to the database in dataDir
// without creating one.
func schemaStatus(dataDir string) (string, error) {
	if _, err := os.Stat(storage.DBPath(dataDir)); os.IsNotExist(err) {
		return "no database yet", nil
	}
	db, err := storage.Open(dataDir)
	if err != nil {
		return "", err
	}
	defer db.Close()

	versions, err := db.AppliedMigrations()
	if err != nil {
		return "", err
	}
	parts := make([]string, len(versions))
	for i, v := range versions {
		parts[i] = strconv.Itoa(v)
	}
	return "migrations " + strings.Join(parts, ", "), nil
}
