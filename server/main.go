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

	"github.com/spf13/cobra"

	"github.com/devilmonastery/storefront/internal/authstub"
	"github.com/devilmonastery/storefront/internal/config"
	"github.com/devilmonastery/storefront/internal/pkg/idgen"
	"github.com/devilmonastery/storefront/internal/pkg/logger"
)

func main() {
	rootCmd := newRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		configPath    string
		listenAddr    string
		logLevel      string
		logFile       string
		logToStderr   bool
		alsoLogStderr bool
		logFormat     string
	)

	cmd := &cobra.Command{
		Use:   "storefront-stub",
		Short: "Storefront development identity server",
		Long: `A local identity server implementing the storefront auth endpoints:
password login, cookie based token refresh, logout and account blocking.

Use it to exercise the storefront CLI and client against short-lived tokens
without a production backend.`,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return setupServerLogging(logLevel, logFile, logToStderr, alsoLogStderr, logFormat)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), configPath, listenAddr)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Path to config file (optional)")
	cmd.Flags().StringVar(&listenAddr, "listen", "", "Listen address, overrides server.host and server.port")

	// Add logging flags
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&logFile, "log-file", "", "Log file path (if specified, logs to file instead of stderr)")
	cmd.Flags().BoolVar(&logToStderr, "logtostderr", false, "Log to stderr (default behavior unless --log-file specified)")
	cmd.Flags().BoolVar(&alsoLogStderr, "alsologtostderr", false, "Log to both file and stderr")
	cmd.Flags().StringVar(&logFormat, "log-format", "json", "Log format (text, json)")

	// Add subcommands
	cmd.AddCommand(newHashPasswordCommand())

	return cmd
}

// setupServerLogging configures the global logger for the server
func setupServerLogging(logLevel, logFile string, logToStderr, alsoLogStderr bool, logFormat string) error {
	// Default to stderr logging unless file is specified
	if logFile == "" {
		logToStderr = true
	}

	cfg := logger.Config{
		Level:         logger.ParseLevel(logLevel),
		LogFile:       logFile,
		LogToStderr:   logToStderr,
		AlsoLogStderr: alsoLogStderr,
		Format:        logFormat,
	}

	globalLogger, err := logger.SetupLogger(cfg)
	if err != nil {
		return err
	}

	slog.SetDefault(globalLogger)
	return nil
}

func runServer(ctx context.Context, configPath, listenAddr string) error {
	log := slog.Default().With("component", "server")
	log.Info("Starting stub server initialization")

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := idgen.Initialize(cfg.NodeID); err != nil {
		return fmt.Errorf("failed to initialize ID generator: %w", err)
	}

	log.Info("Loaded users", "count", len(cfg.Users))
	for _, u := range cfg.Users {
		log.Info("User configured",
			"email", u.Email,
			"role", u.Role,
			"blocked", u.Blocked)
	}

	stub := authstub.New(cfg, authstub.WithLogger(slog.Default()))

	address := cfg.Server.Address()
	if listenAddr != "" {
		address = listenAddr
	}
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", address, err)
	}

	srv := &http.Server{
		Handler:           stub.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Serve(listener)
	}()

	log.Info("Stub server listening",
		"address", listener.Addr().String(),
		"api", "http://"+listener.Addr().String()+cfg.Server.PathPrefix,
		"token_lifetime", cfg.Auth.JWT.Lifetime,
		"session_lifetime", cfg.Auth.Session.Lifetime)

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-serverErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		log.Info("Shutting down stub server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}

	log.Info("Stub server stopped")
	return nil
}
