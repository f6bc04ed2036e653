package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/devilmonastery/storefront/internal/pkg/logger"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const cliContextKey contextKey = "cliContext"

// CliContext holds shared CLI context
type CliContext struct {
	Config      *Config
	ContextName string
	Session     *Session
	Logger      *slog.Logger
}

// Global flags
var (
	contextOverride string
	logLevel        string
	logFile         string
	logToStderr     bool
	alsoLogStderr   bool
	logFormat       string
)

// NewRootCommand creates the root cobra command
func NewRootCommand() *cobra.Command {
	var ctx CliContext

	rootCmd := &cobra.Command{
		Use:           "storefront",
		Short:         "CLI for the storefront API",
		Long:          `A command line client for the storefront REST API with automatic session renewal.`,
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors (main.go handles it)
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Setup logging first
			if err := setupLogging(); err != nil {
				return fmt.Errorf("failed to setup logging: %w", err)
			}

			ctx.Logger = logger.WithCommand(slog.Default().With("component", "cli"), cmd.CommandPath())
			ctx.Logger.Debug("CLI started")

			// config commands manage the file themselves
			if !needsSession(cmd) {
				return nil
			}

			config, err := LoadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			ctx.Config = config

			ctx.ContextName = config.CurrentContext
			if contextOverride != "" {
				ctx.ContextName = contextOverride
			}
			apiContext, err := config.GetContext(ctx.ContextName)
			if err != nil {
				return err
			}

			ctx.Logger = logger.WithContext(ctx.Logger, ctx.ContextName)
			session, err := NewSession(ctx.ContextName, apiContext, ctx.Logger)
			if err != nil {
				return err
			}
			ctx.Session = session

			parent := cmd.Context()
			if parent == nil {
				parent = context.Background()
			}
			cmd.SetContext(context.WithValue(parent, cliContextKey, &ctx))
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			// Clean up connection
			if ctx.Session != nil {
				return ctx.Session.Close()
			}
			return nil
		},
	}

	// Add subcommands
	rootCmd.AddCommand(newAuthCommand())
	rootCmd.AddCommand(newAPICommand())
	rootCmd.AddCommand(newConfigCommand())

	rootCmd.PersistentFlags().StringVar(&contextOverride, "context", "",
		"Context to use instead of the current one")

	// Add logging flags
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn",
		"Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", logger.GetDefaultLogFile("cli"),
		"Log file path")
	rootCmd.PersistentFlags().BoolVar(&logToStderr, "logtostderr", false,
		"Log to stderr instead of the log file")
	rootCmd.PersistentFlags().BoolVar(&alsoLogStderr, "alsologtostderr", false,
		"Log to both file and stderr")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text",
		"Log format (text, json)")

	return rootCmd
}

// needsSession reports whether cmd talks to the API
func needsSession(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Name() == "config" {
			return false
		}
	}
	return true
}

// setupLogging configures the global logger based on CLI flags
func setupLogging() error {
	// Command output owns stdout and stderr, so logs go to a file by default
	path := logFile
	if path == "" || (logToStderr && !alsoLogStderr) {
		path = ""
		logToStderr = true
	}

	cfg := logger.Config{
		Level:         logger.ParseLevel(logLevel),
		LogFile:       path,
		LogToStderr:   logToStderr,
		AlsoLogStderr: alsoLogStderr,
		Format:        logFormat,
	}

	globalLogger, err := logger.SetupLogger(cfg)
	if err != nil {
		return err
	}

	// Set as default logger
	slog.SetDefault(globalLogger)
	return nil
}

// getCliContext extracts the CLI context from the command context
func getCliContext(cmd *cobra.Command) *CliContext {
	return cmd.Context().Value(cliContextKey).(*CliContext)
}
