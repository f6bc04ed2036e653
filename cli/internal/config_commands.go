package cli

import (
	"fmt"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage CLI configuration and contexts",
		Long:  `Manage CLI configuration including API contexts, similar to kubectl contexts.`,
	}

	// Add subcommands
	cmd.AddCommand(newCurrentContextCommand())
	cmd.AddCommand(newUseContextCommand())
	cmd.AddCommand(newListContextsCommand())
	cmd.AddCommand(newAddContextCommand())
	cmd.AddCommand(newDeleteContextCommand())
	cmd.AddCommand(newConfigViewCommand())

	return cmd
}

// current-context command
func newCurrentContextCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "current-context",
		Short: "Display the current context",
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := LoadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), config.CurrentContext)
			return nil
		},
	}
}

// use-context command
func newUseContextCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "use-context CONTEXT_NAME",
		Short: "Switch to a different context",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			contextName := args[0]

			config, err := LoadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			if err := config.SetCurrentContext(contextName); err != nil {
				return err
			}

			if err := SaveConfig(config); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Switched to context %q\n", contextName)
			return nil
		},
	}
}

// list-contexts command
func newListContextsCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "list-contexts",
		Aliases: []string{"get-contexts"},
		Short:   "List all available contexts",
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := LoadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			if len(config.Contexts) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No contexts configured")
				return nil
			}

			// Sort context names for consistent output
			names := make([]string, 0, len(config.Contexts))
			for name := range config.Contexts {
				names = append(names, name)
			}
			sort.Strings(names)

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "CURRENT\tNAME\tBASE URL\tCREDENTIALS")

			for _, name := range names {
				ctx := config.Contexts[name]
				current := " "
				if name == config.CurrentContext {
					current = "*"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					current,
					name,
					ctx.API.BaseURL,
					ctx.Backend(),
				)
			}
			return w.Flush()
		},
	}
}

// add-context command
func newAddContextCommand() *cobra.Command {
	var (
		baseURL     string
		refreshPath string
		timeout     time.Duration
		backend     string
		redisAddr   string
		redisKey    string
	)

	cmd := &cobra.Command{
		Use:   "add-context CONTEXT_NAME",
		Short: "Add or update a context",
		Args:  cobra.ExactArgs(1),
		Example: `  # Local stub server, token in a file
  storefront config add-context dev --base-url http://localhost:8080/api

  # Share one session across machines through redis
  storefront config add-context shared --base-url https://shop.example.com/api \
    --credentials-backend redis --redis-addr localhost:6379`,
		RunE: func(cmd *cobra.Command, args []string) error {
			contextName := args[0]

			config, err := LoadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			ctx := NewContext(baseURL)
			ctx.API.RefreshPath = refreshPath
			ctx.API.Timeout = timeout
			ctx.Credentials.Backend = backend
			ctx.Credentials.RedisAddr = redisAddr
			ctx.Credentials.RedisKey = redisKey
			if err := ctx.Validate(); err != nil {
				return err
			}

			config.AddContext(contextName, ctx)

			// If this is the first context, make it current
			if len(config.Contexts) == 1 {
				config.CurrentContext = contextName
			}

			if err := SaveConfig(config); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Context %q added/updated\n", contextName)
			return nil
		},
	}

	cmd.Flags().StringVar(&baseURL, "base-url", "", "API base URL, e.g. https://shop.example.com/api")
	cmd.Flags().StringVar(&refreshPath, "refresh-path", "/Auth/Refresh-Token", "Refresh endpoint path relative to the base URL")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "Request timeout")
	cmd.Flags().StringVar(&backend, "credentials-backend", BackendFile, "Where to keep the access token (file, keyring, redis)")
	cmd.Flags().StringVar(&redisAddr, "redis-addr", "", "Redis address for the redis backend")
	cmd.Flags().StringVar(&redisKey, "redis-key", "", "Redis key for the redis backend (default storefront:access-token)")
	cmd.MarkFlagRequired("base-url")

	return cmd
}

// delete-context command
func newDeleteContextCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete-context CONTEXT_NAME",
		Short: "Delete a context",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			contextName := args[0]

			config, err := LoadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			if err := config.DeleteContext(contextName); err != nil {
				return err
			}

			if err := SaveConfig(config); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Context %q deleted\n", contextName)
			return nil
		},
	}
}

// view command shows the current context
func newConfigViewCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "view",
		Aliases: []string{"show"},
		Short:   "Show current context configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := LoadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			ctx, err := config.GetCurrentContext()
			if err != nil {
				return fmt.Errorf("failed to get current context: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Current context: %s\n", config.CurrentContext)
			fmt.Fprintf(out, "  Base URL: %s\n", ctx.API.BaseURL)
			fmt.Fprintf(out, "  Refresh Path: %s\n", ctx.RefreshPath())
			fmt.Fprintf(out, "  Timeout: %s\n", ctx.Timeout())
			fmt.Fprintf(out, "  Credentials: %s\n", ctx.Backend())
			if ctx.Backend() == BackendRedis {
				fmt.Fprintf(out, "  Redis: %s\n", ctx.Credentials.RedisAddr)
			}

			configPath, _ := GetConfigPath()
			fmt.Fprintf(out, "  Config File: %s\n", configPath)

			return nil
		},
	}
}
