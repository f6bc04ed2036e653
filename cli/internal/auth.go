package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/devilmonastery/storefront/internal/client"
	"github.com/devilmonastery/storefront/internal/credentials"
)

// formatDuration formats a duration in a human-friendly way (e.g., "2 days, 3 hours and 45 minutes")
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = -d
	}

	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	var parts []string
	if days > 0 {
		parts = append(parts, plural(days, "day"))
	}
	if hours > 0 {
		parts = append(parts, plural(hours, "hour"))
	}
	if minutes > 0 {
		parts = append(parts, plural(minutes, "minute"))
	}
	if len(parts) == 0 && seconds > 0 {
		parts = append(parts, plural(seconds, "second"))
	}
	if len(parts) == 0 {
		return "0 seconds"
	}

	if len(parts) == 1 {
		return parts[0]
	}
	return strings.Join(parts[:len(parts)-1], ", ") + " and " + parts[len(parts)-1]
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

func newAuthCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authentication commands",
		Long:  `Manage the storefront session for the current context`,
	}

	cmd.AddCommand(newAuthLoginCommand())
	cmd.AddCommand(newAuthLogoutCommand())
	cmd.AddCommand(newAuthStatusCommand())
	cmd.AddCommand(newAuthTokenCommand())
	cmd.AddCommand(newAuthRefreshCommand())

	return cmd
}

func newAuthLoginCommand() *cobra.Command {
	var (
		email    string
		password string
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Login to the storefront API",
		Long: `Authenticate with email and password.

The access token is kept in the context's credentials backend and the refresh
session cookie next to it, so later commands renew the token automatically.

Examples:
  # Prompt for email and password
  storefront auth login

  # Login to another context
  storefront --context staging auth login --email user@example.com`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := getCliContext(cmd)
			log := cc.Logger.With("command", "login")

			var err error
			if email == "" || password == "" {
				email, password, err = promptCredentials(cmd.InOrStdin(), cmd.ErrOrStderr(), email)
				if err != nil {
					return err
				}
			}

			log.Info("Starting login", slog.String("email", email))
			token, err := cc.Session.Client.Login(cmd.Context(), email, password)
			if err != nil {
				if errors.Is(err, client.ErrAccountBlocked) {
					return fmt.Errorf("login refused: %w", err)
				}
				return fmt.Errorf("login failed: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "✓ Logged in as %s\n", email)
			if info, err := credentials.InspectToken(token); err == nil && !info.ExpiresAt.IsZero() {
				fmt.Fprintf(out, "  Token valid for %s\n", formatDuration(time.Until(info.ExpiresAt)))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&email, "email", "e", "", "Account email (if not provided, will prompt)")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password (if not provided, will prompt)")

	return cmd
}

func newAuthLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Logout from the storefront API",
		Long:  `End the server session and remove the stored token and cookies`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := getCliContext(cmd)

			cc.Session.userLogout = true
			if err := cc.Session.Client.Logout(cmd.Context()); err != nil {
				return err
			}
			// the handler only runs once per session; make sure cookies go too
			if err := cc.Session.Jar.Clear(); err != nil {
				return fmt.Errorf("failed to remove cookies: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "✓ Successfully logged out")
			return nil
		},
	}
}

func newAuthStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show authentication status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := getCliContext(cmd)
			out := cmd.OutOrStdout()

			token, err := cc.Session.Store.GetToken()
			if err != nil {
				if errors.Is(err, client.ErrNoToken) {
					fmt.Fprintln(out, "Not logged in")
					return nil
				}
				return fmt.Errorf("failed to read credentials: %w", err)
			}

			fmt.Fprintf(out, "Context: %s (%s credentials)\n", cc.ContextName, cc.Config.Contexts[cc.ContextName].Backend())

			info, err := credentials.InspectToken(token)
			if err != nil {
				fmt.Fprintln(out, "Logged in with an opaque token")
				return nil
			}

			fmt.Fprintf(out, "Logged in as: %s\n", info.Email)
			if info.Subject != "" {
				fmt.Fprintf(out, "User ID: %s\n", info.Subject)
			}
			if info.Role != "" {
				fmt.Fprintf(out, "Role: %s\n", info.Role)
			}
			if info.ExpiresAt.IsZero() {
				return nil
			}

			// Show expiry in local timezone
			fmt.Fprintf(out, "Token expires: %s\n", info.ExpiresAt.Local().Format("2006-01-02 15:04:05 MST"))

			now := time.Now()
			if info.Expired() {
				fmt.Fprintf(out, "⚠  Token expired %s ago - automatic refresh will be attempted on next request\n",
					formatDuration(now.Sub(info.ExpiresAt)))
			} else {
				fmt.Fprintf(out, "✓  Valid for %s\n", formatDuration(info.ExpiresAt.Sub(now)))
			}

			return nil
		},
	}
}

func newAuthTokenCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Display the current access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := getCliContext(cmd).Session.Store.GetToken()
			if err != nil {
				return fmt.Errorf("not logged in: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
}

func newAuthRefreshCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Exchange the session cookie for a new access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := getCliContext(cmd)

			token, err := cc.Session.Client.Refresh(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "✓ Token refreshed")
			if expiry, err := credentials.TokenExpiry(token); err == nil {
				fmt.Fprintf(out, "  Valid for %s\n", formatDuration(time.Until(expiry)))
			}
			return nil
		},
	}
}

// promptCredentials asks for whatever was not given on the command line.
// The password is read without echo when stdin is a terminal.
func promptCredentials(in io.Reader, prompt io.Writer, email string) (string, string, error) {
	reader := bufio.NewReader(in)

	if email == "" {
		fmt.Fprint(prompt, "Email: ")
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return "", "", fmt.Errorf("failed to read email: %w", err)
		}
		email = strings.TrimSpace(line)
	}

	fmt.Fprint(prompt, "Password: ")
	if f, ok := in.(*os.File); ok && f.Fd() == uintptr(syscall.Stdin) && term.IsTerminal(int(syscall.Stdin)) {
		passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(prompt) // newline after password input
		if err != nil {
			return "", "", fmt.Errorf("failed to read password: %w", err)
		}
		return email, string(passwordBytes), nil
	}

	line, err := reader.ReadString('\n')
	fmt.Fprintln(prompt)
	if err != nil && line == "" {
		return "", "", fmt.Errorf("failed to read password: %w", err)
	}
	return email, strings.TrimRight(line, "\r\n"), nil
}
