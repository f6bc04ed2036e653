package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/devilmonastery/storefront/internal/authstub"
)

func newHashPasswordCommand() *cobra.Command {
	var (
		password string
		stdin    bool
	)

	cmd := &cobra.Command{
		Use:   "hash-password",
		Short: "Hash a password for the users section of the config",
		Long:  "Print a bcrypt hash suitable for users[].password_hash in the stub server config",
		Example: `  # Prompt for the password
  storefront-stub hash-password

  # Read the password from a pipe
  echo -n secret123 | storefront-stub hash-password --stdin`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				var err error
				password, err = readPassword(stdin)
				if err != nil {
					return err
				}
			}

			hash, err := authstub.HashPassword(password)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}

	cmd.Flags().StringVar(&password, "password", "", "Password to hash (prompted for if omitted)")
	cmd.Flags().BoolVar(&stdin, "stdin", false, "Read the password from standard input")

	return cmd
}

func readPassword(stdin bool) (string, error) {
	if stdin || !term.IsTerminal(int(syscall.Stdin)) {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	fmt.Fprint(os.Stderr, "Password: ")
	first, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	fmt.Fprint(os.Stderr, "Confirm password: ")
	second, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	if string(first) != string(second) {
		return "", fmt.Errorf("passwords do not match")
	}
	return string(first), nil
}
