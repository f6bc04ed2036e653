package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func newAPICommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "api",
		Short: "Call storefront API endpoints",
		Long: `Send an authenticated request to a path under the context's base URL and
print the JSON response. Expired tokens are renewed transparently.`,
	}

	cmd.AddCommand(newAPIMethodCommand(http.MethodGet, false))
	cmd.AddCommand(newAPIMethodCommand(http.MethodPost, true))
	cmd.AddCommand(newAPIMethodCommand(http.MethodPut, true))
	cmd.AddCommand(newAPIMethodCommand(http.MethodDelete, false))

	return cmd
}

func newAPIMethodCommand(method string, withBody bool) *cobra.Command {
	var (
		data string
		raw  bool
	)

	name := strings.ToLower(method)
	cmd := &cobra.Command{
		Use:   name + " PATH",
		Short: fmt.Sprintf("Send a %s request", method),
		Args:  cobra.ExactArgs(1),
		Example: fmt.Sprintf(`  storefront api %s /Users/me`, name),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := getCliContext(cmd)

			var body interface{}
			if data != "" {
				payload, err := readPayload(data, cmd.InOrStdin())
				if err != nil {
					return err
				}
				body = json.RawMessage(payload)
			}

			var out json.RawMessage
			if err := cc.Session.Client.DoJSON(cmd.Context(), method, args[0], body, &out); err != nil {
				return err
			}

			return printJSON(cmd.OutOrStdout(), out, raw)
		},
	}

	if withBody {
		cmd.Flags().StringVarP(&data, "data", "d", "", "JSON request body, @FILE to read a file or - for stdin")
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "Print the response body unformatted")

	return cmd
}

// readPayload resolves --data into JSON bytes
func readPayload(data string, stdin io.Reader) ([]byte, error) {
	var payload []byte
	switch {
	case data == "-":
		b, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read request body: %w", err)
		}
		payload = b
	case strings.HasPrefix(data, "@"):
		b, err := os.ReadFile(data[1:])
		if err != nil {
			return nil, fmt.Errorf("failed to read request body: %w", err)
		}
		payload = b
	default:
		payload = []byte(data)
	}

	payload = bytes.TrimSpace(payload)
	if !json.Valid(payload) {
		return nil, fmt.Errorf("request body is not valid JSON")
	}
	return payload, nil
}

func printJSON(w io.Writer, body []byte, raw bool) error {
	if len(body) == 0 {
		return nil
	}
	if !raw {
		var buf bytes.Buffer
		if err := json.Indent(&buf, body, "", "  "); err == nil {
			body = buf.Bytes()
		}
	}
	_, err := fmt.Fprintln(w, string(body))
	return err
}
