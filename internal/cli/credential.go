package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kerbelp/z-mail-agent/internal/credential"
)

var credentialCmd = &cobra.Command{
	Use:   "credential",
	Short: "Manage secrets in the system keyring",
	Long: `Credential stores the secrets the agent resolves at run time when the
corresponding environment variable is unset. Keys the run path looks up:

  llm-api-key       classification service API key
                    (fallback for OPENAI_API_KEY / ANTHROPIC_API_KEY)
  imap-<username>   IMAP account password for the configured username
                    (fallback for ZMAIL_IMAP_PASSWORD)`,
}

var credentialSetCmd = &cobra.Command{
	Use:   "set <key>",
	Short: "Store a secret under the given key",
	Long: `Set reads the secret value from stdin, keeping it out of shell
history and process listings, and stores it in the system keyring.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprint(cmd.ErrOrStderr(), "Value: ")

		value, err := readCredentialValue(cmd.InOrStdin())
		if err != nil {
			return err
		}

		if err := credential.Set(args[0], value); err != nil {
			return err
		}

		fmt.Printf("stored credential %q\n", args[0])
		return nil
	},
}

var credentialDeleteCmd = &cobra.Command{
	Use:   "delete <key>",
	Short: "Remove a secret from the keyring",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := credential.Delete(args[0]); err != nil {
			return err
		}

		fmt.Printf("deleted credential %q\n", args[0])
		return nil
	},
}

// readCredentialValue reads a single secret value, tolerating a missing
// trailing newline. Surrounding whitespace is stripped.
func readCredentialValue(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading credential value: %w", err)
	}

	value := strings.TrimSpace(line)
	if value == "" {
		return "", fmt.Errorf("credential value is empty")
	}

	return value, nil
}

func init() {
	credentialCmd.AddCommand(credentialSetCmd)
	credentialCmd.AddCommand(credentialDeleteCmd)
	rootCmd.AddCommand(credentialCmd)
}
