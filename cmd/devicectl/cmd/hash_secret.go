package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"go.pilab.hu/deviceauth/internal/auth"
)

func newHashSecretCmd() *cobra.Command {
	var cost int

	cmd := &cobra.Command{
		Use:   "hash-secret [secret]",
		Short: "Print a bcrypt hash for clients[].secret_hash",
		Long:  "Hashes a client secret given as argument or, when omitted, read from the first line of stdin.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var secret string

			if len(args) == 1 {
				secret = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("failed to read secret from stdin: %w", err)
				}

				secret = strings.TrimRight(line, "\r\n")
			}

			if secret == "" {
				return errors.New("secret must not be empty")
			}

			hash, err := auth.NewBcryptSecretHasher(cost).Hash(secret)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), hash)

			return err
		},
	}

	cmd.Flags().IntVar(&cost, "cost", 0, "bcrypt cost (0 uses the library default)")

	return cmd
}
