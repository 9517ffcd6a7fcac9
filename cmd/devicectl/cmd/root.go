package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"go.pilab.hu/deviceauth/log"
)

const appName = "devicectl"

var (
	appLogger log.Logger
	verbose   bool
)

// NewRootCmd builds the command tree. Tests build a fresh tree per case.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           appName,
		Short:         "devicectl talks to a device authorization server",
		Long:          `A command-line tool for requesting device codes and preparing client credentials for the device authorization server.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			level := zerolog.WarnLevel
			if verbose {
				level = zerolog.DebugLevel
			}

			appLogger = log.NewZerologAdapterTo(cmd.ErrOrStderr(), level, true)
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(newAuthorizeCmd(), newHashSecretCmd())

	return rootCmd
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	rootCmd := NewRootCmd()
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		if appLogger != nil {
			appLogger.Error(context.Background(), "CLI execution failed", err)
		}

		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
