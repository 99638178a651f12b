// Package cmd defines the CLI commands for the image-harvester executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "image-harvester",
		Short:         "Downloads every image referenced by a web page.",
		Long: `image-harvester fetches a single web page, discovers the images it
references (tags, responsive variants, CSS backgrounds, inline data URIs),
and downloads each distinct image to local storage. Identical payloads are
detected by content hash and saved only once per run.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default searches . and $HOME/.image-harvester)")

	cmd.AddCommand(newHarvestCmd())

	return cmd
}

// Execute is the main entry point. Setup failures and run errors exit
// non-zero; a user interrupt does not.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
