// Package cmd wires the harvester's command line interface.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "harvester",
		Short: "Incremental auction-listing harvester.",
		Long: `harvester keeps per-site CSV datasets of finished auction listings
up to date. Each run discovers new listing URLs from a site's sitemap,
scrapes only the ones not yet in the dataset, and merges the results
back with a backup of the previous state.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./harvester.yaml)")
	cmd.AddCommand(newHarvestCmd())
	cmd.AddCommand(newSourcesCmd())
	return cmd
}

// Execute runs the CLI.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
