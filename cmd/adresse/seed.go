package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the commune catalog into the similarity store",
	Long: `Create the catalog collection and insert every commune.

An existing collection is left as is, whatever it contains.`,
	Args: cobra.NoArgs,
	RunE: runSeed,
}

func runSeed(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, cleanup, err := build(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	seeded, err := a.Seed(cmd.Context())
	if err != nil {
		return err
	}
	if seeded {
		fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d communes into %s\n", len(a.Catalog.Communes), cfg.Store.Collection)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Collection %s already exists, nothing inserted\n", cfg.Store.Collection)
	}
	return nil
}
