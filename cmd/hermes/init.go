package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"hermes/internal/config"
	"hermes/internal/persistence"
)

func newInitCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the work directory tree and a default config.yaml",
		RunE: func(cmd *cobra.Command, args []string) error {
			workDir := a.workDir
			if workDir == "" {
				workDir = config.DefaultWorkDir()
			}

			paths := persistence.NewPaths(workDir)
			if err := paths.EnsureTree(); err != nil {
				return err
			}
			configPath, err := config.SaveDefault(workDir)
			if err != nil {
				return err
			}

			fmt.Printf("%s initialized %s\n", green("✓"), bold(workDir))
			fmt.Printf("  config: %s\n", configPath)
			return nil
		},
	}
}
