package main

import (
	"fmt"
	"path/filepath"

	"github.com/racerl/racecore/internal/config"
	"github.com/racerl/racecore/internal/database"
	"github.com/spf13/cobra"
)

func newRecordingsCommand() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "recordings",
		Short: "List SQLite recording dumps",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if dir == "" {
				if err := config.Load(configDir); err != nil {
					config.SetDefaults()
				}
				dir = filepath.Dir(config.GetStorageConfig().SQLite.DumpPath)
			}
			paths, err := database.BackupDBPaths(dir)
			if err != nil {
				return fmt.Errorf("list %s: %w", dir, err)
			}
			for _, p := range paths {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "directory to scan (defaults to the sqlite dump directory)")
	return cmd
}
