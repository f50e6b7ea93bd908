package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hyperengineering/voyager/internal/config"
	"github.com/hyperengineering/voyager/internal/store"
)

var migrateDBPath string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and exit",
	Args:  cobra.NoArgs,
	RunE:  runMigrate,
}

func init() {
	migrateCmd.Flags().StringVar(&migrateDBPath, "db", "",
		"Database path (overrides config and VOYAGER_DB_PATH)")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	path := migrateDBPath
	if path == "" {
		dbCfg, err := config.LoadDatabaseConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		path = dbCfg.Path
	}

	db, err := store.Open(path)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := store.RunMigrations(db); err != nil {
		return err
	}
	version, err := store.MigrationVersion(db)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s: schema at version %d\n", path, version)
	return nil
}
