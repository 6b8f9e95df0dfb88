package main

import (
	"context"
	"fmt"

	"github.com/campusconnect/backend/internal/database"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	db, err := database.InitDB(log)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.Migrate(context.Background(), db); err != nil {
		return fmt.Errorf("migrating schema: %w", err)
	}

	log.Info("Schema is up to date")
	return nil
}
