package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	mongodb "github.com/99minutos/messaging-system/internal/infrastructure/db/mongo"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create MongoDB indexes",
		Long:  `Create the unique and lookup indexes on the user, room and message collections. Safe to rerun.`,
		RunE:  runMigrate,
	}
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, log, err := setup(ctx)
	if err != nil {
		return err
	}

	cmd.Println("Connecting to database...")
	client, db, err := mongodb.Connect(ctx, mongodb.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
	if err != nil {
		return err
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.Disconnect(disconnectCtx)
	}()

	cmd.Println("Ensuring indexes...")
	if err := mongodb.EnsureIndexes(ctx, db); err != nil {
		log.Error().Err(err).Msg("ensure indexes failed")
		return err
	}

	cmd.Println("Indexes are up to date")
	return nil
}
