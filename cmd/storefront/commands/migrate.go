package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/bookstore/storefront/internal/repo"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// migrateCmd brings both stores up to date
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the users and books schemas",
	Long: `Create or update the users and books schemas and drop expired
session rows. Safe to run repeatedly.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigrate(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(ctx context.Context) error {
	cfg, log := loadConfig()
	defer log.Sync()

	users, books, err := openStores(cfg, log)
	if err != nil {
		return err
	}
	defer users.Close()
	defer books.Close()

	purged, err := repo.NewUserRepository(users, log).PurgeExpiredSessions(ctx, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("purge sessions: %w", err)
	}

	log.Info("Migrations complete", zap.Int64("expired_sessions_removed", purged))
	return nil
}
