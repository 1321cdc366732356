package commands

import (
	"fmt"
	"os"

	"github.com/bookstore/storefront/internal/config"
	"github.com/bookstore/storefront/internal/db"
	"github.com/bookstore/storefront/pkg/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Global flags
	logLevel string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "storefront",
	Short: "Bookstore storefront: accounts, sessions and the book catalog",
	Long: `storefront serves the bookstore web front end and manages its stores.

Configuration is read from the environment (BOOKS_DSN, USERS_DSN,
SESSION_SECRET, UPLOAD_DIR, RABBITMQ_URL, ...). A postgres:// DSN selects
PostgreSQL, anything else is a SQLite file.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (overrides LOG_LEVEL)")
}

func loadConfig() (*config.Config, *zap.Logger) {
	cfg := config.Load()
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	return cfg, logger.NewLogger(cfg.ServiceName, cfg.LogLevel)
}

// openStores connects to both stores and brings their schemas up to date.
func openStores(cfg *config.Config, log *zap.Logger) (users, books *db.DB, err error) {
	log.Info("Connecting to users store")
	users, err = db.Connect(cfg.UsersDSN, log)
	if err != nil {
		return nil, nil, fmt.Errorf("users store: %w", err)
	}
	if err := db.RunUserMigrations(users); err != nil {
		users.Close()
		return nil, nil, fmt.Errorf("users store migrations: %w", err)
	}

	log.Info("Connecting to books store")
	books, err = db.Connect(cfg.BooksDSN, log)
	if err != nil {
		users.Close()
		return nil, nil, fmt.Errorf("books store: %w", err)
	}
	if err := db.RunBookMigrations(books); err != nil {
		users.Close()
		books.Close()
		return nil, nil, fmt.Errorf("books store migrations: %w", err)
	}

	return users, books, nil
}
