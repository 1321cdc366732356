package commands

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/bookstore/storefront/internal/events"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Events watch flags
	watchQueue string
)

// eventsCmd groups catalog event tooling
var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect catalog events on RABBITMQ_URL",
}

// eventsWatchCmd prints catalog events as they are published
var eventsWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print catalog events as JSON lines",
	Long: `Bind a queue to catalog.* on the bookstore.events exchange and print
every event to stdout, one JSON document per line.

Without --queue a temporary exclusive queue is used and removed on exit.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runEventsWatch(cmd.Context())
	},
}

func init() {
	eventsWatchCmd.Flags().StringVar(&watchQueue, "queue", "", "Durable queue name (default: temporary queue)")
	eventsCmd.AddCommand(eventsWatchCmd)
	rootCmd.AddCommand(eventsCmd)
}

func runEventsWatch(ctx context.Context) error {
	cfg, log := loadConfig()
	defer log.Sync()

	if cfg.RabbitMQURL == "" {
		return errors.New("RABBITMQ_URL is not set")
	}

	consumer, err := events.NewConsumer(cfg.RabbitMQURL, watchQueue, []string{events.CatalogRoutingKey}, log)
	if err != nil {
		return err
	}
	defer consumer.Close()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	enc := json.NewEncoder(os.Stdout)
	err = consumer.Start(ctx, func(_ context.Context, event events.Event) error {
		return enc.Encode(event)
	})
	log.Info("Stopped watching events", zap.Error(err))
	return err
}
