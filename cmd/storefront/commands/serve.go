package commands

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bookstore/storefront/internal/auth"
	"github.com/bookstore/storefront/internal/catalog"
	"github.com/bookstore/storefront/internal/config"
	"github.com/bookstore/storefront/internal/events"
	grpcserver "github.com/bookstore/storefront/internal/grpc"
	"github.com/bookstore/storefront/internal/metrics"
	"github.com/bookstore/storefront/internal/repo"
	"github.com/bookstore/storefront/internal/uploads"
	"github.com/bookstore/storefront/internal/web"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

var (
	// Serve flags
	httpPort       string
	httpHealthPort string
	grpcPort       string
)

// serveCmd runs the web front end with its health and gRPC listeners
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the storefront HTTP server",
	Long: `Run the storefront. Three listeners are opened:

  HTTP_PORT         web front end (JSON views, uploads under /images)
  HTTP_HEALTH_PORT  /healthz and /metrics
  GRPC_PORT         grpc.health.v1.Health and reflection

SIGINT or SIGTERM shuts all three down gracefully.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	serveCmd.Flags().StringVar(&httpPort, "http-port", "", "Web port (overrides HTTP_PORT)")
	serveCmd.Flags().StringVar(&httpHealthPort, "health-port", "", "Health and metrics port (overrides HTTP_HEALTH_PORT)")
	serveCmd.Flags().StringVar(&grpcPort, "grpc-port", "", "gRPC port (overrides GRPC_PORT)")
	rootCmd.AddCommand(serveCmd)
}

type eventPublisher interface {
	catalog.Publisher
	IsHealthy() bool
	Close() error
}

func runServe() error {
	cfg, log := loadConfig()
	defer log.Sync()
	applyPortFlags(cfg)

	log.Info("Storefront starting")
	if cfg.SessionSecret == config.DefaultSessionSecret {
		log.Warn("SESSION_SECRET is not set, using the development default")
	}

	users, books, err := openStores(cfg, log)
	if err != nil {
		return err
	}
	defer users.Close()
	defer books.Close()

	userRepo := repo.NewUserRepository(users, log)
	if purged, err := userRepo.PurgeExpiredSessions(context.Background(), time.Now().UTC()); err != nil {
		log.Warn("Failed to purge expired sessions", zap.Error(err))
	} else if purged > 0 {
		log.Info("Purged expired sessions", zap.Int64("count", purged))
	}

	images, err := uploads.NewImageStore(cfg.UploadDir, cfg.MaxUploadBytes, log)
	if err != nil {
		return fmt.Errorf("upload directory: %w", err)
	}

	publisher := connectPublisher(cfg, log)
	defer publisher.Close()

	catalogService := catalog.NewService(repo.NewCatalogRepository(books, log), images, publisher, log)
	authManager := auth.NewManager(userRepo, auth.NewTokenSigner(cfg.SessionSecret), cfg.SessionTTL, log)
	m := metrics.New(catalogService.Stats)

	// Create gRPC server
	grpcServer := grpc.NewServer(
		grpc.UnaryInterceptor(grpcserver.LoggingInterceptor(log)),
	)
	healthServer := grpcserver.NewHealthServer(map[string]grpcserver.Pinger{
		"users": users,
		"books": books,
	}, publisher, log)
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)

	// Enable reflection for grpcurl/grpcui
	reflection.Register(grpcServer)

	grpcListener, err := net.Listen("tcp", fmt.Sprintf(":%s", cfg.GRPCPort))
	if err != nil {
		return fmt.Errorf("listen on gRPC port: %w", err)
	}

	errCh := make(chan error, 3)

	go func() {
		log.Info("Starting gRPC server", zap.String("address", grpcListener.Addr().String()))
		if err := grpcServer.Serve(grpcListener); err != nil {
			errCh <- fmt.Errorf("serve gRPC: %w", err)
		}
	}()

	// Health and metrics
	healthMux := http.NewServeMux()
	healthMux.HandleFunc("/healthz", healthHandler(healthServer))
	healthMux.Handle("/metrics", m.Handler())

	healthHTTP := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.HTTPHealthPort),
		Handler:      healthMux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("Starting health server", zap.String("address", healthHTTP.Addr))
		if err := healthHTTP.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("serve health: %w", err)
		}
	}()

	webServer := web.NewServer(authManager, catalogService, m, web.Options{
		RequireLogin:   cfg.CatalogRequireLogin,
		UploadDir:      images.Dir(),
		MaxUploadBytes: cfg.MaxUploadBytes,
		FlashSecret:    cfg.SessionSecret,
	}, log)

	go func() {
		if err := webServer.Start(fmt.Sprintf(":%s", cfg.HTTPPort)); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("serve web: %w", err)
		}
	}()

	// Wait for interrupt signal or a listener failure
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case <-quit:
	case runErr = <-errCh:
		log.Error("Server failed", zap.Error(runErr))
	}

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := webServer.Shutdown(ctx); err != nil {
		log.Error("Web server shutdown error", zap.Error(err))
	}
	if err := healthHTTP.Shutdown(ctx); err != nil {
		log.Error("Health server shutdown error", zap.Error(err))
	}
	grpcServer.GracefulStop()

	log.Info("Server stopped")
	return runErr
}

func applyPortFlags(cfg *config.Config) {
	if httpPort != "" {
		cfg.HTTPPort = httpPort
	}
	if httpHealthPort != "" {
		cfg.HTTPHealthPort = httpHealthPort
	}
	if grpcPort != "" {
		cfg.GRPCPort = grpcPort
	}
}

// connectPublisher returns a RabbitMQ publisher, or a no-op one when events
// are disabled or the broker is unreachable.
func connectPublisher(cfg *config.Config, log *zap.Logger) eventPublisher {
	if cfg.RabbitMQURL == "" {
		log.Info("RABBITMQ_URL not set, catalog events disabled")
		return events.NopPublisher{}
	}

	log.Info("Connecting to RabbitMQ")
	publisher, err := events.NewPublisher(cfg.RabbitMQURL, log)
	if err != nil {
		log.Warn("RabbitMQ unavailable, catalog events disabled", zap.Error(err))
		return events.NopPublisher{}
	}
	return publisher
}

func healthHandler(health *grpcserver.HealthServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ok, reason := health.Healthy(r.Context()); !ok {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("unhealthy: " + reason))
			return
		}

		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	}
}
