package grpc

import (
	"context"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// ServiceName is the name reported for the storefront in health checks.
const ServiceName = "storefront"

// Pinger is a dependency that can report liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Publisher reports whether the event connection is up.
type Publisher interface {
	IsHealthy() bool
}

// HealthServer implements the gRPC health checking protocol
type HealthServer struct {
	grpc_health_v1.UnimplementedHealthServer
	stores    map[string]Pinger
	publisher Publisher
	log       *zap.Logger
}

// NewHealthServer creates a new health check server over the named stores.
func NewHealthServer(stores map[string]Pinger, publisher Publisher, log *zap.Logger) *HealthServer {
	return &HealthServer{
		stores:    stores,
		publisher: publisher,
		log:       log,
	}
}

// Healthy pings every store and the publisher and returns the first failure.
func (h *HealthServer) Healthy(ctx context.Context) (bool, string) {
	for name, store := range h.stores {
		if err := store.Ping(ctx); err != nil {
			h.log.Error("Database health check failed", zap.String("store", name), zap.Error(err))
			return false, name + " database connection failed"
		}
	}

	if h.publisher != nil && !h.publisher.IsHealthy() {
		h.log.Error("RabbitMQ health check failed")
		return false, "rabbitmq connection failed"
	}

	return true, ""
}

func (h *HealthServer) status(ctx context.Context, service string) (*grpc_health_v1.HealthCheckResponse, error) {
	if service != "" && service != ServiceName {
		return nil, status.Errorf(codes.NotFound, "unknown service %q", service)
	}

	resp := &grpc_health_v1.HealthCheckResponse{Status: grpc_health_v1.HealthCheckResponse_SERVING}
	if ok, _ := h.Healthy(ctx); !ok {
		resp.Status = grpc_health_v1.HealthCheckResponse_NOT_SERVING
	}
	return resp, nil
}

// Check implements the health check
func (h *HealthServer) Check(ctx context.Context, req *grpc_health_v1.HealthCheckRequest) (*grpc_health_v1.HealthCheckResponse, error) {
	return h.status(ctx, req.GetService())
}

// Watch sends the current status once and returns.
func (h *HealthServer) Watch(req *grpc_health_v1.HealthCheckRequest, server grpc_health_v1.Health_WatchServer) error {
	resp, err := h.status(server.Context(), req.GetService())
	if err != nil {
		return err
	}
	return server.Send(resp)
}

// LoggingInterceptor logs all gRPC requests
func LoggingInterceptor(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		resp, err := handler(ctx, req)

		if err != nil {
			log.Error("gRPC request failed",
				zap.String("method", info.FullMethod),
				zap.Error(err),
			)
		} else {
			log.Debug("gRPC request completed",
				zap.String("method", info.FullMethod),
			)
		}

		return resp, err
	}
}
