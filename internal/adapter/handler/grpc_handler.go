package handler

import (
	"context"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
)

// ServiceName is the gRPC health service name that reports store liveness.
// The empty name reports the same status.
const ServiceName = "chemflo.inventory"

// GRPCHandler implements grpc.health.v1.Health on top of the store ping.
type GRPCHandler struct {
	healthpb.UnimplementedHealthServer
	service InventoryService
	logger  *zap.Logger
}

func NewGRPCHandler(service InventoryService, logger *zap.Logger) *GRPCHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GRPCHandler{service: service, logger: logger}
}

// Register adds the health service and server reflection to s.
func (h *GRPCHandler) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, h)
	reflection.Register(s)
}

func (h *GRPCHandler) Check(ctx context.Context, req *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	if svc := req.GetService(); svc != "" && svc != ServiceName {
		return nil, status.Errorf(codes.NotFound, "unknown service %q", svc)
	}

	if err := h.service.Ping(ctx); err != nil {
		h.logger.Warn("grpc health check failed", zap.Error(err))
		return &healthpb.HealthCheckResponse{
			Status: healthpb.HealthCheckResponse_NOT_SERVING,
		}, nil
	}

	return &healthpb.HealthCheckResponse{
		Status: healthpb.HealthCheckResponse_SERVING,
	}, nil
}
