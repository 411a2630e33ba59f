package handler

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

func TestGRPCHandler_Check(t *testing.T) {
	testCases := []struct {
		name    string
		pingErr error
		want    healthpb.HealthCheckResponse_ServingStatus
	}{
		{"store reachable", nil, healthpb.HealthCheckResponse_SERVING},
		{"store down", errors.New("connection refused"), healthpb.HealthCheckResponse_NOT_SERVING},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewGRPCHandler(&stubService{err: tc.pingErr}, nil)

			for _, svc := range []string{"", ServiceName} {
				resp, err := h.Check(context.Background(), &healthpb.HealthCheckRequest{Service: svc})
				require.NoError(t, err)
				assert.Equal(t, tc.want, resp.GetStatus())
			}
		})
	}
}

func TestGRPCHandler_UnknownService(t *testing.T) {
	h := NewGRPCHandler(&stubService{}, nil)

	_, err := h.Check(context.Background(), &healthpb.HealthCheckRequest{Service: "other"})
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestGRPCHandler_OverTheWire(t *testing.T) {
	lis := bufconn.Listen(1 << 20)
	server := grpc.NewServer()
	NewGRPCHandler(&stubService{}, nil).Register(server)

	go server.Serve(lis)
	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}
