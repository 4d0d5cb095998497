package grpcserver

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

type flakyPinger struct{ fail atomic.Bool }

func (p *flakyPinger) Ping(context.Context) error {
	if p.fail.Load() {
		return errors.New("db down")
	}
	return nil
}

func startAdmin(t *testing.T) (*Admin, healthpb.HealthClient) {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	a := NewAdmin(zaptest.NewLogger(t))
	go func() { _ = a.Serve(lis) }()
	t.Cleanup(a.GracefulStop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) { return lis.Dial() }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return a, healthpb.NewHealthClient(conn)
}

func healthStatus(t *testing.T, c healthpb.HealthClient, svc string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := c.Check(context.Background(), &healthpb.HealthCheckRequest{Service: svc})
	require.NoError(t, err)
	return resp.GetStatus()
}

func TestAdmin_ServingToggle(t *testing.T) {
	a, c := startAdmin(t)

	require.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, healthStatus(t, c, ""))

	a.SetServing(true)
	require.Equal(t, healthpb.HealthCheckResponse_SERVING, healthStatus(t, c, ""))
	require.Equal(t, healthpb.HealthCheckResponse_SERVING, healthStatus(t, c, ServiceName))
}

func TestAdmin_WatchFollowsPinger(t *testing.T) {
	a, c := startAdmin(t)
	p := &flakyPinger{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go a.Watch(ctx, p, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		return healthStatus(t, c, "") == healthpb.HealthCheckResponse_SERVING
	}, time.Second, 5*time.Millisecond)

	p.fail.Store(true)
	require.Eventually(t, func() bool {
		return healthStatus(t, c, "") == healthpb.HealthCheckResponse_NOT_SERVING
	}, time.Second, 5*time.Millisecond)
}
