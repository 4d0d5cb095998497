package grpcserver

import (
	"context"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health-checked service name besides the overall "".
const ServiceName = "taxagent.v1.Filing"

// Pinger reports backend readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Admin is the admin gRPC server.
type Admin struct {
	srv    *grpc.Server
	health *health.Server
	log    *zap.Logger
}

// NewAdmin builds the server. Both services start NOT_SERVING.
func NewAdmin(log *zap.Logger) *Admin {
	if log == nil {
		log = zap.NewNop()
	}
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(RecoverUnary(log), LoggingUnary(log)))
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)

	a := &Admin{srv: srv, health: hs, log: log}
	a.SetServing(false)
	return a
}

// SetServing flips every health status.
func (a *Admin) SetServing(ok bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if ok {
		st = healthpb.HealthCheckResponse_SERVING
	}
	a.health.SetServingStatus("", st)
	a.health.SetServingStatus(ServiceName, st)
}

// Watch pings p every interval and mirrors the result into the health
// status until ctx is done.
func (a *Admin) Watch(ctx context.Context, p Pinger, every time.Duration) {
	check := func() {
		pctx, cancel := context.WithTimeout(ctx, every)
		defer cancel()
		err := p.Ping(pctx)
		if err != nil {
			a.log.Warn("health check failed", zap.Error(err))
		}
		a.SetServing(err == nil)
	}

	check()
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			check()
		}
	}
}

// Serve blocks serving on lis.
func (a *Admin) Serve(lis net.Listener) error { return a.srv.Serve(lis) }

// GracefulStop marks the process NOT_SERVING and drains in-flight calls.
func (a *Admin) GracefulStop() {
	a.health.Shutdown()
	a.srv.GracefulStop()
}
