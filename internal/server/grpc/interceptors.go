// Package grpcserver runs the admin gRPC endpoint: the standard health
// service behind logging and panic-recovery interceptors.
package grpcserver

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/acoyfellow/tax-agent/internal/redact"
)

func peerAddr(ctx context.Context) string {
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		return p.Addr.String()
	}
	return ""
}

// LoggingUnary logs call metadata, never payloads. Internal and Unknown
// codes log at warn, everything else at debug so health checks stay quiet.
func LoggingUnary(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := next(ctx, req)
		code := status.Code(err)

		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.String("code", code.String()),
			zap.Duration("dur", time.Since(start)),
			zap.String("peer", peerAddr(ctx)),
		}
		if code == codes.Internal || code == codes.Unknown {
			log.Warn("grpc", fields...)
		} else {
			log.Debug("grpc", fields...)
		}
		return resp, err
	}
}

// RecoverUnary converts a handler panic into codes.Internal. The panic value
// is scrubbed of taxpayer identifiers before it is logged; the caller only
// ever sees "internal".
func RecoverUnary(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("admin handler panic",
					zap.String("method", info.FullMethod),
					zap.String("peer", peerAddr(ctx)),
					zap.String("reason", redact.Scrub(fmt.Sprint(r))),
					zap.ByteString("stack", debug.Stack()),
				)
				err = status.Error(codes.Internal, "internal")
			}
		}()
		return next(ctx, req)
	}
}
