package grpcserver

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

type loopbackAddr struct{}

func (loopbackAddr) Network() string { return "tcp" }
func (loopbackAddr) String() string  { return "127.0.0.1:50051" }

const checkMethod = "/grpc.health.v1.Health/Check"

func TestLoggingUnary_LevelByCode(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		level zapcore.Level
		code  string
	}{
		{"ok", nil, zapcore.DebugLevel, "OK"},
		{"not found", status.Error(codes.NotFound, "unknown service"), zapcore.DebugLevel, "NotFound"},
		{"internal", status.Error(codes.Internal, "internal"), zapcore.WarnLevel, "Internal"},
		{"plain error", errors.New("boom"), zapcore.WarnLevel, "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.DebugLevel)
			ic := LoggingUnary(zap.New(core))

			ctx := peer.NewContext(context.Background(), &peer.Peer{Addr: loopbackAddr{}})
			info := &grpc.UnaryServerInfo{FullMethod: checkMethod}
			h := func(context.Context, any) (any, error) { return "resp", tt.err }

			resp, err := ic(ctx, "secret payload", info, h)
			require.Equal(t, "resp", resp)
			if !errors.Is(err, tt.err) {
				t.Fatalf("want handler error back, got %v", err)
			}

			entries := logs.All()
			require.Len(t, entries, 1)
			e := entries[0]
			require.Equal(t, tt.level, e.Level)
			fields := e.ContextMap()
			require.Equal(t, checkMethod, fields["method"])
			require.Equal(t, tt.code, fields["code"])
			require.Equal(t, "127.0.0.1:50051", fields["peer"])
			for _, v := range fields {
				require.NotEqual(t, "secret payload", v)
			}
		})
	}
}

func TestLoggingUnary_NoPeer(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	ic := LoggingUnary(zap.New(core))

	_, err := ic(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: checkMethod},
		func(context.Context, any) (any, error) { return nil, nil })
	require.NoError(t, err)
	require.Equal(t, "", logs.All()[0].ContextMap()["peer"])
}

func TestRecoverUnary(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	ic := RecoverUnary(zap.New(core))
	info := &grpc.UnaryServerInfo{FullMethod: checkMethod}

	resp, err := ic(context.Background(), nil, info, func(context.Context, any) (any, error) { return 42, nil })
	require.NoError(t, err)
	require.Equal(t, 42, resp)
	require.Zero(t, logs.Len())

	ctx := peer.NewContext(context.Background(), &peer.Peer{Addr: loopbackAddr{}})
	_, err = ic(ctx, nil, info, func(context.Context, any) (any, error) {
		panic(fmt.Errorf("bad recipient tin 412789654"))
	})
	st, ok := status.FromError(err)
	if !ok || st.Code() != codes.Internal {
		t.Fatalf("want codes.Internal, got %v", err)
	}
	require.Equal(t, "internal", st.Message())

	entries := logs.FilterMessage("admin handler panic").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	require.Equal(t, "bad recipient tin ***9654", fields["reason"])
	require.Equal(t, "127.0.0.1:50051", fields["peer"])
	require.Equal(t, checkMethod, fields["method"])
}
