package actuator

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"doorwatch/internal/monitoring"
	"doorwatch/internal/pipeline"
)

// DefaultActuatorService is the gRPC service the actuator is expected to expose.
// Each event is a unary method taking a google.protobuf.Struct and returning
// google.protobuf.Empty, so the actuator needs no generated code from us.
const DefaultActuatorService = "doorwatch.actuator.v1.Actuator"

// GRPCBridgeConfig holds configuration for the gRPC actuator
type GRPCBridgeConfig struct {
	Endpoint    string
	Service     string                        // Defaults to DefaultActuatorService
	Credentials credentials.PerRPCCredentials // Optional bearer token source
	DialOptions []grpc.DialOption             // Extra options, mainly for tests
}

// GRPCBridge calls the actuator over gRPC. The connection is established lazily
// and re-established by gRPC itself after failures.
type GRPCBridge struct {
	endpoint string
	service  string
	conn     *grpc.ClientConn
}

// NewGRPCBridge creates a gRPC bridge. No network traffic happens until the
// first call.
func NewGRPCBridge(cfg GRPCBridgeConfig) (*GRPCBridge, error) {
	service := cfg.Service
	if service == "" {
		service = DefaultActuatorService
	}

	// Configure keepalive to detect dead connections quickly
	kacp := keepalive.ClientParameters{
		Time:                10 * time.Second,
		Timeout:             5 * time.Second,
		PermitWithoutStream: true,
	}

	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(kacp),
	}
	if cfg.Credentials != nil {
		opts = append(opts, grpc.WithPerRPCCredentials(cfg.Credentials))
	}
	opts = append(opts, cfg.DialOptions...)

	conn, err := grpc.NewClient(cfg.Endpoint, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create actuator client for %s: %w", cfg.Endpoint, err)
	}

	monitoring.Logf("[GRPCBridge] Actuator at %s (service %s)", cfg.Endpoint, service)
	return &GRPCBridge{endpoint: cfg.Endpoint, service: service, conn: conn}, nil
}

// methodName maps an event kind to its RPC method
func methodName(kind pipeline.EventKind) string {
	switch kind {
	case pipeline.EventDoorLeftOpen:
		return "DoorLeftOpen"
	case pipeline.EventDoorClosed:
		return "DoorClosed"
	case pipeline.EventMotionPositive:
		return "MotionPositive"
	case pipeline.EventMotionNegative:
		return "MotionNegative"
	default:
		return ""
	}
}

func (b *GRPCBridge) invoke(ctx context.Context, kind pipeline.EventKind) error {
	req, err := structpb.NewStruct(eventFields(ctx, kind))
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", pipeline.ErrActuatorCall, kind, err)
	}

	method := "/" + b.service + "/" + methodName(kind)
	if err := b.conn.Invoke(ctx, method, req, &emptypb.Empty{}); err != nil {
		return fmt.Errorf("%w: %s on %s: %v", pipeline.ErrActuatorCall, method, b.endpoint, err)
	}
	return nil
}

func (b *GRPCBridge) OnDoorLeftOpen(ctx context.Context) error {
	return b.invoke(ctx, pipeline.EventDoorLeftOpen)
}

func (b *GRPCBridge) OnDoorClosed(ctx context.Context) error {
	return b.invoke(ctx, pipeline.EventDoorClosed)
}

func (b *GRPCBridge) OnMotionPositive(ctx context.Context) error {
	return b.invoke(ctx, pipeline.EventMotionPositive)
}

func (b *GRPCBridge) OnMotionNegative(ctx context.Context) error {
	return b.invoke(ctx, pipeline.EventMotionNegative)
}

// Close closes the connection
func (b *GRPCBridge) Close() error {
	if b.conn != nil {
		return b.conn.Close()
	}
	return nil
}

var _ Bridge = (*GRPCBridge)(nil)
