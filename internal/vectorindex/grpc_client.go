package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service exposed by the index.
const ServiceName = "careeragent.vectorindex.v1.VectorIndex"

const (
	methodUpsert          = "/" + ServiceName + "/Upsert"
	methodQuery           = "/" + ServiceName + "/Query"
	methodDeleteNamespace = "/" + ServiceName + "/DeleteNamespace"
)

var (
	errConnectionShutdown       = errors.New("connection shutdown")
	errConnectionStateUnchanged = errors.New("connection state did not change")
	errNotServing               = errors.New("index service not serving")
)

// GrpcClientConfig holds configuration for the gRPC client.
type GrpcClientConfig struct {
	Address          string
	ConnectTimeout   time.Duration
	RequestTimeout   time.Duration
	KeepaliveTime    time.Duration
	KeepaliveTimeout time.Duration
}

// DefaultGrpcClientConfig returns default configuration for addr.
func DefaultGrpcClientConfig(addr string) GrpcClientConfig {
	return GrpcClientConfig{
		Address:          addr,
		ConnectTimeout:   5 * time.Second,
		RequestTimeout:   30 * time.Second,
		KeepaliveTime:    2 * time.Minute,
		KeepaliveTimeout: 10 * time.Second,
	}
}

// GrpcClient calls the index service with structpb messages over a plain
// unary connection. Requests and responses are google.protobuf.Struct values.
type GrpcClient struct {
	conn           *grpc.ClientConn
	health         healthpb.HealthClient
	requestTimeout time.Duration
	logger         *slog.Logger
}

// NewGrpcClient dials the index service and waits until it reports SERVING.
func NewGrpcClient(cfg GrpcClientConfig, logger *slog.Logger) (*GrpcClient, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Address == "" {
		return nil, errors.New("vector index address is required")
	}

	kacp := keepalive.ClientParameters{
		Time:                cfg.KeepaliveTime,
		Timeout:             cfg.KeepaliveTimeout,
		PermitWithoutStream: false,
	}

	conn, err := grpc.NewClient(cfg.Address,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(kacp),
	)
	if err != nil {
		return nil, fmt.Errorf("create vector index client for %s: %w", cfg.Address, err)
	}

	client := newGrpcClient(conn, cfg.RequestTimeout, logger)

	// Fail fast on a bad endpoint during startup.
	connectCtx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()
	if err := client.waitReady(connectCtx); err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			logger.Warn("failed to close gRPC connection after readiness failure", "error", closeErr)
		}
		return nil, fmt.Errorf("vector index at %s not ready: %w", cfg.Address, err)
	}

	logger.Info("Connected to vector index", "address", cfg.Address)
	return client, nil
}

func newGrpcClient(conn *grpc.ClientConn, requestTimeout time.Duration, logger *slog.Logger) *GrpcClient {
	return &GrpcClient{
		conn:           conn,
		health:         healthpb.NewHealthClient(conn),
		requestTimeout: requestTimeout,
		logger:         logger,
	}
}

func (c *GrpcClient) waitReady(ctx context.Context) error {
	if err := waitForReady(ctx, c.conn); err != nil {
		return err
	}
	return c.Health(ctx)
}

func waitForReady(ctx context.Context, conn *grpc.ClientConn) error {
	for {
		state := conn.GetState()
		switch state {
		case connectivity.Ready:
			return nil
		case connectivity.Idle:
			conn.Connect()
		case connectivity.Shutdown:
			return errConnectionShutdown
		}

		if !conn.WaitForStateChange(ctx, state) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w from %s", errConnectionStateUnchanged, state)
		}
	}
}

// Health reports whether the index service is SERVING.
func (c *GrpcClient) Health(ctx context.Context) error {
	resp, err := c.health.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		return fmt.Errorf("%w: health check: %w", ErrUnavailable, err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("%w: %s", errNotServing, resp.GetStatus())
	}
	return nil
}

// Close closes the gRPC connection.
func (c *GrpcClient) Close() {
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			c.logger.Warn("failed to close gRPC connection", "error", err)
		}
	}
}

// Upsert embeds and stores chunks under namespace.
func (c *GrpcClient) Upsert(ctx context.Context, namespace string, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	records := make([]any, 0, len(chunks))
	for _, ch := range chunks {
		meta := make(map[string]any, len(ch.Metadata))
		for k, v := range ch.Metadata {
			meta[k] = v
		}
		records = append(records, map[string]any{
			"id":       ch.ID,
			"text":     ch.Text,
			"metadata": meta,
		})
	}

	_, err := c.invoke(ctx, methodUpsert, map[string]any{
		"namespace": namespace,
		"records":   records,
	})
	return err
}

// Query returns up to topK chunks in namespace closest to text.
func (c *GrpcClient) Query(ctx context.Context, namespace, text string, topK int) ([]Match, error) {
	resp, err := c.invoke(ctx, methodQuery, map[string]any{
		"namespace": namespace,
		"text":      text,
		"top_k":     topK,
	})
	if err != nil {
		return nil, err
	}

	values := resp.GetFields()["matches"].GetListValue().GetValues()
	matches := make([]Match, 0, len(values))
	for _, v := range values {
		fields := v.GetStructValue().GetFields()
		if fields == nil {
			continue
		}
		matches = append(matches, Match{
			ID:    fields["id"].GetStringValue(),
			Text:  fields["text"].GetStringValue(),
			Score: fields["score"].GetNumberValue(),
		})
	}
	return matches, nil
}

// DeleteNamespace removes every chunk in namespace.
func (c *GrpcClient) DeleteNamespace(ctx context.Context, namespace string) error {
	_, err := c.invoke(ctx, methodDeleteNamespace, map[string]any{"namespace": namespace})
	return err
}

func (c *GrpcClient) invoke(ctx context.Context, method string, fields map[string]any) (*structpb.Struct, error) {
	req, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", method, err)
	}

	if c.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.requestTimeout)
		defer cancel()
	}

	resp := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, method, req, resp); err != nil {
		c.logger.Warn("vector index call failed", "method", method, "error", err)
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	return resp, nil
}
