package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ashureev/ds-tutor/internal/domain"
	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/protobuf/types/known/structpb"
)

// GatewayInvokeMethod is the unary RPC a model gateway must serve. Requests
// and replies are google.protobuf.Struct values:
//
//	request: {"model": string, "temperature": number,
//	          "messages": [{"role": string, "content": string}, ...]}
//	reply:   {"content": string} or {"error": string}
const GatewayInvokeMethod = "/tutor.v1.ModelGateway/Invoke"

var (
	errConnectionShutdown       = errors.New("connection shutdown")
	errConnectionStateUnchanged = errors.New("connection state did not change")
	errGatewayResponse          = errors.New("model gateway returned error")
)

// GrpcConfig holds configuration for the gateway client.
type GrpcConfig struct {
	Address          string
	Model            string
	Temperature      float64
	ConnectTimeout   time.Duration
	RequestTimeout   time.Duration
	KeepaliveTime    time.Duration
	KeepaliveTimeout time.Duration
	// DialOptions are appended to the defaults (insecure transport, keepalive).
	DialOptions []grpc.DialOption
}

// DefaultGrpcConfig returns default configuration.
func DefaultGrpcConfig() GrpcConfig {
	return GrpcConfig{
		Address:          "localhost:50051",
		Model:            "default",
		Temperature:      0.7,
		ConnectTimeout:   5 * time.Second,
		RequestTimeout:   60 * time.Second,
		KeepaliveTime:    2 * time.Minute,
		KeepaliveTimeout: 10 * time.Second,
	}
}

// GrpcModel forwards prompts to a model gateway over gRPC.
type GrpcModel struct {
	conn        *grpc.ClientConn
	addr        string
	model       string
	temperature float64
	timeout     time.Duration
	logger      *slog.Logger
}

// NewGrpcModel connects to the gateway and waits until the connection is
// ready, so a bad address fails at startup rather than on the first question.
func NewGrpcModel(cfg GrpcConfig, logger *slog.Logger) (*GrpcModel, error) {
	if logger == nil {
		logger = slog.Default()
	}

	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                cfg.KeepaliveTime,
			Timeout:             cfg.KeepaliveTimeout,
			PermitWithoutStream: false,
		}),
	}
	opts = append(opts, cfg.DialOptions...)

	conn, err := grpc.NewClient(cfg.Address, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to model gateway at %s: %w", cfg.Address, err)
	}

	connectCtx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()
	if err := waitForReady(connectCtx, conn); err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			logger.Warn("failed to close gRPC connection after readiness failure", "error", closeErr)
		}
		return nil, fmt.Errorf("model gateway at %s not ready: %w", cfg.Address, err)
	}

	logger.Info("Connected to model gateway", "address", cfg.Address, "model", cfg.Model)

	return &GrpcModel{
		conn:        conn,
		addr:        cfg.Address,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		timeout:     cfg.RequestTimeout,
		logger:      logger,
	}, nil
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

// Invoke implements Model.
func (m *GrpcModel) Invoke(ctx context.Context, turns []domain.Turn) (string, error) {
	messages := make([]any, 0, len(turns))
	for _, t := range turns {
		messages = append(messages, map[string]any{
			"role":    string(t.Role),
			"content": t.Content,
		})
	}

	req, err := structpb.NewStruct(map[string]any{
		"model":       m.model,
		"temperature": m.temperature,
		"messages":    messages,
	})
	if err != nil {
		return "", fmt.Errorf("encode gateway request: %w", err)
	}

	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	resp := &structpb.Struct{}
	if err := m.conn.Invoke(ctx, GatewayInvokeMethod, req, resp); err != nil {
		return "", fmt.Errorf("invoke model gateway: %w", err)
	}

	fields := resp.GetFields()
	if msg := fields["error"].GetStringValue(); msg != "" {
		return "", fmt.Errorf("%w: %s", errGatewayResponse, msg)
	}
	content := fields["content"].GetStringValue()
	if content == "" {
		return "", ErrEmptyResponse
	}
	return content, nil
}

// Health checks the gateway with the standard gRPC health protocol.
func (m *GrpcModel) Health(ctx context.Context) error {
	resp, err := healthpb.NewHealthClient(m.conn).Check(ctx, &healthpb.HealthCheckRequest{})
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("model gateway at %s is %s", m.addr, resp.GetStatus())
	}
	return nil
}

// Close closes the gRPC connection.
func (m *GrpcModel) Close() {
	if m.conn != nil {
		if err := m.conn.Close(); err != nil {
			m.logger.Warn("failed to close gRPC connection", "error", err)
		}
	}
}
