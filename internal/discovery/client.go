// Package discovery is the boundary to the external PAG search service.
//
// The service hosts the actual FCI and GFCI implementations. This package
// only translates a dataset and algorithm parameters into an InferPAG call
// and the reply into a labelled adjacency matrix.
package discovery

import (
	"context"
	"fmt"
	"time"

	"github.com/danielpatrickdp/pagbench/internal/dataset"
	"github.com/danielpatrickdp/pagbench/internal/pag"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/types/known/structpb"
)

// #region constants
const (
	// ServiceName is the gRPC service exposed by the discovery sidecar and the
	// name reported to the health service.
	ServiceName = "pagbench.discovery.v1.Discovery"

	// InferMethod is the full method name of the unary InferPAG call.
	InferMethod = "/" + ServiceName + "/InferPAG"

	defaultMaxMessageSize = 256 << 20
)
// #endregion constants

// #region service
// inferService is the single RPC the client needs. Tests inject a fake.
type inferService interface {
	InferPAG(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type inferClient struct {
	cc grpc.ClientConnInterface
}

func (c inferClient) InferPAG(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, InferMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
// #endregion service

// #region client-struct
// Client is a Backend backed by the discovery gRPC service. It is safe for
// concurrent use.
type Client struct {
	conn    *grpc.ClientConn
	svc     inferService
	health  healthpb.HealthClient
	timeout time.Duration
}

// Option configures a Client.
type Option func(*clientOptions)

type clientOptions struct {
	timeout  time.Duration
	maxMsg   int
	dialOpts []grpc.DialOption
}

// WithTimeout bounds each InferPAG call. Zero means no bound.
func WithTimeout(d time.Duration) Option {
	return func(o *clientOptions) { o.timeout = d }
}

// WithMaxMessageSize sets the send and receive limit for InferPAG messages.
func WithMaxMessageSize(n int) Option {
	return func(o *clientOptions) { o.maxMsg = n }
}

// WithDialOptions appends raw gRPC dial options.
func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(o *clientOptions) { o.dialOpts = append(o.dialOpts, opts...) }
}
// #endregion client-struct

// #region constructor
// NewClient creates a client for the discovery service at addr. No
// connection is made until the first call; use Ready to check the service.
func NewClient(addr string, opts ...Option) (*Client, error) {
	o := clientOptions{maxMsg: defaultMaxMessageSize}
	for _, opt := range opts {
		opt(&o)
	}

	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallSendMsgSize(o.maxMsg),
			grpc.MaxCallRecvMsgSize(o.maxMsg),
		),
	}
	dialOpts = append(dialOpts, o.dialOpts...)

	conn, err := grpc.NewClient(addr, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &Client{
		conn:    conn,
		svc:     inferClient{cc: conn},
		health:  healthpb.NewHealthClient(conn),
		timeout: o.timeout,
	}, nil
}

// newClientWithService wires a client around injected services.
func newClientWithService(svc inferService, health healthpb.HealthClient) *Client {
	return &Client{svc: svc, health: health}
}
// #endregion constructor

// #region ready
// Ready asks the service's health endpoint whether the discovery service is
// serving. This is the startup bootstrap check; the service owns its own
// runtime (Python interpreter, JVM) and reports failure here.
func (c *Client) Ready(ctx context.Context) error {
	if c.health == nil {
		return fmt.Errorf("%w: no health client", ErrBackend)
	}
	resp, err := c.health.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		return fmt.Errorf("%w: health check: %w", ErrBackend, err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("%w: service status %s", ErrBackend, resp.GetStatus())
	}
	return nil
}
// #endregion ready

// #region infer
// Infer sends the dataset and request to the service and returns the PAG
// labelled with the dataset's columns.
func (c *Client) Infer(ctx context.Context, ds *dataset.Dataset, req Request) (*pag.Matrix, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBackend, err)
	}
	if ds == nil || ds.NumCols() == 0 {
		return nil, fmt.Errorf("%w: empty dataset", ErrBackend)
	}

	in, err := encodeRequest(ds, req)
	if err != nil {
		return nil, fmt.Errorf("%w: encode request: %w", ErrBackend, err)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	reply, err := c.svc.InferPAG(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("%w: infer rpc: %w", ErrBackend, err)
	}

	m, err := decodeMatrix(reply, ds.Columns)
	if err != nil {
		return nil, fmt.Errorf("%w: decode reply: %w", ErrBackend, err)
	}
	return m, nil
}
// #endregion infer

// #region close
// Close shuts down the gRPC connection.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}
// #endregion close

var _ Backend = (*Client)(nil)
