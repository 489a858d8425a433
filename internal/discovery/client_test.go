package discovery

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"net"
	"slices"
	"testing"

	"github.com/danielpatrickdp/pagbench/internal/dataset"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

// #region mock
type mockInferService struct {
	lastReq *structpb.Struct
	resp    *structpb.Struct
	err     error
}

func (m *mockInferService) InferPAG(_ context.Context, in *structpb.Struct, _ ...grpc.CallOption) (*structpb.Struct, error) {
	m.lastReq = in
	return m.resp, m.err
}

type mockHealth struct {
	healthpb.HealthClient
	status healthpb.HealthCheckResponse_ServingStatus
	err    error
}

func (m *mockHealth) Check(_ context.Context, _ *healthpb.HealthCheckRequest, _ ...grpc.CallOption) (*healthpb.HealthCheckResponse, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &healthpb.HealthCheckResponse{Status: m.status}, nil
}

// #endregion mock

// #region helpers
func smallDataset() *dataset.Dataset {
	return &dataset.Dataset{
		Columns: []string{"A", "B", "C"},
		Rows: [][]float64{
			{0, 1, 2},
			{1, 1, 0},
			{0, 0, 1},
			{1, 0, 2},
		},
	}
}

func fciRequest() Request {
	return Request{Algorithm: FCI, FCI: &FCIParams{IndependenceTest: TestGSq, Alpha: 0.05}}
}

func gfciRequest() Request {
	return Request{Algorithm: GFCI, GFCI: &GFCIParams{
		IndependenceTest:  TestDegenerateGaussian,
		Score:             ScoreBasisFunctionBIC,
		Depth:             3,
		MaxDiscPathLength: 2,
		TestAlpha:         0.05,
		PenaltyDiscount:   2,
		TruncationLimit:   3,
	}}
}

func graphReply(t *testing.T, graph [][]int, labels []string) *structpb.Struct {
	t.Helper()
	rows := make([]any, len(graph))
	for i, r := range graph {
		cells := make([]any, len(r))
		for j, v := range r {
			cells[j] = v
		}
		rows[i] = cells
	}
	fields := map[string]any{"graph": rows}
	if labels != nil {
		ls := make([]any, len(labels))
		for i, l := range labels {
			ls[i] = l
		}
		fields["labels"] = ls
	}
	s, err := structpb.NewStruct(fields)
	if err != nil {
		t.Fatalf("build reply: %v", err)
	}
	return s
}

func decodeTable(b []byte, rows, cols int) ([][]float64, error) {
	if len(b) != rows*cols*8 {
		return nil, fmt.Errorf("table has %d bytes, want %d", len(b), rows*cols*8)
	}
	out := make([][]float64, rows)
	off := 0
	for i := range out {
		row := make([]float64, cols)
		for j := range row {
			row[j] = math.Float64frombits(binary.LittleEndian.Uint64(b[off:]))
			off += 8
		}
		out[i] = row
	}
	return out, nil
}

// #endregion helpers

// #region validate-tests
func TestRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     func() Request
		wantErr bool
	}{
		{"fci ok", fciRequest, false},
		{"gfci ok", gfciRequest, false},
		{"unknown algorithm", func() Request { return Request{Algorithm: "PC"} }, true},
		{"fci missing params", func() Request { return Request{Algorithm: FCI} }, true},
		{"fci with gfci params", func() Request { r := fciRequest(); r.GFCI = &GFCIParams{}; return r }, true},
		{"fci alpha 0", func() Request { r := fciRequest(); r.FCI.Alpha = 0; return r }, true},
		{"fci alpha 1", func() Request { r := fciRequest(); r.FCI.Alpha = 1; return r }, true},
		{"fci fisher_z", func() Request { r := fciRequest(); r.FCI.IndependenceTest = TestFisherZGFCI; return r }, false},
		{"fci gfci-only test", func() Request { r := fciRequest(); r.FCI.IndependenceTest = TestDegenerateGaussian; return r }, true},
		{"gfci negative depth", func() Request { r := gfciRequest(); r.GFCI.Depth = -1; return r }, true},
		{"gfci negative path", func() Request { r := gfciRequest(); r.GFCI.MaxDiscPathLength = -1; return r }, true},
		{"gfci bad score", func() Request { r := gfciRequest(); r.GFCI.Score = "bdeu"; return r }, true},
		{"gfci zero penalty", func() Request { r := gfciRequest(); r.GFCI.PenaltyDiscount = 0; return r }, true},
		{"gfci bf-bic without truncation", func() Request { r := gfciRequest(); r.GFCI.TruncationLimit = 0; return r }, true},
		{"gfci sem-bic with truncation", func() Request { r := gfciRequest(); r.GFCI.Score = ScoreSEMBIC; return r }, true},
		{"gfci sem-bic", func() Request {
			r := gfciRequest()
			r.GFCI.Score = ScoreSEMBIC
			r.GFCI.TruncationLimit = 0
			r.GFCI.IndependenceTest = TestFisherZGFCI
			return r
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req().Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// #endregion validate-tests

// #region infer-tests
func TestInfer_Success(t *testing.T) {
	mock := &mockInferService{resp: graphReply(t, [][]int{{0, 2, 0}, {1, 0, 2}, {0, 3, 0}}, nil)}
	c := newClientWithService(mock, nil)

	m, err := c.Infer(context.Background(), smallDataset(), fciRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !slices.Equal(m.Labels, []string{"A", "B", "C"}) {
		t.Errorf("expected dataset labels, got %v", m.Labels)
	}
	if m.Marks[2][1] != 3 {
		t.Errorf("expected mark 3 at [2][1], got %d", m.Marks[2][1])
	}

	fields := mock.lastReq.GetFields()
	if fields["algorithm"].GetStringValue() != "FCI" {
		t.Errorf("unexpected algorithm %v", fields["algorithm"])
	}
	params := fields["params"].GetStructValue().GetFields()
	if params["independence_test"].GetStringValue() != "gsq" || params["alpha"].GetNumberValue() != 0.05 {
		t.Errorf("unexpected params %v", params)
	}
	if fields["rows"].GetNumberValue() != 4 || fields["cols"].GetNumberValue() != 3 {
		t.Errorf("unexpected shape %v x %v", fields["rows"], fields["cols"])
	}
	raw, err := base64.StdEncoding.DecodeString(fields["data"].GetStringValue())
	if err != nil {
		t.Fatalf("decode data: %v", err)
	}
	table, err := decodeTable(raw, 4, 3)
	if err != nil {
		t.Fatalf("decodeTable: %v", err)
	}
	for i, row := range smallDataset().Rows {
		if !slices.Equal(table[i], row) {
			t.Errorf("row %d: got %v want %v", i, table[i], row)
		}
	}
}

func TestInfer_FCIFisherZSpelling(t *testing.T) {
	mock := &mockInferService{resp: graphReply(t, [][]int{{0, 0, 0}, {0, 0, 0}, {0, 0, 0}}, nil)}
	c := newClientWithService(mock, nil)
	req := fciRequest()
	req.FCI.IndependenceTest = TestFisherZGFCI
	if _, err := c.Infer(context.Background(), smallDataset(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	params := mock.lastReq.GetFields()["params"].GetStructValue().GetFields()
	if got := params["independence_test"].GetStringValue(); got != "fisherz" {
		t.Errorf("expected fisherz on the wire, got %q", got)
	}
}

func TestInfer_GFCIParamsOnWire(t *testing.T) {
	mock := &mockInferService{resp: graphReply(t, [][]int{{0, 0, 0}, {0, 0, 0}, {0, 0, 0}}, nil)}
	c := newClientWithService(mock, nil)
	if _, err := c.Infer(context.Background(), smallDataset(), gfciRequest()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	params := mock.lastReq.GetFields()["params"].GetStructValue().GetFields()
	if params["score"].GetStringValue() != "basis_function_bic" {
		t.Errorf("unexpected score %v", params["score"])
	}
	if params["score_truncation_limit"].GetNumberValue() != 3 {
		t.Errorf("unexpected truncation %v", params["score_truncation_limit"])
	}
	if params["depth"].GetNumberValue() != 3 || params["max_disc_path_length"].GetNumberValue() != 2 {
		t.Errorf("unexpected depth settings %v", params)
	}
}

func TestInfer_Errors(t *testing.T) {
	tests := []struct {
		name string
		mock *mockInferService
		req  Request
	}{
		{"invalid request", &mockInferService{}, Request{Algorithm: FCI}},
		{"rpc error", &mockInferService{err: errors.New("jvm crashed")}, fciRequest()},
		{"no graph", &mockInferService{resp: &structpb.Struct{}}, fciRequest()},
		{"wrong size", &mockInferService{resp: graphReply(t, [][]int{{0, 1}, {1, 0}}, nil)}, fciRequest()},
		{"ragged", &mockInferService{resp: graphReply(t, [][]int{{0, 1, 0}, {1, 0}, {0, 0, 0}}, nil)}, fciRequest()},
		{"label mismatch", &mockInferService{resp: graphReply(t, [][]int{{0, 0, 0}, {0, 0, 0}, {0, 0, 0}}, []string{"A", "C", "B"})}, fciRequest()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newClientWithService(tt.mock, nil)
			_, err := c.Infer(context.Background(), smallDataset(), tt.req)
			if !errors.Is(err, ErrBackend) {
				t.Errorf("expected ErrBackend, got %v", err)
			}
		})
	}
}

func TestInfer_InvalidRequestSkipsRPC(t *testing.T) {
	mock := &mockInferService{}
	c := newClientWithService(mock, nil)
	c.Infer(context.Background(), smallDataset(), Request{Algorithm: GFCI})
	if mock.lastReq != nil {
		t.Error("expected no rpc for an invalid request")
	}
}

func TestInfer_NonIntegralMark(t *testing.T) {
	reply, _ := structpb.NewStruct(map[string]any{
		"graph": []any{[]any{0, 0.5, 0}, []any{0, 0, 0}, []any{0, 0, 0}},
	})
	c := newClientWithService(&mockInferService{resp: reply}, nil)
	if _, err := c.Infer(context.Background(), smallDataset(), fciRequest()); !errors.Is(err, ErrBackend) {
		t.Errorf("expected ErrBackend, got %v", err)
	}
}

// #endregion infer-tests

// #region ready-tests
func TestReady(t *testing.T) {
	tests := []struct {
		name    string
		health  *mockHealth
		wantErr bool
	}{
		{"serving", &mockHealth{status: healthpb.HealthCheckResponse_SERVING}, false},
		{"not serving", &mockHealth{status: healthpb.HealthCheckResponse_NOT_SERVING}, true},
		{"unreachable", &mockHealth{err: status.Error(codes.Unavailable, "connection refused")}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newClientWithService(&mockInferService{}, tt.health)
			err := c.Ready(context.Background())
			if tt.wantErr && !errors.Is(err, ErrBackend) {
				t.Errorf("expected ErrBackend, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

// #endregion ready-tests

// #region grpc-tests
// fakeDiscovery answers InferPAG with an empty graph over the request columns.
type fakeDiscovery struct{}

func (fakeDiscovery) infer(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	cols := in.GetFields()["columns"].GetListValue().GetValues()
	raw, err := base64.StdEncoding.DecodeString(in.GetFields()["data"].GetStringValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	rows := int(in.GetFields()["rows"].GetNumberValue())
	if _, err := decodeTable(raw, rows, len(cols)); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	graph := make([]any, len(cols))
	labels := make([]any, len(cols))
	for i, c := range cols {
		row := make([]any, len(cols))
		for j := range row {
			row[j] = 0
		}
		graph[i] = row
		labels[i] = c.GetStringValue()
	}
	return structpb.NewStruct(map[string]any{"graph": graph, "labels": labels})
}

var fakeServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*any)(nil),
	Methods: []grpc.MethodDesc{{
		MethodName: "InferPAG",
		Handler: func(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			return srv.(fakeDiscovery).infer(ctx, in)
		},
	}},
}

func startFakeServer(t *testing.T, serving bool) *Client {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	srv.RegisterService(&fakeServiceDesc, fakeDiscovery{})

	hs := health.NewServer()
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		st = healthpb.HealthCheckResponse_SERVING
	}
	hs.SetServingStatus(ServiceName, st)
	healthpb.RegisterHealthServer(srv, hs)

	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	c, err := NewClient("passthrough:///bufnet", WithDialOptions(
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
	))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestClient_OverGRPC(t *testing.T) {
	c := startFakeServer(t, true)
	ctx := context.Background()

	if err := c.Ready(ctx); err != nil {
		t.Fatalf("Ready: %v", err)
	}
	m, err := c.Infer(ctx, smallDataset(), gfciRequest())
	if err != nil {
		t.Fatalf("Infer: %v", err)
	}
	if m.Size() != 3 || m.EdgeCount() != 0 {
		t.Errorf("unexpected matrix %+v", m)
	}
}

func TestClient_NotServing(t *testing.T) {
	c := startFakeServer(t, false)
	if err := c.Ready(context.Background()); !errors.Is(err, ErrBackend) {
		t.Errorf("expected ErrBackend, got %v", err)
	}
}

func TestNewClient_NoConnectUntilUsed(t *testing.T) {
	c, err := NewClient("localhost:0")
	if err != nil {
		t.Fatalf("unexpected error creating client: %v", err)
	}
	defer c.Close()
}

// #endregion grpc-tests
