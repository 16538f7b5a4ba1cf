package telemetry

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/flowguard/go-supervisor/internal/supervisor"
)

// #region grpc-constants
const (
	// TelemetryServiceName is the fully-qualified gRPC service receiving decisions.
	TelemetryServiceName = "flowguard.telemetry.v1.TelemetryService"
	// ReportDecisionMethod is the unary method carrying one google.protobuf.Struct record.
	ReportDecisionMethod = "/" + TelemetryServiceName + "/ReportDecision"
)

// #endregion grpc-constants

// #region grpc-reporter
// GRPCReporter sends decision records as google.protobuf.Struct over a unary RPC.
type GRPCReporter struct {
	conn  grpc.ClientConnInterface
	close func() error
}

// NewGRPCReporter connects to a telemetry service at addr without TLS.
func NewGRPCReporter(addr string, opts ...grpc.DialOption) (*GRPCReporter, error) {
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &GRPCReporter{conn: conn, close: conn.Close}, nil
}

// NewGRPCReporterWithConn uses an existing connection; Close does not close it.
func NewGRPCReporterWithConn(conn grpc.ClientConnInterface) *GRPCReporter {
	return &GRPCReporter{conn: conn}
}

// Name identifies the sink in diagnostics.
func (g *GRPCReporter) Name() string { return "grpc" }

// Report invokes ReportDecision with the record encoded as a Struct.
func (g *GRPCReporter) Report(ctx context.Context, r supervisor.Report) error {
	msg, err := RecordStruct(NewRecord(r))
	if err != nil {
		return err
	}
	if err := g.conn.Invoke(ctx, ReportDecisionMethod, msg, &emptypb.Empty{}); err != nil {
		return fmt.Errorf("report decision rpc: %w", err)
	}
	return nil
}

// Close shuts down a connection opened by NewGRPCReporter.
func (g *GRPCReporter) Close() error {
	if g.close == nil {
		return nil
	}
	return g.close()
}

// RecordStruct converts a record to a Struct through its JSON form.
func RecordStruct(rec DecisionRecord) (*structpb.Struct, error) {
	b, err := rec.Marshal()
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("decode decision record: %w", err)
	}
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, fmt.Errorf("encode decision struct: %w", err)
	}
	return s, nil
}

// #endregion grpc-reporter

// #region grpc-server
// DecisionHandler receives records on the server side of the telemetry service.
type DecisionHandler func(ctx context.Context, rec *structpb.Struct) error

// RegisterTelemetryService registers a ReportDecision handler on s.
// The service has no generated stubs; the descriptor is declared by hand.
func RegisterTelemetryService(s grpc.ServiceRegistrar, h DecisionHandler) {
	s.RegisterService(&grpc.ServiceDesc{
		ServiceName: TelemetryServiceName,
		HandlerType: (*any)(nil),
		Methods: []grpc.MethodDesc{{
			MethodName: "ReportDecision",
			Handler: func(_ any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
				in := new(structpb.Struct)
				if err := dec(in); err != nil {
					return nil, err
				}
				if err := h(ctx, in); err != nil {
					return nil, err
				}
				return &emptypb.Empty{}, nil
			},
		}},
		Streams: []grpc.StreamDesc{},
	}, struct{}{})
}

// #endregion grpc-server
