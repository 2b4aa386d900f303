// Package tracegrpc traces unary gRPC calls on clients and servers.
package tracegrpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"

	instrumentation "github.com/lightstep/lightstep-instrumentation-go"
	"github.com/lightstep/lightstep-instrumentation-go/contextstore"
)

// UnaryClientInterceptor records a CLIENT span per call and propagates it in
// the outgoing metadata. Codes in GRPC_CLIENT_ERROR_CODES are errors.
func UnaryClientInterceptor(tracer *instrumentation.Tracer) grpc.UnaryClientInterceptor {
	cfg := tracer.Config()
	operations := instrumentation.NewOperationTracer[rpcRequest, error](tracer, instrumentation.SpanKindClient, rpcAttributes{},
		instrumentation.WithErrorStatuses("GRPC_CLIENT_ERROR_CODES", cfg.GRPCClientErrorCodes, instrumentation.DefaultGRPCClientErrorCodes))
	peers := contextstore.For[grpc.ClientConn, peerInfo](tracer.ContextStores())

	return func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		r := rpcRequest{fullMethod: method}
		if cc != nil {
			r.peer = peers.PutIfAbsentFunc(cc, func() peerInfo { return parsePeer(cc.Target()) })
		}

		md, _ := metadata.FromOutgoingContext(ctx)
		outgoing := outgoingMetadata{md: md}
		carrier := instrumentation.NewCarrier(&outgoing, setMetadata, forkMetadata)

		ctx = operations.StartOperation(ctx, r, carrier)
		if outgoing.owned {
			ctx = metadata.NewOutgoingContext(ctx, outgoing.md)
		}

		err := invoker(ctx, method, req, reply, cc, opts...)
		operations.End(ctx, err)
		return err
	}
}

// UnaryServerInterceptor records a SERVER span per call, continuing the trace
// found in the incoming metadata. Codes in GRPC_SERVER_ERROR_CODES are
// errors.
func UnaryServerInterceptor(tracer *instrumentation.Tracer) grpc.UnaryServerInterceptor {
	cfg := tracer.Config()
	operations := instrumentation.NewOperationTracer[rpcRequest, error](tracer, instrumentation.SpanKindServer, rpcAttributes{},
		instrumentation.WithErrorStatuses("GRPC_SERVER_ERROR_CODES", cfg.GRPCServerErrorCodes, instrumentation.DefaultGRPCServerErrorCodes))

	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp interface{}, err error) {
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			ctx = tracer.Extract(ctx, metadataReader(md))
		}

		r := rpcRequest{fullMethod: info.FullMethod}
		if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
			r.peer = parsePeer(p.Addr.String())
		}
		ctx = operations.StartOperation(ctx, r, nil)

		defer func() {
			if rec := recover(); rec != nil {
				operations.EndExceptionally(ctx, fmt.Errorf("panic: %v", rec))
				panic(rec)
			}
			operations.End(ctx, err)
		}()

		return handler(ctx, req)
	}
}
