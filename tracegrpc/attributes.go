package tracegrpc

import (
	"net"
	"strconv"
	"strings"

	"github.com/opentracing/opentracing-go/ext"
	"google.golang.org/grpc/status"

	instrumentation "github.com/lightstep/lightstep-instrumentation-go"
)

const (
	TagRPCSystem         = "rpc.system"
	TagRPCService        = "rpc.service"
	TagRPCMethod         = "rpc.method"
	TagRPCGRPCStatusCode = "rpc.grpc.status_code"
)

type rpcRequest struct {
	fullMethod string
	peer       peerInfo
}

type peerInfo struct {
	name string
	port int
}

// parsePeer splits a host:port address, ignoring the resolver scheme of a
// dial target such as "dns:///host:443".
func parsePeer(addr string) peerInfo {
	if i := strings.Index(addr, ":///"); i >= 0 {
		addr = addr[i+len(":///"):]
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return peerInfo{name: addr}
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return peerInfo{name: host}
	}
	return peerInfo{name: host, port: n}
}

// splitMethod splits "/package.Service/Method".
func splitMethod(fullMethod string) (service, method string) {
	service, method, ok := strings.Cut(strings.TrimPrefix(fullMethod, "/"), "/")
	if !ok {
		return "", service
	}
	return service, method
}

type rpcAttributes struct{}

func (rpcAttributes) SpanName(req rpcRequest) string {
	name := strings.TrimPrefix(req.fullMethod, "/")
	if name == "" {
		return "grpc request"
	}
	return name
}

func (rpcAttributes) OnRequest(span *instrumentation.Span, req rpcRequest) {
	service, method := splitMethod(req.fullMethod)
	span.SetTag(string(ext.Component), "grpc")
	span.SetTag(TagRPCSystem, "grpc")
	span.SetTagFrom(TagRPCService, func() (interface{}, error) { return service, nil })
	span.SetTagFrom(TagRPCMethod, func() (interface{}, error) { return method, nil })

	if req.peer.name != "" {
		span.SetTag(string(ext.PeerHostname), req.peer.name)
		span.SetTag(instrumentation.TagNetPeerName, req.peer.name)
	}
	if req.peer.port > 0 {
		span.SetTag(instrumentation.TagNetPeerPort, req.peer.port)
	}
}

// StatusCode is the grpc status code of the call error; nil is OK.
func (rpcAttributes) StatusCode(err error) (int, bool) {
	return int(status.Code(err)), true
}

func (rpcAttributes) OnResponse(span *instrumentation.Span, err error) {
	span.SetTag(TagRPCGRPCStatusCode, int(status.Code(err)))
	if err != nil {
		span.RecordError(err)
	}
}
