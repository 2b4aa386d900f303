package instrumentation

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/opentracing/opentracing-go/ext"
)

// DefaultSpanName is used when no better name can be derived.
const DefaultSpanName = "HTTP request"

// Tag names not covered by opentracing's ext package.
const (
	TagHTTPFlavor    = "http.flavor"
	TagHTTPUserAgent = "http.user_agent"
	TagHTTPRoute     = "http.route"
	TagHTTPQuery     = "http.query"
	TagHTTPFragment  = "http.fragment"
	TagNetTransport  = "net.transport"
	TagNetPeerName   = "net.peer.name"
	TagNetPeerPort   = "net.peer.port"
)

var httpMethods = map[string]bool{
	"GET":     true,
	"HEAD":    true,
	"POST":    true,
	"PUT":     true,
	"DELETE":  true,
	"CONNECT": true,
	"OPTIONS": true,
	"TRACE":   true,
	"PATCH":   true,
}

// HTTPAccessor reads HTTP data out of a library's request and response
// types.
type HTTPAccessor[Req, Resp any] interface {
	Method(req Req) string
	URL(req Req) (*url.URL, error)
	// Flavor is the protocol version, e.g. "HTTP/1.1" or "2".
	Flavor(req Req) string
	RequestHeader(req Req, name string) string
	StatusCode(resp Resp) (int, bool)
}

// HTTPRouteAccessor is implemented by accessors that know the route
// template a request matched, such as "/users/{id}".
type HTTPRouteAccessor[Req any] interface {
	Route(req Req) string
}

// NewHTTPClientTracer traces outbound HTTP requests. Statuses in
// HTTP_CLIENT_ERROR_STATUSES are errors.
func NewHTTPClientTracer[Req, Resp any](tracer *Tracer, accessor HTTPAccessor[Req, Resp], opts ...OperationTracerOption) *OperationTracer[Req, Resp] {
	attributes := &httpAttributes[Req, Resp]{
		accessor:     accessor,
		client:       true,
		captureQuery: boolSetting(tracer.emit, "HTTP_CLIENT_TAG_QUERY_STRING", tracer.config.HTTPClientTagQueryString),
	}
	return NewOperationTracer[Req, Resp](tracer, SpanKindClient, attributes, opts...)
}

// NewHTTPServerTracer traces inbound HTTP requests. Statuses in
// HTTP_SERVER_ERROR_STATUSES are errors.
func NewHTTPServerTracer[Req, Resp any](tracer *Tracer, accessor HTTPAccessor[Req, Resp], opts ...OperationTracerOption) *OperationTracer[Req, Resp] {
	attributes := &httpAttributes[Req, Resp]{
		accessor:     accessor,
		captureQuery: boolSetting(tracer.emit, "HTTP_SERVER_TAG_QUERY_STRING", tracer.config.HTTPServerTagQueryString),
	}
	return NewOperationTracer[Req, Resp](tracer, SpanKindServer, attributes, opts...)
}

type httpAttributes[Req, Resp any] struct {
	accessor     HTTPAccessor[Req, Resp]
	client       bool
	captureQuery bool
}

// SpanName is "<METHOD> <route>" when a route is known, else "HTTP <METHOD>".
func (a *httpAttributes[Req, Resp]) SpanName(req Req) string {
	method := strings.ToUpper(strings.TrimSpace(a.accessor.Method(req)))
	if !httpMethods[method] {
		return DefaultSpanName
	}
	if routes, ok := a.accessor.(HTTPRouteAccessor[Req]); ok {
		if route := routes.Route(req); route != "" {
			return method + " " + route
		}
	}
	return "HTTP " + method
}

func (a *httpAttributes[Req, Resp]) OnRequest(span *Span, req Req) {
	span.SetTagFrom(string(ext.HTTPMethod), func() (interface{}, error) {
		return a.accessor.Method(req), nil
	})

	var target *url.URL
	span.SetTagFrom(string(ext.HTTPUrl), func() (interface{}, error) {
		u, err := a.accessor.URL(req)
		if err != nil || u == nil {
			return nil, err
		}
		target = u
		return formatURL(u), nil
	})
	if target != nil {
		a.onTarget(span, target)
	}

	span.SetTagFrom(TagHTTPFlavor, func() (interface{}, error) {
		return strings.TrimPrefix(a.accessor.Flavor(req), "HTTP/"), nil
	})
	span.SetTagFrom(TagHTTPUserAgent, func() (interface{}, error) {
		return a.accessor.RequestHeader(req, "User-Agent"), nil
	})
	if routes, ok := a.accessor.(HTTPRouteAccessor[Req]); ok {
		span.SetTagFrom(TagHTTPRoute, func() (interface{}, error) {
			return routes.Route(req), nil
		})
	}
	span.SetTag(TagNetTransport, "ip_tcp")
}

func (a *httpAttributes[Req, Resp]) onTarget(span *Span, u *url.URL) {
	if a.client {
		if host := u.Hostname(); host != "" {
			span.SetTag(string(ext.PeerHostname), host)
			span.SetTag(TagNetPeerName, host)
		}
		span.SetTagFrom(TagNetPeerPort, func() (interface{}, error) {
			port := u.Port()
			if port == "" {
				return nil, nil
			}
			n, err := strconv.ParseUint(port, 10, 16)
			if err != nil {
				return nil, fmt.Errorf("invalid port %q: %w", port, err)
			}
			span.SetTag(string(ext.PeerPort), uint16(n))
			return int(n), nil
		})
	}

	if a.captureQuery {
		span.SetTagFrom(TagHTTPQuery, func() (interface{}, error) { return u.RawQuery, nil })
		span.SetTagFrom(TagHTTPFragment, func() (interface{}, error) { return u.EscapedFragment(), nil })
	}
}

func (a *httpAttributes[Req, Resp]) StatusCode(resp Resp) (int, bool) {
	return a.accessor.StatusCode(resp)
}

func (a *httpAttributes[Req, Resp]) OnResponse(span *Span, resp Resp) {
	if code, ok := a.accessor.StatusCode(resp); ok {
		span.SetTag(string(ext.HTTPStatusCode), code)
	}
}

var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
	"ws":    "80",
	"wss":   "443",
}

// formatURL rebuilds u from its parts: the port is dropped when it is the
// scheme's default, an empty path becomes "/", and userinfo is never kept.
func formatURL(u *url.URL) string {
	var b strings.Builder
	scheme := strings.ToLower(u.Scheme)
	if scheme != "" {
		b.WriteString(scheme)
		b.WriteString("://")
	}
	if host := u.Hostname(); host != "" {
		if strings.Contains(host, ":") {
			host = "[" + host + "]"
		}
		port := u.Port()
		if port != "" && port != defaultPorts[scheme] {
			host = net.JoinHostPort(strings.Trim(host, "[]"), port)
		}
		b.WriteString(host)
	}
	if path := u.EscapedPath(); path != "" {
		b.WriteString(path)
	} else {
		b.WriteString("/")
	}
	if u.RawQuery != "" {
		b.WriteString("?")
		b.WriteString(u.RawQuery)
	}
	if u.Fragment != "" {
		b.WriteString("#")
		b.WriteString(u.EscapedFragment())
	}
	return b.String()
}
