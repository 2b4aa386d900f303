package collector

import (
	"crypto/tls"

	"github.com/lightstep/lightstep-tracer-common/golang/gogo/collectorpb"
)

const (
	DefaultAddr             = "localhost:8360"
	DefaultMaxBufferedSpans = 1000

	// ComponentNameKey is the reporter tag naming the reporting service.
	ComponentNameKey = "lightstep.component_name"
)

type Option func(*config)

// WithAddress sets the collector's host:port.
func WithAddress(addr string) Option {
	return func(c *config) {
		c.addr = addr
	}
}

// WithInsecure disables TLS on the collector connection.
func WithInsecure() Option {
	return func(c *config) {
		c.insecure = true
	}
}

func WithTLSConfig(tlsConfig *tls.Config) Option {
	return func(c *config) {
		c.tlsConfig = tlsConfig
	}
}

func WithAccessToken(accessToken string) Option {
	return func(c *config) {
		c.accessToken = accessToken
	}
}

// WithComponentName names the reporting service.
func WithComponentName(componentName string) Option {
	return func(c *config) {
		if componentName != "" {
			c.componentName = componentName
		}
	}
}

// WithMaxBufferedSpans bounds the number of spans held between flushes.
// Spans recorded while the buffer is full are dropped and counted.
func WithMaxBufferedSpans(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxBufferedSpans = n
		}
	}
}

// WithClient reports through client instead of dialing the collector.
func WithClient(client collectorpb.CollectorServiceClient) Option {
	return func(c *config) {
		c.client = client
	}
}

type config struct {
	addr             string
	insecure         bool
	tlsConfig        *tls.Config
	accessToken      string
	componentName    string
	maxBufferedSpans int
	client           collectorpb.CollectorServiceClient
}

func defaultConfig() *config {
	return &config{
		addr:             DefaultAddr,
		tlsConfig:        &tls.Config{},
		componentName:    "instrumentation",
		maxBufferedSpans: DefaultMaxBufferedSpans,
	}
}
