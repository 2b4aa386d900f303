package ocbridge

import (
	opentracing "github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
)

// Option provides configuration for the Exporter
type Option func(*config)

// WithComponentName tags every exported span with the component (service)
// name.
func WithComponentName(componentName string) Option {
	return func(c *config) {
		if componentName != "" {
			c.tags[string(ext.Component)] = componentName
		}
	}
}

// WithTags adds tags to every exported span. Span attributes take
// precedence.
func WithTags(tags opentracing.Tags) Option {
	return func(c *config) {
		for k, v := range tags {
			c.tags[k] = v
		}
	}
}

type config struct {
	tags opentracing.Tags
}

func defaultConfig() *config {
	return &config{
		tags: make(opentracing.Tags),
	}
}
