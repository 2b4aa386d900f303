package instrumentation

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kelseyhightower/envconfig"

	"github.com/lightstep/lightstep-instrumentation-go/internal/statusrange"
)

// Setting defaults. Each setting falls back to its default independently
// when its value is malformed.
const (
	DefaultHTTPServerErrorStatuses = "500-599"
	DefaultHTTPClientErrorStatuses = "400-599"
	DefaultGRPCServerErrorCodes    = "2,4,12-15"
	DefaultGRPCClientErrorCodes    = "1-16"
	DefaultPropagators             = "tracecontext"
)

// Config is read from the environment by LoadConfig. Values are kept as
// written so that a malformed setting can be reported and replaced by its
// default without discarding the others.
type Config struct {
	HTTPServerErrorStatuses  string `envconfig:"HTTP_SERVER_ERROR_STATUSES" default:"500-599"`
	HTTPClientErrorStatuses  string `envconfig:"HTTP_CLIENT_ERROR_STATUSES" default:"400-599"`
	HTTPServerTagQueryString string `envconfig:"HTTP_SERVER_TAG_QUERY_STRING" default:"false"`
	HTTPClientTagQueryString string `envconfig:"HTTP_CLIENT_TAG_QUERY_STRING" default:"false"`
	GRPCServerErrorCodes     string `envconfig:"GRPC_SERVER_ERROR_CODES" default:"2,4,12-15"`
	GRPCClientErrorCodes     string `envconfig:"GRPC_CLIENT_ERROR_CODES" default:"1-16"`
	Propagators              string `envconfig:"PROPAGATORS" default:"tracecontext"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		HTTPServerErrorStatuses:  DefaultHTTPServerErrorStatuses,
		HTTPClientErrorStatuses:  DefaultHTTPClientErrorStatuses,
		HTTPServerTagQueryString: "false",
		HTTPClientTagQueryString: "false",
		GRPCServerErrorCodes:     DefaultGRPCServerErrorCodes,
		GRPCClientErrorCodes:     DefaultGRPCClientErrorCodes,
		Propagators:              DefaultPropagators,
	}
}

// LoadConfig reads the configuration from environment variables named
// <PREFIX>_<SETTING>, e.g. OTEL_HTTP_CLIENT_ERROR_STATUSES for prefix "otel".
func LoadConfig(prefix string) (Config, error) {
	var cfg Config
	if err := envconfig.Process(prefix, &cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// statusRange parses value, reporting a malformed value and returning the
// parsed fallback instead.
func statusRange(onEvent func(Event), setting, value, fallback string) statusrange.Set {
	set, err := statusrange.Parse(value)
	if err != nil {
		onEvent(newEventConfigurationError(newConfigurationError(setting, value, err)))
		return statusrange.MustParse(fallback)
	}
	return set
}

func boolSetting(onEvent func(Event), setting, value string) bool {
	if strings.TrimSpace(value) == "" {
		return false
	}
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		onEvent(newEventConfigurationError(newConfigurationError(setting, value, err)))
		return false
	}
	return b
}

// propagators resolves a comma separated list of propagator names. Unknown
// names are reported and skipped; an empty result falls back to
// DefaultPropagators.
func resolvePropagators(onEvent func(Event), value string) []Propagator {
	var ps []Propagator
	for _, name := range strings.Split(value, ",") {
		if strings.TrimSpace(name) == "" {
			continue
		}
		p, ok := PropagatorByName(name)
		if !ok {
			onEvent(newEventConfigurationError(newConfigurationError("PROPAGATORS", name, fmt.Errorf("unknown propagator"))))
			continue
		}
		ps = append(ps, p)
	}
	if len(ps) == 0 {
		p, _ := PropagatorByName(DefaultPropagators)
		ps = append(ps, p)
	}
	return ps
}
