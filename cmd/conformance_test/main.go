// conformance_test reads carriers as JSON from stdin, extracts a span
// context from them and writes the re-injected carriers to stdout.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	opentracing "github.com/opentracing/opentracing-go"
	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	instrumentation "github.com/lightstep/lightstep-instrumentation-go"
)

type Carriers struct {
	TextMap map[string]string `json:"text_map"`
}

var propagators = flag.String("propagators", instrumentation.DefaultPropagators, "comma separated propagators: tracecontext, b3, lightstep")

func main() {
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		fatal("could not create logger: ", err)
	}
	defer logger.Sync()

	config := instrumentation.DefaultConfig()
	config.Propagators = *propagators
	tracer := instrumentation.NewTracer(
		instrumentation.WithConfig(config),
		instrumentation.WithEventHandler(instrumentation.NewOnEventLogger(logger)),
	)

	var carriers Carriers
	if err := json.NewDecoder(os.Stdin).Decode(&carriers); err != nil {
		fatal("could not read carriers from stdin: ", err)
	}

	ctx := tracer.Extract(context.Background(), opentracing.TextMapCarrier(carriers.TextMap))
	if !instrumentation.SpanContextFromContext(ctx).IsValid() {
		fatal("could not extract text map context")
	}

	output := Carriers{TextMap: make(map[string]string)}
	if err := tracer.Inject(ctx, instrumentation.TextMapCarrier(opentracing.TextMapCarrier(output.TextMap))); err != nil {
		fatal("could not inject text map context: ", err)
	}

	if err := json.NewEncoder(os.Stdout).Encode(output); err != nil {
		fatal("could not marshal json to stdout: ", err)
	}
}

func fatal(args ...interface{}) {
	fmt.Println(args...)
	os.Exit(1)
}
