// Package collector records finished spans and reports them to a LightStep
// collector over gRPC.
package collector

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/lightstep/lightstep-tracer-common/golang/gogo/collectorpb"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	instrumentation "github.com/lightstep/lightstep-instrumentation-go"
	"github.com/lightstep/lightstep-instrumentation-go/internal/randx"
)

// ErrDisabled is returned by Flush after the collector asked the reporter to
// stop sending.
var ErrDisabled = errors.New("collector disabled reporting")

// Recorder is an instrumentation.SpanRecorder buffering spans until Flush.
type Recorder struct {
	accessToken string
	reporter    *collectorpb.Reporter
	client      collectorpb.CollectorServiceClient
	conn        *grpc.ClientConn
	maxSpans    int

	lock     sync.Mutex
	buffer   []instrumentation.RawSpan
	dropped  int64
	disabled bool
}

// NewRecorder dials the collector unless WithClient is given.
func NewRecorder(opts ...Option) (*Recorder, error) {
	c := defaultConfig()
	for _, opt := range opts {
		opt(c)
	}

	r := &Recorder{
		accessToken: c.accessToken,
		reporter: &collectorpb.Reporter{
			ReporterId: randx.GenSeededGUID(),
			Tags:       []*collectorpb.KeyValue{toKeyValue(ComponentNameKey, c.componentName)},
		},
		client:   c.client,
		maxSpans: c.maxBufferedSpans,
	}

	if r.client == nil {
		var dialOptions []grpc.DialOption
		if c.insecure {
			dialOptions = append(dialOptions, grpc.WithTransportCredentials(insecure.NewCredentials()))
		} else {
			dialOptions = append(dialOptions, grpc.WithTransportCredentials(credentials.NewTLS(c.tlsConfig)))
		}

		conn, err := grpc.Dial(c.addr, dialOptions...)
		if err != nil {
			return nil, fmt.Errorf("dial collector %s: %w", c.addr, err)
		}
		r.conn = conn
		r.client = collectorpb.NewCollectorServiceClient(conn)
	}
	return r, nil
}

func (r *Recorder) RecordSpan(span instrumentation.RawSpan) {
	r.lock.Lock()
	defer r.lock.Unlock()

	if r.disabled {
		return
	}
	if len(r.buffer) >= r.maxSpans {
		r.dropped++
		return
	}
	r.buffer = append(r.buffer, span)
}

// Flush sends the buffered spans in a single report. Spans in a failed
// report are dropped.
func (r *Recorder) Flush(ctx context.Context) error {
	r.lock.Lock()
	if r.disabled {
		r.lock.Unlock()
		return ErrDisabled
	}
	spans, dropped := r.buffer, r.dropped
	r.buffer, r.dropped = nil, 0
	r.lock.Unlock()

	if len(spans) == 0 && dropped == 0 {
		return nil
	}

	req := &collectorpb.ReportRequest{
		Reporter: r.reporter,
		Auth:     &collectorpb.Auth{AccessToken: r.accessToken},
		InternalMetrics: &collectorpb.InternalMetrics{
			Counts: []*collectorpb.MetricsSample{{
				Name:  "spans.dropped",
				Value: &collectorpb.MetricsSample_IntValue{IntValue: dropped},
			}},
		},
	}
	for _, span := range spans {
		req.Spans = append(req.Spans, ToProto(span))
	}

	resp, err := r.client.Report(ctx, req)
	if err != nil {
		return fmt.Errorf("report %d spans: %w", len(spans), err)
	}
	if disabled(resp) {
		r.lock.Lock()
		r.disabled = true
		r.buffer = nil
		r.lock.Unlock()
		return ErrDisabled
	}
	if errs := resp.GetErrors(); len(errs) > 0 {
		return fmt.Errorf("collector rejected report: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Close flushes and closes the connection dialed by NewRecorder.
func (r *Recorder) Close(ctx context.Context) error {
	err := r.Flush(ctx)
	if r.conn != nil {
		if cerr := r.conn.Close(); cerr != nil && cerr != grpc.ErrClientConnClosing {
			err = errors.Join(err, cerr)
		}
	}
	return err
}

func disabled(resp *collectorpb.ReportResponse) bool {
	for _, command := range resp.GetCommands() {
		if command.Disable {
			return true
		}
	}
	return false
}
