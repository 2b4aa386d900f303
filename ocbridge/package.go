// Package ocbridge provides an OpenCensus exporter handing OpenCensus spans
// to an instrumentation.SpanRecorder, so that code instrumented with
// OpenCensus reports through the same sink as the rest of the process.
//
//	func Example() {
//	    recorder, err := collector.NewRecorder(collector.WithAccessToken(token))
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    exporter := ocbridge.NewExporter(recorder, ocbridge.WithComponentName("checkout"))
//	    defer exporter.Flush(context.Background())
//
//	    trace.RegisterExporter(exporter)
//	}
package ocbridge
