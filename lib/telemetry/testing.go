package telemetry

import (
	"sync"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

var (
	testingOnce     sync.Once
	testingRecorder *tracetest.SpanRecorder
)

// SetupForTesting installs a tracer provider that keeps ended spans in
// memory. The provider is shared by every test of the binary.
func SetupForTesting(t testing.TB) *tracetest.SpanRecorder {
	t.Helper()
	testingOnce.Do(func() {
		InitSlog(true)
		testingRecorder = tracetest.NewSpanRecorder()
		otel.SetTracerProvider(trace.NewTracerProvider(trace.WithSpanProcessor(testingRecorder)))
	})
	return testingRecorder
}

// RecordSpans returns a function listing the names of the spans that
// ended after RecordSpans was called.
func RecordSpans(t testing.TB) func() []string {
	t.Helper()
	recorder := SetupForTesting(t)
	start := len(recorder.Ended())
	return func() []string {
		ended := recorder.Ended()
		names := make([]string, 0, len(ended)-start)
		for _, span := range ended[start:] {
			names = append(names, span.Name())
		}
		return names
	}
}
