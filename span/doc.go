// Package span is the runtime side of traceinstr.
//
// Functions rewritten by the traceinstr tool call into this package: every
// call creates a Span from a package-level Callsite, enters it for the
// duration of the body, and closes it when the call is over. Functions
// returning iter.Seq or iter.Seq2 are wrapped with InstrumentSeq and friends,
// so the span is entered only while the sequence is actually producing
// values.
//
// Span events are delivered to a Collector. The package keeps a process-wide
// default collector, which discards everything until SetDefault is called.
// Backends live in subpackages:
//
//	span/otelspan  OpenTelemetry spans
//	span/logspan   lifecycle logging through logr
//	span/promspan  Prometheus metrics
//	span/spantest  expectations and event recording for tests
//
// Generated code imports this package under the _span name, so the rewriter
// never collides with identifiers of the instrumented file.
package span
