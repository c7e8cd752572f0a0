// Package spantest provides collectors for testing instrumented code.
//
// MockCollector checks events against an ordered list of expectations:
//
//	fn := spantest.Span().Named("my_fn").AtLevel(span.LevelDebug)
//	c, h := spantest.Mock().
//		NewSpan(fn.WithFields(spantest.OnlyFields(spantest.Field("arg1", 2)))).
//		Enter(fn).
//		Exit(fn).
//		Close(fn).
//		Only().
//		Run()
//
//	span.WithDefault(c, func() { myFn(2) })
//	h.AssertFinished(t)
//
// Recorder keeps every event for later inspection, its text rendering is
// convenient for golden files.
package spantest
