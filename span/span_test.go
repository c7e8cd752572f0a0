package span_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sirkon/traceinstr/span"
	"github.com/sirkon/traceinstr/span/spantest"
)

var testSite = &span.Callsite{
	Name:   "my_fn",
	Target: "my_target",
	Level:  span.LevelDebug,
	Fields: []string{"arg1", span.ErrorField, span.ReturnField},
	File:   "span_test.go",
	Line:   1,
}

func TestSpanLifecycle(t *testing.T) {
	fn := spantest.Span().Named("my_fn").AtLevel(span.LevelDebug).WithTarget("my_target")
	c, h := spantest.Mock().
		NewSpan(fn.WithFields(spantest.OnlyFields(spantest.Field("arg1", 2)))).
		Enter(fn).
		Record(fn, spantest.OnlyFields(spantest.Field(span.ErrorField, "failure"))).
		Exit(fn).
		Close(fn).
		Only().
		Run()

	span.WithDefault(c, func() {
		s := span.New(testSite, span.Debug("arg1", 2))
		defer s.Close()
		defer s.Enter().Exit()

		s.Record("undeclared", 1)
		s.RecordError(nil)
		s.RecordError(errors.New("failure"))
	})

	h.AssertFinished(t)
}

type failure struct {
	msg string
}

func (f *failure) Error() string {
	return f.msg
}

type brokenError struct{}

func (brokenError) Error() string {
	panic("boom")
}

func TestSpanRecordError_Unusual(t *testing.T) {
	var typed *failure
	var err error = typed

	var nilSpan *span.Span
	require.NotPanics(t, func() {
		nilSpan.RecordError(err)
		nilSpan.RecordError(brokenError{})
	})

	rec := spantest.NewRecorder()
	span.WithDefault(rec, func() {
		s := span.New(testSite)
		require.NotPanics(t, func() {
			s.RecordError(err)
			s.RecordError(brokenError{})
		})
		s.Close()
		s.RecordError(err)

		noErrors := span.New(&span.Callsite{Name: "quiet", Target: "t"})
		noErrors.RecordError(err)
		noErrors.Close()
	})

	require.Equal(
		t,
		"new my_fn#1 target=my_target level=debug\n"+
			"record my_fn#1 fields[error=<nil>]\n"+
			"record my_fn#1 fields[error=%!v(PANIC=Error method: boom)]\n"+
			"close my_fn#1\n"+
			"new quiet#2 target=t level=info\n"+
			"close quiet#2\n",
		rec.String(),
	)
}

func TestSpanIdempotence(t *testing.T) {
	rec := spantest.NewRecorder()
	span.WithDefault(rec, func() {
		s := span.New(testSite)
		g := s.Enter()
		g.Exit()
		g.Exit()
		s.Close()
		s.Close()

		require.Nil(t, s.Enter(), "closed span must not be entered")
		s.Record("arg1", 1)
	})

	require.Equal(
		t,
		"new my_fn#1 target=my_target level=debug\nenter my_fn#1\nexit my_fn#1\nclose my_fn#1\n",
		rec.String(),
	)
}

func TestSpanDisabled(t *testing.T) {
	restore := span.SetDefault(span.Discard)
	defer restore()

	s := span.New(testSite, span.Debug("arg1", 1))
	require.Nil(t, s)
	require.Zero(t, s.ID())
	require.Nil(t, s.Callsite())

	// Nothing must panic on a disabled span.
	defer s.Close()
	defer s.Enter().Exit()
	s.Record("arg1", 2)
	s.RecordError(errors.New("failure"))
}

func TestSetDefault(t *testing.T) {
	rec := spantest.NewRecorder()
	restore := span.SetDefault(rec)
	require.Same(t, rec, span.Default())

	inner := span.SetDefault(nil)
	require.Equal(t, span.Discard, span.Default())
	inner()
	require.Same(t, rec, span.Default())

	restore()
	require.Equal(t, span.Discard, span.Default())
}

func TestNewContext(t *testing.T) {
	outerSite := &span.Callsite{Name: "outer", Target: "t"}
	innerSite := &span.Callsite{Name: "inner", Target: "t"}

	outer := spantest.Span().Named("outer").ChildOf("")
	inner := spantest.Span().Named("inner").ChildOf("outer")
	c, h := spantest.Mock().
		NewSpan(outer).
		Enter(outer).
		NewSpan(inner).
		Enter(inner).
		Exit(inner).
		Close(inner).
		Exit(outer).
		Close(outer).
		Only().
		Run()

	span.WithDefault(c, func() {
		ctx := context.Background()
		s := span.NewContext(ctx, outerSite)
		defer s.Close()
		defer s.Enter().Exit()

		ctx = span.ContextWithSpan(ctx, s)
		require.Same(t, s, span.FromContext(ctx))

		func(ctx context.Context) {
			s := span.NewContext(ctx, innerSite)
			defer s.Close()
			defer s.Enter().Exit()
		}(ctx)
	})

	h.AssertFinished(t)
}

func TestContextWithoutSpan(t *testing.T) {
	ctx := context.Background()
	require.Equal(t, ctx, span.ContextWithSpan(ctx, nil))
	require.Nil(t, span.FromContext(ctx))
	require.Nil(t, span.FromContext(nil)) //nolint:staticcheck
}

type levelCollector struct {
	*spantest.Recorder
	min span.Level
}

func (c levelCollector) Enabled(site *span.Callsite) bool {
	return site.Level >= c.min
}

func TestTee(t *testing.T) {
	all := spantest.NewRecorder()
	errorsOnly := levelCollector{Recorder: spantest.NewRecorder(), min: span.LevelError}

	span.WithDefault(span.Tee(all, errorsOnly), func() {
		s := span.New(testSite)
		defer s.Close()
		defer s.Enter().Exit()
	})

	require.Len(t, all.Events(), 4)
	require.Empty(t, errorsOnly.Events())
}

func TestCallsite(t *testing.T) {
	require.True(t, testSite.Declares("arg1"))
	require.False(t, testSite.Declares("arg2"))
	require.Equal(t, "my_target my_fn (span_test.go:1)", testSite.String())

	var nilSite *span.Callsite
	require.False(t, nilSite.Declares("arg1"))
	require.Equal(t, "<nil>", nilSite.String())
}
