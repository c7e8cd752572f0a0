package report

import (
	"bytes"
	"errors"
	"fmt"
	"go/token"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/sirkon/traceinstr/internal/instrules"
)

func TestReporter_ReportPhases(t *testing.T) {
	tests := []struct {
		name     string
		phase    Phase
		rule     instrules.Rule
		message  string
		filename string
		line     int
	}{
		{
			name:     "directive-phase bad option",
			phase:    PhaseDirective,
			rule:     instrules.BadOption(),
			message:  "unknown option frobnicate",
			filename: "main.go",
			line:     10,
		},
		{
			name:     "resolve-phase unknown skip",
			phase:    PhaseResolve,
			rule:     instrules.UnknownSkip(),
			message:  "no parameter named foo",
			filename: "resolve.go",
			line:     20,
		},
		{
			name:     "check-phase abandon",
			phase:    PhaseCheck,
			rule:     instrules.AbandonSkipsExit(),
			message:  "os.Exit skips deferred exit",
			filename: "file.go",
			line:     42,
		},
	}

	var r Reporter

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			phase := r.Phase(tt.phase)
			phase.Report(tt.rule, tt.message, token.Position{
				Filename: tt.filename,
				Line:     tt.line,
			})
		})
	}

	reps := r.Reports()
	if len(reps) != len(tests) {
		t.Fatalf("expected %d reports, got %d", len(tests), len(reps))
	}

	for i, rep := range reps {
		want := tests[i]
		if rep.Phase != want.phase {
			t.Errorf("[%s] phase mismatch: got %v, want %v", want.name, rep.Phase, want.phase)
		}
		if rep.RuleCode != want.rule {
			t.Errorf("[%s] rule mismatch: got %v, want %v", want.name, rep.RuleCode, want.rule)
		}
		if rep.Message != want.message {
			t.Errorf("[%s] message mismatch: got %q, want %q", want.name, rep.Message, want.message)
		}
		if rep.Pos.Filename != want.filename || rep.Pos.Line != want.line {
			t.Errorf("[%s] position mismatch: got %s:%d, want %s:%d",
				want.name, rep.Pos.Filename, rep.Pos.Line, want.filename, want.line)
		}
	}
}

func TestReporter_ConcurrencySafety(t *testing.T) {
	const n = 500
	var (
		r    Reporter
		wg   sync.WaitGroup
		fset token.FileSet
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r.Report(Report{
				Phase:    PhaseResolve,
				RuleCode: instrules.DuplicateField(),
				Message:  "parallel add",
				Pos:      fset.Position(token.Pos(i)),
			})
		}(i)
	}
	wg.Wait()

	reps := r.Reports()
	if len(reps) != n {
		t.Fatalf("expected %d reports, got %d", n, len(reps))
	}
	reps[0].Message = "changed"
	reps2 := r.Reports()
	if reps2[0].Message == "changed" {
		t.Fatalf("Reports() returned shared slice, expected copy")
	}
}

func TestReporter_Fprint(t *testing.T) {
	var r Reporter
	r.Phase(PhaseResolve).Report(instrules.UnknownSkip(), "no parameter named b", token.Position{
		Filename: "b.go",
		Line:     3,
		Column:   1,
	})
	r.Phase(PhaseDirective).Report(instrules.BadOption(), "unknown option x", token.Position{
		Filename: "a.go",
		Line:     7,
		Column:   2,
	})

	var buf bytes.Buffer
	require.NoError(t, r.Fprint(&buf))
	require.Equal(
		t,
		"a.go:7:2: [directive] TRI006: unknown option x\n"+
			"b.go:3:1: [resolve] TRI003: no parameter named b\n",
		buf.String(),
	)
}

func TestReporterPhase_Collect(t *testing.T) {
	fset := token.NewFileSet()
	file := fset.AddFile("x.go", -1, 100)
	file.SetLines([]int{0, 10, 20})

	plain := errors.New("io failure")
	err := multierr.Combine(
		Errorf(instrules.DuplicateField(), file.Pos(12), "field %s is declared twice", "a"),
		plain,
		Errorf(instrules.NoBody(), file.Pos(1), "function f has no body"),
	)

	var r Reporter
	rest := r.Phase(PhaseResolve).Collect(fset, err)
	require.ErrorIs(t, rest, plain)

	reps := r.Reports()
	require.Len(t, reps, 2)
	require.Equal(t, instrules.DuplicateField(), reps[0].RuleCode)
	require.Equal(t, "field a is declared twice", reps[0].Message)
	require.Equal(t, 2, reps[0].Pos.Line)
	require.Equal(t, 3, reps[0].Pos.Column)
	require.Equal(t, instrules.NoBody(), reps[1].RuleCode)
	require.Equal(t, PhaseResolve, reps[1].Phase)

	require.Equal(t, "TRI005: field a is declared twice", multierr.Errors(err)[0].Error())
}

func TestWithPhase(t *testing.T) {
	fset := token.NewFileSet()
	file := fset.AddFile("x.go", -1, 100)

	directiveErr := WithPhase(PhaseDirective, Errorf(instrules.BadOption(), file.Pos(3), "unknown option x"))
	analyzeErr := WithPhase(PhaseAnalyze, multierr.Combine(
		Errorf(instrules.NoBody(), file.Pos(1), "function f has no body"),
		fmt.Errorf("wrapped: %w", Errorf(instrules.ReservedIdentifier(), file.Pos(2), "_span is reserved")),
	))
	again := WithPhase(PhaseCheck, directiveErr)
	require.Same(t, directiveErr, again)

	var r Reporter
	rest := r.Phase(PhaseResolve).Collect(fset, multierr.Combine(
		directiveErr,
		analyzeErr,
		Errorf(instrules.UnknownSkip(), file.Pos(4), "no parameter named b"),
	))
	require.NoError(t, rest)

	var phases []Phase
	for _, rep := range r.Reports() {
		phases = append(phases, rep.Phase)
	}
	require.Equal(t, []Phase{PhaseDirective, PhaseAnalyze, PhaseAnalyze, PhaseResolve}, phases)
}
