package main

import (
	"bytes"
	"embed"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/sirkon/deepequal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/sirkon/traceinstr/internal/instrument"
)

//go:embed testdata
var planTestCases embed.FS

const moduleTarget = "github.com/sirkon/traceinstr"

func TestPlan(t *testing.T) {
	expected := map[string][]functionPlan{
		"case_service.go": {
			{
				Function: "Store.Get",
				Position: "case_service.go:10",
				Span:     "Get",
				Target:   moduleTarget,
				Level:    "info",
				Kind:     "sync",
				Err:      true,
				Context:  "ctx",
				Fields: []fieldPlan{
					{Name: "self", Source: "receiver s", Mode: "debug"},
					{Name: "ctx", Source: "param #0 ctx", Mode: "debug"},
					{Name: "key", Source: "param #1 key", Mode: "debug"},
					{Name: "token", Source: "empty"},
					{Name: "error", Source: "empty"},
				},
			},
			{
				Function: "Store.Put",
				Position: "case_service.go:15",
				Span:     "store.put",
				Target:   moduleTarget,
				Level:    "debug",
				Kind:     "sync",
				Fields: []fieldPlan{
					{Name: "self", Source: "receiver s", Mode: "debug"},
					{Name: "ctx", Source: "param #0 ctx", Mode: "debug"},
					{Name: "key", Source: "param #1 key", Mode: "debug"},
					{Name: "value", Source: "param #2 value", Mode: "debug"},
					{Name: "size", Source: "override len(value)", Mode: "pass-through"},
				},
			},
		},
		"case_stream.go": {
			{
				Function: "Numbers",
				Position: "case_stream.go:6",
				Span:     "Numbers",
				Target:   "streams",
				Level:    "info",
				Kind:     "seq",
				Fields: []fieldPlan{
					{Name: "limit", Source: "empty"},
				},
			},
			{
				Function: "Ready",
				Position: "case_stream.go:17",
				Span:     "Ready",
				Target:   moduleTarget,
				Level:    "info",
				Kind:     "sync",
				Ret:      true,
				Fields: []fieldPlan{
					{Name: "n", Source: "param #0 n", Mode: "debug"},
					{Name: "return", Source: "empty"},
				},
			},
		},
	}

	files, err := planTestCases.ReadDir("testdata/cases")
	if err != nil {
		t.Fatal(fmt.Errorf("list files for plan checks: %w", err))
	}

	for _, file := range files {
		if file.IsDir() {
			continue
		}

		if !strings.HasPrefix(file.Name(), "case_") {
			continue
		}

		t.Run(file.Name(), func(t *testing.T) {
			src, err := planTestCases.ReadFile("testdata/cases/" + file.Name())
			if err != nil {
				t.Fatalf("read file %s: %s", file.Name(), err)
			}

			expectedPlans, ok := expected[file.Name()]
			if !ok {
				t.Fatal("no plan found for", file.Name())
			}

			rw := instrument.New(instrument.Options{Context: true}, nil)
			res, err := rw.RewriteSource(file.Name(), src)
			if err != nil {
				t.Fatalf("rewrite the case file: %s", err)
			}

			got := describeResult(res)
			if !reflect.DeepEqual(expectedPlans, got) {
				deepequal.SideBySide(t, "plan", expectedPlans, got)
				t.Fail()
			}
		})
	}
}

func TestPrintPlans(t *testing.T) {
	plans := []functionPlan{
		{
			Function: "Sum",
			Position: "sum.go:4",
			Span:     "Sum",
			Target:   "example.com/demo",
			Level:    "info",
			Kind:     "sync",
			Fields: []fieldPlan{
				{Name: "a", Source: "param #0 a", Mode: "debug"},
				{Name: "b", Source: "empty"},
			},
		},
	}

	var text bytes.Buffer
	require.NoError(t, printPlans(&text, planFormatText, plans))
	require.Equal(t, `sum.go:4 Sum
  span "Sum" target "example.com/demo" level info kind sync
  a = param #0 a (debug)
  b = empty
`, text.String())

	var data bytes.Buffer
	require.NoError(t, printPlans(&data, planFormatYAML, plans))

	var decoded []functionPlan
	require.NoError(t, yaml.Unmarshal(data.Bytes(), &decoded))
	require.Equal(t, plans, decoded)
}

func TestRootCommand(t *testing.T) {
	cmd := newRootCommand()

	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	require.Equal(t, []string{"plan", "rewrite", "version"}, names)

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"plan", "--format", "json"})
	require.ErrorContains(t, cmd.Execute(), `unknown format "json"`)
}

type syncCounter struct {
	bytes.Buffer
	syncs int
}

func (s *syncCounter) Sync() error {
	s.syncs++
	return nil
}

func TestAppSync(t *testing.T) {
	var a app
	require.NotPanics(t, a.sync)

	out := &syncCounter{}
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		zapcore.AddSync(out),
		zapcore.DebugLevel,
	)
	a.log = zap.New(core)
	a.log.Info("rewritten")

	a.sync()
	require.Equal(t, 1, out.syncs)
	require.Contains(t, out.String(), "rewritten")
}
