package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sirkon/traceinstr/internal/instrument"
	"github.com/sirkon/traceinstr/internal/report"
)

const (
	planFormatText = "text"
	planFormatYAML = "yaml"
)

// functionPlan describes instrumentation of a single function.
type functionPlan struct {
	Function string      `yaml:"function"`
	Position string      `yaml:"position"`
	Span     string      `yaml:"span"`
	Target   string      `yaml:"target"`
	Level    string      `yaml:"level"`
	Kind     string      `yaml:"kind"`
	Err      bool        `yaml:"err,omitempty"`
	Ret      bool        `yaml:"ret,omitempty"`
	Context  string      `yaml:"context,omitempty"`
	Fields   []fieldPlan `yaml:"fields,omitempty"`
}

type fieldPlan struct {
	Name   string `yaml:"name"`
	Source string `yaml:"source"`
	Mode   string `yaml:"mode,omitempty"`
}

func newPlanCommand(a *app) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "plan [packages]",
		Short: "Show how functions of the packages would be instrumented",
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != planFormatText && format != planFormatYAML {
				return fmt.Errorf("unknown format %q, must be %s or %s", format, planFormatText, planFormatYAML)
			}

			ctx := cmd.Context()
			pkgs, err := loadPackages(ctx, args)
			if err != nil {
				return err
			}

			rep := &report.Reporter{}
			rw := instrument.New(instrument.OptionsFromConfig(a.cfg), a.log)
			results, err := rewritePackages(ctx, pkgs, rw, rep, a.cfg.Jobs, a.log)
			if err != nil {
				return err
			}
			if err := violations(rep); err != nil {
				return err
			}

			var plans []functionPlan
			for _, r := range results {
				plans = append(plans, describeResult(r.res)...)
			}

			return printPlans(cmd.OutOrStdout(), format, plans)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", planFormatText, "output format: text or yaml")

	return cmd
}

func describeResult(res *instrument.Result) []functionPlan {
	plans := make([]functionPlan, 0, len(res.Functions))
	for _, fn := range res.Functions {
		plans = append(plans, describe(fn))
	}

	return plans
}

func describe(fn *instrument.Function) functionPlan {
	shape, cfg := fn.Shape, fn.Config

	name := shape.Name
	if shape.IsMethod() {
		name = strings.TrimPrefix(shape.Receiver.TypeText, "*") + "." + name
	}

	kind := "sync"
	if cfg.Seq && shape.Resumable != instrument.ResumableNone {
		kind = shape.Resumable.String()
	}

	res := functionPlan{
		Function: name,
		Position: fmt.Sprintf("%s:%d", fn.Span.Site.File, fn.Span.Site.Line),
		Span:     cfg.Name,
		Target:   cfg.Target,
		Level:    cfg.LevelText,
		Kind:     kind,
		Err:      cfg.Err,
		Ret:      cfg.Ret,
		Context:  fn.Span.Context,
	}
	for _, e := range fn.Plan.Entries {
		f := fieldPlan{
			Name:   e.Name,
			Source: e.Source.String(),
		}
		if e.Mode != instrument.RenderNone {
			f.Mode = e.Mode.String()
		}
		res.Fields = append(res.Fields, f)
	}

	return res
}

func printPlans(w io.Writer, format string, plans []functionPlan) error {
	if format == planFormatYAML {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(plans); err != nil {
			return fmt.Errorf("encode plans: %w", err)
		}

		return enc.Close()
	}

	for _, p := range plans {
		if _, err := fmt.Fprintf(w, "%s %s\n", p.Position, p.Function); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "  span %q target %q level %s kind %s\n", p.Span, p.Target, p.Level, p.Kind); err != nil {
			return err
		}
		for _, f := range p.Fields {
			line := "  " + f.Name + " = " + f.Source
			if f.Mode != "" {
				line += " (" + f.Mode + ")"
			}
			if _, err := fmt.Fprintln(w, line); err != nil {
				return err
			}
		}
	}

	return nil
}
