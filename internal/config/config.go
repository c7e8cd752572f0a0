// Package config loads traceinstr settings.
//
// Settings come from .traceinstr.yaml (current directory, then $HOME, or an
// explicit path), TRACEINSTR_* environment variables and defaults:
//
//	level: debug
//	context: true
//	jobs: 8
//	output:
//	  dir: .traceinstr
//	  overlay: .traceinstr/overlay.json
//	rules:
//	  - func: '"github.com/acme/billing".Service.Charge'
//	    options: '(skip(card), err)'
//	abandon:
//	  - '"github.com/acme/kit/must".Exit'
package config

import (
	"fmt"
	"go/token"
	"strings"

	"go.uber.org/multierr"

	"github.com/sirkon/traceinstr/internal/directive"
	"github.com/sirkon/traceinstr/span"
)

// Default values.
const (
	DefaultLevel     = "info"
	DefaultDirective = directive.Prefix
	DefaultContext   = true
	DefaultJobs      = 4
	DefaultOutputDir = ".traceinstr"
)

// Config of the rewriter and the analyzer.
type Config struct {
	Level     string   `mapstructure:"level"`
	Directive string   `mapstructure:"directive"`
	Context   bool     `mapstructure:"context"`
	Jobs      int      `mapstructure:"jobs"`
	Output    Output   `mapstructure:"output"`
	Rules     []Rule   `mapstructure:"rules"`
	Abandon   []string `mapstructure:"abandon"`

	level   span.Level
	abandon []Reference
}

// Output configures where rewritten files go.
type Output struct {
	Dir     string `mapstructure:"dir"`
	Overlay string `mapstructure:"overlay"`
}

// Rule instruments a function without a directive in its source.
type Rule struct {
	Func    string `mapstructure:"func"`
	Options string `mapstructure:"options"`

	ref Reference
}

// Ref returns the parsed function reference. Valid after Validate.
func (r Rule) Ref() Reference {
	return r.ref
}

// OptionsText returns options in directive form, parenthesized.
func (r Rule) OptionsText() string {
	text := strings.TrimSpace(r.Options)
	if text == "" || strings.HasPrefix(text, "(") {
		return text
	}

	return "(" + text + ")"
}

// Default returns configuration with default values.
func Default() *Config {
	return &Config{
		Level:     DefaultLevel,
		Directive: DefaultDirective,
		Context:   DefaultContext,
		Jobs:      DefaultJobs,
		Output: Output{
			Dir: DefaultOutputDir,
		},
		level: span.LevelInfo,
	}
}

// SpanLevel returns the default span level. Valid after Validate.
func (c *Config) SpanLevel() span.Level {
	return c.level
}

// AbandonFuncs returns extra functions skipping deferred calls. Valid after Validate.
func (c *Config) AbandonFuncs() []Reference {
	return c.abandon
}

// Validate checks values and computes derived ones.
func (c *Config) Validate() error {
	var errs error

	lvl, err := span.ParseLevel(c.Level)
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("level: %w", err))
	}
	c.level = lvl

	if !strings.HasPrefix(c.Directive, "//") || strings.ContainsAny(c.Directive, " \t(") {
		errs = multierr.Append(errs, fmt.Errorf("directive: %q must be a line comment prefix like //trace:instrument", c.Directive))
	}

	if c.Jobs < 1 {
		errs = multierr.Append(errs, fmt.Errorf("jobs: must be positive, got %d", c.Jobs))
	}

	for i := range c.Rules {
		rule := &c.Rules[i]
		ref, err := ParseReference(rule.Func)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("rules[%d].func: %w", i, err))
			continue
		}
		rule.ref = ref

		if _, err := directive.ParseOptions(rule.OptionsText(), noPos); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("rules[%d].options: %w", i, err))
		}
	}

	c.abandon = c.abandon[:0]
	for i, text := range c.Abandon {
		ref, err := ParseReference(text)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("abandon[%d]: %w", i, err))
			continue
		}
		c.abandon = append(c.abandon, ref)
	}

	return errs
}

func noPos(int) token.Pos {
	return token.NoPos
}
