// Command traceinstr rewrites Go packages so that functions marked with
// instrumentation directives open a span for every call.
//
//	// Handle serves a request.
//	//
//	//trace:instrument(skip(req), err)
//	func (s *Server) Handle(ctx context.Context, req *Request) error {
//		...
//	}
//
// Rewritten files are put aside and an overlay for go build -overlay is
// produced, so the sources stay intact unless asked otherwise.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sirkon/traceinstr/internal/config"
)

// app is state shared by commands.
type app struct {
	configPath string
	verbose    bool

	cfg *config.Config
	log *zap.Logger
}

func (a *app) setup(*cobra.Command, []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}

	log, err := newLogger(a.verbose)
	if err != nil {
		return fmt.Errorf("setup logger: %w", err)
	}

	a.cfg = cfg
	a.log = log
	return nil
}

// sync flushes buffered log entries.
func (a *app) sync() {
	if a.log == nil {
		return
	}

	// Sync of a terminal stderr fails with EINVAL on some systems, there is
	// nothing to report it to anyway.
	_ = a.log.Sync()
}

func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.DisableStacktrace = true
	cfg.DisableCaller = true
	if !verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}

	return cfg.Build()
}

func newRootCommand() *cobra.Command {
	return (&app{}).rootCommand()
}

func (a *app) rootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "traceinstr",
		Short: "Instrument Go functions with tracing spans",
		Long: `traceinstr finds functions marked with //trace:instrument directives
(or matched by configured rules) and rewrites them to open a span per call.

Commands:
  rewrite   rewrite packages and produce a build overlay
  plan      show how functions would be instrumented
  version   show version information`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "configuration file")
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(newRewriteCommand(a))
	rootCmd.AddCommand(newPlanCommand(a))
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

func main() {
	a := &app{}
	err := a.rootCommand().Execute()
	a.sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
