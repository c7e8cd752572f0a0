package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sirkon/traceinstr/internal/instrument"
	"github.com/sirkon/traceinstr/internal/report"
)

const (
	outputDirPerm  = 0o750
	outputFilePerm = 0o644
	overlayName    = "overlay.json"
)

// overlay is the go build -overlay file format.
type overlay struct {
	Replace map[string]string `json:"Replace"`
}

type rewriteOptions struct {
	out     string
	overlay string
	write   bool
}

func newRewriteCommand(a *app) *cobra.Command {
	var opts rewriteOptions

	cmd := &cobra.Command{
		Use:   "rewrite [packages]",
		Short: "Rewrite instrumented functions of the packages",
		Long: `Rewrite instrumented functions of the packages.

Rewritten files are stored under the output directory and listed in an
overlay file to be used as

  go build -overlay=.traceinstr/overlay.json ./...

With --write files are replaced in place.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.out == "" {
				opts.out = a.cfg.Output.Dir
			}
			if opts.overlay == "" {
				opts.overlay = a.cfg.Output.Overlay
			}
			if opts.overlay == "" {
				opts.overlay = filepath.Join(opts.out, overlayName)
			}

			return runRewrite(cmd, a, opts, args)
		},
	}

	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "directory for rewritten files")
	cmd.Flags().StringVar(&opts.overlay, "overlay", "", "overlay file path")
	cmd.Flags().BoolVarP(&opts.write, "write", "w", false, "replace files in place")

	return cmd
}

func runRewrite(cmd *cobra.Command, a *app, opts rewriteOptions, patterns []string) error {
	ctx := cmd.Context()

	pkgs, err := loadPackages(ctx, patterns)
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

	ov := overlay{Replace: map[string]string{}}
	var functions, files int
	for _, r := range results {
		if !r.res.Changed {
			continue
		}
		functions += len(r.res.Functions)
		files++

		orig, err := filepath.Abs(r.res.Filename)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", r.res.Filename, err)
		}

		target := orig
		if !opts.write {
			target, err = filepath.Abs(filepath.Join(opts.out, filepath.FromSlash(r.pkg.PkgPath), filepath.Base(orig)))
			if err != nil {
				return fmt.Errorf("resolve output for %s: %w", orig, err)
			}
			ov.Replace[orig] = target
		}

		if err := writeFile(target, r.res.Source); err != nil {
			return err
		}
		a.log.Info("rewritten", zap.String("file", orig), zap.String("output", target))
	}

	if !opts.write {
		data, err := json.MarshalIndent(ov, "", "  ")
		if err != nil {
			return fmt.Errorf("encode overlay: %w", err)
		}
		if err := writeFile(opts.overlay, append(data, '\n')); err != nil {
			return err
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%d functions instrumented in %d files\n", functions, files)
	return nil
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), outputDirPerm); err != nil {
		return fmt.Errorf("create directory for %s: %w", path, err)
	}

	if err := os.WriteFile(path, data, outputFilePerm); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	return nil
}
