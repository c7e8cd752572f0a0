package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/tools/go/packages"

	"github.com/sirkon/traceinstr/internal/instrument"
	"github.com/sirkon/traceinstr/internal/report"
)

const loadMode = packages.NeedName |
	packages.NeedFiles |
	packages.NeedCompiledGoFiles |
	packages.NeedSyntax |
	packages.NeedTypes |
	packages.NeedTypesInfo

func loadPackages(ctx context.Context, patterns []string) ([]*packages.Package, error) {
	if len(patterns) == 0 {
		patterns = []string{"."}
	}

	pkgs, err := packages.Load(&packages.Config{
		Context: ctx,
		Mode:    loadMode,
	}, patterns...)
	if err != nil {
		return nil, fmt.Errorf("load packages: %w", err)
	}

	var errs error
	for _, p := range pkgs {
		for _, e := range p.Errors {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", p.PkgPath, e))
		}
	}
	if errs != nil {
		return nil, errs
	}

	return pkgs, nil
}

// packageResult is a rewrite of a single package file.
type packageResult struct {
	pkg *packages.Package
	res *instrument.Result
}

// rewritePackages rewrites every file of the packages. Rule violations are
// collected by the reporter, the rest of errors are returned.
func rewritePackages(
	ctx context.Context,
	pkgs []*packages.Package,
	rw *instrument.Rewriter,
	rep *report.Reporter,
	jobs int,
	log *zap.Logger,
) ([]packageResult, error) {
	var total int
	for _, p := range pkgs {
		total += len(p.Syntax)
	}

	results := make([]packageResult, total)
	phase := rep.Phase(report.PhaseResolve)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)

	var i int
	for _, p := range pkgs {
		for _, file := range p.Syntax {
			idx := i
			i++

			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}

				filename := p.Fset.File(file.Pos()).Name()
				src, err := os.ReadFile(filename)
				if err != nil {
					return fmt.Errorf("read %s: %w", filename, err)
				}

				res, err := rw.RewriteFile(p.Fset, file, src, p.TypesInfo, p.PkgPath)
				if err != nil {
					return phase.Collect(p.Fset, err)
				}

				log.Debug(
					"rewrite file",
					zap.String("package", p.PkgPath),
					zap.String("file", filename),
					zap.Int("functions", len(res.Functions)),
				)
				results[idx] = packageResult{pkg: p, res: res}
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	var res []packageResult
	for _, r := range results {
		if r.res != nil {
			res = append(res, r)
		}
	}

	return res, nil
}

// violations returns an error when rule violations were reported, they are
// printed to stderr.
func violations(rep *report.Reporter) error {
	if rep.Len() == 0 {
		return nil
	}

	if err := rep.Fprint(os.Stderr); err != nil {
		return fmt.Errorf("print violations: %w", err)
	}

	return fmt.Errorf("%d instrumentation violations found", rep.Len())
}
