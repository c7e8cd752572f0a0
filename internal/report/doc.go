// Package report accumulates diagnostics of the rewriter and the analyzer.
package report
