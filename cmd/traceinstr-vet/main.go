// Command traceinstr-vet validates instrumentation directives. It can be
// used standalone or as a go vet tool:
//
//	go vet -vettool=$(which traceinstr-vet) ./...
package main

import (
	"golang.org/x/tools/go/analysis/singlechecker"

	"github.com/sirkon/traceinstr/internal/checker"
)

func main() {
	singlechecker.Main(checker.Analyzer)
}
