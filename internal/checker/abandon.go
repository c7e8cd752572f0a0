package checker

import (
	"fmt"
	"go/ast"
	"go/types"
	"maps"

	"golang.org/x/tools/go/types/typeutil"

	"github.com/sirkon/traceinstr/internal/config"
)

// AbandonKind describes how a function terminates the program. Deferred
// calls do not run in either case, spans of every function on the stack are
// left open.
type AbandonKind int

const (
	AbandonKindInvalid AbandonKind = iota

	AbandonKindSilent
	AbandonKindFormat
	AbandonKindZap
)

var abandonKindValueMap = map[AbandonKind]string{
	AbandonKindSilent: "silent",
	AbandonKindFormat: "format",
	AbandonKindZap:    "zap",
}

func (k AbandonKind) String() string {
	v, ok := abandonKindValueMap[k]
	if !ok {
		return fmt.Sprintf("invalid(%d)", k)
	}

	return v
}

// UnmarshalText for setting values with configs, CLI, etc.
func (k *AbandonKind) UnmarshalText(rawtext []byte) error {
	text := string(rawtext)
	for key, v := range abandonKindValueMap {
		if v == text {
			*k = key
			return nil
		}
	}

	return fmt.Errorf("unknown execution abandon kind %q", text)
}

// knownAbandonFuncs are functions exiting the process without running
// deferred calls.
type knownAbandonFuncs struct {
	known map[config.Reference]AbandonKind
}

func newKnownAbandonFuncs(custom map[config.Reference]AbandonKind) *knownAbandonFuncs {
	predefined := map[config.Reference]AbandonKind{
		// Stdlib.
		{Package: "os", Name: "Exit"}:                     AbandonKindSilent,
		{Package: "syscall", Name: "Exit"}:                AbandonKindSilent,
		{Package: "log", Name: "Fatal"}:                   AbandonKindFormat,
		{Package: "log", Name: "Fatalf"}:                  AbandonKindFormat,
		{Package: "log", Name: "Fatalln"}:                 AbandonKindFormat,
		{Package: "log", Type: "Logger", Name: "Fatal"}:   AbandonKindFormat,
		{Package: "log", Type: "Logger", Name: "Fatalf"}:  AbandonKindFormat,
		{Package: "log", Type: "Logger", Name: "Fatalln"}: AbandonKindFormat,

		// Zap.
		{Package: "go.uber.org/zap", Type: "Logger", Name: "Fatal"}:          AbandonKindZap,
		{Package: "go.uber.org/zap", Type: "SugaredLogger", Name: "Fatal"}:   AbandonKindZap,
		{Package: "go.uber.org/zap", Type: "SugaredLogger", Name: "Fatalf"}:  AbandonKindZap,
		{Package: "go.uber.org/zap", Type: "SugaredLogger", Name: "Fatalw"}:  AbandonKindZap,
		{Package: "go.uber.org/zap", Type: "SugaredLogger", Name: "Fatalln"}: AbandonKindZap,
	}

	if custom == nil {
		custom = map[config.Reference]AbandonKind{}
	} else {
		custom = maps.Clone(custom)
	}

	maps.Insert(custom, maps.All(predefined))

	return &knownAbandonFuncs{
		known: custom,
	}
}

// lookup returns the abandon kind of the function called.
func (k *knownAbandonFuncs) lookup(info *types.Info, call *ast.CallExpr) (config.Reference, AbandonKind, bool) {
	fn, ok := typeutil.Callee(info, call).(*types.Func)
	if !ok || fn.Pkg() == nil {
		return config.Reference{}, AbandonKindInvalid, false
	}

	ref := config.Reference{
		Package: fn.Pkg().Path(),
		Name:    fn.Name(),
	}
	if recv := fn.Signature().Recv(); recv != nil {
		ref.Type = receiverTypeName(recv.Type())
	}

	kind, ok := k.known[ref]
	return ref, kind, ok
}

func receiverTypeName(t types.Type) string {
	if p, ok := types.Unalias(t).(*types.Pointer); ok {
		t = p.Elem()
	}

	named, ok := types.Unalias(t).(*types.Named)
	if !ok {
		return ""
	}

	return named.Origin().Obj().Name()
}
