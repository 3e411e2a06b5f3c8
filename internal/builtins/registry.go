// Package builtins implements the OPA builtin dispatch layer: a registry
// mapping builtin names to host functions, and a wrapping layer that turns
// an arbitrary Go function into the uniform
//
//	func(ctx, evalctx, args [][]byte) (json.RawMessage, error)
//
// shape the guest dispatch trampolines need. The original source generates
// this wrapper from four compile-time boolean dimensions (context-taking,
// asynchronous, fallible, arity 0-4) via const-generic trait impls; Go has
// no equivalent type-level machinery, so this package hand-writes an
// explicit arity-by-arity table using generics instead (the alternative the
// design notes call out directly). The fallible/infallible split collapses
// for free in Go, since every function here already returns an error --
// "infallible" builtins simply always return a nil one. The
// asynchronous/synchronous split collapses similarly: every wrapped Func
// takes a context.Context and runs on the calling goroutine, which is
// serialised per evaluation by the caller.
package builtins

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/agnivade/levenshtein"

	"github.com/open-policy-agent/opa-wasm-host/internal/evalctx"
)

// Func is the uniform shape every registered builtin is converted to.
type Func func(ctx context.Context, ec evalctx.EvaluationContext, args [][]byte) (json.RawMessage, error)

// Registry is a fixed, name-keyed table of wrapped builtin functions,
// constructed once at startup and consulted read-only after that.
type Registry struct {
	funcs map[string]Func
}

// NewRegistry builds the registry containing every builtin this host
// recognises (see catalogue.go for the full name table).
func NewRegistry() *Registry {
	return &Registry{funcs: catalogue()}
}

// Resolve looks up name, returning ok=false if the registry has no function
// registered under that name. Unlike construction-time ID resolution (which
// fails fast, see ResolveIDs), this never errors: an unregistered builtin
// name invoked at runtime is the guest's problem, surfaced as a trap by the
// caller.
func (r *Registry) Resolve(name string) (Func, bool) {
	f, ok := r.funcs[name]
	return f, ok
}

// ResolveIDs maps a guest-reported {name: id} table to {id: name}, failing
// if any name is not present in the registry. This mirrors the Runtime
// construction step that validates every builtin the policy imports has a
// host-side implementation.
func (r *Registry) ResolveIDs(nameToID map[string]int32) (map[int32]string, error) {
	out := make(map[int32]string, len(nameToID))
	for name, id := range nameToID {
		if _, ok := r.funcs[name]; !ok {
			return nil, fmt.Errorf("unknown builtin %q%s", name, r.suggest(name))
		}
		out[id] = name
	}
	return out, nil
}

// Dispatch invokes the builtin registered under name. Callers (the wasm
// package's builtin trampoline, hostState.dispatch) are responsible for acquiring the evaluation
// context mutex before calling this and releasing it after.
func (r *Registry) Dispatch(ctx context.Context, ec evalctx.EvaluationContext, name string, args [][]byte) (json.RawMessage, error) {
	f, ok := r.funcs[name]
	if !ok {
		return nil, fmt.Errorf("unknown builtin %q%s", name, r.suggest(name))
	}
	return f(ctx, ec, args)
}

// suggest returns ", did you mean %q?" naming the closest registered name
// by Levenshtein distance, or "" if nothing is close enough to be useful.
func (r *Registry) suggest(name string) string {
	const maxDistance = 3

	best := ""
	bestDist := maxDistance + 1
	names := make([]string, 0, len(r.funcs))
	for n := range r.funcs {
		names = append(names, n)
	}
	sort.Strings(names) // deterministic tie-break

	for _, n := range names {
		d := levenshtein.ComputeDistance(name, n)
		if d < bestDist {
			bestDist, best = d, n
		}
	}
	if best == "" {
		return ""
	}
	return fmt.Sprintf(", did you mean %q?", best)
}
