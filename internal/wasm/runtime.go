// Copyright 2020 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package wasm hosts a single OPA-compiled WebAssembly policy module: it
// supplies the required imports, extracts the guest's exported ABI, and
// drives evaluation through either the classic eval-context path or the
// ABI >= 1.2 fast path. Building blocks are a Runtime (one loaded module)
// and a Policy (a Runtime plus loaded data), matching spec 4.5-4.7.
package wasm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tetratelabs/wazero"

	"github.com/open-policy-agent/opa-wasm-host/internal/builtins"
	"github.com/open-policy-agent/opa-wasm-host/internal/evalctx"
)

const (
	initialMemoryPages = 2
	maxMemoryPages     = 0 // 0 means "no maximum", per spec 4.3.
)

// Runtime is one instantiated guest module: its ABI version, builtin and
// entrypoint tables, and the typed export bindings used to drive it. A
// Runtime has no loaded data; call WithData or WithoutData to obtain a
// Policy.
type Runtime struct {
	wzRuntime wazero.Runtime
	env       *envHandle
	guest     guestHandle
	bindings  *bindings
	abi       ABIVersion
	entryIDs  map[string]int32
	state     *hostState
}

type envHandle struct {
	close func(context.Context) error
}

type guestHandle struct {
	close func(context.Context) error
}

// NewRuntime compiles and instantiates policyWasm, wiring the registry of
// builtins this host recognises, and returns a ready-to-use Runtime. The
// construction order follows spec 4.5 exactly: memory and imports first,
// then instantiation, then ABI/builtin/entrypoint discovery, then the
// dispatch registry is published for the already-wired trampolines to see.
func NewRuntime(ctx context.Context, policyWasm []byte) (*Runtime, error) {
	return NewRuntimeWithMemory(ctx, policyWasm, initialMemoryPages, maxMemoryPages)
}

// NewRuntimeWithMemory is NewRuntime with explicit initial/maximum guest
// memory page counts, for callers (the opa package's pool) that size memory
// per spec 4.3's "WithMemoryLimits" knob.
func NewRuntimeWithMemory(ctx context.Context, policyWasm []byte, minPages, maxPages uint32) (*Runtime, error) {
	wzRuntime := wazero.NewRuntime(ctx)

	state := &hostState{}
	envMod, err := newEnvModule(ctx, wzRuntime, state, minPages, maxPages)
	if err != nil {
		wzRuntime.Close(ctx)
		return nil, fmt.Errorf("%w: registering env module: %w", ErrModuleDefect, err)
	}

	guestMod, err := wzRuntime.Instantiate(ctx, policyWasm)
	if err != nil {
		wzRuntime.Close(ctx)
		return nil, fmt.Errorf("%w: instantiating guest module: %w", ErrModuleDefect, err)
	}

	abi, err := readABIVersion(guestMod)
	if err != nil {
		wzRuntime.Close(ctx)
		return nil, err
	}

	b, err := newBindings(guestMod, envMod, abi)
	if err != nil {
		wzRuntime.Close(ctx)
		return nil, err
	}

	builtinNameToID, err := decodeBuiltins(ctx, b)
	if err != nil {
		wzRuntime.Close(ctx)
		return nil, err
	}
	entryIDs, err := decodeEntrypoints(ctx, b)
	if err != nil {
		wzRuntime.Close(ctx)
		return nil, err
	}

	registry := builtins.NewRegistry()
	idToName, err := registry.ResolveIDs(builtinNameToID)
	if err != nil {
		wzRuntime.Close(ctx)
		return nil, fmt.Errorf("%w: %w", ErrModuleDefect, err)
	}

	state.fill(b, registry, idToName, evalctx.NewDefaultContext())

	return &Runtime{
		wzRuntime: wzRuntime,
		env:       &envHandle{close: envMod.Close},
		guest:     guestHandle{close: guestMod.Close},
		bindings:  b,
		abi:       abi,
		entryIDs:  entryIDs,
		state:     state,
	}, nil
}

// ABI reports the guest's negotiated ABI version.
func (r *Runtime) ABI() ABIVersion { return r.abi }

// Entrypoints returns the {path: id} table the guest advertised.
func (r *Runtime) Entrypoints() map[string]int32 {
	out := make(map[string]int32, len(r.entryIDs))
	for k, v := range r.entryIDs {
		out[k] = v
	}
	return out
}

// Close tears down the guest and env module instances and the underlying
// wazero runtime.
func (r *Runtime) Close(ctx context.Context) error {
	_ = r.guest.close(ctx)
	_ = r.env.close(ctx)
	return r.wzRuntime.Close(ctx)
}

// SetEvaluationContext swaps the evaluation-context implementation used by
// builtins dispatched through this Runtime, e.g. to install a
// evalctx.TestContext in tests.
func (r *Runtime) SetEvaluationContext(ec evalctx.EvaluationContext) {
	r.state.setEvalCtx(ec)
}

func decodeBuiltins(ctx context.Context, b *bindings) (map[string]int32, error) {
	addr, err := b.callBuiltins(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: calling builtins(): %w", ErrModuleDefect, err)
	}
	return decodeNameIDMap(ctx, b, addr, "builtins")
}

func decodeEntrypoints(ctx context.Context, b *bindings) (map[string]int32, error) {
	addr, err := b.callEntrypoints(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: calling entrypoints(): %w", ErrModuleDefect, err)
	}
	return decodeNameIDMap(ctx, b, addr, "entrypoints")
}

func decodeNameIDMap(ctx context.Context, b *bindings, valueAddr int32, what string) (map[string]int32, error) {
	dumpAddr, err := b.callJSONDump(ctx, valueAddr)
	if err != nil {
		return nil, fmt.Errorf("%w: dumping %s(): %w", ErrModuleDefect, what, err)
	}
	raw, err := readCStr(b.memory(), dumpAddr)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s(): %w", ErrModuleDefect, what, err)
	}
	var out map[string]int32
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: decoding %s(): %w", ErrModuleDefect, what, err)
	}
	return out, nil
}
