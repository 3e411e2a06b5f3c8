// Copyright 2020 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package wasm

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.opentelemetry.io/otel"

	"github.com/open-policy-agent/opa-wasm-host/internal/builtins"
	"github.com/open-policy-agent/opa-wasm-host/internal/evalctx"
)

// hostState is the late-initialised handle the opa_builtin{0..4} trampolines
// close over. It is constructed empty, registered as the env module's
// imports, and only filled in once the guest module has been instantiated
// and its builtin/entrypoint tables decoded -- mirroring construction step
// 2 of the runtime build order. A trampoline invoked before fill completes
// traps the guest rather than deadlocking or panicking with a nil pointer.
type hostState struct {
	mu sync.Mutex

	bindings     *bindings
	registry     *builtins.Registry
	builtinNames map[int32]string
	evalCtx      evalctx.EvaluationContext
	ready        bool
}

func (h *hostState) fill(b *bindings, registry *builtins.Registry, names map[int32]string, ec evalctx.EvaluationContext) {
	h.bindings = b
	h.registry = registry
	h.builtinNames = names
	h.evalCtx = ec
	h.ready = true
}

func (h *hostState) setEvalCtx(ec evalctx.EvaluationContext) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.evalCtx = ec
}

func (h *hostState) evaluationContext() evalctx.EvaluationContext {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.evalCtx
}

// newEnvModule builds and instantiates the "env" host module: shared linear
// memory plus the fixed imports the guest requires (spec 4.3). state is
// filled in after the guest module is instantiated.
func newEnvModule(ctx context.Context, r wazero.Runtime, state *hostState, minPages, maxPages uint32) (api.Module, error) {
	builder := r.NewHostModuleBuilder("env")

	builder.NewFunctionBuilder().WithFunc(state.opaAbort).Export("opa_abort")
	builder.NewFunctionBuilder().WithFunc(state.opaPrintln).Export("opa_println")
	builder.NewFunctionBuilder().WithFunc(state.opaBuiltin0).Export("opa_builtin0")
	builder.NewFunctionBuilder().WithFunc(state.opaBuiltin1).Export("opa_builtin1")
	builder.NewFunctionBuilder().WithFunc(state.opaBuiltin2).Export("opa_builtin2")
	builder.NewFunctionBuilder().WithFunc(state.opaBuiltin3).Export("opa_builtin3")
	builder.NewFunctionBuilder().WithFunc(state.opaBuiltin4).Export("opa_builtin4")

	if maxPages == 0 {
		builder.ExportMemory("memory", minPages)
	} else {
		builder.ExportMemoryWithMax("memory", minPages, maxPages)
	}

	return builder.Instantiate(ctx)
}

func (h *hostState) opaAbort(ctx context.Context, addr uint32) {
	msg, err := readCStr(h.bindings.memory(), int32(addr))
	if err != nil {
		panic(&guestTrap{message: fmt.Sprintf("opa_abort: %s", err)})
	}
	logrus.WithField("message", string(msg)).Error("wasm: guest aborted")
	panic(&guestTrap{message: string(msg)})
}

func (h *hostState) opaPrintln(ctx context.Context, addr uint32) {
	msg, err := readCStr(h.bindings.memory(), int32(addr))
	if err != nil {
		logrus.WithError(err).Warn("wasm: opa_println: malformed argument")
		return
	}
	logrus.Info(string(msg))
}

func (h *hostState) opaBuiltin0(ctx context.Context, id, evalCtxID uint32) uint32 {
	return h.dispatch(ctx, id)
}

func (h *hostState) opaBuiltin1(ctx context.Context, id, evalCtxID, a1 uint32) uint32 {
	return h.dispatch(ctx, id, a1)
}

func (h *hostState) opaBuiltin2(ctx context.Context, id, evalCtxID, a1, a2 uint32) uint32 {
	return h.dispatch(ctx, id, a1, a2)
}

func (h *hostState) opaBuiltin3(ctx context.Context, id, evalCtxID, a1, a2, a3 uint32) uint32 {
	return h.dispatch(ctx, id, a1, a2, a3)
}

func (h *hostState) opaBuiltin4(ctx context.Context, id, evalCtxID, a1, a2, a3, a4 uint32) uint32 {
	return h.dispatch(ctx, id, a1, a2, a3, a4)
}

// dispatch implements the builtin trampoline contract of spec 4.4: dump
// each argument handle to JSON, resolve the builtin by id, invoke it with
// the evaluation context mutex held, and parse the JSON result back into a
// guest Value handle.
func (h *hostState) dispatch(ctx context.Context, id uint32, argAddrs ...uint32) uint32 {
	if !h.ready {
		panic(&guestTrap{message: "builtin dispatch invoked before host state was initialised"})
	}
	mem := h.bindings.memory()

	name, ok := h.builtinNames[int32(id)]
	if !ok {
		panic(&builtinTrap{err: fmt.Errorf("unknown builtin id %d", id)})
	}

	ctx, span := otel.Tracer("builtins").Start(ctx, "builtin."+name)
	defer span.End()

	args := make([][]byte, len(argAddrs))
	for i, addr := range argAddrs {
		dumpAddr, err := h.bindings.callJSONDump(ctx, int32(addr))
		if err != nil {
			panic(&builtinTrap{err: fmt.Errorf("%s: dumping argument %d: %w", name, i, err)})
		}
		raw, err := readCStr(mem, dumpAddr)
		if err != nil {
			panic(&builtinTrap{err: fmt.Errorf("%s: reading argument %d: %w", name, i, err)})
		}
		args[i] = raw
	}

	h.mu.Lock()
	ec := h.evalCtx
	result, err := h.registry.Dispatch(ctx, ec, name, args)
	h.mu.Unlock()
	if err != nil {
		panic(&builtinTrap{err: fmt.Errorf("%s: %w", name, err)})
	}

	p, err := h.bindings.callMalloc(ctx, int32(len(result)))
	if err != nil {
		panic(&builtinTrap{err: fmt.Errorf("%s: allocating result: %w", name, err)})
	}
	if err := writeMem(mem, p, result); err != nil {
		panic(&builtinTrap{err: fmt.Errorf("%s: writing result: %w", name, err)})
	}
	valueAddr, err := h.bindings.callJSONParse(ctx, p, int32(len(result)))
	if err != nil {
		panic(&builtinTrap{err: fmt.Errorf("%s: parsing result: %w", name, err)})
	}
	if err := h.bindings.callFree(ctx, p); err != nil {
		panic(&builtinTrap{err: fmt.Errorf("%s: freeing result buffer: %w", name, err)})
	}

	return uint32(valueAddr)
}

// protect runs fn, converting any panic carrying a *guestTrap or
// *builtinTrap into a returned error. Guest code can only fail this way --
// anything else propagates as a genuine Go panic, since it indicates a bug
// in this host rather than a guest or builtin failure.
func protect(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			switch e := r.(type) {
			case *guestTrap:
				err = e
			case *builtinTrap:
				err = e
			default:
				panic(r)
			}
		}
	}()
	return fn()
}
