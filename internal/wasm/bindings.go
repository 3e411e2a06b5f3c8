// Copyright 2020 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package wasm

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero/api"
)

// bindings is the set of typed handles extracted once from the guest
// module's exports at Runtime construction time (spec step 4.5.7). Every
// required export is resolved eagerly; opaEval is left nil when the guest's
// ABI is below 1.2, since the fast path does not exist for it.
type bindings struct {
	guest api.Module
	env   api.Module

	evalCompat           api.Function
	builtins             api.Function
	entrypoints          api.Function
	evalCtxNew           api.Function
	evalCtxSetInput      api.Function
	evalCtxSetData       api.Function
	evalCtxSetEntrypoint api.Function
	evalCtxGetResult     api.Function
	malloc               api.Function
	free                 api.Function
	jsonParse            api.Function
	jsonDump             api.Function
	valueParse           api.Function
	valueDump            api.Function
	valueAddPath         api.Function
	valueRemovePath      api.Function
	heapPtrGet           api.Function
	heapPtrSet           api.Function
	opaEval              api.Function // nil unless ABI >= 1.2
}

func required(mod api.Module, name string) (api.Function, error) {
	f := mod.ExportedFunction(name)
	if f == nil {
		return nil, fmt.Errorf("%w: guest module does not export %q", ErrModuleDefect, name)
	}
	return f, nil
}

func newBindings(guest, env api.Module, abi ABIVersion) (*bindings, error) {
	b := &bindings{guest: guest, env: env}

	for name, dst := range map[string]*api.Function{
		"eval":                       &b.evalCompat,
		"builtins":                   &b.builtins,
		"entrypoints":                &b.entrypoints,
		"opa_eval_ctx_new":           &b.evalCtxNew,
		"opa_eval_ctx_set_input":     &b.evalCtxSetInput,
		"opa_eval_ctx_set_data":      &b.evalCtxSetData,
		"opa_eval_ctx_set_entrypoint": &b.evalCtxSetEntrypoint,
		"opa_eval_ctx_get_result":    &b.evalCtxGetResult,
		"opa_malloc":                 &b.malloc,
		"opa_free":                   &b.free,
		"opa_json_parse":             &b.jsonParse,
		"opa_json_dump":              &b.jsonDump,
		"opa_value_parse":            &b.valueParse,
		"opa_value_dump":             &b.valueDump,
		"opa_value_add_path":        &b.valueAddPath,
		"opa_value_remove_path":     &b.valueRemovePath,
		"opa_heap_ptr_get":           &b.heapPtrGet,
		"opa_heap_ptr_set":           &b.heapPtrSet,
	} {
		f, err := required(guest, name)
		if err != nil {
			return nil, err
		}
		*dst = f
	}

	if abi.HasEvalFastpath() {
		f, err := required(guest, "opa_eval")
		if err != nil {
			return nil, err
		}
		b.opaEval = f
	}

	return b, nil
}

func readABIVersion(guest api.Module) (ABIVersion, error) {
	major := guest.ExportedGlobal("opa_wasm_abi_version")
	minor := guest.ExportedGlobal("opa_wasm_abi_minor_version")
	if major == nil || minor == nil {
		return ABIVersion{}, fmt.Errorf("%w: missing abi version globals", ErrModuleDefect)
	}
	return newABIVersion(int32(major.Get()), int32(minor.Get()))
}

// memory returns the shared linear memory. It is exported by the env host
// module (spec 4.3: "env.memory"), not by the guest, which only imports it
// -- so api.Module.Memory() must be called on env, never on guest.
func (b *bindings) memory() api.Memory {
	return b.env.Memory()
}

func call1(ctx context.Context, f api.Function, a int32) (int32, error) {
	res, err := f.Call(ctx, uint64(uint32(a)))
	if err != nil {
		return 0, err
	}
	return int32(res[0]), nil
}

func call2(ctx context.Context, f api.Function, a, b int32) (int32, error) {
	res, err := f.Call(ctx, uint64(uint32(a)), uint64(uint32(b)))
	if err != nil {
		return 0, err
	}
	return int32(res[0]), nil
}

func call3(ctx context.Context, f api.Function, a, b, c int32) (int32, error) {
	res, err := f.Call(ctx, uint64(uint32(a)), uint64(uint32(b)), uint64(uint32(c)))
	if err != nil {
		return 0, err
	}
	return int32(res[0]), nil
}

func (b *bindings) callMalloc(ctx context.Context, n int32) (int32, error) {
	return call1(ctx, b.malloc, n)
}

func (b *bindings) callFree(ctx context.Context, p int32) error {
	_, err := b.free.Call(ctx, uint64(uint32(p)))
	return err
}

func (b *bindings) callJSONParse(ctx context.Context, p, n int32) (int32, error) {
	return call2(ctx, b.jsonParse, p, n)
}

func (b *bindings) callJSONDump(ctx context.Context, v int32) (int32, error) {
	return call1(ctx, b.jsonDump, v)
}

func (b *bindings) callValueParse(ctx context.Context, p, n int32) (int32, error) {
	return call2(ctx, b.valueParse, p, n)
}

func (b *bindings) callValueDump(ctx context.Context, v int32) (int32, error) {
	return call1(ctx, b.valueDump, v)
}

func (b *bindings) callValueAddPath(ctx context.Context, base, path, value int32) (int32, error) {
	return call3(ctx, b.valueAddPath, base, path, value)
}

func (b *bindings) callValueRemovePath(ctx context.Context, base, path int32) (int32, error) {
	return call2(ctx, b.valueRemovePath, base, path)
}

func (b *bindings) callHeapPtrGet(ctx context.Context) (int32, error) {
	res, err := b.heapPtrGet.Call(ctx)
	if err != nil {
		return 0, err
	}
	return int32(res[0]), nil
}

func (b *bindings) callHeapPtrSet(ctx context.Context, p int32) error {
	_, err := b.heapPtrSet.Call(ctx, uint64(uint32(p)))
	return err
}

func (b *bindings) callBuiltins(ctx context.Context) (int32, error) {
	res, err := b.builtins.Call(ctx)
	if err != nil {
		return 0, err
	}
	return int32(res[0]), nil
}

func (b *bindings) callEntrypoints(ctx context.Context) (int32, error) {
	res, err := b.entrypoints.Call(ctx)
	if err != nil {
		return 0, err
	}
	return int32(res[0]), nil
}

func (b *bindings) callEvalCtxNew(ctx context.Context) (int32, error) {
	res, err := b.evalCtxNew.Call(ctx)
	if err != nil {
		return 0, err
	}
	return int32(res[0]), nil
}

func (b *bindings) callEvalCtxSetInput(ctx context.Context, c, v int32) error {
	_, err := b.evalCtxSetInput.Call(ctx, uint64(uint32(c)), uint64(uint32(v)))
	return err
}

func (b *bindings) callEvalCtxSetData(ctx context.Context, c, v int32) error {
	_, err := b.evalCtxSetData.Call(ctx, uint64(uint32(c)), uint64(uint32(v)))
	return err
}

func (b *bindings) callEvalCtxSetEntrypoint(ctx context.Context, c, id int32) error {
	_, err := b.evalCtxSetEntrypoint.Call(ctx, uint64(uint32(c)), uint64(uint32(id)))
	return err
}

func (b *bindings) callEvalCtxGetResult(ctx context.Context, c int32) (int32, error) {
	return call1(ctx, b.evalCtxGetResult, c)
}

func (b *bindings) callEvalCompat(ctx context.Context, c int32) error {
	_, err := b.evalCompat.Call(ctx, uint64(uint32(c)))
	return err
}

// callOpaEval invokes the fast-path opa_eval export. The leading and
// trailing 0 arguments match the guest's fixed signature (an unused
// ctx-addr slot, and a reserved final i32).
func (b *bindings) callOpaEval(ctx context.Context, entrypoint, data, inputPtr, inputLen, heapPtr int32) (int32, error) {
	res, err := b.opaEval.Call(ctx,
		0,
		uint64(uint32(entrypoint)),
		uint64(uint32(data)),
		uint64(uint32(inputPtr)),
		uint64(uint32(inputLen)),
		uint64(uint32(heapPtr)),
		0,
	)
	if err != nil {
		return 0, err
	}
	return int32(res[0]), nil
}
