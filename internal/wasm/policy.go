// Copyright 2020 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package wasm

import (
	"context"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel"
)

// Policy is a Runtime with data loaded, ready to evaluate entrypoints
// against caller-supplied input (spec 4.6-4.7).
type Policy struct {
	rt       *Runtime
	dataAddr int32
	savedPtr int32
}

// WithData loads value as the policy's base data document, per spec 4.6:
// serialise to JSON, malloc+write+value_parse+free, then snapshot the heap
// pointer as the scratch boundary every evaluation rewinds to.
func (r *Runtime) WithData(ctx context.Context, value interface{}) (*Policy, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("wasm: marshalling data: %w", err)
	}

	var dataAddr int32
	var savedPtr int32
	err = protect(func() error {
		var err error
		dataAddr, err = loadValue(ctx, r.bindings, raw)
		if err != nil {
			return err
		}
		savedPtr, err = r.bindings.callHeapPtrGet(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	return &Policy{rt: r, dataAddr: dataAddr, savedPtr: savedPtr}, nil
}

// WithoutData is equivalent to WithData(ctx, map[string]interface{}{}).
func (r *Runtime) WithoutData(ctx context.Context) (*Policy, error) {
	return r.WithData(ctx, map[string]interface{}{})
}

// loadValue writes raw JSON bytes into the guest heap and parses it into a
// Value, freeing the intermediate JSON buffer afterward.
func loadValue(ctx context.Context, b *bindings, raw []byte) (int32, error) {
	p, err := b.callMalloc(ctx, int32(len(raw)))
	if err != nil {
		return 0, fmt.Errorf("wasm: opa_malloc: %w", err)
	}
	if err := writeMem(b.memory(), p, raw); err != nil {
		return 0, fmt.Errorf("wasm: writing value bytes: %w", err)
	}
	addr, err := b.callValueParse(ctx, p, int32(len(raw)))
	if err != nil {
		return 0, fmt.Errorf("wasm: opa_value_parse: %w", err)
	}
	if err := b.callFree(ctx, p); err != nil {
		return 0, fmt.Errorf("wasm: opa_free: %w", err)
	}
	return addr, nil
}

// Evaluate runs entrypointName against input, branching on the Runtime's
// negotiated ABI as described in spec 4.7.
func (p *Policy) Evaluate(ctx context.Context, entrypointName string, input interface{}) (json.RawMessage, error) {
	id, ok := p.rt.entryIDs[entrypointName]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoEntrypoint, entrypointName)
	}

	ctx, span := otel.Tracer("wasm").Start(ctx, "wasm.eval")
	defer span.End()

	p.rt.state.evaluationContext().EvaluationStart()

	raw, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("wasm: marshalling input: %w", err)
	}

	var result json.RawMessage
	err = protect(func() error {
		var err error
		if p.rt.abi.HasEvalFastpath() {
			result, err = p.evaluateFastPath(ctx, id, raw)
		} else {
			result, err = p.evaluateClassicPath(ctx, id, raw)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (p *Policy) evaluateFastPath(ctx context.Context, entrypointID int32, inputJSON []byte) (json.RawMessage, error) {
	b := p.rt.bindings
	mem := b.memory()

	inputWindow := newHeap(p.savedPtr, int32(len(inputJSON)))
	if inputWindow.Pages() > Pages(mem.Size()) {
		if _, ok := growMem(mem, uint32(inputWindow.End())); !ok {
			return nil, fmt.Errorf("wasm: failed to grow memory for input")
		}
	}
	if err := writeMem(mem, inputWindow.Ptr(), inputJSON); err != nil {
		return nil, fmt.Errorf("wasm: writing input: %w", err)
	}
	inputPtr, n := inputWindow.Ptr(), int32(inputWindow.Len())
	inputWindow.markFreed() // the guest, not this host, owns this window's lifetime

	resultAddr, err := b.callOpaEval(ctx, entrypointID, p.dataAddr, inputPtr, n, inputPtr+n)
	if err != nil {
		return nil, fmt.Errorf("wasm: opa_eval: %w", err)
	}

	raw, err := readCStr(mem, resultAddr)
	if err != nil {
		return nil, fmt.Errorf("wasm: reading opa_eval result: %w", err)
	}
	return json.RawMessage(raw), nil
}

func (p *Policy) evaluateClassicPath(ctx context.Context, entrypointID int32, inputJSON []byte) (json.RawMessage, error) {
	b := p.rt.bindings

	if err := b.callHeapPtrSet(ctx, p.savedPtr); err != nil {
		return nil, fmt.Errorf("wasm: rewinding heap: %w", err)
	}

	inputAddr, err := loadValue(ctx, b, inputJSON)
	if err != nil {
		return nil, err
	}

	evalCtxAddr, err := b.callEvalCtxNew(ctx)
	if err != nil {
		return nil, fmt.Errorf("wasm: opa_eval_ctx_new: %w", err)
	}
	if err := b.callEvalCtxSetData(ctx, evalCtxAddr, p.dataAddr); err != nil {
		return nil, fmt.Errorf("wasm: opa_eval_ctx_set_data: %w", err)
	}
	if err := b.callEvalCtxSetInput(ctx, evalCtxAddr, inputAddr); err != nil {
		return nil, fmt.Errorf("wasm: opa_eval_ctx_set_input: %w", err)
	}
	if err := b.callEvalCtxSetEntrypoint(ctx, evalCtxAddr, entrypointID); err != nil {
		return nil, fmt.Errorf("wasm: opa_eval_ctx_set_entrypoint: %w", err)
	}

	if err := b.callEvalCompat(ctx, evalCtxAddr); err != nil {
		return nil, fmt.Errorf("wasm: eval: %w", err)
	}

	resultValueAddr, err := b.callEvalCtxGetResult(ctx, evalCtxAddr)
	if err != nil {
		return nil, fmt.Errorf("wasm: opa_eval_ctx_get_result: %w", err)
	}
	dumpAddr, err := b.callJSONDump(ctx, resultValueAddr)
	if err != nil {
		return nil, fmt.Errorf("wasm: opa_json_dump: %w", err)
	}
	raw, err := readCStr(b.memory(), dumpAddr)
	if err != nil {
		return nil, fmt.Errorf("wasm: reading result: %w", err)
	}
	return json.RawMessage(raw), nil
}

// SetDataPath updates the policy's loaded data at path, mirroring the
// guest's opa_value_add_path contract. On error the Policy is left usable
// but the data is unmodified.
func (p *Policy) SetDataPath(ctx context.Context, path []string, value interface{}) error {
	return protect(func() error {
		b := p.rt.bindings

		valueAddr, err := loadValue(ctx, b, mustMarshal(value))
		if err != nil {
			return err
		}
		pathAddr, err := loadValue(ctx, b, mustMarshal(path))
		if err != nil {
			return err
		}

		code, err := b.callValueAddPath(ctx, p.dataAddr, pathAddr, valueAddr)
		if err != nil {
			return fmt.Errorf("wasm: opa_value_add_path: %w", err)
		}
		if err := b.callFree(ctx, pathAddr); err != nil {
			return fmt.Errorf("wasm: opa_free: %w", err)
		}
		if code != 0 {
			return fmt.Errorf("wasm: setting data path %v: code %d", path, code)
		}
		return nil
	})
}

// RemoveDataPath removes the value at path from the policy's loaded data.
func (p *Policy) RemoveDataPath(ctx context.Context, path []string) error {
	return protect(func() error {
		b := p.rt.bindings

		pathAddr, err := loadValue(ctx, b, mustMarshal(path))
		if err != nil {
			return err
		}

		code, err := b.callValueRemovePath(ctx, p.dataAddr, pathAddr)
		if err != nil {
			return fmt.Errorf("wasm: opa_value_remove_path: %w", err)
		}
		if err := b.callFree(ctx, pathAddr); err != nil {
			return fmt.Errorf("wasm: opa_free: %w", err)
		}
		if code != 0 {
			return fmt.Errorf("wasm: removing data path %v: code %d", path, code)
		}
		return nil
	})
}

func mustMarshal(v interface{}) []byte {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(&guestTrap{message: fmt.Sprintf("wasm: marshalling value: %s", err)})
	}
	return raw
}
