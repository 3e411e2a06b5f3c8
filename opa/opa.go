// Copyright 2020 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package opa is the public façade over internal/wasm: a pool of warm guest
// instances sharing one policy/data pair, configured with With* options and
// driven through Init/Eval/Close.
package opa

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime"
	"sync"

	"github.com/open-policy-agent/opa-wasm-host/internal/wasm"
)

// OPA executes WebAssembly-compiled Rego policies.
type OPA struct {
	configErr      error
	memoryMinPages uint32
	memoryMaxPages uint32
	poolSize       uint32
	pool           *pool
	metrics        *poolMetrics
	mutex          sync.Mutex
	policy         []byte
	data           []byte
	logError       func(error)
}

// Result holds the evaluation result.
type Result struct {
	Result json.RawMessage
}

// EntrypointID identifies a compiled entrypoint for Eval.
type EntrypointID int32

// New constructs an OPA instance with default memory limits (2 pages
// minimum, no maximum) and a pool size of runtime.GOMAXPROCS(0).
func New() *OPA {
	return &OPA{
		memoryMinPages: 2,
		memoryMaxPages: 0,
		poolSize:       uint32(runtime.GOMAXPROCS(0)),
		logError:       func(error) {},
	}
}

// Init finalizes construction after the With* options have been applied.
func (o *OPA) Init() (*OPA, error) {
	if o.configErr != nil {
		return nil, o.configErr
	}

	o.metrics = newPoolMetrics()
	o.pool = newPool(o.poolSize, o.memoryMinPages, o.memoryMaxPages, o.metrics)

	if len(o.policy) != 0 {
		if err := o.pool.SetPolicyData(context.Background(), o.policy, o.data); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// SetData updates the data document used by subsequent evaluations.
func (o *OPA) SetData(ctx context.Context, v interface{}) error {
	if o.pool == nil {
		return ErrNotReady
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%v: %w", err, ErrInvalidPolicyOrData)
	}

	o.mutex.Lock()
	defer o.mutex.Unlock()
	return o.setPolicyData(ctx, o.policy, raw)
}

// SetDataPath updates the data at path without reconstructing instances.
func (o *OPA) SetDataPath(ctx context.Context, path []string, value interface{}) error {
	if o.pool == nil {
		return ErrNotReady
	}
	return o.pool.SetDataPath(ctx, path, value)
}

// RemoveDataPath removes the value at path from the loaded data.
func (o *OPA) RemoveDataPath(ctx context.Context, path []string) error {
	if o.pool == nil {
		return ErrNotReady
	}
	return o.pool.RemoveDataPath(ctx, path)
}

// SetPolicy updates the compiled policy used by subsequent evaluations,
// keeping the currently loaded data.
func (o *OPA) SetPolicy(ctx context.Context, p []byte) error {
	if o.pool == nil {
		return ErrNotReady
	}
	o.mutex.Lock()
	defer o.mutex.Unlock()
	return o.setPolicyData(ctx, p, o.data)
}

// SetPolicyData updates both policy and data together.
func (o *OPA) SetPolicyData(ctx context.Context, policy []byte, data interface{}) error {
	if o.pool == nil {
		return ErrNotReady
	}
	var raw []byte
	if data != nil {
		var err error
		raw, err = json.Marshal(data)
		if err != nil {
			return fmt.Errorf("%v: %w", err, ErrInvalidPolicyOrData)
		}
	}
	o.mutex.Lock()
	defer o.mutex.Unlock()
	return o.setPolicyData(ctx, policy, raw)
}

func (o *OPA) setPolicyData(ctx context.Context, policy, data []byte) error {
	if err := o.pool.SetPolicyData(ctx, policy, data); err != nil {
		o.logError(err)
		return err
	}
	o.policy, o.data = policy, data
	return nil
}

// EvalOpts are the parameters of a single evaluation.
type EvalOpts struct {
	Entrypoint EntrypointID
	Input      interface{}
}

// Eval evaluates the configured policy's entrypoint against opts.Input.
func (o *OPA) Eval(ctx context.Context, opts EvalOpts) (*Result, error) {
	if o.pool == nil {
		return nil, ErrNotReady
	}

	inst, err := o.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer o.pool.Release(inst)

	name, err := entrypointName(inst.rt, opts.Entrypoint)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrInternal)
	}

	result, err := inst.policy.Evaluate(ctx, name, opts.Input)
	if err != nil {
		o.logError(err)
		return nil, fmt.Errorf("%v: %w", err, ErrInternal)
	}
	return &Result{Result: result}, nil
}

// Entrypoints returns the {path: id} mapping the loaded policy advertises.
func (o *OPA) Entrypoints(ctx context.Context) (map[string]EntrypointID, error) {
	if o.pool == nil {
		return nil, ErrNotReady
	}
	inst, err := o.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer o.pool.Release(inst)

	out := make(map[string]EntrypointID, len(inst.rt.Entrypoints()))
	for k, v := range inst.rt.Entrypoints() {
		out[k] = EntrypointID(v)
	}
	return out, nil
}

// Close waits for pending evaluations to finish and releases all resources.
func (o *OPA) Close(ctx context.Context) {
	if o.pool == nil {
		return
	}
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.pool.Close(ctx)
}

func entrypointName(rt *wasm.Runtime, id EntrypointID) (string, error) {
	for name, entryID := range rt.Entrypoints() {
		if entryID == int32(id) {
			return name, nil
		}
	}
	return "", fmt.Errorf("unknown entrypoint id %d", id)
}
