// Copyright 2020 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package opa

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/open-policy-agent/opa-wasm-host/internal/wasm"
)

// instance is one guest Runtime plus its currently loaded Policy, the unit
// the pool hands out to callers. Concurrent evaluations require distinct
// guest instances (spec 5), so the pool never shares one across callers.
type instance struct {
	rt     *wasm.Runtime
	policy *wasm.Policy
}

func (i *instance) close(ctx context.Context) {
	_ = i.rt.Close(ctx)
}

// pool maintains a set of warm guest instances, all running the same
// policy and data, growing lazily up to poolSize.
type pool struct {
	mutex sync.Mutex

	initialized bool
	closed      bool

	policy []byte
	data   []byte

	memoryMinPages uint32
	memoryMaxPages uint32

	available chan struct{}
	instances []*instance
	acquired  []bool

	metrics *poolMetrics
}

type poolMetrics struct {
	acquire prometheus.Histogram
	release prometheus.Histogram
	size    prometheus.Gauge
}

func newPoolMetrics() *poolMetrics {
	return &poolMetrics{
		acquire: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "opawasm_pool_acquire_seconds",
			Help: "Time spent waiting for and constructing a pool instance.",
		}),
		release: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "opawasm_pool_release_seconds",
			Help: "Time spent returning an instance to the pool.",
		}),
		size: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "opawasm_pool_instances",
			Help: "Number of guest instances currently live in the pool.",
		}),
	}
}

func newPool(poolSize, memoryMinPages, memoryMaxPages uint32, metrics *poolMetrics) *pool {
	available := make(chan struct{}, poolSize)
	for i := uint32(0); i < poolSize; i++ {
		available <- struct{}{}
	}
	return &pool{
		memoryMinPages: memoryMinPages,
		memoryMaxPages: memoryMaxPages,
		available:      available,
		metrics:        metrics,
	}
}

// SetPolicyData (re)initializes the pool with policy and data: the first
// call builds and warms a single instance, later calls tear down and
// rebuild every existing instance one at a time so no evaluation ever
// observes a half-updated pool member.
func (p *pool) SetPolicyData(ctx context.Context, policy, data []byte) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.closed {
		return ErrNotReady
	}

	if len(p.instances) == 0 {
		inst, err := p.build(ctx, policy, data)
		if err != nil {
			return fmt.Errorf("%v: %w", err, ErrInvalidPolicyOrData)
		}
		p.instances, p.acquired = []*instance{inst}, []bool{false}
		p.policy, p.data = policy, data
		p.initialized = true
		if p.metrics != nil {
			p.metrics.size.Set(1)
		}
		return nil
	}

	rebuilt := make([]*instance, len(p.instances))
	for i, old := range p.instances {
		inst, err := p.build(ctx, policy, data)
		if err != nil {
			for _, done := range rebuilt[:i] {
				if done != nil {
					done.close(ctx)
				}
			}
			return fmt.Errorf("%v: %w", err, ErrInvalidPolicyOrData)
		}
		old.close(ctx)
		rebuilt[i] = inst
	}
	p.instances = rebuilt
	p.policy, p.data = policy, data
	p.initialized = true
	if p.metrics != nil {
		p.metrics.size.Set(float64(len(p.instances)))
	}
	return nil
}

func (p *pool) build(ctx context.Context, policy, data []byte) (*instance, error) {
	rt, err := wasm.NewRuntimeWithMemory(ctx, policy, p.memoryMinPages, p.memoryMaxPages)
	if err != nil {
		return nil, err
	}
	var doc interface{} = map[string]interface{}{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &doc); err != nil {
			_ = rt.Close(ctx)
			return nil, fmt.Errorf("unmarshalling data: %w", err)
		}
	}
	pol, err := rt.WithData(ctx, doc)
	if err != nil {
		_ = rt.Close(ctx)
		return nil, err
	}
	return &instance{rt: rt, policy: pol}, nil
}

// Acquire obtains an instance from the pool, building a fresh one lazily up
// to poolSize capacity, or blocking until one is released.
func (p *pool) Acquire(ctx context.Context) (*instance, error) {
	timer := prometheus.NewTimer(func() prometheus.Observer {
		if p.metrics != nil {
			return p.metrics.acquire
		}
		return nopObserver{}
	}())
	defer timer.ObserveDuration()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.available:
	}

	p.mutex.Lock()
	defer p.mutex.Unlock()

	if !p.initialized || p.closed {
		return nil, ErrNotReady
	}

	for i, acq := range p.acquired {
		if !acq {
			p.acquired[i] = true
			return p.instances[i], nil
		}
	}

	inst, err := p.build(ctx, p.policy, p.data)
	if err != nil {
		p.available <- struct{}{}
		return nil, fmt.Errorf("%v: %w", err, ErrInternal)
	}
	p.instances = append(p.instances, inst)
	p.acquired = append(p.acquired, true)
	if p.metrics != nil {
		p.metrics.size.Set(float64(len(p.instances)))
	}
	return inst, nil
}

// Release returns inst to the pool for reuse.
func (p *pool) Release(inst *instance) {
	timer := prometheus.NewTimer(func() prometheus.Observer {
		if p.metrics != nil {
			return p.metrics.release
		}
		return nopObserver{}
	}())
	defer timer.ObserveDuration()

	p.mutex.Lock()
	defer p.mutex.Unlock()

	for i, cur := range p.instances {
		if cur == inst {
			p.acquired[i] = false
			p.available <- struct{}{}
			return
		}
	}
	// Instance already evicted by a SetPolicyData rebuild.
	p.available <- struct{}{}
}

// SetDataPath applies path/value to every instance's loaded data.
func (p *pool) SetDataPath(ctx context.Context, path []string, value interface{}) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	for _, inst := range p.instances {
		if err := inst.policy.SetDataPath(ctx, path, value); err != nil {
			return err
		}
	}
	return nil
}

// RemoveDataPath removes path from every instance's loaded data.
func (p *pool) RemoveDataPath(ctx context.Context, path []string) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	for _, inst := range p.instances {
		if err := inst.policy.RemoveDataPath(ctx, path); err != nil {
			return err
		}
	}
	return nil
}

// Close waits for all outstanding evaluations to finish and tears every
// instance down.
func (p *pool) Close(ctx context.Context) {
	p.mutex.Lock()
	n := len(p.instances)
	p.mutex.Unlock()

	for i := 0; i < n; i++ {
		<-p.available
	}

	p.mutex.Lock()
	defer p.mutex.Unlock()
	for _, inst := range p.instances {
		inst.close(ctx)
	}
	p.closed = true
	p.instances = nil
}

type nopObserver struct{}

func (nopObserver) Observe(float64) {}
