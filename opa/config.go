// Copyright 2020 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package opa

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/open-policy-agent/opa-wasm-host/internal/wasm"
)

// WithPolicyFile configures a compiled policy.wasm file to load.
func (o *OPA) WithPolicyFile(fileName string) *OPA {
	policy, err := os.ReadFile(fileName)
	if err != nil {
		o.configErr = fmt.Errorf("%v: %w", err, ErrInvalidConfig)
		return o
	}
	o.policy = policy
	return o
}

// WithPolicyBytes configures the compiled policy to load directly.
func (o *OPA) WithPolicyBytes(policy []byte) *OPA {
	o.policy = policy
	return o
}

// WithDataFile configures a JSON data file to load.
func (o *OPA) WithDataFile(fileName string) *OPA {
	data, err := os.ReadFile(fileName)
	if err != nil {
		o.configErr = fmt.Errorf("%v: %w", err, ErrInvalidConfig)
		return o
	}
	o.data = data
	return o
}

// WithDataJSON configures the data document to load.
func (o *OPA) WithDataJSON(data interface{}) *OPA {
	v, err := json.Marshal(data)
	if err != nil {
		o.configErr = fmt.Errorf("%v: %w", err, ErrInvalidConfig)
		return o
	}
	o.data = v
	return o
}

// WithMemoryLimits configures the memory limits (in bytes) for a single
// policy evaluation. min must cover at least two pages.
func (o *OPA) WithMemoryLimits(min, max uint32) *OPA {
	if min < 2*wasm.PageSize {
		o.configErr = fmt.Errorf("too low minimum memory limit: %w", ErrInvalidConfig)
		return o
	}
	if max != 0 && min > max {
		o.configErr = fmt.Errorf("too low maximum memory limit: %w", ErrInvalidConfig)
		return o
	}
	o.memoryMinPages, o.memoryMaxPages = wasm.Pages(min), wasm.Pages(max)
	return o
}

// WithPoolSize configures the maximum number of simultaneous evaluations,
// i.e. the number of independent guest instances kept warm. Defaults to
// runtime.GOMAXPROCS(0).
func (o *OPA) WithPoolSize(size uint32) *OPA {
	if size == 0 {
		o.configErr = fmt.Errorf("pool size: %w", ErrInvalidConfig)
		return o
	}
	o.poolSize = size
	return o
}

// WithErrorLogger configures a callback invoked with internal errors that
// would otherwise only surface as a metric.
func (o *OPA) WithErrorLogger(logger func(error)) *OPA {
	o.logError = logger
	return o
}
