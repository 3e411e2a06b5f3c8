// Copyright 2020 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package opa

import (
	"context"
	"errors"
	"testing"
)

func TestWithMemoryLimitsRejectsTooSmallMinimum(t *testing.T) {
	o := New().WithMemoryLimits(1, 0)
	if !errors.Is(o.configErr, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", o.configErr)
	}
}

func TestWithMemoryLimitsRejectsMinAboveMax(t *testing.T) {
	o := New().WithMemoryLimits(4*65536, 2*65536)
	if !errors.Is(o.configErr, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", o.configErr)
	}
}

func TestWithMemoryLimitsAcceptsValidRange(t *testing.T) {
	o := New().WithMemoryLimits(4*65536, 0)
	if o.configErr != nil {
		t.Fatalf("unexpected configErr: %v", o.configErr)
	}
	if o.memoryMinPages != 4 {
		t.Fatalf("expected 4 pages, got %d", o.memoryMinPages)
	}
}

func TestWithPoolSizeRejectsZero(t *testing.T) {
	o := New().WithPoolSize(0)
	if !errors.Is(o.configErr, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", o.configErr)
	}
}

func TestInitPropagatesConfigError(t *testing.T) {
	o := New().WithPoolSize(0)
	if _, err := o.Init(); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig from Init, got %v", err)
	}
}

func TestEvalBeforeInitReturnsNotReady(t *testing.T) {
	o := New()
	if _, err := o.Eval(context.Background(), EvalOpts{}); !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
}
