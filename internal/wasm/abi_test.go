// Copyright 2020 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package wasm

import (
	"errors"
	"testing"
)

func TestNewABIVersionAcceptsSupportedCombinations(t *testing.T) {
	cases := []struct {
		major, minor int32
		fastpath      bool
	}{
		{1, 0, false},
		{1, 1, false},
		{1, 2, true},
		{1, 3, true},
	}
	for _, c := range cases {
		v, err := newABIVersion(c.major, c.minor)
		if err != nil {
			t.Fatalf("abi %d.%d: unexpected error: %v", c.major, c.minor, err)
		}
		if v.HasEvalFastpath() != c.fastpath {
			t.Fatalf("abi %d.%d: expected fastpath=%v, got %v", c.major, c.minor, c.fastpath, v.HasEvalFastpath())
		}
	}
}

func TestNewABIVersionRejectsUnsupported(t *testing.T) {
	if _, err := newABIVersion(2, 0); !errors.Is(err, ErrUnsupportedABI) {
		t.Fatalf("expected ErrUnsupportedABI for major 2, got %v", err)
	}
}

func TestABIVersionString(t *testing.T) {
	v, _ := newABIVersion(1, 2)
	if got := v.String(); got != "1.2 (1.2+ compatible)" {
		t.Fatalf("unexpected String(): %q", got)
	}
	v, _ = newABIVersion(1, 0)
	if got := v.String(); got != "1.0" {
		t.Fatalf("unexpected String(): %q", got)
	}
}
