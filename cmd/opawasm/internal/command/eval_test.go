// Copyright 2020 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package command

import (
	"testing"

	"github.com/open-policy-agent/opa-wasm-host/opa"
)

func TestSelectEntrypointUsesNamedEntrypoint(t *testing.T) {
	entrypoints := map[string]opa.EntrypointID{"authz/allow": 0, "authz/deny": 1}

	id, err := selectEntrypoint(entrypoints, "authz/deny")
	if err != nil {
		t.Fatalf("selectEntrypoint: %v", err)
	}
	if id != 1 {
		t.Fatalf("expected id 1, got %d", id)
	}
}

func TestSelectEntrypointUnknownNameErrors(t *testing.T) {
	entrypoints := map[string]opa.EntrypointID{"authz/allow": 0}

	_, err := selectEntrypoint(entrypoints, "authz/missing")
	if err == nil {
		t.Fatal("expected an error for an unknown entrypoint name")
	}
}

func TestSelectEntrypointDefaultsWhenSingleEntrypoint(t *testing.T) {
	entrypoints := map[string]opa.EntrypointID{"authz/allow": 7}

	id, err := selectEntrypoint(entrypoints, "")
	if err != nil {
		t.Fatalf("selectEntrypoint: %v", err)
	}
	if id != 7 {
		t.Fatalf("expected id 7, got %d", id)
	}
}

func TestSelectEntrypointAmbiguousWithoutNameErrors(t *testing.T) {
	entrypoints := map[string]opa.EntrypointID{"authz/allow": 0, "authz/deny": 1}

	_, err := selectEntrypoint(entrypoints, "")
	if err == nil {
		t.Fatal("expected an error when multiple entrypoints exist and none was named")
	}
}

func TestSelectEntrypointNoEntrypointsErrors(t *testing.T) {
	_, err := selectEntrypoint(map[string]opa.EntrypointID{}, "")
	if err == nil {
		t.Fatal("expected an error when the policy has no entrypoints")
	}
}
