// Copyright 2020 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package oci

import (
	"context"
	"errors"
	"testing"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// recordingPolicyData captures the last SetPolicyData call for assertions.
type recordingPolicyData struct {
	policy []byte
	data   interface{}
}

func (r *recordingPolicyData) SetPolicyData(_ context.Context, policy []byte, data interface{}) error {
	r.policy = policy
	r.data = data
	return nil
}

func TestPullRejectsEmptyReference(t *testing.T) {
	l := New(&recordingPolicyData{})
	err := l.Pull(context.Background())
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func layer(title string) ocispec.Descriptor {
	return ocispec.Descriptor{
		Annotations: map[string]string{ocispec.AnnotationTitle: title},
	}
}

func TestExtractPolicyDataFindsPolicyAndData(t *testing.T) {
	manifest := ocispec.Manifest{
		Layers: []ocispec.Descriptor{layer("readme.md"), layer(PolicyWasmTitle), layer("data.json")},
	}

	fetch := func(d ocispec.Descriptor) ([]byte, error) {
		switch d.Annotations[ocispec.AnnotationTitle] {
		case PolicyWasmTitle:
			return []byte("\x00asm-bytes"), nil
		case "data.json":
			return []byte(`{"x":1}`), nil
		default:
			return []byte("ignored"), nil
		}
	}

	policy, data, err := extractPolicyData(manifest, fetch)
	if err != nil {
		t.Fatalf("extractPolicyData: %v", err)
	}
	if string(policy) != "\x00asm-bytes" {
		t.Fatalf("unexpected policy bytes: %q", policy)
	}
	m, ok := data.(map[string]interface{})
	if !ok || m["x"] != float64(1) {
		t.Fatalf("unexpected data: %#v", data)
	}
}

func TestExtractPolicyDataWithoutDataLayerLeavesDataNil(t *testing.T) {
	manifest := ocispec.Manifest{Layers: []ocispec.Descriptor{layer(PolicyWasmTitle)}}

	policy, data, err := extractPolicyData(manifest, func(ocispec.Descriptor) ([]byte, error) {
		return []byte("wasm"), nil
	})
	if err != nil {
		t.Fatalf("extractPolicyData: %v", err)
	}
	if string(policy) != "wasm" {
		t.Fatalf("unexpected policy: %q", policy)
	}
	if data != nil {
		t.Fatalf("expected nil data, got %#v", data)
	}
}

func TestExtractPolicyDataMissingPolicyLayerIsInvalidBundle(t *testing.T) {
	manifest := ocispec.Manifest{Layers: []ocispec.Descriptor{layer("data.json")}}

	_, _, err := extractPolicyData(manifest, func(ocispec.Descriptor) ([]byte, error) {
		return []byte(`{}`), nil
	})
	if !errors.Is(err, ErrInvalidBundle) {
		t.Fatalf("expected ErrInvalidBundle, got %v", err)
	}
}

func TestExtractPolicyDataMalformedDataJSONErrors(t *testing.T) {
	manifest := ocispec.Manifest{Layers: []ocispec.Descriptor{layer(PolicyWasmTitle), layer("data.json")}}

	_, _, err := extractPolicyData(manifest, func(d ocispec.Descriptor) ([]byte, error) {
		if d.Annotations[ocispec.AnnotationTitle] == "data.json" {
			return []byte("not json"), nil
		}
		return []byte("wasm"), nil
	})
	if err == nil {
		t.Fatal("expected an error for malformed data.json")
	}
}
