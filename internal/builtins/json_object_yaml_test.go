package builtins

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestObjectUnionNMergeRules(t *testing.T) {
	a := map[string]interface{}{
		"only_a": "a",
		"shared_obj": map[string]interface{}{
			"x": 1.0,
			"y": 2.0,
		},
		"overridden": "old",
		"nulled":     "kept",
		"array":      []interface{}{"a1", "a2"},
	}
	b := map[string]interface{}{
		"only_b": "b",
		"shared_obj": map[string]interface{}{
			"y": 20.0,
			"z": 3.0,
		},
		"overridden": "new",
		"nulled":     nil,
		"array":      []interface{}{"b1"},
	}

	got, err := objectUnionN([]map[string]interface{}{a, b})
	if err != nil {
		t.Fatalf("objectUnionN: %v", err)
	}

	want := map[string]interface{}{
		"only_a": "a",
		"only_b": "b",
		"shared_obj": map[string]interface{}{
			"x": 1.0,
			"y": 20.0,
			"z": 3.0,
		},
		"overridden": "new",
		"nulled":     "kept",
		"array":      []interface{}{"b1"},
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("union mismatch (-want +got):\n%s", diff)
	}
}

func TestJSONPatchAppliesAtomically(t *testing.T) {
	object := map[string]interface{}{"a": map[string]interface{}{"b": 1.0}}

	patch := []jsonPatchOp{
		{Op: "replace", Path: "/a/b", Value: 2.0},
	}
	got, err := jsonPatch(object, patch)
	if err != nil {
		t.Fatalf("jsonPatch: %v", err)
	}
	gotMap, ok := got.(map[string]interface{})
	if !ok {
		t.Fatalf("expected map result, got %T", got)
	}
	inner := gotMap["a"].(map[string]interface{})
	if inner["b"] != 2.0 {
		t.Fatalf("expected patched value 2, got %v", inner["b"])
	}
}

func TestJSONPatchFailureReturnsOriginalUnmodified(t *testing.T) {
	object := map[string]interface{}{"a": 1.0}

	patch := []jsonPatchOp{
		{Op: "replace", Path: "/missing/path", Value: 2.0},
	}
	got, err := jsonPatch(object, patch)
	if err != nil {
		t.Fatalf("jsonPatch: %v", err)
	}
	if diff := cmp.Diff(object, got); diff != "" {
		t.Fatalf("expected original object on failure (-want +got):\n%s", diff)
	}
}

func TestJSONPatchMove(t *testing.T) {
	object := map[string]interface{}{
		"a": map[string]interface{}{"b": 1.0},
		"c": 2.0,
	}

	patch := []jsonPatchOp{
		{Op: "move", From: "/a/b", Path: "/d"},
	}
	got, err := jsonPatch(object, patch)
	if err != nil {
		t.Fatalf("jsonPatch: %v", err)
	}

	want := map[string]interface{}{
		"a": map[string]interface{}{},
		"c": 2.0,
		"d": 1.0,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("move mismatch (-want +got):\n%s", diff)
	}
}

func TestJSONPatchCopy(t *testing.T) {
	object := map[string]interface{}{
		"a": map[string]interface{}{"b": 1.0},
	}

	patch := []jsonPatchOp{
		{Op: "copy", From: "/a/b", Path: "/c"},
	}
	got, err := jsonPatch(object, patch)
	if err != nil {
		t.Fatalf("jsonPatch: %v", err)
	}

	want := map[string]interface{}{
		"a": map[string]interface{}{"b": 1.0},
		"c": 1.0,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("copy mismatch (-want +got):\n%s", diff)
	}
}

func TestJSONPatchArrayAppend(t *testing.T) {
	object := map[string]interface{}{"a": []interface{}{1.0, 2.0}}

	patch := []jsonPatchOp{
		{Op: "add", Path: "/a/-", Value: 3.0},
	}
	got, err := jsonPatch(object, patch)
	if err != nil {
		t.Fatalf("jsonPatch: %v", err)
	}

	want := map[string]interface{}{"a": []interface{}{1.0, 2.0, 3.0}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("array append mismatch (-want +got):\n%s", diff)
	}
}

func TestJSONPatchEscapedPointerToken(t *testing.T) {
	object := map[string]interface{}{"a/b": 1.0, "c~d": 2.0}

	patch := []jsonPatchOp{
		{Op: "replace", Path: "/a~1b", Value: 10.0},
		{Op: "replace", Path: "/c~0d", Value: 20.0},
	}
	got, err := jsonPatch(object, patch)
	if err != nil {
		t.Fatalf("jsonPatch: %v", err)
	}

	want := map[string]interface{}{"a/b": 10.0, "c~d": 20.0}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("escaped-pointer mismatch (-want +got):\n%s", diff)
	}
}
