package builtins

import (
	"encoding/json"
	"fmt"

	jsonpatch "github.com/evanphx/json-patch"
	"gopkg.in/yaml.v3"
)

// jsonPatchOp is one RFC 6902 operation.
type jsonPatchOp struct {
	Op    string      `json:"op"`
	Path  string      `json:"path"`
	From  string      `json:"from"`
	Value interface{} `json:"value"`
}

// jsonPatch applies patch to object per RFC 6902, delegating the actual
// patch document (add/remove/replace/move/copy/test, with RFC 6901
// "~0"/"~1" pointer unescaping and array-index/"-" addressing) to
// evanphx/json-patch rather than re-deriving pointer semantics by hand.
// Operations are applied atomically: if the patch fails to decode or apply,
// the original object is returned unmodified rather than an error, matching
// the original source's documented behaviour.
func jsonPatch(object interface{}, patch []jsonPatchOp) (interface{}, error) {
	targetJSON, err := json.Marshal(object)
	if err != nil {
		return object, nil //nolint:nilerr // atomic-failure contract: undefined -> original object
	}

	opsJSON, err := json.Marshal(patch)
	if err != nil {
		return object, nil //nolint:nilerr // see above
	}

	decoded, err := jsonpatch.DecodePatch(opsJSON)
	if err != nil {
		return object, nil //nolint:nilerr // see above
	}

	result, err := decoded.Apply(targetJSON)
	if err != nil {
		return object, nil //nolint:nilerr // see above
	}

	var out interface{}
	if err := json.Unmarshal(result, &out); err != nil {
		return object, nil //nolint:nilerr // see above
	}
	return out, nil
}

// objectUnionN merges objects left to right: keys only on one side are
// kept; keys present as objects on both sides merge recursively; null on
// the right is ignored; anything else on the right overrides the left;
// arrays replace rather than concatenate (invariant 8).
func objectUnionN(objects []map[string]interface{}) (map[string]interface{}, error) {
	out := map[string]interface{}{}
	for _, obj := range objects {
		out = unionTwo(out, obj)
	}
	return out, nil
}

func unionTwo(a, b map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, bv := range b {
		if bv == nil {
			continue
		}
		av, existedInA := out[k]
		aObj, aIsObj := av.(map[string]interface{})
		bObj, bIsObj := bv.(map[string]interface{})
		if existedInA && aIsObj && bIsObj {
			out[k] = unionTwo(aObj, bObj)
			continue
		}
		out[k] = bv
	}
	return out
}

func yamlIsValid(x string) (bool, error) {
	var v interface{}
	return yaml.Unmarshal([]byte(x), &v) == nil, nil
}

func yamlMarshal(v interface{}) (string, error) {
	out, err := yaml.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("yaml.marshal: %w", err)
	}
	return string(out), nil
}

func yamlUnmarshal(x string) (interface{}, error) {
	var v interface{}
	if err := yaml.Unmarshal([]byte(x), &v); err != nil {
		return nil, fmt.Errorf("yaml.unmarshal: %w", err)
	}
	return v, nil
}
