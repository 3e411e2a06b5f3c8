// Copyright 2020 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package wasm

import "fmt"

// ABIVersion is the (major, minor) pair a guest module advertises through
// the opa_wasm_abi_version / opa_wasm_abi_minor_version globals. It governs
// which exports the host may rely on.
type ABIVersion struct {
	Major int32
	Minor int32
}

// newABIVersion validates the (major, minor) pair against the combinations
// this host understands: 1.0, 1.1, and 1.n for n >= 2 ("1.2+ compatible").
func newABIVersion(major, minor int32) (ABIVersion, error) {
	if major != 1 {
		return ABIVersion{}, fmt.Errorf("%w: abi %d.%d", ErrUnsupportedABI, major, minor)
	}
	switch {
	case minor == 0, minor == 1, minor >= 2:
		return ABIVersion{Major: major, Minor: minor}, nil
	default:
		return ABIVersion{}, fmt.Errorf("%w: abi %d.%d", ErrUnsupportedABI, major, minor)
	}
}

// HasEvalFastpath reports whether the guest advertises ABI 1.2 or later,
// unlocking the single-call opa_eval export.
func (v ABIVersion) HasEvalFastpath() bool {
	return v.Major == 1 && v.Minor >= 2
}

func (v ABIVersion) String() string {
	if v.Major == 1 && v.Minor >= 2 {
		return fmt.Sprintf("1.%d (1.2+ compatible)", v.Minor)
	}
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}
