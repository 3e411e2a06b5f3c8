// Copyright 2020 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package wasm

import "errors"

var (
	// ErrModuleDefect is returned when the guest module is missing a required
	// export, advertises an unsupported ABI version, or otherwise fails the
	// construction-time contract checks. The Runtime is unusable afterwards.
	ErrModuleDefect = errors.New("module defect")

	// ErrUnsupportedABI is returned when the guest's advertised ABI version
	// is not one this host understands (1.0, 1.1, or 1.2+).
	ErrUnsupportedABI = errors.New("unsupported abi version")

	// ErrNoEntrypoint is returned when evaluate is called with an entrypoint
	// name the guest did not register.
	ErrNoEntrypoint = errors.New("unknown entrypoint")
)

// guestTrap is the error produced when the guest calls opa_abort or a
// builtin trampoline fails. It carries the guest-provided message and is
// surfaced to the caller of Evaluate without invalidating the Policy --
// the next evaluation simply rewinds the heap.
type guestTrap struct {
	message string
}

func (e *guestTrap) Error() string { return e.message }

// builtinTrap wraps an error produced while dispatching a builtin call.
type builtinTrap struct {
	err error
}

func (e *builtinTrap) Error() string { return e.err.Error() }
func (e *builtinTrap) Unwrap() error { return e.err }
