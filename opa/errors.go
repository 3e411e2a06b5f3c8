// Copyright 2020 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package opa

import "errors"

var (
	// ErrInvalidConfig is returned if initialization fails due to an invalid config.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrInvalidPolicyOrData is returned if either policy or data is invalid.
	ErrInvalidPolicyOrData = errors.New("invalid policy or data")
	// ErrNotReady is returned if the instance has not been initialized.
	ErrNotReady = errors.New("not ready")
	// ErrInternal is returned if evaluation fails due to an internal error.
	ErrInternal = errors.New("internal error")
)
