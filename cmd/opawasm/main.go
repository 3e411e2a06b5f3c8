// Copyright 2020 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/automaxprocs/maxprocs"

	"github.com/open-policy-agent/opa-wasm-host/cmd/opawasm/internal/command"
)

func main() {
	os.Exit(run())
}

func run() int {
	if _, err := maxprocs.Set(maxprocs.Logger(func(string, ...interface{}) {})); err != nil {
		fmt.Fprintln(os.Stderr, "opawasm: GOMAXPROCS:", err)
	}
	defer command.ShutdownTelemetry(context.Background())

	if err := command.Root().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
