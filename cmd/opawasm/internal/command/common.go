// Copyright 2020 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package command

import (
	"context"
	"fmt"

	"github.com/spf13/viper"

	"github.com/open-policy-agent/opa-wasm-host/opa"
)

// buildOPA constructs and initializes an *opa.OPA from the given compiled
// policy file, honouring the --data and --pool-size flags bound by Root.
func buildOPA(policyFile string) (*opa.OPA, error) {
	o := opa.New().WithPolicyFile(policyFile)

	if dataFile := viper.GetString("data"); dataFile != "" {
		o = o.WithDataFile(dataFile)
	}
	if size := viper.GetUint32("pool-size"); size != 0 {
		o = o.WithPoolSize(size)
	}

	instance, err := o.Init()
	if err != nil {
		return nil, fmt.Errorf("initializing policy: %w", err)
	}
	return instance, nil
}

func closeOPA(o *opa.OPA) {
	o.Close(context.Background())
}
