// Copyright 2020 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package command implements the opawasm CLI: eval, entrypoints and repl
// subcommands over the opa package, wired through viper for
// flag/env/config-file precedence the way cobra+viper CLIs in the example
// pack do it.
package command

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/open-policy-agent/opa-wasm-host/internal/telemetry"
)

var cfgFile string

// telemetryShutdown is set by initConfig once tracing is wired up; main
// calls ShutdownTelemetry after Root().Execute() returns.
var telemetryShutdown func(context.Context) error

// ShutdownTelemetry flushes and detaches the process-wide TracerProvider, if
// one was installed.
func ShutdownTelemetry(ctx context.Context) {
	if telemetryShutdown != nil {
		_ = telemetryShutdown(ctx)
	}
}

// Root builds the top-level opawasm command and its subcommands.
func Root() *cobra.Command {
	root := &cobra.Command{
		Use:   "opawasm",
		Short: "Evaluate OPA-compiled WebAssembly policies",
		Long: `opawasm loads a compiled Rego-to-WebAssembly policy module and
evaluates it against JSON input and data, without depending on a running
OPA server.`,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.opawasm.yaml)")
	root.PersistentFlags().String("data", "", "path to a JSON data file")
	root.PersistentFlags().Uint32("pool-size", 0, "maximum concurrent guest instances (default: GOMAXPROCS)")
	root.PersistentFlags().Float64("trace-sample-rate", 1, "fraction of evaluations to trace, in [0,1]")

	_ = viper.BindPFlag("data", root.PersistentFlags().Lookup("data"))
	_ = viper.BindPFlag("pool-size", root.PersistentFlags().Lookup("pool-size"))
	_ = viper.BindPFlag("trace-sample-rate", root.PersistentFlags().Lookup("trace-sample-rate"))

	cobra.OnInitialize(initConfig)

	root.AddCommand(evalCommand())
	root.AddCommand(entrypointsCommand())
	root.AddCommand(replCommand())

	return root
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".opawasm")
	}

	viper.SetEnvPrefix("opawasm")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "opawasm: using config file:", viper.ConfigFileUsed())
	}

	shutdown, err := telemetry.Setup(context.Background(), "", viper.GetFloat64("trace-sample-rate"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "opawasm: tracing setup:", err)
		return
	}
	telemetryShutdown = shutdown
}
