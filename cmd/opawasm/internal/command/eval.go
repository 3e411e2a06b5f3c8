// Copyright 2020 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package command

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/open-policy-agent/opa-wasm-host/internal/telemetry"
	"github.com/open-policy-agent/opa-wasm-host/opa"
)

func evalCommand() *cobra.Command {
	var inputFile string
	var entrypoint string

	cmd := &cobra.Command{
		Use:   "eval <policy.wasm>",
		Short: "Evaluate a compiled policy against input",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			instance, err := buildOPA(args[0])
			if err != nil {
				return err
			}
			defer closeOPA(instance)

			ctx, span := otel.Tracer("opawasm").Start(cmd.Context(), "cli.eval")
			defer span.End()

			var input interface{}
			if inputFile != "" {
				raw, err := os.ReadFile(inputFile)
				if err != nil {
					return fmt.Errorf("reading input: %w", err)
				}
				if err := json.Unmarshal(raw, &input); err != nil {
					return fmt.Errorf("parsing input: %w", err)
				}
			}

			id, err := resolveEntrypoint(ctx, instance, entrypoint)
			if err != nil {
				return err
			}

			result, err := instance.Eval(ctx, opa.EvalOpts{Entrypoint: id, Input: input})
			if err != nil {
				if traceID := telemetry.TraceID(ctx); traceID != "" {
					return fmt.Errorf("%w (trace %s)", err, traceID)
				}
				return err
			}

			out, err := json.MarshalIndent(json.RawMessage(result.Result), "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}

	cmd.Flags().StringVar(&inputFile, "input", "", "path to a JSON input file")
	cmd.Flags().StringVar(&entrypoint, "entrypoint", "", "entrypoint path to evaluate (default: the policy's only entrypoint, if it has exactly one)")

	return cmd
}

// resolveEntrypoint looks up name in the policy's entrypoint table, or
// returns the sole entrypoint if name is empty and exactly one exists.
func resolveEntrypoint(ctx context.Context, instance *opa.OPA, name string) (opa.EntrypointID, error) {
	entrypoints, err := instance.Entrypoints(ctx)
	if err != nil {
		return 0, err
	}
	return selectEntrypoint(entrypoints, name)
}

// selectEntrypoint implements resolveEntrypoint's selection logic against an
// already-fetched entrypoint table, so it can be tested without a compiled
// policy.
func selectEntrypoint(entrypoints map[string]opa.EntrypointID, name string) (opa.EntrypointID, error) {
	if name != "" {
		id, ok := entrypoints[name]
		if !ok {
			return 0, fmt.Errorf("unknown entrypoint %q", name)
		}
		return id, nil
	}

	if len(entrypoints) == 1 {
		for _, id := range entrypoints {
			return id, nil
		}
	}
	return 0, fmt.Errorf("policy has %d entrypoints; pass --entrypoint", len(entrypoints))
}
