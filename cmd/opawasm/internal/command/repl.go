// Copyright 2020 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package command

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/open-policy-agent/opa-wasm-host/opa"
)

func replCommand() *cobra.Command {
	var entrypoint string

	cmd := &cobra.Command{
		Use:   "repl <policy.wasm>",
		Short: "Interactively evaluate a compiled policy against successive input documents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			instance, err := buildOPA(args[0])
			if err != nil {
				return err
			}
			defer closeOPA(instance)

			id, err := resolveEntrypoint(cmd.Context(), instance, entrypoint)
			if err != nil {
				return err
			}

			return runREPL(cmd, instance, id)
		},
	}

	cmd.Flags().StringVar(&entrypoint, "entrypoint", "", "entrypoint path to evaluate (default: the policy's only entrypoint, if it has exactly one)")
	return cmd
}

func runREPL(cmd *cobra.Command, instance *opa.OPA, id opa.EntrypointID) error {
	out := cmd.OutOrStdout()
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	fmt.Fprintln(out, "opawasm repl: enter a JSON input document, or 'exit'.")

	for {
		input, err := line.Prompt("> ")
		if err == io.EOF || err == liner.ErrPromptAborted {
			return nil
		}
		if err != nil {
			return err
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if input == "exit" {
			return nil
		}
		line.AppendHistory(input)

		var doc interface{}
		if err := json.Unmarshal([]byte(input), &doc); err != nil {
			fmt.Fprintln(out, "error: invalid JSON input:", err)
			continue
		}

		result, err := instance.Eval(cmd.Context(), opa.EvalOpts{Entrypoint: id, Input: doc})
		if err != nil {
			fmt.Fprintln(out, "error:", err)
			continue
		}
		fmt.Fprintln(out, string(result.Result))
	}
}
