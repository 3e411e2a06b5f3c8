// Copyright 2020 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package command

import (
	"sort"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func entrypointsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "entrypoints <policy.wasm>",
		Short: "List the entrypoints a compiled policy exposes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			instance, err := buildOPA(args[0])
			if err != nil {
				return err
			}
			defer closeOPA(instance)

			entrypoints, err := instance.Entrypoints(cmd.Context())
			if err != nil {
				return err
			}

			names := make([]string, 0, len(entrypoints))
			for name := range entrypoints {
				names = append(names, name)
			}
			sort.Strings(names)

			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.SetHeader([]string{"Entrypoint", "ID"})
			table.SetAlignment(tablewriter.ALIGN_LEFT)
			for _, name := range names {
				table.Append([]string{name, strconv.Itoa(int(entrypoints[name]))})
			}
			table.Render()
			return nil
		},
	}
}
