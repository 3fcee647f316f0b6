// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package main

import (
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/born-ml/tensorcore/device"
	"github.com/born-ml/tensorcore/internal/envconfig"
)

// DevicesHandler prints every device kind and whether it can be opened.
func DevicesHandler(cmd *cobra.Command, _ []string) error {
	preferred := strings.ToLower(envconfig.Device())

	var data [][]string
	for _, info := range device.Available() {
		status := "unavailable"
		if info.Available {
			status = "available"
		}
		mark := ""
		if preferred != "" && strings.EqualFold(info.Kind.String(), preferred) {
			mark = "*"
		}
		data = append(data, []string{info.Kind.String() + mark, info.Name, status})
	}

	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetHeader([]string{"DEVICE", "NAME", "STATUS"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(data)
	table.Render()

	return nil
}

func newDevicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "devices",
		Aliases: []string{"ls"},
		Short:   "List compute devices",
		Args:    cobra.NoArgs,
		RunE:    DevicesHandler,
	}
}
