// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/leseb/bedrock-gw/pkg/core/profile"
	"github.com/leseb/bedrock-gw/pkg/core/services"
)

type modelsCommander struct {
	category string
}

func newModelsCmd() *cobra.Command {
	cmder := &modelsCommander{}

	cmd := &cobra.Command{
		Use:   "models",
		Short: "List supported Bedrock models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd)
		},
	}

	cmd.Flags().StringVar(&cmder.category, "category", "", "Filter by category: text, image or embedding")

	return cmd
}

func (c *modelsCommander) run(cmd *cobra.Command) error {
	category := profile.Category(c.category)
	switch category {
	case "", profile.CategoryText, profile.CategoryImage, profile.CategoryEmbedding:
	default:
		return fmt.Errorf("unknown category %q: use text, image or embedding", c.category)
	}

	models := services.NewModelsService().ListModels(cmd.Context(), category)

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPROVIDER\tCATEGORY\tSTREAMING\tNAME")
	for _, m := range models.Data {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", m.ID, m.OwnedBy, m.Category, strconv.FormatBool(m.Streaming), m.Name)
	}
	return w.Flush()
}
