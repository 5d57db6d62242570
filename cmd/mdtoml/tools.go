package main

import (
	"context"
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"
)

type toolInfo struct {
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Arguments   []string `json:"arguments" yaml:"arguments"`
	Required    []string `json:"required,omitempty" yaml:"required,omitempty"`
}

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the registered tools and their arguments",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(_ context.Context, a *app) error {
			var infos []toolInfo
			for _, d := range a.dispatcher.Registry().Descriptors() {
				info := toolInfo{Name: d.Name, Description: d.Description, Required: d.InputSchema.Required}
				for arg := range d.InputSchema.Properties {
					info.Arguments = append(info.Arguments, arg)
				}
				slices.Sort(info.Arguments)
				infos = append(infos, info)
			}

			return render(cmd.OutOrStdout(), outputFormat, infos, func(w io.Writer) {
				for _, info := range infos {
					fmt.Fprintln(w, titleStyle.Render(info.Name))
					fmt.Fprintf(w, "  %s\n", info.Description)
					for _, arg := range info.Arguments {
						marker := dimStyle.Render("optional")
						if slices.Contains(info.Required, arg) {
							marker = warnStyle.Render("required")
						}
						fmt.Fprintf(w, "    %s %s\n", arg, marker)
					}
				}
			})
		})
	},
}
