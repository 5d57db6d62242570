package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

var execInput string

var execCmd = &cobra.Command{
	Use:   "exec <tool>",
	Short: "Dispatch one tool call with a JSON argument object",
	Example: `  mdtoml exec validate_toml --input '{"tomlfile": "a = 1"}'
  echo '{"markdown_doc": "# Title"}' | mdtoml exec convert_markdown_to_toml_gemini --input -`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		input, err := parseToolInput(cmd.InOrStdin(), execInput)
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app) error {
			res := a.dispatcher.Execute(ctx, args[0], input)
			return emitResult(cmd.OutOrStdout(), res)
		})
	},
}

// parseToolInput decodes the --input value, "-" meaning standard input. An
// empty value is an empty argument object.
func parseToolInput(stdin io.Reader, raw string) (map[string]any, error) {
	var r io.Reader = strings.NewReader(raw)
	if raw == "-" {
		r = stdin
	} else if strings.TrimSpace(raw) == "" {
		return map[string]any{}, nil
	}

	var input map[string]any
	if err := json.NewDecoder(r).Decode(&input); err != nil {
		return nil, fmt.Errorf("--input must be a JSON object: %w", err)
	}
	if input == nil {
		input = map[string]any{}
	}
	return input, nil
}

func init() {
	execCmd.Flags().StringVarP(&execInput, "input", "i", "", `tool arguments as a JSON object, or "-" for stdin`)
}
