package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath   string
	outputFormat string
	strictMode   bool
	sessionID    string
	toolFilter   []string
)

// errReported marks a failure whose details were already written to stdout.
var errReported = errors.New("failure reported")

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "mdtoml",
		Short:         "Convert markdown documents to TOML with model CLIs",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch outputFormat {
			case "text", "json", "yaml":
				return nil
			default:
				return fmt.Errorf("unknown output format %q (want text, json or yaml)", outputFormat)
			}
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "config file (default $XDG_CONFIG_HOME/mdtoml/config.toml)")
	pf.StringVarP(&outputFormat, "format", "f", "text", "output format: text, json or yaml")
	pf.BoolVar(&strictMode, "strict", false, "report CLI failures as errors instead of placeholder TOML")
	pf.StringVarP(&sessionID, "session", "s", "", "session id attached to logs, spans and audit rows (default random)")
	pf.StringSliceVar(&toolFilter, "tools", nil, "restrict the registry to these tools (comma separated, default all)")

	rootCmd.AddCommand(
		runCmd,
		pipelineCmd,
		convertCmd,
		validateCmd,
		repairCmd,
		execCmd,
		toolsCmd,
		historyCmd,
		serveCmd,
	)
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintf(os.Stderr, "%s %v\n", failStyle.Render("error:"), err)
		}
		os.Exit(1)
	}
}
