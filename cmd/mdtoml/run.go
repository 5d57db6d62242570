package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"mdtoml/internal/agent"
	"mdtoml/internal/llm"

	"github.com/spf13/cobra"
)

const runPromptTemplate = `Convert the following markdown document to TOML using the available tools.
Validate the result and, if validation reports errors, fix them.

%s`

var (
	runOpus       bool
	runPrompt     string
	runToolChoice string
)

type runOutput struct {
	SessionID  string         `json:"session_id" yaml:"session_id"`
	ResponseID string         `json:"response_id" yaml:"response_id"`
	Model      string         `json:"model" yaml:"model"`
	StopReason string         `json:"stop_reason,omitempty" yaml:"stop_reason,omitempty"`
	Text       string         `json:"text,omitempty" yaml:"text,omitempty"`
	Usage      llm.Usage      `json:"usage" yaml:"usage"`
	Results    []agent.Result `json:"results" yaml:"results"`
}

var runCmd = &cobra.Command{
	Use:   "run <file>",
	Short: "Ask the model to process a markdown document with the registered tools",
	Long: "Send one request to the Anthropic Messages API advertising the tool registry, " +
		"then execute every tool the model asks for. The model is called once.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			doc, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			model := a.cfg.Anthropic.Model
			if runOpus {
				model = a.cfg.Anthropic.OpusModel
			}

			choice, err := parseToolChoice(runToolChoice, a.dispatcher.Registry())
			if err != nil {
				return err
			}
			ag, err := a.newAgent(ctx, model, agent.WithToolChoice(choice))
			if err != nil {
				return err
			}

			prompt := fmt.Sprintf(runPromptTemplate, doc)
			if runPrompt != "" {
				prompt = runPrompt + "\n\n" + doc
			}

			turn, err := ag.Run(ctx, prompt)
			if err != nil {
				return err
			}

			out := runOutput{
				SessionID:  a.dispatcher.SessionID(),
				ResponseID: turn.Response.ID,
				Model:      turn.Response.Model,
				Text:       turn.Response.Text(),
				Usage:      turn.Response.Usage,
				Results:    turn.Results,
			}
			if turn.Response.StopReason != nil {
				out.StopReason = string(*turn.Response.StopReason)
			}

			if err := render(cmd.OutOrStdout(), outputFormat, out, func(w io.Writer) { printRun(w, out) }); err != nil {
				return err
			}
			for _, res := range out.Results {
				if !res.Success {
					return errReported
				}
			}
			return nil
		})
	},
}

// parseToolChoice maps --tool-choice onto the request field: auto, any and
// none pass through; any other value must name a registered tool, which the
// model is then forced to call.
func parseToolChoice(s string, reg *agent.Registry) (llm.ToolChoice, error) {
	switch t := llm.ToolChoiceType(strings.ToLower(strings.TrimSpace(s))); t {
	case "", llm.ToolChoiceAuto:
		return llm.ToolChoice{Type: llm.ToolChoiceAuto}, nil
	case llm.ToolChoiceAny, llm.ToolChoiceNone:
		return llm.ToolChoice{Type: t}, nil
	}
	if _, ok := reg.Get(s); !ok {
		return llm.ToolChoice{}, fmt.Errorf("--tool-choice %q is neither auto, any, none nor a registered tool", s)
	}
	return llm.ToolChoice{Type: llm.ToolChoiceTool, Name: s}, nil
}

func printRun(w io.Writer, out runOutput) {
	fmt.Fprintf(w, "%s %s\n", titleStyle.Render(out.Model), dimStyle.Render(fmt.Sprintf("session %s, %d in / %d out tokens", out.SessionID, out.Usage.InputTokens, out.Usage.OutputTokens)))
	if text := strings.TrimSpace(out.Text); text != "" {
		fmt.Fprintln(w, text)
	}
	if len(out.Results) == 0 {
		fmt.Fprintln(w, dimStyle.Render("no tool calls requested"))
		return
	}
	for _, res := range out.Results {
		fmt.Fprintln(w)
		printResult(w, res)
	}
}

func init() {
	runCmd.Flags().BoolVar(&runOpus, "opus", false, "use the opus model instead of sonnet")
	runCmd.Flags().StringVar(&runToolChoice, "tool-choice", "auto", "auto, any, none or the name of a tool the model must call")
	runCmd.Flags().StringVarP(&runPrompt, "prompt", "p", "", "instruction sent before the document instead of the default")
}
