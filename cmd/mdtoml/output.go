package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"mdtoml/internal/agent"
	"mdtoml/internal/tools"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// render writes v as JSON or YAML, or calls text for the human format.
func render(w io.Writer, format string, v any, text func(io.Writer)) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		text(w)
		return nil
	}
}

// emitResult renders one dispatch outcome. A failed dispatch, an invalid
// validation or a degraded placeholder yields errReported.
func emitResult(w io.Writer, res agent.Result) error {
	if err := render(w, outputFormat, res, func(w io.Writer) { printResult(w, res) }); err != nil {
		return err
	}
	if !resultOK(res) {
		return errReported
	}
	return nil
}

func resultOK(res agent.Result) bool {
	if !res.Success {
		return false
	}
	switch v := res.ToolResult.(type) {
	case tools.Validation:
		return v.Valid
	case string:
		return !tools.IsPlaceholder(v)
	}
	return true
}

func printResult(w io.Writer, res agent.Result) {
	header := fmt.Sprintf("%s %s", titleStyle.Render(res.ToolName), dimStyle.Render("session "+res.SessionID))
	if !res.Success {
		fmt.Fprintf(w, "%s %s\n", failStyle.Render("✗"), header)
		fmt.Fprintf(w, "  %s %s\n", failStyle.Render(string(res.Kind)+":"), res.ErrorMessage)
		return
	}

	switch v := res.ToolResult.(type) {
	case tools.Validation:
		printValidation(w, header, v)
	case string:
		if tools.IsPlaceholder(v) {
			fmt.Fprintf(w, "%s %s\n", warnStyle.Render("⚠"), header)
		} else {
			fmt.Fprintf(w, "%s %s\n", successStyle.Render("✓"), header)
		}
		fmt.Fprintln(w, v)
	default:
		fmt.Fprintf(w, "%s %s\n", successStyle.Render("✓"), header)
		fmt.Fprintln(w, res.Text())
	}
}

func printValidation(w io.Writer, header string, v tools.Validation) {
	if v.Valid {
		fmt.Fprintf(w, "%s %s %s\n", successStyle.Render("✓"), header, successStyle.Render("valid TOML"))
		return
	}
	fmt.Fprintf(w, "%s %s %s\n", failStyle.Render("✗"), header, failStyle.Render("invalid TOML"))
	for _, line := range strings.Split(strings.TrimSpace(v.Errors), "\n") {
		fmt.Fprintf(w, "  %s\n", line)
	}
}
