package tools

import (
	"context"
	"fmt"
)

const (
	ProgramGemini = "gemini"
	ProgramClaude = "claude"

	DefaultGeminiModel = "gemini-2.5-flash"
	DefaultClaudeModel = "claude-opus-4-20250514"
)

const convertPrompt = `Convert the following markdown document to a TOML format.
Extract all key information and structure it as valid TOML.
Return ONLY the TOML content, no explanations or markdown formatting.

Markdown content:
%s
`

const repairPrompt = `You are a TOML configuration expert.
Please fix the following TOML file based on the errors provided.

Current TOML file content:
%s

Errors to fix:
%s

Instructions:
- Return ONLY the corrected TOML content
- Fix all mentioned errors
- Preserve all valid existing configuration
- Ensure the output is valid TOML syntax
- Do not include any explanations, just respond with the fixed TOML as a string
`

// CLI drives one external model program with a fixed model. Its methods
// report CLI failures as errors; the tool wrappers decide whether to degrade.
type CLI struct {
	Runner  Runner
	Program string
	Model   string
}

func (c CLI) Convert(ctx context.Context, markdown string) (string, error) {
	return c.Runner.Run(ctx, c.Program, c.Model, fmt.Sprintf(convertPrompt, markdown))
}

func (c CLI) Repair(ctx context.Context, tomlDoc, errs string) (string, error) {
	return c.Runner.Run(ctx, c.Program, c.Model, fmt.Sprintf(repairPrompt, tomlDoc, errs))
}
