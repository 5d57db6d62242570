package tools

import (
	"context"
	"log/slog"

	"mdtoml/internal/agent"
	"mdtoml/internal/llm"
)

const (
	NameConvertGemini = "convert_markdown_to_toml_gemini"
	NameConvertClaude = "convert_markdown_to_toml_claude_code"
	NameValidate      = "validate_toml"
	NameRepair        = "process_errors_claude"
)

type ConvertArgs struct {
	MarkdownDoc string `json:"markdown_doc"`
}

type ValidateArgs struct {
	TOMLFile string `json:"tomlfile"`
}

type RepairArgs struct {
	TOMLFile string `json:"tomlfile"`
	Errors   string `json:"errors"`
}

// Options configures the production tool set. Zero values fall back to the
// exec runner and the default model identifiers.
type Options struct {
	Runner      Runner
	GeminiModel string
	ClaudeModel string
	Policy      FailurePolicy
}

func (o Options) withDefaults() Options {
	if o.Runner == nil {
		o.Runner = ExecRunner{}
	}
	if o.GeminiModel == "" {
		o.GeminiModel = DefaultGeminiModel
	}
	if o.ClaudeModel == "" {
		o.ClaudeModel = DefaultClaudeModel
	}
	return o
}

func stringProp(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

var (
	convertGeminiDescriptor = llm.ToolDescriptor{
		Name: NameConvertGemini,
		Description: "Convert a markdown document to TOML format using the Gemini CLI. " +
			"Extracts key information and structures it as valid TOML.",
		InputSchema: llm.InputSchema{
			Type: "object",
			Properties: map[string]any{
				"markdown_doc": stringProp("The markdown document content to convert to TOML format"),
			},
			Required: []string{"markdown_doc"},
		},
	}

	convertClaudeDescriptor = llm.ToolDescriptor{
		Name: NameConvertClaude,
		Description: "Convert a markdown document to TOML format using the Claude Code CLI. " +
			"Extracts key information and structures it as valid TOML.",
		InputSchema: llm.InputSchema{
			Type: "object",
			Properties: map[string]any{
				"markdown_doc": stringProp("The markdown document content to convert to TOML format"),
			},
			Required: []string{"markdown_doc"},
		},
	}

	validateDescriptor = llm.ToolDescriptor{
		Name: NameValidate,
		Description: "Validate a TOML document for syntax errors. Returns whether it is valid, " +
			"the original content and the parser error message if any.",
		InputSchema: llm.InputSchema{
			Type: "object",
			Properties: map[string]any{
				"tomlfile": stringProp("The TOML content to validate"),
			},
			Required: []string{"tomlfile"},
		},
	}

	repairDescriptor = llm.ToolDescriptor{
		Name: NameRepair,
		Description: "Fix a TOML document using the Claude Code CLI, given the validation errors " +
			"reported for it. Returns the corrected TOML content.",
		InputSchema: llm.InputSchema{
			Type: "object",
			Properties: map[string]any{
				"tomlfile": stringProp("The TOML file content to fix"),
				"errors":   stringProp("The error messages describing what to fix"),
			},
			Required: []string{"tomlfile", "errors"},
		},
	}
)

// Default builds the registry of the four production tools.
func Default(opts Options) (*agent.Registry, error) {
	opts = opts.withDefaults()
	gemini := CLI{Runner: opts.Runner, Program: ProgramGemini, Model: opts.GeminiModel}
	claude := CLI{Runner: opts.Runner, Program: ProgramClaude, Model: opts.ClaudeModel}
	policy := opts.Policy

	slog.Debug("building tool registry", "gemini_model", gemini.Model, "claude_model", claude.Model, "policy", policy.String())

	return agent.NewRegistry(
		agent.NewFuncTool(convertGeminiDescriptor, func(ctx context.Context, a ConvertArgs) (string, error) {
			return policy.apply(gemini.Convert(ctx, a.MarkdownDoc))
		}),
		agent.NewFuncTool(convertClaudeDescriptor, func(ctx context.Context, a ConvertArgs) (string, error) {
			return policy.apply(claude.Convert(ctx, a.MarkdownDoc))
		}),
		agent.NewFuncTool(validateDescriptor, func(_ context.Context, a ValidateArgs) (Validation, error) {
			return ValidateTOML(a.TOMLFile), nil
		}),
		agent.NewFuncTool(repairDescriptor, func(ctx context.Context, a RepairArgs) (string, error) {
			return policy.apply(claude.Repair(ctx, a.TOMLFile, a.Errors))
		}),
	)
}
