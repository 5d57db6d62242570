package main

import (
	"context"

	"mdtoml/internal/pipeline"
	"mdtoml/internal/tools"

	"github.com/spf13/cobra"
)

var convertEngine string

var convertCmd = &cobra.Command{
	Use:   "convert <file>",
	Short: "Convert a markdown document to TOML with one CLI call",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			name := convertEngine
			if name == "" {
				name = a.cfg.Pipeline.Engine
			}
			engine, err := pipeline.ParseEngine(name)
			if err != nil {
				return err
			}
			doc, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			res := a.dispatcher.Execute(ctx, engine.ToolName(), map[string]any{"markdown_doc": doc})
			return emitResult(cmd.OutOrStdout(), res)
		})
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Check a TOML document for syntax errors",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			doc, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			res := a.dispatcher.Execute(ctx, tools.NameValidate, map[string]any{"tomlfile": doc})
			return emitResult(cmd.OutOrStdout(), res)
		})
	},
}

var repairErrors string

var repairCmd = &cobra.Command{
	Use:   "repair <file>",
	Short: "Fix a TOML document with the claude CLI",
	Long: "Fix a TOML document with the claude CLI. Without --errors the document is " +
		"validated first and the parser diagnostics are used; a valid document is left alone.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			doc, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}

			errs := repairErrors
			if errs == "" {
				res := a.dispatcher.Execute(ctx, tools.NameValidate, map[string]any{"tomlfile": doc})
				v, ok := res.ToolResult.(tools.Validation)
				if !res.Success || !ok || v.Valid {
					return emitResult(cmd.OutOrStdout(), res)
				}
				errs = v.Errors
			}

			res := a.dispatcher.Execute(ctx, tools.NameRepair, map[string]any{"tomlfile": doc, "errors": errs})
			return emitResult(cmd.OutOrStdout(), res)
		})
	},
}

func init() {
	convertCmd.Flags().StringVarP(&convertEngine, "engine", "e", "", "conversion engine: gemini or claude_code (default from config)")
	repairCmd.Flags().StringVar(&repairErrors, "errors", "", "error messages describing what to fix")
}
