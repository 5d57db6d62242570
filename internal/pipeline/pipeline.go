package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"mdtoml/internal/agent"
	"mdtoml/internal/tools"
	"mdtoml/internal/trace"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

const DefaultMaxRepairs = 2

// Engine selects which CLI performs the initial conversion.
type Engine string

const (
	EngineGemini     Engine = "gemini"
	EngineClaudeCode Engine = "claude_code"
)

func ParseEngine(s string) (Engine, error) {
	switch Engine(strings.ToLower(strings.TrimSpace(s))) {
	case "", EngineGemini:
		return EngineGemini, nil
	case EngineClaudeCode, "claude":
		return EngineClaudeCode, nil
	default:
		return "", fmt.Errorf("unknown engine %q", s)
	}
}

// ToolName is the conversion tool the engine dispatches to.
func (e Engine) ToolName() string {
	if e == EngineClaudeCode {
		return tools.NameConvertClaude
	}
	return tools.NameConvertGemini
}

// Report summarizes one pipeline run. Steps holds every dispatch in the order
// it happened.
type Report struct {
	SessionID string         `json:"session_id" yaml:"session_id"`
	Engine    Engine         `json:"engine" yaml:"engine"`
	TOML      string         `json:"toml" yaml:"toml"`
	Valid     bool           `json:"is_valid" yaml:"is_valid"`
	Errors    string         `json:"errors,omitempty" yaml:"errors,omitempty"`
	Repairs   int            `json:"repairs" yaml:"repairs"`
	Degraded  bool           `json:"degraded" yaml:"degraded"`
	Steps     []agent.Result `json:"steps" yaml:"steps"`
}

type Option func(*Pipeline)

func WithEngine(e Engine) Option {
	return func(p *Pipeline) { p.engine = e }
}

// WithMaxRepairs bounds the repair attempts. Negative values are treated as 0.
func WithMaxRepairs(n int) Option {
	return func(p *Pipeline) { p.maxRepairs = max(n, 0) }
}

// WithObserver registers fn to receive every step result as soon as it is
// available.
func WithObserver(fn func(agent.Result)) Option {
	return func(p *Pipeline) { p.observer = fn }
}

// Pipeline chains convert, validate and repair through a dispatcher so every
// step is classified, logged, traced and recorded like a model-initiated call.
type Pipeline struct {
	dispatcher *agent.Dispatcher
	engine     Engine
	maxRepairs int
	observer   func(agent.Result)
}

func New(d *agent.Dispatcher, opts ...Option) *Pipeline {
	p := &Pipeline{dispatcher: d, engine: EngineGemini, maxRepairs: DefaultMaxRepairs}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run converts markdown and repairs the result until it validates or the
// repair budget is spent. An invalid final document is not an error; a step
// that fails outright is.
func (p *Pipeline) Run(ctx context.Context, markdown string) (*Report, error) {
	ctx, span := trace.Tracer().Start(ctx, "pipeline.run",
		oteltrace.WithAttributes(
			attribute.String("session.id", p.dispatcher.SessionID()),
			attribute.String("pipeline.engine", string(p.engine)),
			attribute.Int("pipeline.max_repairs", p.maxRepairs),
		),
	)
	defer span.End()

	report := &Report{SessionID: p.dispatcher.SessionID(), Engine: p.engine}
	err := p.run(ctx, markdown, report)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.SetAttributes(
		attribute.Bool("pipeline.valid", report.Valid),
		attribute.Int("pipeline.repairs", report.Repairs),
		attribute.Bool("pipeline.degraded", report.Degraded),
	)

	slog.Info("pipeline finished",
		"session_id", report.SessionID,
		"engine", report.Engine,
		"valid", report.Valid,
		"repairs", report.Repairs,
		"degraded", report.Degraded,
	)
	return report, err
}

func (p *Pipeline) run(ctx context.Context, markdown string, report *Report) error {
	doc, err := p.produce(ctx, report, p.engine.ToolName(), map[string]any{"markdown_doc": markdown})
	if err != nil || report.Degraded {
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		res := p.step(ctx, report, tools.NameValidate, map[string]any{"tomlfile": doc})
		if !res.Success {
			return fmt.Errorf("validating: %w", res.Err())
		}
		v, ok := res.ToolResult.(tools.Validation)
		if !ok {
			return fmt.Errorf("validating: unexpected result type %T", res.ToolResult)
		}
		report.TOML, report.Valid, report.Errors = v.Content, v.Valid, v.Errors
		if v.Valid || report.Repairs >= p.maxRepairs {
			return nil
		}

		report.Repairs++
		slog.Debug("repairing toml", "session_id", report.SessionID, "attempt", report.Repairs)
		doc, err = p.produce(ctx, report, tools.NameRepair, map[string]any{"tomlfile": doc, "errors": v.Errors})
		if err != nil || report.Degraded {
			return err
		}
	}
}

// produce runs a CLI-backed step. A placeholder result ends the run: the
// report keeps the previous document and the placeholder text as its error.
func (p *Pipeline) produce(ctx context.Context, report *Report, tool string, input map[string]any) (string, error) {
	res := p.step(ctx, report, tool, input)
	if !res.Success {
		return "", fmt.Errorf("%s: %w", tool, res.Err())
	}
	doc := res.Text()
	if tools.IsPlaceholder(doc) {
		report.Degraded = true
		report.Valid = false
		report.Errors = doc
		if report.TOML == "" {
			report.TOML = doc
		}
		return "", nil
	}
	return doc, nil
}

func (p *Pipeline) step(ctx context.Context, report *Report, tool string, input map[string]any) agent.Result {
	res := p.dispatcher.Execute(ctx, tool, input)
	report.Steps = append(report.Steps, res)
	if p.observer != nil {
		p.observer(res)
	}
	return res
}
