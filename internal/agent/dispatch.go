package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"mdtoml/internal/llm"

	"github.com/google/uuid"
)

var (
	ErrUnknownTool   = errors.New("unknown tool")
	ErrInvalidParams = errors.New("invalid params")
	ErrToolFailed    = errors.New("tool execution failed")
)

type Kind string

const (
	KindOK              Kind = "ok"
	KindUnknownTool     Kind = "unknown_tool"
	KindInvalidParams   Kind = "invalid_params"
	KindExecutionFailed Kind = "execution_failed"
)

// Result is the uniform outcome of one dispatch. Exactly one of ToolResult
// and ErrorMessage is set.
type Result struct {
	Success      bool   `json:"success" yaml:"success"`
	ToolName     string `json:"tool_name" yaml:"tool_name"`
	SessionID    string `json:"session_id" yaml:"session_id"`
	Kind         Kind   `json:"kind" yaml:"kind"`
	ToolResult   any    `json:"tool_result,omitempty" yaml:"tool_result,omitempty"`
	ErrorMessage string `json:"error_message,omitempty" yaml:"error_message,omitempty"`

	err error
}

// Err returns nil on success, otherwise an error wrapping ErrUnknownTool,
// ErrInvalidParams or ErrToolFailed.
func (r Result) Err() error { return r.err }

// Text renders the tool result as the string handed back to the model.
func (r Result) Text() string {
	if !r.Success {
		return r.ErrorMessage
	}
	if s, ok := r.ToolResult.(string); ok {
		return s
	}
	b, err := json.Marshal(r.ToolResult)
	if err != nil {
		return fmt.Sprint(r.ToolResult)
	}
	return string(b)
}

// ToolResultBlock converts r into the tool_result block answering toolUseID.
func (r Result) ToolResultBlock(toolUseID string) llm.ContentBlock {
	return llm.ToolResultBlock(toolUseID, r.Text(), !r.Success)
}

type sessionKey struct{}

// WithSession tags ctx with the dispatching session so tools and spans can
// read it back with Session.
func WithSession(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionKey{}, id)
}

func Session(ctx context.Context) string {
	id, _ := ctx.Value(sessionKey{}).(string)
	return id
}

// Recorder receives every dispatch outcome.
type Recorder interface {
	Record(ctx context.Context, r Result) error
}

type DispatcherOption func(*Dispatcher)

func WithRecorder(rec Recorder) DispatcherOption {
	return func(d *Dispatcher) { d.recorder = rec }
}

// Dispatcher maps a tool name and argument map onto a registered tool and
// classifies the outcome. It holds no mutable state and is safe for
// concurrent use.
type Dispatcher struct {
	registry  *Registry
	sessionID string
	recorder  Recorder
}

// NewDispatcher binds a registry to a session. An empty sessionID gets a
// fresh UUID.
func NewDispatcher(registry *Registry, sessionID string, opts ...DispatcherOption) *Dispatcher {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	d := &Dispatcher{registry: registry, sessionID: sessionID}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Dispatcher) SessionID() string   { return d.sessionID }
func (d *Dispatcher) Registry() *Registry { return d.registry }

func (d *Dispatcher) Execute(ctx context.Context, toolName string, input map[string]any) Result {
	res := d.execute(WithSession(ctx, d.sessionID), toolName, input)
	if d.recorder != nil {
		if err := d.recorder.Record(ctx, res); err != nil {
			slog.Warn("failed to record tool execution", "tool_name", toolName, "session_id", d.sessionID, "error", err)
		}
	}
	return res
}

func (d *Dispatcher) execute(ctx context.Context, toolName string, input map[string]any) Result {
	tool, ok := d.registry.Get(toolName)
	if !ok {
		msg := fmt.Sprintf("tool '%s' not found; available tools: %s", toolName, strings.Join(d.registry.Names(), ", "))
		slog.Error("tool execution failed: unknown tool",
			"tool_name", toolName,
			"session_id", d.sessionID,
			"error", msg,
		)
		return d.failure(toolName, KindUnknownTool, msg, fmt.Errorf("%w: %s", ErrUnknownTool, toolName))
	}

	slog.Info("executing tool",
		"tool_name", toolName,
		"session_id", d.sessionID,
		"tool_arguments", argumentNames(input),
	)

	value, err := invoke(ctx, withTrace(tool), input)

	var pe *ParamsError
	switch {
	case err == nil:
		slog.Info("tool execution completed",
			"tool_name", toolName,
			"session_id", d.sessionID,
		)
		if value == nil {
			value = ""
		}
		return Result{
			Success:    true,
			ToolName:   toolName,
			SessionID:  d.sessionID,
			Kind:       KindOK,
			ToolResult: value,
		}

	case errors.As(err, &pe):
		msg := fmt.Sprintf("invalid params for tool '%s': %s", toolName, pe.Error())
		slog.Error("tool execution failed: invalid params",
			"tool_name", toolName,
			"session_id", d.sessionID,
			"error", msg,
		)
		return d.failure(toolName, KindInvalidParams, msg, fmt.Errorf("%w: %w", ErrInvalidParams, err))

	default:
		msg := fmt.Sprintf("tool '%s' execution failed: %s", toolName, err.Error())
		slog.Error("tool execution failed",
			"tool_name", toolName,
			"session_id", d.sessionID,
			"error", msg,
			"error_type", errorType(err),
		)
		return d.failure(toolName, KindExecutionFailed, msg, fmt.Errorf("%w: %w", ErrToolFailed, err))
	}
}

func (d *Dispatcher) failure(toolName string, kind Kind, msg string, err error) Result {
	return Result{
		Success:      false,
		ToolName:     toolName,
		SessionID:    d.sessionID,
		Kind:         kind,
		ErrorMessage: msg,
		err:          err,
	}
}

// invoke runs the tool, turning a panic into an ordinary error.
func invoke(ctx context.Context, t Tool, input map[string]any) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			value = nil
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return t.Execute(ctx, input)
}

func argumentNames(input map[string]any) []string {
	names := make([]string, 0, len(input))
	for k := range input {
		names = append(names, k)
	}
	slices.Sort(names)
	return names
}

// errorType names the innermost error in the chain.
func errorType(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return fmt.Sprintf("%T", err)
		}
		err = next
	}
}
