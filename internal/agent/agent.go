package agent

import (
	"context"
	"fmt"
	"log/slog"

	"mdtoml/internal/llm"
	"mdtoml/internal/trace"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

const defaultMaxTokens = 1024

type Option func(*Agent)

func WithSystemPrompt(s string) Option {
	return func(a *Agent) { a.systemPrompt = s }
}

func WithMaxTokens(n int) Option {
	return func(a *Agent) { a.maxTokens = n }
}

func WithToolChoice(tc llm.ToolChoice) Option {
	return func(a *Agent) { a.toolChoice = tc }
}

// Agent performs one request/dispatch cycle: a single model call followed by
// the execution of every tool the model asked for. It never calls the model
// a second time.
type Agent struct {
	provider     llm.Provider
	dispatcher   *Dispatcher
	model        string
	maxTokens    int
	systemPrompt string
	toolChoice   llm.ToolChoice
}

func New(provider llm.Provider, model string, dispatcher *Dispatcher, opts ...Option) *Agent {
	a := &Agent{
		provider:   provider,
		dispatcher: dispatcher,
		model:      model,
		maxTokens:  defaultMaxTokens,
		toolChoice: llm.ToolChoice{Type: llm.ToolChoiceAuto},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Turn is everything one cycle produced. ToolResults[i] answers the i-th
// tool_use block of Response and can be sent back as a user message.
type Turn struct {
	Response    *llm.Response
	Results     []Result
	ToolResults []llm.ContentBlock
}

func (t *Turn) FollowUp() llm.Message {
	return llm.UserBlocks(t.ToolResults...)
}

func (a *Agent) Run(ctx context.Context, prompt string) (*Turn, error) {
	sessionID := a.dispatcher.SessionID()
	ctx, span := trace.Tracer().Start(ctx, "agent.run",
		oteltrace.WithAttributes(
			attribute.String("session.id", sessionID),
			attribute.String("llm.model", a.model),
			attribute.Int("user.message_length", len(prompt)),
		),
	)
	defer span.End()

	req := llm.Request{
		Model:      a.model,
		MaxTokens:  a.maxTokens,
		Messages:   []llm.Message{llm.UserText(prompt)},
		System:     a.systemPrompt,
		Tools:      a.dispatcher.Registry().Descriptors(),
		ToolChoice: &a.toolChoice,
	}

	resp, err := a.provider.Send(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("sending prompt: %w", err)
	}
	span.SetAttributes(
		attribute.Int("llm.input_tokens", resp.Usage.InputTokens),
		attribute.Int("llm.output_tokens", resp.Usage.OutputTokens),
	)

	uses := resp.ToolUses()
	slog.Info("model responded",
		"session_id", sessionID,
		"response_id", resp.ID,
		"tool_uses", len(uses),
	)

	turn := &Turn{Response: resp}
	for _, use := range uses {
		res := a.dispatcher.Execute(ctx, use.Name, use.Input)
		turn.Results = append(turn.Results, res)
		turn.ToolResults = append(turn.ToolResults, res.ToolResultBlock(use.ID))
	}
	return turn, nil
}
