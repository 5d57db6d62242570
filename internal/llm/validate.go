package llm

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

const (
	MaxTokensLimit     = 4096
	MinThinkingBudget  = 1024
	maxToolNameLength  = 128
	schemaTypeObject   = "object"
	thinkingTypeEnable = "enabled"
)

func (r Role) valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Validate checks the descriptor against the Messages API tool constraints.
func (d ToolDescriptor) Validate() error {
	n := utf8.RuneCountInString(d.Name)
	if n < 1 || n > maxToolNameLength {
		return fmt.Errorf("tool name must be 1-%d characters, got %d", maxToolNameLength, n)
	}
	if d.InputSchema.Type != schemaTypeObject {
		return fmt.Errorf("tool %s: input_schema type must be %q", d.Name, schemaTypeObject)
	}
	for _, req := range d.InputSchema.Required {
		if _, ok := d.InputSchema.Properties[req]; !ok {
			return fmt.Errorf("tool %s: required property %q is not declared", d.Name, req)
		}
	}
	return nil
}

func (m Message) Validate() error {
	if !m.Role.valid() {
		return fmt.Errorf("invalid role %q", m.Role)
	}
	for i, b := range m.Content.Blocks {
		if err := b.validate(); err != nil {
			return fmt.Errorf("block %d: %w", i, err)
		}
	}
	return nil
}

func (b ContentBlock) validate() error {
	switch b.Type {
	case BlockText, BlockToolResult:
		return nil
	case BlockToolUse:
		if b.ID == "" || b.Name == "" {
			return errors.New("tool_use block requires id and name")
		}
		return nil
	default:
		return fmt.Errorf("unknown content block type %q", b.Type)
	}
}

// Validate enforces the request bounds before anything is sent.
func (r *Request) Validate() error {
	if r.Model == "" {
		return errors.New("model is required")
	}
	if r.MaxTokens < 1 || r.MaxTokens > MaxTokensLimit {
		return fmt.Errorf("max_tokens must be in [1, %d], got %d", MaxTokensLimit, r.MaxTokens)
	}
	if len(r.Messages) == 0 {
		return errors.New("at least one message is required")
	}
	for i, m := range r.Messages {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("message %d: %w", i, err)
		}
	}
	if r.Temperature != nil && (*r.Temperature < 0 || *r.Temperature > 1) {
		return fmt.Errorf("temperature must be in [0, 1], got %g", *r.Temperature)
	}
	if r.Thinking != nil {
		if r.Thinking.Type != thinkingTypeEnable {
			return fmt.Errorf("thinking type must be %q", thinkingTypeEnable)
		}
		if r.Thinking.BudgetTokens < MinThinkingBudget {
			return fmt.Errorf("thinking budget_tokens must be >= %d, got %d", MinThinkingBudget, r.Thinking.BudgetTokens)
		}
	}
	for _, t := range r.Tools {
		if err := t.Validate(); err != nil {
			return err
		}
	}
	if tc := r.ToolChoice; tc != nil {
		switch tc.Type {
		case ToolChoiceAuto, ToolChoiceAny, ToolChoiceNone:
		case ToolChoiceTool:
			if tc.Name == "" {
				return errors.New("tool_choice of type tool requires a name")
			}
		default:
			return fmt.Errorf("invalid tool_choice type %q", tc.Type)
		}
	}
	return nil
}

func (r *Response) validate() error {
	if r.ID == "" {
		return errors.New("response id is missing")
	}
	if r.Model == "" {
		return errors.New("response model is missing")
	}
	if r.Role != RoleAssistant {
		return fmt.Errorf("response role must be %q, got %q", RoleAssistant, r.Role)
	}
	if r.Content == nil {
		return errors.New("response content is missing")
	}
	if r.StopReason != nil {
		switch *r.StopReason {
		case StopEndTurn, StopMaxTokens, StopSequence, StopToolUse:
		default:
			return fmt.Errorf("unknown stop_reason %q", *r.StopReason)
		}
	}
	return nil
}
