package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type BlockType string

const (
	BlockText       BlockType = "text"
	BlockToolUse    BlockType = "tool_use"
	BlockToolResult BlockType = "tool_result"
)

type StopReason string

const (
	StopEndTurn   StopReason = "end_turn"
	StopMaxTokens StopReason = "max_tokens"
	StopSequence  StopReason = "stop_sequence"
	StopToolUse   StopReason = "tool_use"
)

// ContentBlock is a tagged union. Type selects which of the remaining fields
// are meaningful; the others stay zero and are never put on the wire.
type ContentBlock struct {
	Type BlockType

	// text
	Text string

	// tool_use
	ID    string
	Name  string
	Input map[string]any

	// tool_result
	ToolUseID string
	Content   string
	IsError   bool
}

func TextBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockText, Text: text}
}

func ToolUseBlock(id, name string, input map[string]any) ContentBlock {
	return ContentBlock{Type: BlockToolUse, ID: id, Name: name, Input: input}
}

func ToolResultBlock(toolUseID, content string, isError bool) ContentBlock {
	return ContentBlock{Type: BlockToolResult, ToolUseID: toolUseID, Content: content, IsError: isError}
}

type textWire struct {
	Type BlockType `json:"type"`
	Text string    `json:"text"`
}

type toolUseWire struct {
	Type  BlockType      `json:"type"`
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Input map[string]any `json:"input"`
}

type toolResultWire struct {
	Type      BlockType `json:"type"`
	ToolUseID string    `json:"tool_use_id"`
	Content   string    `json:"content"`
	IsError   bool      `json:"is_error"`
}

func (b ContentBlock) MarshalJSON() ([]byte, error) {
	switch b.Type {
	case BlockText:
		return json.Marshal(textWire{Type: b.Type, Text: b.Text})
	case BlockToolUse:
		input := b.Input
		if input == nil {
			input = map[string]any{}
		}
		return json.Marshal(toolUseWire{Type: b.Type, ID: b.ID, Name: b.Name, Input: input})
	case BlockToolResult:
		return json.Marshal(toolResultWire{Type: b.Type, ToolUseID: b.ToolUseID, Content: b.Content, IsError: b.IsError})
	default:
		return nil, fmt.Errorf("unknown content block type %q", b.Type)
	}
}

func (b *ContentBlock) UnmarshalJSON(data []byte) error {
	var head struct {
		Type BlockType `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}

	switch head.Type {
	case BlockText:
		var w textWire
		if err := json.Unmarshal(data, &w); err != nil {
			return err
		}
		*b = TextBlock(w.Text)
	case BlockToolUse:
		var w toolUseWire
		if err := json.Unmarshal(data, &w); err != nil {
			return err
		}
		if w.ID == "" || w.Name == "" {
			return errors.New("tool_use block requires id and name")
		}
		if w.Input == nil {
			w.Input = map[string]any{}
		}
		*b = ToolUseBlock(w.ID, w.Name, w.Input)
	case BlockToolResult:
		var w toolResultWire
		if err := json.Unmarshal(data, &w); err != nil {
			return err
		}
		*b = ToolResultBlock(w.ToolUseID, w.Content, w.IsError)
	default:
		return fmt.Errorf("unknown content block type %q", head.Type)
	}
	return nil
}

// MessageContent holds either raw text or an ordered list of blocks. It
// encodes as a JSON string in the first case and as an array in the second.
type MessageContent struct {
	Text   string
	Blocks []ContentBlock
}

func (c MessageContent) IsBlocks() bool { return c.Blocks != nil }

func (c MessageContent) MarshalJSON() ([]byte, error) {
	if c.Blocks != nil {
		return json.Marshal(c.Blocks)
	}
	return json.Marshal(c.Text)
}

func (c *MessageContent) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		*c = MessageContent{Text: text}
		return nil
	}
	var blocks []ContentBlock
	if err := json.Unmarshal(data, &blocks); err != nil {
		return fmt.Errorf("message content must be a string or a list of blocks: %w", err)
	}
	if blocks == nil {
		blocks = []ContentBlock{}
	}
	*c = MessageContent{Blocks: blocks}
	return nil
}

type Message struct {
	Role    Role           `json:"role"`
	Content MessageContent `json:"content"`
}

func UserText(text string) Message {
	return Message{Role: RoleUser, Content: MessageContent{Text: text}}
}

// UserBlocks builds a block-content user message. With no blocks the content
// still encodes as an empty array.
func UserBlocks(blocks ...ContentBlock) Message {
	if blocks == nil {
		blocks = []ContentBlock{}
	}
	return Message{Role: RoleUser, Content: MessageContent{Blocks: blocks}}
}

type InputSchema struct {
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
	Required   []string       `json:"required,omitempty"`
}

// ToolDescriptor is what the model sees of a tool.
type ToolDescriptor struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	InputSchema InputSchema `json:"input_schema"`
}

type Thinking struct {
	Type         string `json:"type"`
	BudgetTokens int    `json:"budget_tokens"`
}

func EnableThinking(budget int) *Thinking {
	return &Thinking{Type: "enabled", BudgetTokens: budget}
}

type ToolChoiceType string

const (
	ToolChoiceAuto ToolChoiceType = "auto"
	ToolChoiceAny  ToolChoiceType = "any"
	ToolChoiceTool ToolChoiceType = "tool"
	ToolChoiceNone ToolChoiceType = "none"
)

type ToolChoice struct {
	Type                   ToolChoiceType `json:"type"`
	Name                   string         `json:"name,omitempty"`
	DisableParallelToolUse bool           `json:"disable_parallel_tool_use,omitempty"`
}

type Request struct {
	Model       string           `json:"model"`
	MaxTokens   int              `json:"max_tokens"`
	Messages    []Message        `json:"messages"`
	Temperature *float64         `json:"temperature,omitempty"`
	Thinking    *Thinking        `json:"thinking,omitempty"`
	Stream      bool             `json:"stream,omitempty"`
	System      string           `json:"system,omitempty"`
	Tools       []ToolDescriptor `json:"tools,omitempty"`
	ToolChoice  *ToolChoice      `json:"tool_choice,omitempty"`
}

type Usage struct {
	InputTokens  int `json:"input_tokens" yaml:"input_tokens"`
	OutputTokens int `json:"output_tokens" yaml:"output_tokens"`
}

type Response struct {
	Content      []ContentBlock `json:"content"`
	ID           string         `json:"id"`
	Model        string         `json:"model"`
	Role         Role           `json:"role"`
	StopReason   *StopReason    `json:"stop_reason"`
	StopSequence *string        `json:"stop_sequence,omitempty"`
	Usage        Usage          `json:"usage"`
}

// ToolUses returns the tool_use blocks of the response in order.
func (r *Response) ToolUses() []ContentBlock {
	var out []ContentBlock
	for _, b := range r.Content {
		if b.Type == BlockToolUse {
			out = append(out, b)
		}
	}
	return out
}

// Text concatenates all text blocks.
func (r *Response) Text() string {
	var sb strings.Builder
	for _, b := range r.Content {
		if b.Type == BlockText {
			sb.WriteString(b.Text)
		}
	}
	return sb.String()
}
