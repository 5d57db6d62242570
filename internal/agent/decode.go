package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"slices"

	"mdtoml/internal/llm"
)

// ParamsError reports that the model supplied arguments that do not match the
// tool's declared schema: a missing required field, an unknown field or a
// value of the wrong type.
type ParamsError struct {
	Field  string
	Detail string
}

func (e *ParamsError) Error() string {
	if e.Field == "" {
		return e.Detail
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Detail)
}

// Decode validates input against schema and converts it into A. Every
// mismatch is returned as a *ParamsError.
func Decode[A any](schema llm.InputSchema, input map[string]any) (A, error) {
	var args A
	if input == nil {
		input = map[string]any{}
	}

	for _, field := range schema.Required {
		if _, ok := input[field]; !ok {
			return args, &ParamsError{Field: field, Detail: "missing required argument"}
		}
	}

	keys := make([]string, 0, len(input))
	for k := range input {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, key := range keys {
		prop, ok := schema.Properties[key]
		if !ok {
			return args, &ParamsError{Field: key, Detail: "unexpected argument"}
		}
		if expected := expectedType(prop); expected != "" {
			if err := checkType(input[key], expected); err != nil {
				return args, &ParamsError{Field: key, Detail: err.Error()}
			}
		}
	}

	raw, err := json.Marshal(input)
	if err != nil {
		return args, &ParamsError{Detail: fmt.Sprintf("arguments are not serializable: %v", err)}
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&args); err != nil {
		return args, &ParamsError{Detail: err.Error()}
	}
	return args, nil
}

func expectedType(prop any) string {
	if m, ok := prop.(map[string]any); ok {
		if t, ok := m["type"].(string); ok {
			return t
		}
	}
	return ""
}

func checkType(value any, expected string) error {
	ok := false
	switch expected {
	case "string":
		_, ok = value.(string)
	case "boolean":
		_, ok = value.(bool)
	case "number":
		ok = isNumber(value)
	case "integer":
		ok = isInteger(value)
	case "object":
		_, ok = value.(map[string]any)
	case "array":
		_, ok = value.([]any)
	case "null":
		ok = value == nil
	default:
		return fmt.Errorf("unsupported schema type %q", expected)
	}
	if !ok {
		return fmt.Errorf("expected %s but got %s", expected, jsonKind(value))
	}
	return nil
}

func isNumber(value any) bool {
	switch v := value.(type) {
	case float32, float64, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	case json.Number:
		_, err := v.Float64()
		return err == nil
	}
	return false
}

func isInteger(value any) bool {
	switch v := value.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	case float64:
		return math.Trunc(v) == v
	case float32:
		return math.Trunc(float64(v)) == float64(v)
	case json.Number:
		_, err := v.Int64()
		return err == nil
	}
	return false
}

func jsonKind(value any) string {
	switch value.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	}
	if isNumber(value) {
		return "number"
	}
	return fmt.Sprintf("%T", value)
}

// FuncTool adapts a typed function into a Tool. Arguments are decoded into A
// before fn runs, so fn only ever sees well-formed input.
type FuncTool[A, R any] struct {
	desc llm.ToolDescriptor
	fn   func(context.Context, A) (R, error)
}

func NewFuncTool[A, R any](desc llm.ToolDescriptor, fn func(context.Context, A) (R, error)) *FuncTool[A, R] {
	return &FuncTool[A, R]{desc: desc, fn: fn}
}

func (t *FuncTool[A, R]) Name() string                   { return t.desc.Name }
func (t *FuncTool[A, R]) Descriptor() llm.ToolDescriptor { return t.desc }

func (t *FuncTool[A, R]) Execute(ctx context.Context, input map[string]any) (any, error) {
	args, err := Decode[A](t.desc.InputSchema, input)
	if err != nil {
		return nil, err
	}
	res, err := t.fn(ctx, args)
	if err != nil {
		return nil, err
	}
	return res, nil
}
