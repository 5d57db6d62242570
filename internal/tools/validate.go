package tools

import (
	"errors"
	"fmt"

	"github.com/BurntSushi/toml"
)

// Validation is the outcome of a TOML syntax check. Errors is empty when
// Valid is true.
type Validation struct {
	Valid   bool   `json:"is_valid" yaml:"is_valid"`
	Content string `json:"tomlfile" yaml:"tomlfile"`
	Errors  string `json:"errors" yaml:"errors"`
}

// ValidateTOML parses doc and never fails: parser diagnostics end up in
// Validation.Errors.
func ValidateTOML(doc string) Validation {
	var v map[string]any
	_, err := toml.Decode(doc, &v)
	if err == nil {
		return Validation{Valid: true, Content: doc}
	}

	var perr toml.ParseError
	if errors.As(err, &perr) {
		return Validation{Valid: false, Content: doc, Errors: perr.Error()}
	}
	return Validation{Valid: false, Content: doc, Errors: fmt.Sprintf("unexpected error while parsing: %v", err)}
}
