package tools

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// PlaceholderPrefix starts every value produced in place of a failed CLI call.
const PlaceholderPrefix = "# Error converting markdown"

// FailurePolicy decides what a CLI-backed tool returns when the CLI exits
// non-zero.
type FailurePolicy int

const (
	// Degrade returns a successful TOML comment placeholder describing the
	// failure. Callers detect it with IsPlaceholder.
	Degrade FailurePolicy = iota
	// Strict returns the *ExitError so the dispatcher reports a failure.
	Strict
)

func (p FailurePolicy) String() string {
	if p == Strict {
		return "strict"
	}
	return "degrade"
}

func ParsePolicy(s string) (FailurePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "degrade":
		return Degrade, nil
	case "strict":
		return Strict, nil
	default:
		return Degrade, fmt.Errorf("unknown failure policy %q", s)
	}
}

func Placeholder(err error) string {
	return PlaceholderPrefix + "\n# " + strings.ReplaceAll(err.Error(), "\n", "\n# ")
}

// IsPlaceholder reports whether a tool value is a degraded failure marker
// rather than CLI output.
func IsPlaceholder(s string) bool {
	return strings.HasPrefix(s, PlaceholderPrefix)
}

// apply maps a CLI outcome through the policy. Only exit failures are
// degraded; anything else (missing binary, oversized prompt) stays an error.
func (p FailurePolicy) apply(out string, err error) (string, error) {
	if err == nil {
		return out, nil
	}
	var exitErr *ExitError
	if p == Degrade && errors.As(err, &exitErr) {
		slog.Warn("cli failed, returning placeholder", "program", exitErr.Program, "code", exitErr.Code)
		return Placeholder(err), nil
	}
	return "", err
}
