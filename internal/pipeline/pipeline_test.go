package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"mdtoml/internal/agent"
	"mdtoml/internal/tools"
)

type reply struct {
	out string
	err error
}

// scriptedRunner answers CLI calls from a fixed script, one reply per call.
type scriptedRunner struct {
	replies  []reply
	programs []string
	prompts  []string
}

func (s *scriptedRunner) Run(_ context.Context, program, _, prompt string) (string, error) {
	s.programs = append(s.programs, program)
	s.prompts = append(s.prompts, prompt)
	if len(s.replies) == 0 {
		return "", errors.New("script exhausted")
	}
	r := s.replies[0]
	s.replies = s.replies[1:]
	return r.out, r.err
}

func newPipeline(t *testing.T, runner tools.Runner, policy tools.FailurePolicy, opts ...Option) *Pipeline {
	t.Helper()
	reg, err := tools.Default(tools.Options{Runner: runner, Policy: policy})
	if err != nil {
		t.Fatalf("tools.Default: %v", err)
	}
	return New(agent.NewDispatcher(reg, "pipe"), opts...)
}

func toolNames(steps []agent.Result) []string {
	names := make([]string, 0, len(steps))
	for _, s := range steps {
		names = append(names, s.ToolName)
	}
	return names
}

func TestPipeline_ValidOnFirstTry(t *testing.T) {
	t.Parallel()

	runner := &scriptedRunner{replies: []reply{{out: "title = \"Doc\""}}}
	report, err := newPipeline(t, runner, tools.Degrade).Run(context.Background(), "# Doc")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !report.Valid || report.Repairs != 0 || report.TOML != "title = \"Doc\"" {
		t.Fatalf("unexpected report %+v", report)
	}
	if got := strings.Join(toolNames(report.Steps), ","); got != tools.NameConvertGemini+","+tools.NameValidate {
		t.Errorf("unexpected steps %s", got)
	}
	if runner.programs[0] != tools.ProgramGemini {
		t.Errorf("default engine should be gemini, ran %s", runner.programs[0])
	}
}

func TestPipeline_RepairsInvalidConversion(t *testing.T) {
	t.Parallel()

	runner := &scriptedRunner{replies: []reply{
		{out: "a = [1, 2"},
		{out: "a = [1, 2]"},
	}}
	p := newPipeline(t, runner, tools.Degrade, WithEngine(EngineClaudeCode))
	report, err := p.Run(context.Background(), "# list")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !report.Valid || report.Repairs != 1 || report.TOML != "a = [1, 2]" || report.Errors != "" {
		t.Fatalf("unexpected report %+v", report)
	}
	want := []string{tools.NameConvertClaude, tools.NameValidate, tools.NameRepair, tools.NameValidate}
	if got := toolNames(report.Steps); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("steps = %v, want %v", got, want)
	}
	if !strings.Contains(runner.prompts[1], "a = [1, 2") {
		t.Errorf("repair prompt must carry the broken document")
	}
}

func TestPipeline_StopsAfterMaxRepairs(t *testing.T) {
	t.Parallel()

	runner := &scriptedRunner{replies: []reply{
		{out: "a = "},
		{out: "a = "},
	}}
	report, err := newPipeline(t, runner, tools.Degrade, WithMaxRepairs(1)).Run(context.Background(), "# x")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Valid || report.Repairs != 1 || report.Errors == "" {
		t.Fatalf("unexpected report %+v", report)
	}
	if len(runner.programs) != 2 {
		t.Errorf("expected 2 CLI calls, got %d", len(runner.programs))
	}
}

func TestPipeline_StopsOnPlaceholder(t *testing.T) {
	t.Parallel()

	runner := &scriptedRunner{replies: []reply{
		{err: &tools.ExitError{Program: "gemini", Code: 2}},
	}}
	report, err := newPipeline(t, runner, tools.Degrade).Run(context.Background(), "# x")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !report.Degraded || report.Valid || !tools.IsPlaceholder(report.Errors) {
		t.Fatalf("unexpected report %+v", report)
	}
	if len(report.Steps) != 1 {
		t.Errorf("no step should follow a placeholder, got %d", len(report.Steps))
	}
}

func TestPipeline_StrictFailureIsAnError(t *testing.T) {
	t.Parallel()

	runner := &scriptedRunner{replies: []reply{
		{err: &tools.ExitError{Program: "gemini", Code: 2}},
	}}
	report, err := newPipeline(t, runner, tools.Strict).Run(context.Background(), "# x")
	if !errors.Is(err, agent.ErrToolFailed) {
		t.Fatalf("expected ErrToolFailed, got %v", err)
	}
	if report == nil || len(report.Steps) != 1 || report.Steps[0].Kind != agent.KindExecutionFailed {
		t.Errorf("report should carry the failed step: %+v", report)
	}
}

func TestPipeline_CancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	runner := &scriptedRunner{replies: []reply{{out: "a = 1"}}}
	_, err := newPipeline(t, runner, tools.Degrade).Run(ctx, "# x")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestParseEngine(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]Engine{"": EngineGemini, "Gemini": EngineGemini, "claude_code": EngineClaudeCode, "claude": EngineClaudeCode} {
		if got, err := ParseEngine(in); err != nil || got != want {
			t.Errorf("ParseEngine(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseEngine("gpt"); err == nil {
		t.Error("expected error for unknown engine")
	}
}

func TestPipeline_ObserverSeesEveryStep(t *testing.T) {
	t.Parallel()

	var seen []string
	runner := &scriptedRunner{replies: []reply{{out: "a = "}, {out: "a = 1"}}}
	report, err := newPipeline(t, runner, tools.Degrade, WithObserver(func(r agent.Result) {
		seen = append(seen, r.ToolName)
	})).Run(context.Background(), "# x")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if strings.Join(seen, ",") != strings.Join(toolNames(report.Steps), ",") {
		t.Errorf("observer saw %v, report has %v", seen, toolNames(report.Steps))
	}
}
