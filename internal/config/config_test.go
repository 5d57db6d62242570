package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

// clearEnv unsets every variable the loader reads so the host environment
// cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"GCP_PROJECT_ID", "GOOGLE_APPLICATION_CREDENTIALS", "ANTHROPIC_API_KEY_PATH", "ANTHROPIC_API_KEY",
		"ANTHROPIC_MODEL_SONNET", "ANTHROPIC_MODEL_OPUS", "ANTHROPIC_BASE_URL", "GEMINI_MODEL",
		"CLAUDE_CODE_MODEL", "MDTOML_FAILURE_POLICY", "MDTOML_DB_PATH", "OTEL_EXPORTER_OTLP_ENDPOINT",
		"LOG_LEVEL", "MDTOML_MAX_REPAIRS", "MDTOML_AUDIT", "MDTOML_ADDR",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoad_DefaultsWhenNothingIsSet(t *testing.T) {
	clearEnv(t)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	dir := t.TempDir()
	cfg, err := load("", filepath.Join(dir, ".env"), filepath.Join(dir, ".env.local"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := Default()
	if cfg.Anthropic != want.Anthropic || cfg.Tools != want.Tools || cfg.Pipeline != want.Pipeline {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
	if cfg.Trace.Enabled() {
		t.Error("tracing should be off by default")
	}
}

func TestLoad_Precedence(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	path := writeFile(t, dir, "config.toml", `
[anthropic]
model = "from-file"
base_url = "https://file.example"
max_tokens = 2048

[tools]
gemini_model = "gemini-file"
claude_model = "claude-file"

[pipeline]
engine = "claude_code"
max_repairs = 5
`)
	envFile := writeFile(t, dir, ".env", "GEMINI_MODEL=gemini-dotenv\nCLAUDE_CODE_MODEL=claude-dotenv\nANTHROPIC_BASE_URL=https://dotenv.example\n")
	localFile := writeFile(t, dir, ".env.local", "CLAUDE_CODE_MODEL=claude-local\nANTHROPIC_BASE_URL=https://local.example\n")
	t.Setenv("ANTHROPIC_BASE_URL", "https://env.example")

	cfg, err := load(path, envFile, localFile)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	checks := []struct{ name, got, want string }{
		{"file only", cfg.Anthropic.Model, "from-file"},
		{".env over file", cfg.Tools.GeminiModel, "gemini-dotenv"},
		{".env.local over .env", cfg.Tools.ClaudeModel, "claude-local"},
		{"environment over .env.local", cfg.Anthropic.BaseURL, "https://env.example"},
		{"default kept", cfg.Anthropic.OpusModel, "claude-opus-4-20250514"},
		{"file engine", cfg.Pipeline.Engine, "claude_code"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s: got %q, want %q", c.name, c.got, c.want)
		}
	}
	if cfg.Anthropic.MaxTokens != 2048 || cfg.Pipeline.MaxRepairs != 5 {
		t.Errorf("numeric settings not read from file: %+v %+v", cfg.Anthropic, cfg.Pipeline)
	}
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	clearEnv(t)
	t.Setenv("GCP_PROJECT_ID", "proj-1")
	t.Setenv("ANTHROPIC_API_KEY_PATH", "anthropic-key")
	t.Setenv("MDTOML_DB_PATH", "/tmp/x.db")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://collector:4318")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("MDTOML_MAX_REPAIRS", "0")
	t.Setenv("MDTOML_AUDIT", "false")
	t.Setenv("MDTOML_FAILURE_POLICY", "strict")
	t.Setenv("MDTOML_ADDR", "127.0.0.1:9000")

	path := writeFile(t, t.TempDir(), "config.toml", "")
	cfg, err := load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Secrets.ProjectID != "proj-1" || cfg.Anthropic.APIKeyPath != "anthropic-key" {
		t.Errorf("secret settings not applied: %+v %+v", cfg.Secrets, cfg.Anthropic)
	}
	if cfg.Audit.Path != "/tmp/x.db" || cfg.Audit.Enabled {
		t.Errorf("audit settings not applied: %+v", cfg.Audit)
	}
	if !cfg.Trace.Enabled() || cfg.Log.Level != "debug" {
		t.Errorf("observability settings not applied: %+v %+v", cfg.Trace, cfg.Log)
	}
	if cfg.Gateway.Addr != "127.0.0.1:9000" {
		t.Errorf("gateway address not applied: %q", cfg.Gateway.Addr)
	}
	if cfg.Pipeline.MaxRepairs != 0 || cfg.Tools.Policy != "strict" {
		t.Errorf("pipeline settings not applied: %+v %+v", cfg.Pipeline, cfg.Tools)
	}
}

func TestLoad_Errors(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	if _, err := load(filepath.Join(dir, "missing.toml")); err == nil {
		t.Error("explicit missing config file should fail")
	}

	bad := writeFile(t, dir, "bad.toml", "[anthropic\nmodel = 1")
	if _, err := load(bad); err == nil {
		t.Error("malformed config file should fail")
	}

	tooMany := writeFile(t, dir, "tokens.toml", "[anthropic]\nmax_tokens = 5000\n")
	if _, err := load(tooMany); err == nil {
		t.Error("max_tokens above the limit should fail")
	}

	t.Setenv("MDTOML_MAX_REPAIRS", "many")
	ok := writeFile(t, dir, "ok.toml", "")
	if _, err := load(ok); err == nil {
		t.Error("non-numeric MDTOML_MAX_REPAIRS should fail")
	}
}
