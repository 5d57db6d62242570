package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"mdtoml/internal/trace"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

type Config struct {
	Anthropic AnthropicConfig `toml:"anthropic"`
	Tools     ToolsConfig     `toml:"tools"`
	Pipeline  PipelineConfig  `toml:"pipeline"`
	Secrets   SecretsConfig   `toml:"secrets"`
	Audit     AuditConfig     `toml:"audit"`
	Gateway   GatewayConfig   `toml:"gateway"`
	Trace     trace.Config    `toml:"trace"`
	Log       LogConfig       `toml:"log"`
}

type AnthropicConfig struct {
	BaseURL    string `toml:"base_url"`
	APIVersion string `toml:"api_version"`
	Beta       string `toml:"beta"`
	Model      string `toml:"model"`
	OpusModel  string `toml:"opus_model"`
	MaxTokens  int    `toml:"max_tokens"`
	APIKey     string `toml:"api_key"`
	// APIKeyPath names the Secret Manager secret holding the key. Used only
	// when APIKey is empty.
	APIKeyPath string `toml:"api_key_path"`
	System     string `toml:"system_prompt"`
}

type ToolsConfig struct {
	GeminiModel string `toml:"gemini_model"`
	ClaudeModel string `toml:"claude_model"`
	Policy      string `toml:"policy"`
}

type PipelineConfig struct {
	Engine     string `toml:"engine"`
	MaxRepairs int    `toml:"max_repairs"`
}

type SecretsConfig struct {
	ProjectID       string `toml:"project_id"`
	CredentialsFile string `toml:"credentials_file"`
}

type AuditConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

type GatewayConfig struct {
	Addr string `toml:"addr"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

// Load builds the configuration from, in increasing precedence: defaults,
// the TOML file, .env, .env.local and the process environment. An empty path
// reads the default location and tolerates its absence; an explicit path must
// exist.
func Load(path string) (*Config, error) {
	return load(path, ".env", ".env.local")
}

func load(path string, envFiles ...string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
	}

	env, err := readEnvFiles(envFiles...)
	if err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(env); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Default() *Config {
	return &Config{
		Anthropic: AnthropicConfig{
			BaseURL:    "https://api.anthropic.com",
			APIVersion: "2023-06-01",
			Beta:       "prompt-tools-2025-04-02",
			Model:      "claude-sonnet-4-20250514",
			OpusModel:  "claude-opus-4-20250514",
			MaxTokens:  1024,
		},
		Tools: ToolsConfig{
			GeminiModel: "gemini-2.5-flash",
			ClaudeModel: "claude-opus-4-20250514",
			Policy:      "degrade",
		},
		Pipeline: PipelineConfig{
			Engine:     "gemini",
			MaxRepairs: 2,
		},
		Audit: AuditConfig{
			Enabled: true,
			Path:    defaultDBPath(),
		},
		Gateway: GatewayConfig{
			Addr: ":8484",
		},
		Trace: trace.Config{
			URLPath: "/v1/traces",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func (c *Config) Validate() error {
	if c.Anthropic.MaxTokens < 1 || c.Anthropic.MaxTokens > 4096 {
		return fmt.Errorf("anthropic.max_tokens must be between 1 and 4096, got %d", c.Anthropic.MaxTokens)
	}
	if c.Pipeline.MaxRepairs < 0 {
		return fmt.Errorf("pipeline.max_repairs must not be negative, got %d", c.Pipeline.MaxRepairs)
	}
	if c.Audit.Enabled && c.Audit.Path == "" {
		return fmt.Errorf("audit.path is required when audit is enabled")
	}
	return nil
}

// readEnvFiles merges the dotenv files in order, later files overriding
// earlier ones. Missing files are skipped.
func readEnvFiles(files ...string) (map[string]string, error) {
	merged := map[string]string{}
	for _, f := range files {
		vals, err := godotenv.Read(f)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("reading %s: %w", f, err)
		}
		for k, v := range vals {
			merged[k] = v
		}
	}
	return merged, nil
}

func (c *Config) applyEnv(dotenv map[string]string) error {
	lookup := func(key string) (string, bool) {
		if v := os.Getenv(key); v != "" {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}

	strs := map[string]*string{
		"GCP_PROJECT_ID":                 &c.Secrets.ProjectID,
		"GOOGLE_APPLICATION_CREDENTIALS": &c.Secrets.CredentialsFile,
		"ANTHROPIC_API_KEY_PATH":         &c.Anthropic.APIKeyPath,
		"ANTHROPIC_API_KEY":              &c.Anthropic.APIKey,
		"ANTHROPIC_MODEL_SONNET":         &c.Anthropic.Model,
		"ANTHROPIC_MODEL_OPUS":           &c.Anthropic.OpusModel,
		"ANTHROPIC_BASE_URL":             &c.Anthropic.BaseURL,
		"GEMINI_MODEL":                   &c.Tools.GeminiModel,
		"CLAUDE_CODE_MODEL":              &c.Tools.ClaudeModel,
		"MDTOML_FAILURE_POLICY":          &c.Tools.Policy,
		"MDTOML_DB_PATH":                 &c.Audit.Path,
		"MDTOML_ADDR":                    &c.Gateway.Addr,
		"OTEL_EXPORTER_OTLP_ENDPOINT":    &c.Trace.Endpoint,
		"LOG_LEVEL":                      &c.Log.Level,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	if v, ok := lookup("MDTOML_MAX_REPAIRS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MDTOML_MAX_REPAIRS: %w", err)
		}
		c.Pipeline.MaxRepairs = n
	}
	if v, ok := lookup("MDTOML_AUDIT"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("MDTOML_AUDIT: %w", err)
		}
		c.Audit.Enabled = b
	}
	return nil
}

// DefaultPath is $XDG_CONFIG_HOME/mdtoml/config.toml, or the platform
// equivalent.
func DefaultPath() string {
	dir, _ := os.UserConfigDir()
	return filepath.Join(dir, "mdtoml", "config.toml")
}

func defaultDBPath() string {
	dir, _ := os.UserHomeDir()
	return filepath.Join(dir, ".local", "share", "mdtoml", "audit.db")
}
