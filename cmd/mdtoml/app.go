package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"mdtoml/internal/agent"
	"mdtoml/internal/audit"
	"mdtoml/internal/config"
	"mdtoml/internal/db"
	"mdtoml/internal/llm"
	"mdtoml/internal/logger"
	"mdtoml/internal/secrets"
	"mdtoml/internal/tools"
	"mdtoml/internal/trace"

	"github.com/spf13/cobra"
)

// app is the wiring shared by every subcommand: configuration, the tool
// registry behind a dispatcher and the optional audit store.
type app struct {
	cfg          *config.Config
	dispatcher   *agent.Dispatcher
	dispatchOpts []agent.DispatcherOption
	store        *audit.Store
	closers      []func() error
}

// withApp loads configuration, sets up logging and tracing, builds the app,
// runs fn and tears everything down again.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger.Init(cfg.Log.Level)

	shutdown, err := trace.Init(ctx, cfg.Trace)
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			slog.Warn("trace shutdown failed", "error", err)
		}
	}()

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.scope(toolFilter); err != nil {
		return err
	}
	return fn(ctx, a)
}

func newApp(cfg *config.Config) (*app, error) {
	policy, err := tools.ParsePolicy(cfg.Tools.Policy)
	if err != nil {
		return nil, err
	}
	if strictMode {
		policy = tools.Strict
	}

	registry, err := tools.Default(tools.Options{
		GeminiModel: cfg.Tools.GeminiModel,
		ClaudeModel: cfg.Tools.ClaudeModel,
		Policy:      policy,
	})
	if err != nil {
		return nil, fmt.Errorf("building tool registry: %w", err)
	}

	a := &app{cfg: cfg}
	var opts []agent.DispatcherOption
	if cfg.Audit.Enabled {
		database, err := db.Open(cfg.Audit.Path)
		if err != nil {
			return nil, fmt.Errorf("opening audit database: %w", err)
		}
		if err := database.Migrate(); err != nil {
			database.Close()
			return nil, fmt.Errorf("migrating audit database: %w", err)
		}
		a.store = audit.NewStore(database)
		a.closers = append(a.closers, database.Close)
		opts = append(opts, agent.WithRecorder(a.store))
	}

	a.dispatchOpts = opts
	a.dispatcher = agent.NewDispatcher(registry, sessionID, opts...)
	slog.Debug("app ready",
		"session_id", a.dispatcher.SessionID(),
		"tools", registry.Len(),
		"policy", policy.String(),
		"audit", cfg.Audit.Enabled,
	)
	return a, nil
}

// scope restricts the dispatcher to the named tools. Every name must be
// registered; an empty list keeps the full registry.
func (a *app) scope(names []string) error {
	if len(names) == 0 {
		return nil
	}
	reg := a.dispatcher.Registry()
	for _, name := range names {
		if _, ok := reg.Get(name); !ok {
			return fmt.Errorf("unknown tool %q in --tools; available tools: %s", name, strings.Join(reg.Names(), ", "))
		}
	}
	a.dispatcher = agent.NewDispatcher(reg.Scope(names), a.dispatcher.SessionID(), a.dispatchOpts...)
	slog.Debug("registry scoped", "session_id", a.dispatcher.SessionID(), "tools", names)
	return nil
}

func (a *app) Close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			slog.Warn("close failed", "error", err)
		}
	}
}

// apiKey returns the configured key, or reads the secret named by
// api_key_path from Secret Manager (when a project is set) and then the
// environment.
func (a *app) apiKey(ctx context.Context) (string, error) {
	if a.cfg.Anthropic.APIKey != "" {
		return a.cfg.Anthropic.APIKey, nil
	}
	name := a.cfg.Anthropic.APIKeyPath
	if name == "" {
		return "", errors.New("no Anthropic API key: set ANTHROPIC_API_KEY or ANTHROPIC_API_KEY_PATH")
	}

	var chain secrets.Chain
	if a.cfg.Secrets.ProjectID != "" {
		gcp, err := secrets.NewGCP(ctx, a.cfg.Secrets.ProjectID, a.cfg.Secrets.CredentialsFile)
		if err != nil {
			slog.Warn("secret manager unavailable", "project_id", a.cfg.Secrets.ProjectID, "error", err)
		} else {
			defer gcp.Close()
			chain = append(chain, gcp)
		}
	}
	chain = append(chain, secrets.Env{})

	key := secrets.Lookup(ctx, chain, name)
	if key == "" {
		return "", fmt.Errorf("could not read Anthropic API key from secret %q", name)
	}
	return key, nil
}

func (a *app) newAgent(ctx context.Context, model string, extra ...agent.Option) (*agent.Agent, error) {
	key, err := a.apiKey(ctx)
	if err != nil {
		return nil, err
	}
	client := llm.NewClient(key,
		llm.WithBaseURL(a.cfg.Anthropic.BaseURL),
		llm.WithAPIVersion(a.cfg.Anthropic.APIVersion),
		llm.WithBeta(a.cfg.Anthropic.Beta),
	)

	opts := []agent.Option{agent.WithMaxTokens(a.cfg.Anthropic.MaxTokens)}
	if a.cfg.Anthropic.System != "" {
		opts = append(opts, agent.WithSystemPrompt(a.cfg.Anthropic.System))
	}
	return agent.New(client, model, a.dispatcher, append(opts, extra...)...), nil
}

// readInput reads a file argument; "-" reads standard input.
func readInput(cmd *cobra.Command, path string) (string, error) {
	if path == "-" {
		b, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(b), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return string(b), nil
}
