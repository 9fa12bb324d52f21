// Package app wires configuration into a ready host shared by every front-end.
package app

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/afero"

	"github.com/Protocol-Lattice/specgen/src/ai"
	"github.com/Protocol-Lattice/specgen/src/config"
	"github.com/Protocol-Lattice/specgen/src/hooks"
	"github.com/Protocol-Lattice/specgen/src/host"
	"github.com/Protocol-Lattice/specgen/src/logging"
	"github.com/Protocol-Lattice/specgen/src/metrics"
	"github.com/Protocol-Lattice/specgen/src/workspace"
)

// Options overrides collaborators, mostly for tests.
type Options struct {
	// Fs backs the workspace. Defaults to the OS filesystem.
	Fs afero.Fs
	// LogFallback receives logs when no log file is configured.
	LogFallback io.Writer
	// Chat replaces the go-openai client.
	Chat ai.ChatClient
	// Caller replaces the UTCP client used by the post-apply hook.
	Caller hooks.ToolCaller
}

type App struct {
	Config    *config.Config
	Logger    *logging.Logger
	Metrics   *metrics.Recorder
	Service   *ai.Service
	Workspace *workspace.Workspace
	Host      *host.Host
}

// New builds every collaborator from cfg.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	fallback := opts.LogFallback
	if fallback == nil {
		fallback = io.Discard
	}
	logger, err := logging.Open(cfg.Log.File, cfg.Log.Level, fallback)
	if err != nil {
		return nil, err
	}
	a := &App{Config: cfg, Logger: logger, Metrics: metrics.New()}

	svcOpts := ai.Options{
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		Timeout:     cfg.RequestTimeout,
		Logger:      logger.Logger,
		Metrics:     a.Metrics,
	}
	if opts.Chat != nil {
		a.Service = ai.NewServiceWithClient(opts.Chat, svcOpts)
	} else if a.Service, err = ai.NewService(svcOpts); err != nil {
		a.Close()
		return nil, err
	}

	root, err := cfg.WorkspaceRoot()
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to resolve workspace: %w", err)
	}
	fsys := opts.Fs
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	if a.Workspace, err = workspace.New(fsys, root, cfg.Ignore); err != nil {
		a.Close()
		return nil, err
	}

	hook, err := newHook(ctx, cfg.Hooks, opts.Caller)
	if err != nil {
		// Hooks are optional; a broken provider file only disables them.
		logger.Warn("post-apply hook disabled", "error", err)
	}

	a.Host = host.New(a.Service, host.Options{
		Workspace: a.Workspace,
		Hook:      hook,
		Logger:    logger.Logger,
		Metrics:   a.Metrics,
	})
	logger.Info("specgen ready",
		"workspace", root,
		"model", cfg.Model,
		"base_url", cfg.BaseURL,
		"hook", hook.Tool())
	return a, nil
}

func newHook(ctx context.Context, cfg config.HooksConfig, caller hooks.ToolCaller) (*hooks.PostApply, error) {
	if !cfg.Enabled() {
		return nil, nil
	}
	if caller == nil {
		client, err := hooks.NewUTCP(ctx, cfg.UTCPProviders)
		if err != nil {
			return nil, err
		}
		caller = client
	}
	return hooks.NewPostApply(caller, cfg.PostApplyTool), nil
}

// ServeMetrics exposes the Prometheus endpoint in the background when metrics.addr is set.
func (a *App) ServeMetrics(ctx context.Context) {
	addr := a.Config.Metrics.Addr
	if addr == "" {
		return
	}
	go func() {
		a.Logger.Info("metrics listening", "addr", addr)
		if err := a.Metrics.Serve(ctx, addr); err != nil {
			a.Logger.Error("metrics server stopped", "error", err)
		}
	}()
}

// Close releases the log file.
func (a *App) Close() error {
	return a.Logger.Close()
}
