// ABOUTME: Wires configuration into the pipeline: persistence, sandbox runtime, LLM source, and studio.
// ABOUTME: Each builder maps one config section onto the package that implements it.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/2389-research/vellum/artifact"
	"github.com/2389-research/vellum/config"
	"github.com/2389-research/vellum/extract"
	"github.com/2389-research/vellum/generate"
	"github.com/2389-research/vellum/persist"
	"github.com/2389-research/vellum/preview"
	"github.com/2389-research/vellum/render"
	"github.com/2389-research/vellum/sandbox"
	"github.com/2389-research/vellum/studio"
	"github.com/2389-research/vellum/web"
)

// app is the assembled pipeline for the interactive modes.
type app struct {
	studio *studio.Studio
	kv     persist.KV
}

// close stops the preview and releases the store.
func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = a.studio.Close(ctx)
	_ = a.kv.Close()
}

// loadConfig resolves the config file, applies the environment and flag
// overrides, and validates the result. Without -config, config.yaml or
// config.toml in the XDG config dir is used when present.
func loadConfig(opts options, getenv func(string) string) (config.Config, error) {
	path := opts.configPath
	if path == "" {
		path = defaultConfigFile()
	}

	cfg := config.Default()
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(getenv); err != nil {
		return cfg, fmt.Errorf("apply environment: %w", err)
	}
	if opts.dataDir != "" {
		cfg.DataDir = opts.dataDir
	}
	if cfg.DataDir == "" {
		if dir, err := xdgData.dir(); err == nil {
			cfg.DataDir = dir
		}
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newLogger(w io.Writer, enabled bool) *log.Logger {
	if !enabled {
		return log.New(io.Discard, "", 0)
	}
	return log.New(w, "", log.LstdFlags)
}

func newExtractor(cfg config.Config, logger *log.Logger) *extract.Extractor {
	opts := []extract.Option{
		extract.WithLogger(logger),
		extract.WithDefaultProjectName(cfg.Extract.DefaultProjectName),
	}
	for tag, ext := range cfg.Extract.Languages {
		opts = append(opts, extract.WithLanguage(tag, ext))
	}
	return extract.New(opts...)
}

func newStaticCache(cfg config.Config) *render.Cache {
	return render.NewCache(cfg.Viewer.StaticCacheTTL.Std())
}

// newSource builds the LLM source from the config and the API keys in the
// environment.
func newSource(ctx context.Context, cfg config.Config, logger *log.Logger) (generate.Source, error) {
	client, resolved, err := generate.ClientFromEnv(ctx, generate.ProviderConfig{
		Provider: cfg.LLM.Provider,
		Model:    cfg.LLM.Model,
		BaseURL:  cfg.LLM.BaseURL,
	})
	if err != nil {
		return nil, err
	}
	logger.Printf("component=cli action=llm_source provider=%s model=%s", resolved.Provider, resolved.Model)
	return generate.NewLLMSource(client, resolved.Model,
		generate.WithMaxTokens(cfg.LLM.MaxTokens),
		generate.WithLogger(logger),
	), nil
}

// openKV opens the configured persistence backend.
func openKV(ctx context.Context, cfg config.Config) (persist.KV, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		path := cfg.Store.SQLitePath
		if path == "" {
			if cfg.DataDir == "" {
				return nil, errors.New("sqlite store needs store.sqlite_path or a data dir")
			}
			path = filepath.Join(cfg.DataDir, "vellum.db")
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
		kv, err := persist.OpenSQLite(path)
		if err != nil {
			return nil, err
		}
		return kv, nil
	case "redis":
		kv, err := persist.OpenRedis(ctx, cfg.Store.RedisAddr, cfg.Store.RedisPassword, cfg.Store.RedisDB, cfg.Store.RedisNamespace)
		if err != nil {
			return nil, err
		}
		return kv, nil
	default:
		return persist.NewMemoryKV(), nil
	}
}

// newRuntime builds the sandbox runtime for live previews.
func newRuntime(cfg config.Config, logger *log.Logger) (preview.Runtime, error) {
	sc := cfg.Sandbox
	switch sc.Driver {
	case "local":
		policy, err := sandbox.ParseEnvPolicy(sc.EnvPolicy)
		if err != nil {
			return nil, err
		}
		opts := []sandbox.LocalOption{
			sandbox.WithMaxInstances(sc.MaxInstances),
			sandbox.WithEnvPolicy(policy),
			sandbox.WithInstallCommand(sc.InstallCommand...),
			sandbox.WithDevCommand(sc.DevCommand...),
			sandbox.WithLocalLogger(logger),
		}
		if cfg.DataDir != "" {
			dir := filepath.Join(cfg.DataDir, "previews")
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create preview directory: %w", err)
			}
			opts = append(opts, sandbox.WithBaseDir(dir))
		}
		return sandbox.NewLocal(opts...), nil
	case "remote":
		return sandbox.NewRemote(sc.URL,
			sandbox.WithToken(sc.Token),
			sandbox.WithRemoteLogger(logger),
		), nil
	default:
		return sandbox.Unavailable{}, nil
	}
}

// buildApp assembles the studio. A missing LLM key only disables prompt
// generation.
func buildApp(ctx context.Context, cfg config.Config, logger *log.Logger) (*app, error) {
	policy, err := artifact.ParseDraftPolicy(cfg.Viewer.DraftPolicy)
	if err != nil {
		return nil, err
	}
	rt, err := newRuntime(cfg, logger)
	if err != nil {
		return nil, err
	}
	kv, err := openKV(ctx, cfg)
	if err != nil {
		return nil, err
	}

	orch := preview.New(rt,
		preview.WithLogger(logger),
		preview.WithReadyTimeout(cfg.Sandbox.ReadyTimeout.Std()),
		preview.WithTeardownTimeout(cfg.Sandbox.TeardownTimeout.Std()),
	)
	opts := []studio.Option{
		studio.WithRepository(persist.NewRepository(kv)),
		studio.WithExtractor(newExtractor(cfg, logger)),
		studio.WithStaticCache(newStaticCache(cfg)),
		studio.WithLogger(logger),
	}
	if src, err := newSource(ctx, cfg, logger); err == nil {
		opts = append(opts, studio.WithSource(src))
	} else {
		logger.Printf("component=cli action=prompt_generation_disabled err=%v", err)
	}

	st := studio.New(artifact.NewStore(artifact.WithDraftPolicy(policy)), orch, opts...)
	return &app{studio: st, kv: kv}, nil
}

func newHTTPServer(st *studio.Studio, cfg config.Config, logger *log.Logger) *web.Server {
	return web.NewServer(st, web.ServerConfig{
		Addr:          cfg.Server.Bind,
		GenerateRPS:   cfg.Server.GenerateRPS,
		GenerateBurst: cfg.Server.GenerateBurst,
		Logger:        logger,
	})
}
