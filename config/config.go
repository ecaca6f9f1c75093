// ABOUTME: Runtime configuration for vellum: defaults, YAML or TOML files, and VELLUM_* overrides.
// ABOUTME: Precedence is defaults, then the config file, then the environment.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that reads from strings like "90s" in both
// YAML and TOML.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

func (d *Duration) UnmarshalText(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "" || s == "0" {
		*d = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Server configures the HTTP API.
type Server struct {
	Bind          string  `yaml:"bind" toml:"bind"`
	AllowRemote   bool    `yaml:"allow_remote" toml:"allow_remote"`
	GenerateRPS   float64 `yaml:"generate_rps" toml:"generate_rps"`
	GenerateBurst int     `yaml:"generate_burst" toml:"generate_burst"`
}

// Store configures artifact persistence.
type Store struct {
	Driver         string `yaml:"driver" toml:"driver"`
	SQLitePath     string `yaml:"sqlite_path" toml:"sqlite_path"`
	RedisAddr      string `yaml:"redis_addr" toml:"redis_addr"`
	RedisPassword  string `yaml:"redis_password" toml:"redis_password"`
	RedisDB        int    `yaml:"redis_db" toml:"redis_db"`
	RedisNamespace string `yaml:"redis_namespace" toml:"redis_namespace"`
}

// Sandbox configures the live preview runtime.
type Sandbox struct {
	Driver          string   `yaml:"driver" toml:"driver"`
	URL             string   `yaml:"url" toml:"url"`
	Token           string   `yaml:"token" toml:"token"`
	MaxInstances    int      `yaml:"max_instances" toml:"max_instances"`
	InstallCommand  []string `yaml:"install_command" toml:"install_command"`
	DevCommand      []string `yaml:"dev_command" toml:"dev_command"`
	EnvPolicy       string   `yaml:"env_policy" toml:"env_policy"`
	ReadyTimeout    Duration `yaml:"ready_timeout" toml:"ready_timeout"`
	TeardownTimeout Duration `yaml:"teardown_timeout" toml:"teardown_timeout"`
}

// Extract configures the extractor.
type Extract struct {
	DefaultProjectName string `yaml:"default_project_name" toml:"default_project_name"`
	// Languages maps extra fence tags to file extensions, e.g. elixir: ex.
	Languages map[string]string `yaml:"languages" toml:"languages"`
}

// LLM configures the generation source.
type LLM struct {
	Provider  string `yaml:"provider" toml:"provider"`
	Model     string `yaml:"model" toml:"model"`
	BaseURL   string `yaml:"base_url" toml:"base_url"`
	MaxTokens int    `yaml:"max_tokens" toml:"max_tokens"`
}

// Viewer configures the artifact store behind the UIs.
type Viewer struct {
	DraftPolicy    string   `yaml:"draft_policy" toml:"draft_policy"`
	StaticCacheTTL Duration `yaml:"static_cache_ttl" toml:"static_cache_ttl"`
}

// Config is the full configuration.
type Config struct {
	DataDir string  `yaml:"data_dir" toml:"data_dir"`
	Server  Server  `yaml:"server" toml:"server"`
	Store   Store   `yaml:"store" toml:"store"`
	Sandbox Sandbox `yaml:"sandbox" toml:"sandbox"`
	Extract Extract `yaml:"extract" toml:"extract"`
	LLM     LLM     `yaml:"llm" toml:"llm"`
	Viewer  Viewer  `yaml:"viewer" toml:"viewer"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: Server{
			Bind:          "127.0.0.1:2389",
			GenerateRPS:   0.5,
			GenerateBurst: 2,
		},
		Store: Store{
			Driver:         "memory",
			RedisAddr:      "127.0.0.1:6379",
			RedisNamespace: "vellum",
		},
		Sandbox: Sandbox{
			Driver:          "none",
			MaxInstances:    2,
			EnvPolicy:       "inherit_core",
			TeardownTimeout: Duration(10 * time.Second),
		},
		Extract: Extract{
			DefaultProjectName: "Generated Project",
		},
		LLM: LLM{
			MaxTokens: 16384,
		},
		Viewer: Viewer{
			DraftPolicy:    "discard",
			StaticCacheTTL: Duration(10 * time.Minute),
		},
	}
}

// Load reads path over the defaults. The format follows the extension:
// .yaml/.yml or .toml. Unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return cfg, fmt.Errorf("parse yaml config %s: %w", path, err)
		}
	case ".toml":
		md, err := toml.Decode(string(data), &cfg)
		if err != nil {
			return cfg, fmt.Errorf("parse toml config %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return cfg, fmt.Errorf("parse toml config %s: unknown key %s", path, undecoded[0])
		}
	default:
		return cfg, fmt.Errorf("unsupported config format %q (want .yaml, .yml or .toml)", filepath.Ext(path))
	}
	return cfg, nil
}

// ApplyEnv overrides fields from VELLUM_* variables read through getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if getenv == nil {
		getenv = os.Getenv
	}
	str := func(name string, dst *string) {
		if v := strings.TrimSpace(getenv(name)); v != "" {
			*dst = v
		}
	}
	str("VELLUM_BIND", &c.Server.Bind)
	str("VELLUM_DATA_DIR", &c.DataDir)
	str("VELLUM_STORE", &c.Store.Driver)
	str("VELLUM_SQLITE_PATH", &c.Store.SQLitePath)
	str("VELLUM_REDIS_ADDR", &c.Store.RedisAddr)
	str("VELLUM_SANDBOX", &c.Sandbox.Driver)
	str("VELLUM_SANDBOX_URL", &c.Sandbox.URL)
	str("VELLUM_SANDBOX_TOKEN", &c.Sandbox.Token)
	str("VELLUM_DRAFT_POLICY", &c.Viewer.DraftPolicy)
	str("VELLUM_LLM_PROVIDER", &c.LLM.Provider)
	str("VELLUM_LLM_MODEL", &c.LLM.Model)

	if v := strings.TrimSpace(getenv("VELLUM_SANDBOX_MAX_INSTANCES")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("VELLUM_SANDBOX_MAX_INSTANCES: %w", err)
		}
		c.Sandbox.MaxInstances = n
	}
	if v := strings.TrimSpace(getenv("VELLUM_READY_TIMEOUT")); v != "" {
		if err := c.Sandbox.ReadyTimeout.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("VELLUM_READY_TIMEOUT: %w", err)
		}
	}
	if v := strings.TrimSpace(getenv("VELLUM_GENERATE_RPS")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("VELLUM_GENERATE_RPS: %w", err)
		}
		c.Server.GenerateRPS = f
	}
	return nil
}

// Validate checks enumerated values and the bind address.
func (c Config) Validate() error {
	var errs []error
	switch c.Store.Driver {
	case "memory", "sqlite", "redis":
	default:
		errs = append(errs, fmt.Errorf("store.driver must be memory, sqlite or redis, got %q", c.Store.Driver))
	}
	if c.Store.Driver == "redis" && c.Store.RedisAddr == "" {
		errs = append(errs, errors.New("store.redis_addr is required for the redis driver"))
	}
	switch c.Sandbox.Driver {
	case "none", "local":
	case "remote":
		if c.Sandbox.URL == "" {
			errs = append(errs, errors.New("sandbox.url is required for the remote driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("sandbox.driver must be none, local or remote, got %q", c.Sandbox.Driver))
	}
	if c.Sandbox.MaxInstances < 1 {
		errs = append(errs, fmt.Errorf("sandbox.max_instances must be at least 1, got %d", c.Sandbox.MaxInstances))
	}
	switch c.Sandbox.EnvPolicy {
	case "", "inherit_core", "inherit_all", "inherit_none":
	default:
		errs = append(errs, fmt.Errorf("sandbox.env_policy %q is not recognized", c.Sandbox.EnvPolicy))
	}
	if c.Sandbox.ReadyTimeout < 0 || c.Sandbox.TeardownTimeout < 0 {
		errs = append(errs, errors.New("sandbox timeouts must not be negative"))
	}
	switch c.Viewer.DraftPolicy {
	case "", "discard", "preserve":
	default:
		errs = append(errs, fmt.Errorf("viewer.draft_policy must be discard or preserve, got %q", c.Viewer.DraftPolicy))
	}
	if c.Server.GenerateRPS < 0 {
		errs = append(errs, errors.New("server.generate_rps must not be negative"))
	}
	if err := c.checkBind(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (c Config) checkBind() error {
	host, _, err := net.SplitHostPort(c.Server.Bind)
	if err != nil {
		return fmt.Errorf("server.bind %q: %w", c.Server.Bind, err)
	}
	if c.Server.AllowRemote || IsLoopback(host) {
		return nil
	}
	return fmt.Errorf("server.bind %q is not a loopback address; set server.allow_remote to expose it", c.Server.Bind)
}

// IsLoopback reports whether host names the local machine.
func IsLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
