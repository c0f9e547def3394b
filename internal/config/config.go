package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment overrides, applied after the file is read. A .env file next
// to the working directory is loaded first.
const (
	EnvPlugToken        = "DANCEFEED_PLUG_TOKEN"
	EnvGitHubPrivateKey = "DANCEFEED_GITHUB_PRIVATE_KEY"
	EnvListen           = "DANCEFEED_LISTEN"
)

const (
	defaultListen       = "127.0.0.1:8080"
	defaultRefresh      = "0 */6 * * *"
	defaultHorizonDays  = 365
	defaultFetchTimeout = 30
	defaultDataPath     = "/var/lib/dancefeed/events.yaml"
	defaultCacheDir     = "/var/lib/dancefeed/feed-cache"
	defaultMainBranch   = "main"
	defaultMaxAttempts  = 10
)

// SourceConfig enables one registered adapter.
type SourceConfig struct {
	// Name is the adapter's registry name (cdss, balfolknl, dresden, plugevents).
	Name    string `yaml:"name" json:"name"`
	Enabled bool   `yaml:"enabled" json:"enabled"`
	// HorizonDays overrides the global horizon for this source when > 0.
	HorizonDays int `yaml:"horizon_days,omitempty" json:"horizon_days,omitempty"`
}

type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

type PlugConfig struct {
	Token string `yaml:"token" json:"-"`
}

// GitHubConfig configures the submission workflow. It is disabled unless
// app_id, owner and repository are all set.
type GitHubConfig struct {
	AppID int64 `yaml:"app_id" json:"app_id"`
	// PrivateKey is the path to the App's PEM key. The environment variable
	// may instead carry the PEM itself.
	PrivateKey        string `yaml:"private_key" json:"private_key"`
	Owner             string `yaml:"owner" json:"owner"`
	Repository        string `yaml:"repository" json:"repository"`
	MainBranch        string `yaml:"main_branch" json:"main_branch"`
	MaxBranchAttempts int    `yaml:"max_branch_attempts" json:"max_branch_attempts"`

	privateKeyPEM []byte
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the write endpoints.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// RefreshCron is a cron-style schedule string (e.g. "0 */6 * * *") for
	// aggregation cycles.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// HorizonDays bounds how far ahead sources are fetched.
	HorizonDays int `yaml:"horizon_days" json:"horizon_days"`

	FetchTimeoutSeconds int `yaml:"fetch_timeout_seconds" json:"fetch_timeout_seconds"`

	// DataPath is the persisted corpus file.
	DataPath string `yaml:"data_path" json:"data_path"`
	// CacheDir holds conditional-GET feed caches. Empty disables caching.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	Log     LogConfig      `yaml:"log" json:"log"`
	Sources []SourceConfig `yaml:"sources" json:"sources"`
	Plug    PlugConfig     `yaml:"plug" json:"plug"`
	GitHub  GitHubConfig   `yaml:"github" json:"github"`

	// BasicAuth, if non-nil, guards the write endpoints.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:              defaultListen,
		RefreshCron:         defaultRefresh,
		HorizonDays:         defaultHorizonDays,
		FetchTimeoutSeconds: defaultFetchTimeout,
		DataPath:            defaultDataPath,
		CacheDir:            defaultCacheDir,
		Log:                 LogConfig{Level: "info", Format: "console"},
		Sources: []SourceConfig{
			{Name: "cdss", Enabled: true},
			{Name: "balfolknl", Enabled: true},
			{Name: "dresden", Enabled: true},
			// Needs plug.token.
			{Name: "plugevents", Enabled: false},
		},
		GitHub: GitHubConfig{
			MainBranch:        defaultMainBranch,
			MaxBranchAttempts: defaultMaxAttempts,
		},
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefresh
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = defaultHorizonDays
	}
	if c.FetchTimeoutSeconds <= 0 {
		c.FetchTimeoutSeconds = defaultFetchTimeout
	}
	if c.DataPath == "" {
		c.DataPath = defaultDataPath
	}
	switch strings.ToLower(c.Log.Format) {
	case "console", "json":
	default:
		c.Log.Format = "console"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Sources == nil {
		c.Sources = []SourceConfig{}
	}
	if c.GitHub.MainBranch == "" {
		c.GitHub.MainBranch = defaultMainBranch
	}
	if c.GitHub.MaxBranchAttempts <= 0 {
		c.GitHub.MaxBranchAttempts = defaultMaxAttempts
	}
}

// Horizon is the fetch horizon for the named source.
func (c *Config) Horizon(source string) time.Duration {
	days := c.HorizonDays
	for _, s := range c.Sources {
		if s.Name == source && s.HorizonDays > 0 {
			days = s.HorizonDays
		}
	}
	return time.Duration(days) * 24 * time.Hour
}

func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSeconds) * time.Second
}

// EnabledSources lists the names of enabled sources, in config order.
func (c *Config) EnabledSources() []string {
	var names []string
	for _, s := range c.Sources {
		if s.Enabled {
			names = append(names, s.Name)
		}
	}
	return names
}

// Enabled reports whether the submission workflow is configured.
func (g GitHubConfig) Enabled() bool {
	return g.AppID != 0 && g.Owner != "" && g.Repository != ""
}

// PrivateKeyPEM returns the App key, from the environment override or the
// configured file.
func (g GitHubConfig) PrivateKeyPEM() ([]byte, error) {
	if len(g.privateKeyPEM) > 0 {
		return g.privateKeyPEM, nil
	}
	if g.PrivateKey == "" {
		return nil, errors.New("github private_key is not set")
	}
	data, err := os.ReadFile(g.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("read github private key: %w", err)
	}
	return data, nil
}

// applyEnv overlays the environment. Secrets belong there rather than in
// the YAML file.
func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvPlugToken)); v != "" {
		c.Plug.Token = v
	}
	if v := os.Getenv(EnvGitHubPrivateKey); strings.TrimSpace(v) != "" {
		c.GitHub.privateKeyPEM = []byte(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvListen)); v != "" {
		c.Listen = v
	}
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - A .env file in the working directory, if present, populates the
//     environment.
//   - If the file does not exist, a default config is written with 0600
//     perms and returned.
//   - Otherwise the YAML is read and normalized.
//   - Environment overrides are applied last; they are never written back.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}
	// Missing .env is fine.
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				cfg.applyEnv()
				return cfg, err
			}
			cfg.applyEnv()
			return cfg, nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	// Sources from the file replace the defaults wholesale.
	cfg.Sources = nil
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Normalize()
	cfg.applyEnv()
	return cfg, nil
}

// Save writes the given configuration to the specified path atomically via
// a temp file and rename, with 0600 permissions.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".dancefeed-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
