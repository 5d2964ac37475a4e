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
	"github.com/spf13/viper"

	"github.com/everstacklabs/modelsync/internal/provider"
)

// DefaultDocuments are the configuration files updated when none are configured.
var DefaultDocuments = []string{
	"librechat-aio.yaml",
	"librechat-f.yaml",
	"librechat-hf.yaml",
	"librechat-rw.yaml",
	"librechat-test.yaml",
	"librechat.yaml",
}

// Config holds all configuration for modelsync.
type Config struct {
	Documents    []string      `mapstructure:"documents"`
	EntriesPath  []string      `mapstructure:"entries_path"`
	Indent       int           `mapstructure:"indent"`
	ArtifactsDir string        `mapstructure:"artifacts_dir"`
	CacheDir     string        `mapstructure:"cache_dir"`
	CacheTTL     time.Duration `mapstructure:"cache_ttl"`
	NoCache      bool          `mapstructure:"no_cache"`
	RateLimit    float64       `mapstructure:"rate_limit"`
	UserAgent    string        `mapstructure:"user_agent"`
	Concurrency  int           `mapstructure:"concurrency"`
	Timeout      time.Duration `mapstructure:"timeout"`
	LogLevel     string        `mapstructure:"log_level"`
	LogFile      string        `mapstructure:"log_file"`

	Providers ProvidersConfig `mapstructure:"providers"`
	// Credentials maps provider ID to API key. Values come from the config
	// file or from each provider's credential environment variable.
	Credentials map[string]string `mapstructure:"credentials"`

	// Extras are unlisted identifiers injected into grouped providers.
	Extras         []string `mapstructure:"extras"`
	IncludeProxies bool     `mapstructure:"include_proxies"`
	ConvertStyle   bool     `mapstructure:"convert_style"`

	RequiredKeys []string `mapstructure:"required_keys"`
	MetricsFile  string   `mapstructure:"metrics_file"`
	// GitHubEnv is the GitHub Actions environment file validation results
	// are appended to. Empty outside Actions.
	GitHubEnv string `mapstructure:"github_env"`

	GitHub GitHubConfig `mapstructure:"github"`
}

// ProvidersConfig narrows and extends the built-in provider table.
type ProvidersConfig struct {
	Enable  []string        `mapstructure:"enable"`
	Disable []string        `mapstructure:"disable"`
	Custom  []provider.Spec `mapstructure:"custom"`
}

// GitHubConfig holds GitHub-related settings.
type GitHubConfig struct {
	Token      string `mapstructure:"token"`
	Owner      string `mapstructure:"owner"`
	Repo       string `mapstructure:"repo"`
	BaseBranch string `mapstructure:"base_branch"`
	RepoPath   string `mapstructure:"repo_path"`
	Remote     string `mapstructure:"remote"`
}

// Enabled reports whether pull requests can be opened.
func (g GitHubConfig) Enabled() bool {
	return g.Token != "" && g.Owner != "" && g.Repo != ""
}

// Load reads configuration from .env files, the config file, environment
// and defaults, in increasing order of precedence for the last three.
func Load(cfgFile string) (*Config, error) {
	if err := loadDotenv(".env.local", ".env"); err != nil {
		return nil, err
	}

	v := viper.New()

	v.SetDefault("documents", DefaultDocuments)
	v.SetDefault("entries_path", []string{"endpoints", "custom"})
	v.SetDefault("indent", 2)
	v.SetDefault("artifacts_dir", "artifacts")
	v.SetDefault("cache_dir", defaultCacheDir())
	v.SetDefault("cache_ttl", "1h")
	v.SetDefault("no_cache", false)
	v.SetDefault("rate_limit", 0)
	v.SetDefault("user_agent", "")
	v.SetDefault("concurrency", 4)
	v.SetDefault("timeout", "60s")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")
	v.SetDefault("extras", []string{})
	v.SetDefault("include_proxies", false)
	v.SetDefault("convert_style", false)
	v.SetDefault("required_keys", []string{"version", "endpoints"})
	v.SetDefault("metrics_file", "")
	v.SetDefault("providers.enable", []string{})
	v.SetDefault("providers.disable", []string{})
	v.SetDefault("github.base_branch", "main")
	v.SetDefault("github.repo_path", ".")
	v.SetDefault("github.remote", "origin")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("modelsync")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/modelsync")
	}

	v.SetEnvPrefix("MODELSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("github.token", "GITHUB_TOKEN", "MODELSYNC_GITHUB_TOKEN")
	_ = v.BindEnv("github_env", "GITHUB_ENV")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Credentials come from each provider's own variable, so the keys are
	// only known once custom providers have been read.
	specs := append(provider.Builtin(), cfg.Providers.Custom...)
	if cfg.Credentials == nil {
		cfg.Credentials = make(map[string]string)
	}
	for _, s := range specs {
		if s.CredentialEnv == "" {
			continue
		}
		key := "credentials." + strings.ToLower(s.ID)
		_ = v.BindEnv(key, s.CredentialEnv)
		if val := v.GetString(key); val != "" {
			cfg.Credentials[s.ID] = val
		}
	}

	if cfg.Concurrency < 1 {
		return nil, fmt.Errorf("concurrency must be at least 1, got %d", cfg.Concurrency)
	}
	if len(cfg.EntriesPath) == 0 {
		return nil, errors.New("entries_path must not be empty")
	}

	return &cfg, nil
}

// loadDotenv loads the given files into the process environment. Earlier
// files win and existing variables are never overwritten.
func loadDotenv(files ...string) error {
	for _, f := range files {
		err := godotenv.Load(f)
		if err == nil || errors.Is(err, fs.ErrNotExist) {
			continue
		}
		return fmt.Errorf("loading %s: %w", f, err)
	}
	return nil
}

func defaultCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "modelsync-cache")
	}
	return filepath.Join(dir, "modelsync")
}
