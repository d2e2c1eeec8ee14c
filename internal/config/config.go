package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// ErrConfiguration marks a missing credential or identifier. Runs must fail
// on it before the first generation attempt, without retry.
var ErrConfiguration = errors.New("configuration error")

// Config holds all application configuration
type Config struct {
	General    GeneralConfig    `toml:"general"`
	Generation GenerationConfig `toml:"generation"`
	Publish    PublishConfig    `toml:"publish"`

	// Credentials are environment-only, never read from the config file.
	AnthropicAPIKey string `toml:"-"`
	GitHubToken     string `toml:"-"`
}

// GeneralConfig holds general settings
type GeneralConfig struct {
	WorkspaceDir string `toml:"workspace_dir"`
	OutputDir    string `toml:"output_dir"`
	DatabasePath string `toml:"database_path"`
	LogLevel     string `toml:"log_level"`
}

// GenerationConfig holds generation attempt settings
type GenerationConfig struct {
	Kind                string `toml:"kind"` // claude-code or api
	Model               string `toml:"model"`
	MaxAttempts         int    `toml:"max_attempts"`
	BackoffMs           int    `toml:"backoff_ms"`
	NoChangesMaxRetries int    `toml:"no_changes_max_retries"`
	TargetLanguage      string `toml:"target_language"`
}

// PublishConfig holds git-hosting settings
type PublishConfig struct {
	TargetRepo        string   `toml:"target_repo"` // owner/name
	BaseBranch        string   `toml:"base_branch"`
	NoPR              bool     `toml:"no_pr"`
	NoChangesPatterns []string `toml:"no_changes_patterns"`
}

// Default returns a Config with sensible defaults
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		General: GeneralConfig{
			WorkspaceDir: filepath.Join(home, ".agentforge", "workspaces"),
			OutputDir:    "output",
			DatabasePath: filepath.Join(home, ".agentforge", "agentforge.db"),
			LogLevel:     "info",
		},
		Generation: GenerationConfig{
			Kind:                "claude-code",
			Model:               "claude-sonnet-4-20250514",
			MaxAttempts:         3,
			BackoffMs:           2000,
			NoChangesMaxRetries: 1,
			TargetLanguage:      "python",
		},
		Publish: PublishConfig{
			BaseBranch: "main",
		},
	}
}

// Load reads configuration from a TOML file, falling back to defaults.
// Credentials are always taken from the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	} else if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	cfg.General.WorkspaceDir = ExpandPath(cfg.General.WorkspaceDir)
	cfg.General.OutputDir = ExpandPath(cfg.General.OutputDir)
	cfg.General.DatabasePath = ExpandPath(cfg.General.DatabasePath)

	cfg.AnthropicAPIKey = os.Getenv("ANTHROPIC_API_KEY")
	cfg.GitHubToken = os.Getenv("GITHUB_TOKEN")

	return cfg, nil
}

// Validate checks that every credential and identifier a run needs is present.
func (c *Config) Validate() error {
	if c.AnthropicAPIKey == "" {
		return fmt.Errorf("%w: ANTHROPIC_API_KEY not set", ErrConfiguration)
	}
	if c.GitHubToken == "" {
		return fmt.Errorf("%w: GITHUB_TOKEN not set", ErrConfiguration)
	}
	if c.Publish.TargetRepo == "" {
		return fmt.Errorf("%w: publish.target_repo not configured", ErrConfiguration)
	}
	if !strings.Contains(c.Publish.TargetRepo, "/") {
		return fmt.Errorf("%w: publish.target_repo must be owner/name, got %q", ErrConfiguration, c.Publish.TargetRepo)
	}
	return nil
}

// SplitRepo splits the owner/name repository identifier.
func (c *Config) SplitRepo() (owner, name string) {
	owner, name, _ = strings.Cut(strings.TrimSuffix(c.Publish.TargetRepo, ".git"), "/")
	return owner, name
}

// ExpandPath expands ~ to the user's home directory
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// DefaultConfigPath returns the default config file location
func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "agentforge", "config.toml")
}
