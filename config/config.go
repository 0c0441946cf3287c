package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"anchor-studio/logger"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	EnvHeliusAPIKey = "HELIUS_API_KEY"
	EnvRPCURL       = "ANCHOR_STUDIO_RPC_URL"
	EnvWallet       = "ANCHOR_STUDIO_WALLET"

	defaultPageSize   = 10
	defaultCommitment = "confirmed"
)

// LogConfig mirrors logger.LogOption in the config file.
type LogConfig struct {
	Format   string `yaml:"format"`   // "console" or "json"
	LogDir   string `yaml:"log_dir"`  // relative or absolute
	Level    string `yaml:"level"`    // debug / info / warn / error
	Compress bool   `yaml:"compress"` // gzip rotated files
}

func (c *LogConfig) ToLogOption() logger.LogOption {
	return logger.LogOption{
		Format:   c.Format,
		LogDir:   c.LogDir,
		Level:    c.Level,
		Compress: c.Compress,
	}
}

// RPCConfig selects the endpoint.
type RPCConfig struct {
	Preset    Preset `yaml:"preset"`
	CustomURL string `yaml:"custom_url"`
}

// StorageConfig selects where the program configuration is persisted.
type StorageConfig struct {
	Backend string `yaml:"backend"` // json or bolt
	Dir     string `yaml:"dir"`
}

// Config is the studio's configuration file.
type Config struct {
	RPC        RPCConfig     `yaml:"rpc"`
	Commitment string        `yaml:"commitment"`
	Wallet     string        `yaml:"wallet"`
	Storage    StorageConfig `yaml:"storage"`
	LogConf    LogConfig     `yaml:"logger"`
	PageSize   int           `yaml:"page_size"`

	// heliusKey is read from the environment, never from the file.
	heliusKey string
}

// DefaultDir returns ~/.config/anchor-studio.
func DefaultDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "anchor-studio"), nil
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		RPC:        RPCConfig{Preset: PresetDevnet},
		Commitment: defaultCommitment,
		Storage:    StorageConfig{Backend: "json"},
		LogConf:    LogConfig{Format: "console", Level: "info"},
		PageSize:   defaultPageSize,
	}
}

// Load reads the YAML file at path over the defaults, then applies .env and
// environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	}

	// .env is optional
	_ = godotenv.Load()
	cfg.applyEnv()

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.heliusKey = os.Getenv(EnvHeliusAPIKey)
	if url := os.Getenv(EnvRPCURL); url != "" {
		c.RPC.Preset = PresetCustom
		c.RPC.CustomURL = url
	}
	if wallet := os.Getenv(EnvWallet); wallet != "" {
		c.Wallet = wallet
	}
}

func (c *Config) normalize() error {
	if c.RPC.Preset == "" {
		c.RPC.Preset = PresetDevnet
	}
	if _, ok := presetURLs[c.RPC.Preset]; !ok && c.RPC.Preset != PresetCustom {
		return fmt.Errorf("unknown rpc preset %q", c.RPC.Preset)
	}
	if c.RPC.Preset == PresetCustom && c.RPC.CustomURL == "" {
		return errors.New("rpc preset custom requires custom_url")
	}

	switch c.Commitment {
	case "":
		c.Commitment = defaultCommitment
	case "processed", "confirmed", "finalized":
	default:
		return fmt.Errorf("unknown commitment %q", c.Commitment)
	}

	if c.PageSize <= 0 {
		c.PageSize = defaultPageSize
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = "json"
	}
	c.Wallet = expandHome(c.Wallet)
	c.Storage.Dir = expandHome(c.Storage.Dir)
	c.LogConf.LogDir = expandHome(c.LogConf.LogDir)
	return nil
}

// RPCURL returns the endpoint the configuration selects.
func (c *Config) RPCURL() string {
	if c.RPC.Preset == PresetCustom {
		return c.RPC.CustomURL
	}
	return PresetURL(c.RPC.Preset, c.heliusKey)
}

// URLFor returns the endpoint of preset p with this configuration's API
// key applied.
func (c *Config) URLFor(p Preset) string {
	if p == PresetCustom {
		return c.RPC.CustomURL
	}
	return PresetURL(p, c.heliusKey)
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
