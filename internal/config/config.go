package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/credvault/credvault/internal/crypto"
	"github.com/credvault/credvault/internal/session"
)

const (
	// EnvVaultPath overrides the vault_path setting.
	EnvVaultPath = "CREDVAULT_VAULT"
	// EnvConfigPath overrides the location of the config file itself.
	EnvConfigPath = "CREDVAULT_CONFIG"
)

// Config holds application configuration
type Config struct {
	VaultPath      string `json:"vault_path"`
	Cipher         string `json:"cipher"`
	KDFAlgo        string `json:"kdf_algo"`
	KDFMemory      uint32 `json:"kdf_memory"`
	KDFIterations  uint32 `json:"kdf_iterations"`
	KDFParallelism uint8  `json:"kdf_parallelism"`
	LogLevel       string `json:"log_level"`
	BackupDir      string `json:"backup_dir"`
	ConfigPath     string `json:"-"` // Not stored, just for reference
}

// DefaultDir returns ~/.credvault
func DefaultDir() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".credvault")
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	dir := DefaultDir()
	kdf := crypto.DefaultKDFParams()
	return &Config{
		VaultPath:      filepath.Join(dir, "vault.cvlt"),
		Cipher:         crypto.CipherChaCha20Poly1305,
		KDFAlgo:        kdf.Algo,
		KDFMemory:      kdf.Memory,
		KDFIterations:  kdf.Iterations,
		KDFParallelism: kdf.Parallelism,
		LogLevel:       zerolog.WarnLevel.String(),
		BackupDir:      filepath.Join(dir, "backups"),
		ConfigPath:     filepath.Join(dir, "config.json"),
	}
}

// LoadConfig loads configuration from the default location, or from
// $CREDVAULT_CONFIG when set.
func LoadConfig() (*Config, error) {
	path := os.Getenv(EnvConfigPath)
	if path == "" {
		path = DefaultConfig().ConfigPath
	}
	return LoadConfigFrom(path)
}

// LoadConfigFrom loads configuration from path. A missing file yields the
// defaults. $CREDVAULT_VAULT takes precedence over the file's vault_path.
func LoadConfigFrom(path string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.ConfigPath = path

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if v := os.Getenv(EnvVaultPath); v != "" {
		cfg.VaultPath = v
	}
	cfg.VaultPath = expandHome(cfg.VaultPath)
	cfg.BackupDir = expandHome(cfg.BackupDir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(homeDir, strings.TrimPrefix(path, "~"))
}

// KDFParams returns the key derivation settings for new envelopes.
func (c *Config) KDFParams() crypto.KDFParams {
	return crypto.KDFParams{
		Algo:        c.KDFAlgo,
		Memory:      c.KDFMemory,
		Iterations:  c.KDFIterations,
		Parallelism: c.KDFParallelism,
	}
}

// SessionOptions returns the options sessions are opened with.
func (c *Config) SessionOptions() session.Options {
	opts := session.DefaultOptions()
	opts.Cipher = c.Cipher
	opts.KDF = c.KDFParams()
	return opts
}

// Level parses log_level.
func (c *Config) Level() (zerolog.Level, error) {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("invalid log_level %q: %w", c.LogLevel, err)
	}
	return lvl, nil
}

// Validate checks the settings that would otherwise fail later on first use.
func (c *Config) Validate() error {
	if c.VaultPath == "" {
		return fmt.Errorf("vault_path must not be empty")
	}
	if !crypto.ValidCipher(c.Cipher) {
		return fmt.Errorf("invalid cipher %q: %w", c.Cipher, crypto.ErrUnknownCipher)
	}
	if err := c.KDFParams().Validate(); err != nil {
		return fmt.Errorf("invalid kdf settings: %w", err)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// SaveConfig saves configuration to file
func (c *Config) SaveConfig() error {
	dir := filepath.Dir(c.ConfigPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(c.ConfigPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}
