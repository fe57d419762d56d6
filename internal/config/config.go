// Package config provides configuration for the qm binary.
// Loads from: CLI flags > env vars > .qm/config.toml > built-in defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Indexing settings.
const (
	ChunkCharThreshold = 6000  // chunk notes longer than ~6K chars by headings
	MaxEmbedChars      = 7500  // stay under typical embedding context limits
	MaxExcerptLength   = 500   // excerpt cap on returned citations
	CandidateWindow    = 800   // recent-first chunk window scanned per query
	DefaultTopK        = 12    // default k for ranked retrieval
	MaxTopK            = 100   // caller-supplied k is clamped to [1, MaxTopK]
)

// Config holds all quartermaster configuration, loaded from TOML + env.
type Config struct {
	Bridge    BridgeConfig    `toml:"bridge"`
	Enclave   EnclaveConfig   `toml:"enclave"`
	Embedding EmbeddingConfig `toml:"embedding"`
	Vault     VaultConfig     `toml:"vault"`
	Identity  IdentityConfig  `toml:"identity"`
}

// BridgeConfig holds shared knowledge bridge connection settings.
type BridgeConfig struct {
	URL               string `toml:"url"`
	APIKey            string `toml:"api_key"`
	CoreID            string `toml:"core_id"`
	ClusterID         string `toml:"cluster_id"`
	RequireSignatures bool   `toml:"require_signatures"`
	TimeoutSeconds    int    `toml:"timeout_seconds"`
}

// EnclaveConfig holds signing enclave connection settings.
type EnclaveConfig struct {
	URL            string `toml:"url"`
	APIKey         string `toml:"api_key"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider   string `toml:"provider"`   // "ollama" (default), "openai", "none"
	Model      string `toml:"model"`      // model name (provider-specific default if empty)
	APIKey     string `toml:"api_key"`    // API key (required for openai)
	BaseURL    string `toml:"base_url"`   // base URL for the embedding API
	Dimensions int    `toml:"dimensions"` // vector dimensions (0 = provider default)
}

// VaultConfig holds private-vault settings.
type VaultConfig struct {
	PrivatePath       string   `toml:"private_path"`       // plaintext/ciphertext root of the agent-private store
	SkipDirs          []string `toml:"skip_dirs"`          // extra directories excluded from walks
	EncryptionKeyFile string   `toml:"encryption_key_file"` // age identity file; empty disables encryption
	RequireEncryption bool     `toml:"require_encryption"`  // fail closed when decryption fails
}

// IdentityConfig holds the caller identity defaults used for canonical
// path mapping when a request carries none.
type IdentityConfig struct {
	UserID           string `toml:"user_id"`
	ShipDeploymentID string `toml:"ship_deployment_id"`
}

// DefaultConfig returns a Config with all built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Bridge: BridgeConfig{
			URL:            "http://localhost:8480",
			CoreID:         "qm-core",
			ClusterID:      "default",
			TimeoutSeconds: 30,
		},
		Enclave: EnclaveConfig{
			URL:            "http://localhost:8481",
			TimeoutSeconds: 30,
		},
		Embedding: EmbeddingConfig{
			Provider: "ollama",
			Model:    "nomic-embed-text",
		},
	}
}

// Load merges all configuration sources: defaults < TOML file < env vars.
func Load() (*Config, error) {
	return LoadFrom(findConfigFile())
}

// LoadFrom loads configuration from a specific file path, merging with
// defaults and env vars. An empty path skips the file layer.
func LoadFrom(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			meta, err := toml.DecodeFile(configPath, cfg)
			if err != nil {
				return nil, fmt.Errorf("parse config %s: %w", configPath, err)
			}
			warnUnknownKeys(meta, configPath)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("QM_BRIDGE_URL"); v != "" {
		cfg.Bridge.URL = v
	}
	if v := os.Getenv("QM_BRIDGE_API_KEY"); v != "" {
		cfg.Bridge.APIKey = v
	}
	if v := os.Getenv("QM_CORE_ID"); v != "" {
		cfg.Bridge.CoreID = v
	}
	if v := os.Getenv("QM_CLUSTER_ID"); v != "" {
		cfg.Bridge.ClusterID = v
	}
	if v := os.Getenv("QM_REQUIRE_SIGNATURES"); v != "" {
		cfg.Bridge.RequireSignatures = isTruthy(v)
	}
	if v := os.Getenv("QM_ENCLAVE_URL"); v != "" {
		cfg.Enclave.URL = v
	}
	if v := os.Getenv("QM_ENCLAVE_API_KEY"); v != "" {
		cfg.Enclave.APIKey = v
	}
	if v := os.Getenv("QM_EMBED_PROVIDER"); v != "" {
		cfg.Embedding.Provider = v
	}
	if v := os.Getenv("QM_EMBED_MODEL"); v != "" {
		cfg.Embedding.Model = v
	}
	if v := os.Getenv("QM_EMBED_BASE_URL"); v != "" {
		cfg.Embedding.BaseURL = v
	}
	if v := os.Getenv("QM_EMBED_API_KEY"); v != "" {
		cfg.Embedding.APIKey = v
	}
	// OPENAI_API_KEY as a convenience fallback for the openai provider
	if cfg.Embedding.APIKey == "" && cfg.Embedding.Provider == "openai" {
		if v := os.Getenv("OPENAI_API_KEY"); v != "" {
			cfg.Embedding.APIKey = v
		}
	}
	if v := os.Getenv("QM_PRIVATE_VAULT"); v != "" {
		cfg.Vault.PrivatePath = v
	}
	if v := os.Getenv("QM_ENCRYPTION_KEY_FILE"); v != "" {
		cfg.Vault.EncryptionKeyFile = v
	}
	if v := os.Getenv("QM_REQUIRE_ENCRYPTION"); v != "" {
		cfg.Vault.RequireEncryption = isTruthy(v)
	}
	if v := os.Getenv("QM_USER_ID"); v != "" {
		cfg.Identity.UserID = v
	}
	if v := os.Getenv("QM_SHIP_DEPLOYMENT_ID"); v != "" {
		cfg.Identity.ShipDeploymentID = v
	}
	if v := os.Getenv("QM_SKIP_DIRS"); v != "" {
		for _, d := range strings.Split(v, ",") {
			d = strings.TrimSpace(d)
			if d != "" {
				cfg.Vault.SkipDirs = append(cfg.Vault.SkipDirs, d)
			}
		}
	}
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// BridgeTimeout returns the bridge HTTP timeout.
func (c *Config) BridgeTimeout() time.Duration {
	if c.Bridge.TimeoutSeconds > 0 {
		return time.Duration(c.Bridge.TimeoutSeconds) * time.Second
	}
	return 30 * time.Second
}

// EnclaveTimeout returns the signing enclave HTTP timeout.
func (c *Config) EnclaveTimeout() time.Duration {
	if c.Enclave.TimeoutSeconds > 0 {
		return time.Duration(c.Enclave.TimeoutSeconds) * time.Second
	}
	return 30 * time.Second
}

// DataDir returns the data directory holding the index database.
func (c *Config) DataDir() string {
	if v := os.Getenv("QM_DATA_DIR"); v != "" {
		return v
	}
	if c.Vault.PrivatePath != "" {
		return filepath.Join(c.Vault.PrivatePath, ".qm", "data")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".qm", "data")
}

// DBPath returns the path to the SQLite database file.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir(), "quartermaster.db")
}

// SkipDirSet returns the set of directory names excluded from private
// vault walks.
func (c *Config) SkipDirSet() map[string]bool {
	dirs := map[string]bool{
		".git":      true,
		".qm":       true,
		".obsidian": true,
		".trash":    true,
		"_trash":    true,
	}
	for _, d := range c.Vault.SkipDirs {
		d = strings.TrimSpace(d)
		if d != "" {
			dirs[d] = true
		}
	}
	return dirs
}

// FilePath returns the config file path that Load would read, or empty
// when no config file exists.
func FilePath() string {
	return findConfigFile()
}

// findConfigFile looks for .qm/config.toml in the private vault path, then CWD.
func findConfigFile() string {
	if v := os.Getenv("QM_PRIVATE_VAULT"); v != "" {
		p := filepath.Join(v, ".qm", "config.toml")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	if cwd, err := os.Getwd(); err == nil {
		p := filepath.Join(cwd, ".qm", "config.toml")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// configSuggestions maps common wrong keys to the correct TOML key name.
var configSuggestions = map[string]string{
	"apikey":      "api_key",
	"api-key":     "api_key",
	"baseurl":     "base_url",
	"base-url":    "base_url",
	"endpoint":    "url",
	"private":     "private_path",
	"vault_path":  "private_path",
	"key_file":    "encryption_key_file",
	"exclude":     "skip_dirs",
	"skip_paths":  "skip_dirs",
	"ignore_dirs": "skip_dirs",
}

// warnUnknownKeys prints warnings for unrecognized config keys.
func warnUnknownKeys(meta toml.MetaData, configPath string) {
	undecoded := meta.Undecoded()
	if len(undecoded) == 0 {
		return
	}
	fname := filepath.Base(configPath)
	for _, key := range undecoded {
		lastPart := key[len(key)-1]
		if suggestion, ok := configSuggestions[lastPart]; ok {
			fmt.Fprintf(os.Stderr, "qm: WARNING: unknown key %q in %s, did you mean %q?\n",
				key.String(), fname, suggestion)
		} else {
			fmt.Fprintf(os.Stderr, "qm: WARNING: unknown key %q in %s (will be ignored)\n",
				key.String(), fname)
		}
	}
}
