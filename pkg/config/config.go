package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/papercomputeco/callctx/pkg/dotdir"
)

const (
	configFile = "config.toml"

	// v0 is the alpha version of the config
	v0 = 0

	// CurrentV is the currently supported version, points to v0
	CurrentV = v0
)

type Configer struct {
	ddm        *dotdir.Manager
	targetPath string
}

func NewConfiger(override string) (*Configer, error) {
	cfger := &Configer{}

	cfger.ddm = dotdir.NewManager()
	target, err := cfger.ddm.Target(override)
	if err != nil {
		return nil, err
	}

	// If no .callctx/ directory was resolved, targetPath stays empty;
	// LoadConfig will return defaults and SaveConfig will error clearly.
	if target == "" {
		return cfger, nil
	}

	path := filepath.Join(target, configFile)
	_, err = os.Stat(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfger.targetPath = path

	return cfger, nil
}

// orderedKeys follows the TOML section layout.
var orderedKeys = []string{
	"embedding.remote_target",
	"embedding.remote_provider",
	"embedding.remote_api_key",
	"embedding.local_gpu",
	"embedding.local_target",
	"embedding.model",
	"embedding.dimensions",
	"embedding.timeout_ms",
	"cache.target",
	"cache.ttl_seconds",
	"cache.namespace",
	"vector_store.provider",
	"vector_store.target",
	"vector_store.api_key",
	"context.token_budget",
	"context.top_k",
	"context.candidate_limit",
	"ingest.workers",
	"ingest.queue_size",
	"api.listen",
	"client.api_target",
	"events.brokers",
	"events.topic",
}

// ValidConfigKeys returns the list of all supported configuration key names
// in a stable order.
func ValidConfigKeys() []string {
	result := make([]string, 0, len(configKeys))
	seen := make(map[string]bool, len(configKeys))
	for _, k := range orderedKeys {
		if _, ok := configKeys[k]; ok {
			result = append(result, k)
			seen[k] = true
		}
	}

	for k := range configKeys {
		if !seen[k] {
			result = append(result, k)
		}
	}

	return result
}

// IsValidConfigKey returns true if the given key is a supported configuration key.
func IsValidConfigKey(key string) bool {
	_, ok := configKeys[key]
	return ok
}

// IsSecretKey reports whether key holds a credential that should be masked
// when listed.
func IsSecretKey(key string) bool {
	return strings.HasSuffix(key, "api_key")
}

func (c *Configer) GetTarget() string {
	return c.targetPath
}

// LoadConfig loads config.toml from the target .callctx/ directory.
// If the file does not exist, returns NewDefaultConfig() so callers always
// receive a fully-populated Config. Fields explicitly set in the file
// override the defaults.
func (c *Configer) LoadConfig() (*Config, error) {
	if c.targetPath == "" {
		return NewDefaultConfig(), nil
	}

	data, err := os.ReadFile(c.targetPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewDefaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg, err := ParseConfigTOML(data)
	if err != nil {
		return nil, err
	}

	applyDefaults(cfg)

	return cfg, nil
}

// applyDefaults fills zero-value fields in cfg with values from NewDefaultConfig().
// Booleans and empty-means-disabled targets are left alone.
func applyDefaults(cfg *Config) {
	d := NewDefaultConfig()

	if cfg.Embedding.RemoteProvider == "" {
		cfg.Embedding.RemoteProvider = d.Embedding.RemoteProvider
	}
	if cfg.Embedding.LocalTarget == "" {
		cfg.Embedding.LocalTarget = d.Embedding.LocalTarget
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = d.Embedding.Model
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = d.Embedding.Dimensions
	}
	if cfg.Embedding.TimeoutMS == 0 {
		cfg.Embedding.TimeoutMS = d.Embedding.TimeoutMS
	}

	if cfg.Cache.TTLSeconds == 0 {
		cfg.Cache.TTLSeconds = d.Cache.TTLSeconds
	}
	if cfg.Cache.Namespace == "" {
		cfg.Cache.Namespace = d.Cache.Namespace
	}

	if cfg.VectorStore.Provider == "" {
		cfg.VectorStore.Provider = d.VectorStore.Provider
	}

	if cfg.Context.TokenBudget == 0 {
		cfg.Context.TokenBudget = d.Context.TokenBudget
	}
	if cfg.Context.TopK == 0 {
		cfg.Context.TopK = d.Context.TopK
	}
	if cfg.Context.CandidateLimit == 0 {
		cfg.Context.CandidateLimit = d.Context.CandidateLimit
	}

	if cfg.Ingest.Workers == 0 {
		cfg.Ingest.Workers = d.Ingest.Workers
	}
	if cfg.Ingest.QueueSize == 0 {
		cfg.Ingest.QueueSize = d.Ingest.QueueSize
	}

	if cfg.API.Listen == "" {
		cfg.API.Listen = d.API.Listen
	}
	if cfg.Client.APITarget == "" {
		cfg.Client.APITarget = d.Client.APITarget
	}
	if cfg.Events.Topic == "" {
		cfg.Events.Topic = d.Events.Topic
	}
}

// SaveConfig persists the configuration to config.toml in the target .callctx/ directory.
func (c *Configer) SaveConfig(cfg *Config) error {
	if cfg == nil {
		return errors.New("cannot save nil config")
	}

	if c.targetPath == "" {
		return errors.New("cannot save empty target path")
	}

	var buf bytes.Buffer
	encoder := toml.NewEncoder(&buf)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(c.targetPath, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// SetConfigValue loads the config, sets the given key to the given value, and saves it.
// Returns an error if the key is not a valid config key.
func (c *Configer) SetConfigValue(key string, value string) error {
	info, ok := configKeys[key]
	if !ok {
		return fmt.Errorf("unknown config key: %q", key)
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return err
	}

	if err := info.set(cfg, value); err != nil {
		return err
	}

	return c.SaveConfig(cfg)
}

// GetConfigValue loads the config and returns the string representation of the given key.
// Returns an error if the key is not a valid config key.
func (c *Configer) GetConfigValue(key string) (string, error) {
	info, ok := configKeys[key]
	if !ok {
		return "", fmt.Errorf("unknown config key: %q", key)
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return "", err
	}

	return info.get(cfg), nil
}

// PresetConfig returns a Config with sane defaults for the named deployment
// preset. Supported presets: "local", "gpu-service", "openai".
func PresetConfig(name string) (*Config, error) {
	cfg := NewDefaultConfig()

	switch strings.ToLower(name) {
	case "local":
		cfg.Embedding.LocalGPU = true
		cfg.Embedding.Model = "bge-large"
		cfg.Cache.Target = "memory://"
		cfg.VectorStore.Provider = "memory"

	case "gpu-service":
		cfg.Embedding.RemoteProvider = "gpu-service"
		cfg.Embedding.RemoteTarget = "http://localhost:8000"
		cfg.Cache.Target = "redis://localhost:6379/0"
		cfg.VectorStore.Provider = "sqlite"

	case "openai":
		cfg.Embedding.RemoteProvider = "openai"
		cfg.Embedding.RemoteTarget = "https://api.openai.com/v1"
		cfg.Embedding.Model = "text-embedding-3-small"
		cfg.Embedding.Dimensions = 1536
		cfg.VectorStore.Provider = "sqlite"

	default:
		return nil, fmt.Errorf("unknown preset: %q (available: %s)", name, strings.Join(ValidPresetNames(), ", "))
	}

	return cfg, nil
}

// ValidPresetNames returns the list of recognized preset names.
func ValidPresetNames() []string {
	return []string{"local", "gpu-service", "openai"}
}

// ParseConfigTOML parses raw TOML bytes into a Config.
// Returns an error if the version field is present and not equal to CurrentV.
func ParseConfigTOML(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config TOML: %w", err)
	}

	if cfg.Version != 0 && cfg.Version != CurrentV {
		return nil, fmt.Errorf("unsupported config version %d (expected %d)", cfg.Version, CurrentV)
	}

	return cfg, nil
}
