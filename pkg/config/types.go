package config

import (
	"fmt"
	"strconv"
)

// Config represents the persistent callctx configuration stored as
// config.toml in the .callctx/ directory.
type Config struct {
	Version     int               `toml:"version"`
	Embedding   EmbeddingConfig   `toml:"embedding"`
	Cache       CacheConfig       `toml:"cache"`
	VectorStore VectorStoreConfig `toml:"vector_store"`
	Context     ContextConfig     `toml:"context"`
	Ingest      IngestConfig      `toml:"ingest"`
	API         APIConfig         `toml:"api"`
	Client      ClientConfig      `toml:"client"`
	Events      EventsConfig      `toml:"events"`
}

// EmbeddingConfig selects the backends of the embedding chain. The remote
// backend is tried first when RemoteTarget is set, then the local GPU backend
// when LocalGPU is enabled, then the CPU backend, which is always present.
type EmbeddingConfig struct {
	RemoteTarget   string `toml:"remote_target,omitempty"`
	RemoteProvider string `toml:"remote_provider,omitempty"`
	RemoteAPIKey   string `toml:"remote_api_key,omitempty"`
	LocalGPU       bool   `toml:"local_gpu,omitempty"`
	LocalTarget    string `toml:"local_target,omitempty"`
	Model          string `toml:"model,omitempty"`
	Dimensions     uint   `toml:"dimensions,omitempty"`
	TimeoutMS      uint   `toml:"timeout_ms,omitempty"`
}

// CacheConfig holds embedding cache settings. An empty Target disables
// caching.
type CacheConfig struct {
	Target     string `toml:"target,omitempty"`
	TTLSeconds uint   `toml:"ttl_seconds,omitempty"`
	Namespace  string `toml:"namespace,omitempty"`
}

// VectorStoreConfig holds vector store settings.
type VectorStoreConfig struct {
	Provider string `toml:"provider,omitempty"`
	Target   string `toml:"target,omitempty"`
	APIKey   string `toml:"api_key,omitempty"`
}

// ContextConfig holds context assembly settings.
type ContextConfig struct {
	TokenBudget    uint `toml:"token_budget,omitempty"`
	TopK           uint `toml:"top_k,omitempty"`
	CandidateLimit uint `toml:"candidate_limit,omitempty"`
}

// IngestConfig sizes the ingest worker pool.
type IngestConfig struct {
	Workers   uint `toml:"workers,omitempty"`
	QueueSize uint `toml:"queue_size,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// ClientConfig holds settings for CLI commands that talk to a running API
// server. Values are full URLs (scheme + host + port).
type ClientConfig struct {
	APITarget string `toml:"api_target,omitempty"`
}

// EventsConfig enables vector-stored events. Brokers is a comma-separated
// Kafka broker list; empty disables publishing.
type EventsConfig struct {
	Brokers string `toml:"brokers,omitempty"`
	Topic   string `toml:"topic,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func stringKey(field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error { *field(c) = v; return nil },
	}
}

func uintKey(name string, field func(c *Config) *uint) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if *field(c) == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(*field(c)), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = uint(n)
			return nil
		},
	}
}

func boolKey(name string, field func(c *Config) *bool) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return strconv.FormatBool(*field(c)) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = b
			return nil
		},
	}
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"embedding.remote_target":   stringKey(func(c *Config) *string { return &c.Embedding.RemoteTarget }),
	"embedding.remote_provider": stringKey(func(c *Config) *string { return &c.Embedding.RemoteProvider }),
	"embedding.remote_api_key":  stringKey(func(c *Config) *string { return &c.Embedding.RemoteAPIKey }),
	"embedding.local_gpu":       boolKey("embedding.local_gpu", func(c *Config) *bool { return &c.Embedding.LocalGPU }),
	"embedding.local_target":    stringKey(func(c *Config) *string { return &c.Embedding.LocalTarget }),
	"embedding.model":           stringKey(func(c *Config) *string { return &c.Embedding.Model }),
	"embedding.dimensions":      uintKey("embedding.dimensions", func(c *Config) *uint { return &c.Embedding.Dimensions }),
	"embedding.timeout_ms":      uintKey("embedding.timeout_ms", func(c *Config) *uint { return &c.Embedding.TimeoutMS }),

	"cache.target":      stringKey(func(c *Config) *string { return &c.Cache.Target }),
	"cache.ttl_seconds": uintKey("cache.ttl_seconds", func(c *Config) *uint { return &c.Cache.TTLSeconds }),
	"cache.namespace":   stringKey(func(c *Config) *string { return &c.Cache.Namespace }),

	"vector_store.provider": stringKey(func(c *Config) *string { return &c.VectorStore.Provider }),
	"vector_store.target":   stringKey(func(c *Config) *string { return &c.VectorStore.Target }),
	"vector_store.api_key":  stringKey(func(c *Config) *string { return &c.VectorStore.APIKey }),

	"context.token_budget":    uintKey("context.token_budget", func(c *Config) *uint { return &c.Context.TokenBudget }),
	"context.top_k":           uintKey("context.top_k", func(c *Config) *uint { return &c.Context.TopK }),
	"context.candidate_limit": uintKey("context.candidate_limit", func(c *Config) *uint { return &c.Context.CandidateLimit }),

	"ingest.workers":    uintKey("ingest.workers", func(c *Config) *uint { return &c.Ingest.Workers }),
	"ingest.queue_size": uintKey("ingest.queue_size", func(c *Config) *uint { return &c.Ingest.QueueSize }),

	"api.listen":        stringKey(func(c *Config) *string { return &c.API.Listen }),
	"client.api_target": stringKey(func(c *Config) *string { return &c.Client.APITarget }),

	"events.brokers": stringKey(func(c *Config) *string { return &c.Events.Brokers }),
	"events.topic":   stringKey(func(c *Config) *string { return &c.Events.Topic }),
}
