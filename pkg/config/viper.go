package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/papercomputeco/callctx/pkg/dotdir"
)

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the CALLCTX_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (CALLCTX_CACHE_TARGET, CALLCTX_API_LISTEN, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	setViperDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix("CALLCTX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// FromViper reads the resolved configuration out of v.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		Version: v.GetInt("version"),
		Embedding: EmbeddingConfig{
			RemoteTarget:   v.GetString("embedding.remote_target"),
			RemoteProvider: v.GetString("embedding.remote_provider"),
			RemoteAPIKey:   v.GetString("embedding.remote_api_key"),
			LocalGPU:       v.GetBool("embedding.local_gpu"),
			LocalTarget:    v.GetString("embedding.local_target"),
			Model:          v.GetString("embedding.model"),
			Dimensions:     v.GetUint("embedding.dimensions"),
			TimeoutMS:      v.GetUint("embedding.timeout_ms"),
		},
		Cache: CacheConfig{
			Target:     v.GetString("cache.target"),
			TTLSeconds: v.GetUint("cache.ttl_seconds"),
			Namespace:  v.GetString("cache.namespace"),
		},
		VectorStore: VectorStoreConfig{
			Provider: v.GetString("vector_store.provider"),
			Target:   v.GetString("vector_store.target"),
			APIKey:   v.GetString("vector_store.api_key"),
		},
		Context: ContextConfig{
			TokenBudget:    v.GetUint("context.token_budget"),
			TopK:           v.GetUint("context.top_k"),
			CandidateLimit: v.GetUint("context.candidate_limit"),
		},
		Ingest: IngestConfig{
			Workers:   v.GetUint("ingest.workers"),
			QueueSize: v.GetUint("ingest.queue_size"),
		},
		API:    APIConfig{Listen: v.GetString("api.listen")},
		Client: ClientConfig{APITarget: v.GetString("client.api_target")},
		Events: EventsConfig{
			Brokers: v.GetString("events.brokers"),
			Topic:   v.GetString("events.topic"),
		},
	}
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation, so defaults.go stays the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	v.SetDefault("embedding.remote_target", d.Embedding.RemoteTarget)
	v.SetDefault("embedding.remote_provider", d.Embedding.RemoteProvider)
	v.SetDefault("embedding.remote_api_key", d.Embedding.RemoteAPIKey)
	v.SetDefault("embedding.local_gpu", d.Embedding.LocalGPU)
	v.SetDefault("embedding.local_target", d.Embedding.LocalTarget)
	v.SetDefault("embedding.model", d.Embedding.Model)
	v.SetDefault("embedding.dimensions", d.Embedding.Dimensions)
	v.SetDefault("embedding.timeout_ms", d.Embedding.TimeoutMS)

	v.SetDefault("cache.target", d.Cache.Target)
	v.SetDefault("cache.ttl_seconds", d.Cache.TTLSeconds)
	v.SetDefault("cache.namespace", d.Cache.Namespace)

	v.SetDefault("vector_store.provider", d.VectorStore.Provider)
	v.SetDefault("vector_store.target", d.VectorStore.Target)
	v.SetDefault("vector_store.api_key", d.VectorStore.APIKey)

	v.SetDefault("context.token_budget", d.Context.TokenBudget)
	v.SetDefault("context.top_k", d.Context.TopK)
	v.SetDefault("context.candidate_limit", d.Context.CandidateLimit)

	v.SetDefault("ingest.workers", d.Ingest.Workers)
	v.SetDefault("ingest.queue_size", d.Ingest.QueueSize)

	v.SetDefault("api.listen", d.API.Listen)
	v.SetDefault("client.api_target", d.Client.APITarget)

	v.SetDefault("events.brokers", d.Events.Brokers)
	v.SetDefault("events.topic", d.Events.Topic)
}
