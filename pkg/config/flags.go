package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline, so the same logical flag
// cannot drift between "callctx serve" and "callctx context".
type Flag struct {
	// Name is the long flag name (e.g. "cache-target").
	Name string

	// Shorthand is the one-letter short flag. Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "cache.target").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
const (
	FlagAPIListen       = "api-listen"
	FlagAPITarget       = "api-target"
	FlagRemoteTarget    = "remote-target"
	FlagRemoteProvider  = "remote-provider"
	FlagLocalGPU        = "local-gpu"
	FlagLocalTarget     = "local-target"
	FlagEmbeddingModel  = "embedding-model"
	FlagEmbeddingDims   = "embedding-dimensions"
	FlagCacheTarget     = "cache-target"
	FlagCacheTTL        = "cache-ttl"
	FlagVectorStoreProv = "vector-store-provider"
	FlagVectorStoreTgt  = "vector-store-target"
	FlagTokenBudget     = "token-budget"
	FlagTopK            = "top-k"
	FlagEventBrokers    = "event-brokers"
)

// Flags is the shared flag registry.
var Flags = FlagSet{
	FlagAPIListen:       {Name: "listen", Shorthand: "l", ViperKey: "api.listen", Description: "Address for the API server to listen on"},
	FlagAPITarget:       {Name: "api-target", ViperKey: "client.api_target", Description: "callctx API server URL"},
	FlagRemoteTarget:    {Name: "remote-target", ViperKey: "embedding.remote_target", Description: "Remote embedding service URL (empty skips the remote backend)"},
	FlagRemoteProvider:  {Name: "remote-provider", ViperKey: "embedding.remote_provider", Description: "Remote embedding protocol (gpu-service, openai)"},
	FlagLocalGPU:        {Name: "local-gpu", ViperKey: "embedding.local_gpu", Description: "Enable the local GPU (Ollama) embedding backend"},
	FlagLocalTarget:     {Name: "local-target", ViperKey: "embedding.local_target", Description: "Ollama URL for the local GPU backend"},
	FlagEmbeddingModel:  {Name: "embedding-model", ViperKey: "embedding.model", Description: "Embedding model identifier"},
	FlagEmbeddingDims:   {Name: "embedding-dimensions", ViperKey: "embedding.dimensions", Description: "Embedding dimensionality"},
	FlagCacheTarget:     {Name: "cache-target", ViperKey: "cache.target", Description: "Embedding cache DSN (memory://, redis://host:port/db, sqlite://path, postgres://...; empty disables)"},
	FlagCacheTTL:        {Name: "cache-ttl", ViperKey: "cache.ttl_seconds", Description: "Embedding cache TTL in seconds"},
	FlagVectorStoreProv: {Name: "vector-store-provider", ViperKey: "vector_store.provider", Description: "Vector store provider (memory, sqlite, postgres, qdrant)"},
	FlagVectorStoreTgt:  {Name: "vector-store-target", ViperKey: "vector_store.target", Description: "Vector store target DSN or URL"},
	FlagTokenBudget:     {Name: "token-budget", ViperKey: "context.token_budget", Description: "Token budget for assembled context"},
	FlagTopK:            {Name: "top-k", Shorthand: "k", ViperKey: "context.top_k", Description: "Number of items to rank into context"},
	FlagEventBrokers:    {Name: "event-brokers", ViperKey: "events.brokers", Description: "Comma-separated Kafka brokers for vector events"},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddPersistentStringFlag is AddStringFlag for a flag shared by every
// subcommand of cmd.
func AddPersistentStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	cmd.PersistentFlags().StringVarP(target, def.Name, def.Shorthand, defaultString(def.ViperKey), def.Description)
}

// AddUintFlag registers a uint flag on cmd from the given FlagSet.
func AddUintFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *uint) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaultUint(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().UintVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().UintVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddBoolFlag registers a bool flag on cmd from the given FlagSet.
func AddBoolFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *bool) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaultBool(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().BoolVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().BoolVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

func defaultViper() *viper.Viper {
	v := viper.New()
	setViperDefaults(v)
	return v
}

func defaultString(viperKey string) string {
	return defaultViper().GetString(viperKey)
}

func defaultUint(viperKey string) uint {
	return defaultViper().GetUint(viperKey)
}

func defaultBool(viperKey string) bool {
	return defaultViper().GetBool(viperKey)
}

// Resolve returns the effective configuration for cmd. Values come from the
// named registered flags, then CALLCTX_ environment variables, then
// config.toml, then defaults.
func Resolve(cmd *cobra.Command, configDir string, registryKeys ...string) (*Config, error) {
	v, err := InitViper(configDir)
	if err != nil {
		return nil, err
	}

	BindRegisteredFlags(v, cmd, Flags, registryKeys)
	return FromViper(v), nil
}
