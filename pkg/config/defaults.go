package config

const (
	defaultRemoteProvider = "gpu-service"
	defaultLocalTarget    = "http://localhost:11434"
	defaultModel          = "BAAI/bge-large-en-v1.5"
	defaultDimensions     = 1024
	defaultTimeoutMS      = 30000

	defaultCacheTTLSeconds = 86400
	defaultCacheNamespace  = "embedding:"

	defaultVectorProvider = "sqlite"

	defaultTokenBudget    = 3000
	defaultTopK           = 3
	defaultCandidateLimit = 20

	defaultIngestWorkers   = 3
	defaultIngestQueueSize = 256

	defaultAPIListen       = ":8081"
	defaultClientAPITarget = "http://localhost:8081"

	defaultEventsTopic = "callctx.vectors"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Embedding: EmbeddingConfig{
			RemoteProvider: defaultRemoteProvider,
			LocalTarget:    defaultLocalTarget,
			Model:          defaultModel,
			Dimensions:     defaultDimensions,
			TimeoutMS:      defaultTimeoutMS,
		},
		Cache: CacheConfig{
			TTLSeconds: defaultCacheTTLSeconds,
			Namespace:  defaultCacheNamespace,
		},
		VectorStore: VectorStoreConfig{
			Provider: defaultVectorProvider,
		},
		Context: ContextConfig{
			TokenBudget:    defaultTokenBudget,
			TopK:           defaultTopK,
			CandidateLimit: defaultCandidateLimit,
		},
		Ingest: IngestConfig{
			Workers:   defaultIngestWorkers,
			QueueSize: defaultIngestQueueSize,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Client: ClientConfig{
			APITarget: defaultClientAPITarget,
		},
		Events: EventsConfig{
			Topic: defaultEventsTopic,
		},
	}
}
