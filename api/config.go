// Package api provides the HTTP API server for embedding generation, owner
// ingestion and context retrieval.
package api

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8081")
	ListenAddr string
}
