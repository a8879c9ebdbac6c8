package service

import (
	"github.com/papercomputeco/callctx/pkg/cache"
	"github.com/papercomputeco/callctx/pkg/embeddings/chain"
)

// Stats is the observability snapshot of the embedding service.
type Stats struct {
	Model        string         `json:"model"`
	CacheEnabled bool           `json:"cache_enabled"`
	TotalKeys    int64          `json:"total_keys"`
	Cache        cache.Stats    `json:"cache"`
	Backends     []chain.Health `json:"backends"`
}
