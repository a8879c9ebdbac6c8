package vectorutils

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/papercomputeco/callctx/pkg/vector"
	"github.com/papercomputeco/callctx/pkg/vector/inmemory"
	"github.com/papercomputeco/callctx/pkg/vector/qdrant"
	"github.com/papercomputeco/callctx/pkg/vector/sqlstore"
)

type NewVectorStoreOpts struct {
	ProviderType string
	Target       string
	APIKey       string
	Dimensions   uint
	Logger       *slog.Logger
}

func NewVectorStore(ctx context.Context, o *NewVectorStoreOpts) (vector.Store, error) {
	switch o.ProviderType {
	case "", "memory":
		return inmemory.NewDriver(), nil
	case "sqlite", "postgres":
		return sqlstore.NewDriver(ctx, o.Target, o.Logger)
	case "qdrant":
		return qdrant.NewDriver(ctx, qdrant.Config{
			Target:     o.Target,
			APIKey:     o.APIKey,
			Dimensions: uint64(o.Dimensions),
		}, o.Logger)
	default:
		return nil, fmt.Errorf("unsupported vector store provider: %s", o.ProviderType)
	}
}
