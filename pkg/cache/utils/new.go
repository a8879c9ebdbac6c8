package cacheutils

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/papercomputeco/callctx/pkg/cache"
	"github.com/papercomputeco/callctx/pkg/cache/memory"
	"github.com/papercomputeco/callctx/pkg/cache/rediscache"
	"github.com/papercomputeco/callctx/pkg/cache/sqlcache"
	"github.com/papercomputeco/callctx/pkg/lazy"
	"github.com/papercomputeco/callctx/pkg/sqldb"
)

type NewStoreOpts struct {
	// Target is the cache DSN. Empty disables caching.
	Target    string
	Namespace string
	TTL       time.Duration
	Logger    *slog.Logger
}

// NewStore builds a cache store for the configured target. The backend
// connection is not opened until the first cache operation.
func NewStore(o *NewStoreOpts) (*cache.Store, error) {
	opts := cache.Options{
		Namespace: o.Namespace,
		TTL:       o.TTL,
	}

	if o.Target == "" {
		o.Logger.Info("embedding cache disabled")
		return cache.Disabled(o.Logger), nil
	}

	name, init, err := NewBackendInit(o.Target)
	if err != nil {
		return nil, err
	}

	return cache.New(name, lazy.New(init), opts, o.Logger), nil
}

// NewBackendInit returns the backend name and opener for target.
func NewBackendInit(target string) (string, lazy.InitFunc[cache.Backend], error) {
	switch {
	case strings.HasPrefix(target, "memory://"):
		return "memory", func(context.Context) (cache.Backend, error) {
			return memory.New(memory.DefaultCleanupInterval), nil
		}, nil

	case strings.HasPrefix(target, "redis://"), strings.HasPrefix(target, "rediss://"):
		return "redis", func(ctx context.Context) (cache.Backend, error) {
			return rediscache.Open(ctx, target)
		}, nil
	}

	dialect, _, err := sqldb.ParseTarget(target)
	if err != nil {
		return "", nil, fmt.Errorf("unsupported cache target: %w", err)
	}

	return string(dialect), func(ctx context.Context) (cache.Backend, error) {
		return sqlcache.Open(ctx, target)
	}, nil
}
