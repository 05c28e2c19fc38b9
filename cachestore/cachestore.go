// Package cachestore is a TTL'd scratch cache for scope metadata which is
// expensive or chatty to re-read on every evaluation (currently: charter
// text). It is never the store of record; a cold cache only costs an extra
// store read.
package cachestore

import (
	"context"
)

type CacheStore interface {
	Get(ctx context.Context, name, key string) (string, error)
	Set(ctx context.Context, name, key string, val string) error
	Purge(ctx context.Context, name, key string) error
}

// GetOrFill reads through the cache: on a miss (empty value) it invokes the
// loader and caches a non-empty result. Loader errors are returned without
// poisoning the cache. Empty values are indistinguishable from misses, so
// they are re-loaded each call.
func GetOrFill(ctx context.Context, cs CacheStore, name, key string, loader func(context.Context) (string, error)) (string, error) {
	v, err := cs.Get(ctx, name, key)
	if err != nil || v != "" {
		return v, err
	}
	v, err = loader(ctx)
	if err != nil {
		return "", err
	}
	if v == "" {
		return "", nil
	}
	if err := cs.Set(ctx, name, key, v); err != nil {
		return v, err
	}
	return v, nil
}
