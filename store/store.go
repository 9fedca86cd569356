// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/marshaler"
	lib_store "github.com/eko/gocache/lib/v4/store"
	gocache_store "github.com/eko/gocache/store/go_cache/v4"
	redis_store "github.com/eko/gocache/store/redis/v4"
	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"

	"github.com/hashicorp/oidcrp/oidc"
)

const (
	// DefaultExpiration is how long saved logins are kept.
	DefaultExpiration = 24 * time.Hour

	// DefaultCleanupInterval is how often expired logins are purged from the
	// in-memory store.
	DefaultCleanupInterval = 30 * time.Minute

	redisPingTimeout = 2 * time.Second
)

// Store persists successful logins, msgpack encoded, in memory or in Redis.
// It satisfies oidc.Store and is safe for concurrent use.
type Store struct {
	cache      *marshaler.Marshaler
	expiration time.Duration
	close      func() error
}

var _ oidc.Store = (*Store)(nil)

// New creates a Store.  By default logins are kept in memory; WithRedisURL
// selects Redis, which is pinged before New returns.
//
// Supported options:
//   - WithRedisURL
//   - WithExpiration
//   - WithCleanupInterval
func New(ctx context.Context, opt ...oidc.Option) (*Store, error) {
	const op = "store.New"
	opts := getOpts(opt...)
	s := &Store{
		expiration: opts.withExpiration,
		close:      func() error { return nil },
	}
	switch opts.withRedisURL {
	case "":
		goc := gocache.New(opts.withExpiration, opts.withCleanupInterval)
		s.cache = marshaler.New(cache.New[any](gocache_store.NewGoCache(goc)))
	default:
		client, err := newRedisClient(ctx, opts.withRedisURL)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		s.cache = marshaler.New(cache.New[any](redis_store.NewRedis(client)))
		s.close = client.Close
	}
	return s, nil
}

func newRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	options, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w: %w", oidc.ErrInvalidParameter, err)
	}
	client := redis.NewClient(options)

	ctx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return client, nil
}

// Save persists every entry's value under its key.
func (s *Store) Save(ctx context.Context, entries []oidc.Entry) error {
	const op = "Store.Save"
	for _, e := range entries {
		if e.Key == "" {
			return fmt.Errorf("%s: missing key: %w", op, oidc.ErrInvalidParameter)
		}
		if err := s.cache.Set(ctx, e.Key, e.Value, lib_store.WithExpiration(s.expiration)); err != nil {
			return fmt.Errorf("%s: unable to save %q: %w", op, e.Key, err)
		}
	}
	return nil
}

// Load decodes the value saved under key into v, which must be a pointer.
// A missing key is oidc.ErrNotFound.
func (s *Store) Load(ctx context.Context, key string, v interface{}) error {
	const op = "Store.Load"
	if v == nil {
		return fmt.Errorf("%s: nil value: %w", op, oidc.ErrNilParameter)
	}
	_, err := s.cache.Get(ctx, key, v)
	switch {
	case isNotFound(err):
		return fmt.Errorf("%s: %s: %w", op, key, oidc.ErrNotFound)
	case err != nil:
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func isNotFound(err error) bool {
	var nf *lib_store.NotFound
	return errors.As(err, &nf) || errors.Is(err, redis.Nil)
}

// Close releases the store's connections.
func (s *Store) Close() error {
	return s.close()
}
