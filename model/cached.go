package model

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/hupe1980/agentrt/cache"
	"github.com/hupe1980/agentrt/logging"
)

// CachedClient memoizes successful completions in a cache.Store. Entries are
// keyed by the client's provider, model name and the full message list.
// Results served from the cache have Cached set. Concurrent misses for the
// same key share one upstream call, which keeps running when the caller that
// started it gives up.
type CachedClient struct {
	next   ChatCompletionClient
	store  cache.Store
	ttl    time.Duration
	logger logging.Logger
	group  singleflight.Group
}

// CacheOptions configures NewCachedClient.
type CacheOptions struct {
	// TTL bounds the lifetime of cached results; 0 keeps them until evicted.
	TTL time.Duration

	// Logger reports cache read and write failures. Defaults to NoOpLogger.
	Logger logging.Logger
}

// NewCachedClient wraps next with store.
func NewCachedClient(next ChatCompletionClient, store cache.Store, optFns ...func(o *CacheOptions)) *CachedClient {
	opts := CacheOptions{Logger: logging.NoOpLogger{}}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &CachedClient{next: next, store: store, ttl: opts.TTL, logger: opts.Logger}
}

// Create implements ChatCompletionClient. Cache failures are logged and never
// fail the call.
func (c *CachedClient) Create(ctx context.Context, messages []Message) (*Result, error) {
	if len(messages) == 0 {
		return nil, ErrNoMessages
	}

	key, err := c.key(messages)
	if err != nil {
		return nil, err
	}

	data, err := c.store.Get(ctx, key)
	switch {
	case err == nil:
		var res Result
		if uerr := json.Unmarshal(data, &res); uerr == nil {
			res.Cached = true
			return &res, nil
		}
		c.logger.Warn("discarding corrupt cache entry", "key", key)
	case !errors.Is(err, cache.ErrNotFound):
		c.logger.Warn("cache read failed", "key", key, "error", err)
	}

	// The shared call outlives any single caller: one waiter giving up must
	// not fail the others. Bound it with a timeout in the wrapped client.
	shared := context.WithoutCancel(ctx)

	ch := c.group.DoChan(key, func() (any, error) {
		res, err := c.next.Create(shared, messages)
		if err != nil {
			return nil, err
		}

		if data, err := json.Marshal(res); err == nil {
			if err := c.store.Set(shared, key, data, c.ttl); err != nil {
				c.logger.Warn("cache write failed", "key", key, "error", err)
			}
		}

		return res, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}

		res := *r.Val.(*Result)

		return &res, nil
	}
}

// Info implements ChatCompletionClient.
func (c *CachedClient) Info() Info { return c.next.Info() }

func (c *CachedClient) key(messages []Message) (string, error) {
	info := c.next.Info()

	payload, err := json.Marshal(struct {
		Provider string    `json:"provider"`
		Name     string    `json:"name"`
		Messages []Message `json:"messages"`
	}{info.Provider, info.Name, messages})
	if err != nil {
		return "", fmt.Errorf("cache key: %w", err)
	}

	sum := sha256.Sum256(payload)

	return "completion:" + hex.EncodeToString(sum[:]), nil
}
