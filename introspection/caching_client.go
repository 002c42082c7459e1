/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package introspection

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/acronis/go-appkit/lrucache"
	"golang.org/x/sync/singleflight"

	"github.com/acronis/go-authfilter/internal/strutil"
)

const (
	// DefaultVerdictCacheMaxEntries is a default maximum number of entries in the verdict cache.
	DefaultVerdictCacheMaxEntries = 1000

	// DefaultVerdictCacheTTL is a default time-to-live for cached verdicts without the "exp" claim.
	DefaultVerdictCacheTTL = 1 * time.Minute
)

// VerdictCacheItem pairs an introspection verdict with its computed expiry instant.
// An item is never served past ExpiresAt; once expired it is indistinguishable from absent.
type VerdictCacheItem struct {
	Result    Result
	ExpiresAt time.Time
}

// VerdictCacheOpts is a configuration of how the verdict cache will be used.
type VerdictCacheOpts struct {
	// MaxEntries is a maximum number of cached verdicts.
	// When the cache is full, the least recently used entry is evicted.
	MaxEntries int

	// DefaultTTL is a time-to-live for verdicts that carry no "exp" claim.
	DefaultTTL time.Duration
}

// CachingClientOpts is a set of options for creating CachingClient.
type CachingClientOpts struct {
	ClientOpts

	// Cache is a configuration of how the verdict cache will be used.
	Cache VerdictCacheOpts
}

// CachingClient does the same as Client but caches verdicts and
// coalesces concurrent introspections of the same token into a single call.
type CachingClient struct {
	*Client

	cache      *lrucache.LRUCache[[sha256.Size]byte, VerdictCacheItem]
	defaultTTL time.Duration
	sfGroup    singleflight.Group
}

// NewCachingClient creates a new CachingClient for the given introspection endpoint URL.
func NewCachingClient(endpoint string) (*CachingClient, error) {
	return NewCachingClientWithOpts(endpoint, CachingClientOpts{})
}

// NewCachingClientWithOpts creates a new CachingClient for the given introspection endpoint URL with options.
// See CachingClientOpts for more details.
func NewCachingClientWithOpts(endpoint string, opts CachingClientOpts) (*CachingClient, error) {
	client, err := NewClientWithOpts(endpoint, opts.ClientOpts)
	if err != nil {
		return nil, err
	}
	if opts.Cache.MaxEntries == 0 {
		opts.Cache.MaxEntries = DefaultVerdictCacheMaxEntries
	}
	if opts.Cache.DefaultTTL == 0 {
		opts.Cache.DefaultTTL = DefaultVerdictCacheTTL
	}
	cache, err := lrucache.New[[sha256.Size]byte, VerdictCacheItem](opts.Cache.MaxEntries, client.promMetrics.VerdictCache)
	if err != nil {
		return nil, err
	}
	return &CachingClient{
		Client:     client,
		cache:      cache,
		defaultTTL: opts.Cache.DefaultTTL,
	}, nil
}

// IntrospectToken introspects the given token using the cache.
// A live cached verdict is returned without a network call.
// On a miss, concurrent callers for the same token share a single introspection call
// and observe the identical verdict. Failed introspections are not cached,
// so a transient authority outage self-heals on the next request.
func (c *CachingClient) IntrospectToken(ctx context.Context, token string) (Result, error) {
	cacheKey := sha256.Sum256(strutil.StringToBytesUnsafe(token))

	if item, ok := c.cache.Get(cacheKey); ok && time.Now().Before(item.ExpiresAt) {
		return item.Result, nil
	}

	ch := c.sfGroup.DoChan(hex.EncodeToString(cacheKey[:]), func() (interface{}, error) {
		// The load is detached from the initiating request's context:
		// its result is shared between all waiters, so cancellation of a single
		// waiter must not abort or truncate it. The HTTP client's own timeout
		// still bounds the call.
		res, err := c.Client.IntrospectToken(context.WithoutCancel(ctx), token)
		if err != nil {
			return nil, err
		}
		// The entry is published only after the load fully succeeded.
		c.cache.Add(cacheKey, VerdictCacheItem{Result: res, ExpiresAt: c.verdictExpiry(res)})
		return res, nil
	})

	select {
	case sfRes := <-ch:
		if sfRes.Err != nil {
			return Result{}, sfRes.Err
		}
		return sfRes.Val.(Result), nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// InvalidateCache removes all cached verdicts.
func (c *CachingClient) InvalidateCache() {
	c.cache.Purge()
}

// CacheLen returns the number of verdicts in the cache, expired ones included.
func (c *CachingClient) CacheLen() int {
	return c.cache.Len()
}

func (c *CachingClient) verdictExpiry(res Result) time.Time {
	if res.ExpiresAt != nil {
		return res.ExpiresAt.Time
	}
	return time.Now().Add(c.defaultTTL)
}
