// Package evalctx provides the capability set builtins use while a policy
// is being evaluated: a clock, a random source, a per-evaluation cache, and
// an HTTP sender. It ships a production implementation (real clock,
// per-context RNG reseeded at each evaluation, real HTTP client) and a test implementation (frozen
// clock, seeded RNG, delegating HTTP).
package evalctx

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
)

// EvaluationContext is the capability set a builtin may use. Mutation is
// serialised by the caller (see internal/wasm's builtin dispatch), which holds this
// context for the duration of exactly one builtin call.
type EvaluationContext interface {
	// Now returns the clock reading captured at the start of the current
	// evaluation. It does not advance during the evaluation.
	Now() time.Time

	// Rand returns a random source scoped to the current evaluation.
	Rand() *rand.Rand

	// SendHTTP executes req honouring timeout and enableRedirect, returning
	// the raw response.
	SendHTTP(ctx context.Context, req *http.Request, timeout time.Duration, enableRedirect bool) (*http.Response, error)

	// EvaluationStart notifies the context that a new evaluation has begun:
	// it clears the per-evaluation cache and (for production contexts)
	// refreshes the clock reading.
	EvaluationStart()

	// CacheGet looks up key in the per-evaluation cache, unmarshalling into
	// out. The boolean return reports whether the key was present.
	CacheGet(key string, out interface{}) (bool, error)

	// CacheSet stores val under key in the per-evaluation cache.
	CacheSet(key string, val interface{}) error
}

// cacheEntry is what DefaultContext stores: the raw JSON it was handed, so
// CacheGet can unmarshal into whatever type the caller asks for.
type cacheEntry []byte

// DefaultContext is the production EvaluationContext: a real wall clock
// (frozen for the duration of one evaluation), an RNG owned by the context
// and reseeded at each EvaluationStart, and a real HTTP client pool keyed by (timeout,
// enableRedirect).
type DefaultContext struct {
	mu    sync.Mutex
	cache *lru.Cache[uint64, cacheEntry]

	evalTime time.Time
	rng      *rand.Rand

	clients *clientPool
}

// DefaultCacheSize bounds the per-evaluation builtin memoisation cache.
// Evaluations clear the cache at EvaluationStart, so this only protects
// against a single pathological evaluation exhausting memory.
const DefaultCacheSize = 4096

// NewDefaultContext constructs a production evaluation context.
func NewDefaultContext() *DefaultContext {
	c, _ := lru.New[uint64, cacheEntry](DefaultCacheSize)
	return &DefaultContext{
		cache:   c,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		clients: newClientPool(),
	}
}

func (d *DefaultContext) Now() time.Time { return d.evalTime }

func (d *DefaultContext) Rand() *rand.Rand { return d.rng }

func (d *DefaultContext) SendHTTP(ctx context.Context, req *http.Request, timeout time.Duration, enableRedirect bool) (*http.Response, error) {
	return d.clients.get(timeout, enableRedirect).Do(req.WithContext(ctx))
}

func (d *DefaultContext) EvaluationStart() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cache.Purge()
	d.evalTime = time.Now().UTC()
	d.rng = rand.New(rand.NewSource(d.evalTime.UnixNano()))
}

// cacheKeyHash reduces an arbitrary-length builtin cache key (typically
// "builtin_name:json(args)") to a fixed-size hash, so the LRU cache's size
// bound is on entry count, not on the cumulative length of every key string.
func cacheKeyHash(key string) uint64 {
	return xxhash.Sum64String(key)
}

func (d *DefaultContext) CacheGet(key string, out interface{}) (bool, error) {
	d.mu.Lock()
	v, ok := d.cache.Get(cacheKeyHash(key))
	d.mu.Unlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(v, out); err != nil {
		return false, err
	}
	return true, nil
}

func (d *DefaultContext) CacheSet(key string, val interface{}) error {
	raw, err := json.Marshal(val)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.cache.Add(cacheKeyHash(key), raw)
	d.mu.Unlock()
	return nil
}

var _ EvaluationContext = (*DefaultContext)(nil)
