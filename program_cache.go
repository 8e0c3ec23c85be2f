package observe

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultProgramCacheSize bounds the compiled filter programs a Context keeps
// when no cache is configured.
const DefaultProgramCacheSize = 128

// ProgramCache stores compiled expression programs keyed by expression strings.
type ProgramCache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}

// WithProgramCache registers a program cache used by the filter evaluator.
func WithProgramCache(cache ProgramCache) Option {
	return func(cfg *config) {
		cfg.programCache = cache
	}
}

// WithProgramCacheSize replaces the program cache with an LRU cache holding
// at most size programs.
func WithProgramCacheSize(size int) Option {
	return func(cfg *config) {
		cache, err := NewLRUProgramCache(size)
		if err != nil {
			return
		}
		cfg.programCache = cache
	}
}

// LRUProgramCache is a ProgramCache that evicts the least recently used
// program once full. It is safe for concurrent use.
type LRUProgramCache struct {
	cache *lru.Cache[string, any]
}

// NewLRUProgramCache constructs an LRUProgramCache holding up to size
// programs.
func NewLRUProgramCache(size int) (*LRUProgramCache, error) {
	if size <= 0 {
		return nil, fmt.Errorf("observe: program cache size must be positive, got %d", size)
	}
	cache, err := lru.New[string, any](size)
	if err != nil {
		return nil, fmt.Errorf("observe: program cache: %w", err)
	}
	return &LRUProgramCache{cache: cache}, nil
}

// Get implements ProgramCache.
func (c *LRUProgramCache) Get(key string) (any, bool) {
	return c.cache.Get(key)
}

// Set implements ProgramCache.
func (c *LRUProgramCache) Set(key string, value any) {
	c.cache.Add(key, value)
}

// Len returns the number of cached programs.
func (c *LRUProgramCache) Len() int {
	return c.cache.Len()
}
