package keypath

import (
	"fmt"
	"strconv"
	"sync"
)

// CompilerOption configures a Compiler.
type CompilerOption func(*Compiler)

// WithGetter selects the reader strategy prepared for each compiled path.
func WithGetter(getter Getter) CompilerOption {
	return func(c *Compiler) {
		if getter != nil {
			c.getter = getter
		}
	}
}

// Compiler turns path expressions into Paths and caches them by input
// string, so equal strings always yield the same *Path. The cache never
// evicts; that is what keeps the identity guarantee.
type Compiler struct {
	mu      sync.RWMutex
	cache   map[string]*Path
	getter  Getter
	invalid *Path
}

// NewCompiler constructs a Compiler. The generic walk is the default reader.
func NewCompiler(opts ...CompilerOption) *Compiler {
	c := &Compiler{
		cache:  map[string]*Path{},
		getter: WalkGetter{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	c.invalid = &Path{keys: []string{}, seal: constructorToken, compiler: c}
	return c
}

// Default is the process-wide compiler used by the package-level helpers.
var Default = NewCompiler()

// Get compiles input with the Default compiler.
func Get(input any) *Path {
	return Default.Get(input)
}

// Invalid returns the shared invalid path of the Default compiler.
func Invalid() *Path {
	return Default.invalid
}

// Get compiles input. Accepted inputs are a path string, a pre-tokenized
// []string or []any of keys, or an existing *Path which is returned
// unchanged. Anything else is formatted with fmt.Sprint and parsed. Malformed
// input yields the invalid path; Get never fails.
func (c *Compiler) Get(input any) *Path {
	switch t := input.(type) {
	case *Path:
		if t == nil {
			return c.fromString("")
		}
		t.guard()
		return t
	case nil:
		return c.fromString("")
	case string:
		return c.fromString(t)
	case []string:
		return c.fromKeys(t)
	case []any:
		keys := make([]string, len(t))
		for i, key := range t {
			keys[i] = keyString(key)
		}
		return c.fromKeys(keys)
	case []int:
		keys := make([]string, len(t))
		for i, key := range t {
			keys[i] = strconv.Itoa(key)
		}
		return c.fromKeys(keys)
	default:
		return c.fromString(fmt.Sprint(t))
	}
}

// Invalid returns the compiler's shared invalid path.
func (c *Compiler) Invalid() *Path {
	return c.invalid
}

// Len returns the number of cached path strings.
func (c *Compiler) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}

func (c *Compiler) fromString(input string) *Path {
	c.mu.RLock()
	cached, ok := c.cache[input]
	c.mu.RUnlock()
	if ok {
		return cached
	}

	keys, ok := parse(input)
	if !ok {
		return c.invalid
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if cached, ok := c.cache[input]; ok {
		return cached
	}
	path := newPath(keys, constructorToken, c)
	c.cache[input] = path
	return path
}

// fromKeys builds a path from pre-tokenized keys. Such paths bypass the
// string cache since their canonical form may not parse back to the same
// keys.
func (c *Compiler) fromKeys(keys []string) *Path {
	return newPath(keys, constructorToken, c)
}

// suffix returns the memoized tail of p starting at from, building and
// preparing it on first use.
func (c *Compiler) suffix(p *Path, from int) *Path {
	c.mu.RLock()
	if from < len(p.suffixes) && p.suffixes[from] != nil {
		cached := p.suffixes[from]
		c.mu.RUnlock()
		return cached
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if p.suffixes == nil {
		p.suffixes = make([]*Path, len(p.keys)+1)
	}
	if cached := p.suffixes[from]; cached != nil {
		return cached
	}
	tail := c.fromKeys(p.keys[from:])
	p.suffixes[from] = tail
	return tail
}

func keyString(key any) string {
	switch t := key.(type) {
	case string:
		return t
	case int:
		return strconv.Itoa(t)
	default:
		return fmt.Sprint(t)
	}
}
