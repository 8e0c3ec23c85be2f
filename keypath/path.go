package keypath

import (
	"errors"
	"regexp"
	"strings"

	"github.com/rip-projects/pants-observe/graph"
)

// ErrPathConstruction is raised (via panic) when a Path that did not come
// from a Compiler is used.
var ErrPathConstruction = errors.New("keypath: use keypath.Get to retrieve path objects")

var identRegExp = regexp.MustCompile(`^[$_a-zA-Z]+[$_a-zA-Z0-9]*$`)

// constructorToken seals paths built by newPath.
type sealToken struct{}

var constructorToken = &sealToken{}

// Path is an immutable, validated sequence of property keys. Paths are only
// obtained through a Compiler; a zero Path panics on use.
type Path struct {
	keys     []string
	valid    bool
	seal     *sealToken
	compiler *Compiler
	read     ReadFunc
	str      string
	// suffixes[i] memoizes Suffix(i); guarded by compiler.mu.
	suffixes []*Path
}

func newPath(keys []string, token *sealToken, compiler *Compiler) *Path {
	if token != constructorToken {
		panic(ErrPathConstruction)
	}
	p := &Path{
		keys:     append([]string(nil), keys...),
		valid:    true,
		seal:     token,
		compiler: compiler,
	}
	p.str = p.format()
	if len(p.keys) > 0 {
		p.read = compiler.getter.Prepare(p.keys)
	}
	return p
}

func (p *Path) guard() {
	if p != nil && p.seal != constructorToken {
		panic(ErrPathConstruction)
	}
}

// Valid reports whether the path parsed successfully. Invalid paths never
// match anything.
func (p *Path) Valid() bool {
	p.guard()
	return p != nil && p.valid
}

// Len returns the number of keys.
func (p *Path) Len() int {
	p.guard()
	if p == nil {
		return 0
	}
	return len(p.keys)
}

// Key returns the key at position i.
func (p *Path) Key(i int) string {
	p.guard()
	return p.keys[i]
}

// Keys returns a copy of the key sequence.
func (p *Path) Keys() []string {
	p.guard()
	if p == nil {
		return nil
	}
	return append([]string(nil), p.keys...)
}

// Last returns the terminal key, or "" for empty paths.
func (p *Path) Last() string {
	p.guard()
	if p == nil || len(p.keys) == 0 {
		return ""
	}
	return p.keys[len(p.keys)-1]
}

// Contains reports whether key appears anywhere in the path.
func (p *Path) Contains(key string) bool {
	p.guard()
	if p == nil {
		return false
	}
	for _, k := range p.keys {
		if k == key {
			return true
		}
	}
	return false
}

// Suffix returns the path made of keys[from:]. The invalid path stays
// invalid. Repeated calls return the same *Path.
func (p *Path) Suffix(from int) *Path {
	p.guard()
	if p == nil || !p.valid {
		return p
	}
	if from <= 0 {
		return p
	}
	if from > len(p.keys) {
		from = len(p.keys)
	}
	return p.compiler.suffix(p, from)
}

// String returns the canonical form: identifiers joined by dots, indexes in
// brackets and anything else as a bracketed double-quoted literal.
func (p *Path) String() string {
	p.guard()
	if p == nil {
		return ""
	}
	return p.str
}

func (p *Path) format() string {
	var b strings.Builder
	for i, key := range p.keys {
		if IsIdent(key) {
			if i > 0 {
				b.WriteByte('.')
			}
			b.WriteString(key)
			continue
		}
		b.WriteString(formatAccessor(key))
	}
	return b.String()
}

// IsIdent reports whether key can be written in dotted form.
func IsIdent(key string) bool {
	return identRegExp.MatchString(key)
}

func formatAccessor(key string) string {
	if graph.IsIndex(key) {
		return "[" + key + "]"
	}
	return `["` + strings.ReplaceAll(key, `"`, `\"`) + `"]`
}
