package token

import (
	"slices"
	"strconv"
	"sync"

	"github.com/Blackdeer1524/GraphCatalog/src/pkg/errs"
	"github.com/Blackdeer1524/GraphCatalog/src/storage/schema"
)

type Token int32

// Registry is a bidirectional dictionary between label, relationship type
// and property key strings and small integers. Tokens are never reassigned.
type Registry struct {
	mu      sync.RWMutex
	strings []string
	tokens  map[string]Token
}

func NewRegistry() *Registry {
	return &Registry{
		tokens: make(map[string]Token),
	}
}

// FromSchema registers labels, relationship types and property keys, each
// group sorted, so registries of equal schemas are token-for-token equal.
func FromSchema(s schema.Schema) *Registry {
	r := NewRegistry()

	for _, label := range s.AllLabels() {
		r.register(label)
	}

	for _, relType := range s.RelationshipTypes() {
		r.register(relType)
	}

	for _, key := range s.AllPropertyKeys() {
		r.register(key)
	}

	return r
}

// Merge returns a registry that keeps a's numbering and appends the strings
// only b knows in b's token order. Neither input is modified.
func Merge(a, b *Registry) *Registry {
	res := NewRegistry()

	for _, s := range a.Strings() {
		res.register(s)
	}

	for _, s := range b.Strings() {
		res.register(s)
	}

	return res
}

func (r *Registry) register(s string) Token {
	if t, ok := r.tokens[s]; ok {
		return t
	}

	t := Token(len(r.strings))
	r.strings = append(r.strings, s)
	r.tokens[s] = t

	return t
}

func (r *Registry) TokenFor(s string) Token {
	r.mu.RLock()
	t, ok := r.tokens[s]
	r.mu.RUnlock()

	if ok {
		return t
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return r.register(s)
}

func (r *Registry) StringFor(t Token) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if t < 0 || int(t) >= len(r.strings) {
		return "", errs.NotFound("token", strconv.Itoa(int(t)))
	}

	return r.strings[t], nil
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.strings)
}

// Strings returns all registered strings ordered by token.
func (r *Registry) Strings() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Clone(r.strings)
}

func (r *Registry) Equal(o *Registry) bool {
	return slices.Equal(r.Strings(), o.Strings())
}
