package graph

import (
	"sync"

	"github.com/Blackdeer1524/GraphCatalog/src/storage/schema"
	"github.com/Blackdeer1524/GraphCatalog/src/storage/table"
	"github.com/Blackdeer1524/GraphCatalog/src/storage/token"
)

// LazyGraph defers loading until the first accessor call. The load runs at
// most once and every caller observes its single outcome. A loaded graph
// whose schema differs from the expected one is rejected with
// SchemaMismatchError.
type LazyGraph struct {
	expected schema.Schema
	load     func() (PropertyGraph, error)
}

var _ PropertyGraph = &LazyGraph{}

func NewLazy(expected schema.Schema, load func() (PropertyGraph, error)) *LazyGraph {
	return &LazyGraph{
		expected: expected,
		load: sync.OnceValues(func() (PropertyGraph, error) {
			g, err := load()
			if err != nil {
				return nil, err
			}

			if !g.Schema().Equal(expected) {
				return nil, &SchemaMismatchError{Expected: expected, Actual: g.Schema()}
			}

			return g, nil
		}),
	}
}

func (l *LazyGraph) Load() (PropertyGraph, error) {
	return l.load()
}

// Schema is the expected schema and never triggers the load.
func (l *LazyGraph) Schema() schema.Schema {
	return l.expected
}

// Tokens falls back to the registry of the expected schema when the load
// fails. Accessors report the failure.
func (l *LazyGraph) Tokens() *token.Registry {
	g, err := l.load()
	if err != nil {
		return token.FromSchema(l.expected)
	}

	return g.Tokens()
}

func (l *LazyGraph) Nodes(varName string, labels schema.Labels, exact bool) (*table.Table, error) {
	g, err := l.load()
	if err != nil {
		return nil, err
	}

	return g.Nodes(varName, labels, exact)
}

func (l *LazyGraph) Relationships(varName string, relTypes ...string) (*table.Table, error) {
	g, err := l.load()
	if err != nil {
		return nil, err
	}

	return g.Relationships(varName, relTypes...)
}

func (l *LazyGraph) NodeTable(labels schema.Labels) (*table.Table, error) {
	g, err := l.load()
	if err != nil {
		return nil, err
	}

	return g.NodeTable(labels)
}

func (l *LazyGraph) RelationshipTable(relType string) (*table.Table, error) {
	g, err := l.load()
	if err != nil {
		return nil, err
	}

	return g.RelationshipTable(relType)
}

func (l *LazyGraph) Union(other PropertyGraph) (PropertyGraph, error) {
	if isEmpty(other) {
		return l, nil
	}

	g, err := l.load()
	if err != nil {
		return nil, err
	}

	return g.Union(other)
}
