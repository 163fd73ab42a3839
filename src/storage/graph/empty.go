package graph

import (
	"github.com/Blackdeer1524/GraphCatalog/src/pkg/errs"
	"github.com/Blackdeer1524/GraphCatalog/src/storage/schema"
	"github.com/Blackdeer1524/GraphCatalog/src/storage/table"
	"github.com/Blackdeer1524/GraphCatalog/src/storage/token"
)

// EmptyGraph has no elements. It is the identity of Union.
type EmptyGraph struct{}

var _ PropertyGraph = EmptyGraph{}

func Empty() EmptyGraph {
	return EmptyGraph{}
}

func (EmptyGraph) Schema() schema.Schema {
	return schema.Empty
}

func (EmptyGraph) Tokens() *token.Registry {
	return token.NewRegistry()
}

func (g EmptyGraph) Nodes(varName string, labels schema.Labels, exact bool) (*table.Table, error) {
	return projectNodes(g, varName, labels, exact)
}

func (g EmptyGraph) Relationships(varName string, relTypes ...string) (*table.Table, error) {
	return projectRelationships(g, varName, relTypes)
}

func (EmptyGraph) NodeTable(labels schema.Labels) (*table.Table, error) {
	return nil, errs.NotFound("node type", schema.NewLabels(labels...).String())
}

func (EmptyGraph) RelationshipTable(relType string) (*table.Table, error) {
	return nil, errs.NotFound("relationship type", relType)
}

func (g EmptyGraph) Union(other PropertyGraph) (PropertyGraph, error) {
	return union(g, other)
}

func isEmpty(g PropertyGraph) bool {
	switch g.(type) {
	case EmptyGraph, *EmptyGraph:
		return true
	}

	return false
}
