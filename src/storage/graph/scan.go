package graph

import (
	"fmt"
	"slices"

	"github.com/Blackdeer1524/GraphCatalog/src/pkg/errs"
	"github.com/Blackdeer1524/GraphCatalog/src/storage/schema"
	"github.com/Blackdeer1524/GraphCatalog/src/storage/table"
	"github.com/Blackdeer1524/GraphCatalog/src/storage/token"
)

// NodeScan is a canonical node table of one label combination.
type NodeScan struct {
	Labels schema.Labels
	Table  *table.Table
}

// RelationshipScan is a canonical relationship table of one type.
type RelationshipScan struct {
	Type  string
	Table *table.Table
}

// ScanGraph keeps one or more scans per label combination and per
// relationship type. Scans of the same type are unioned on access.
type ScanGraph struct {
	schema schema.Schema
	tokens *token.Registry

	nodeKeys []string
	nodes    map[string][]*table.Table
	relTypes []string
	rels     map[string][]*table.Table
}

var _ PropertyGraph = &ScanGraph{}

// NewScanGraph derives the schema from the columns of the scans. Scans of
// one type may disagree on optional properties, which become nullable.
func NewScanGraph(nodes []NodeScan, rels []RelationshipScan) (*ScanGraph, error) {
	s := schema.Empty

	for _, scan := range nodes {
		keys, err := propertyKeysOf(scan.Table, IDColumn)
		if err != nil {
			return nil, fmt.Errorf("invalid scan %s: %w", scan.Labels, err)
		}

		s, err = s.WithNodePropertyKeys(scan.Labels, keys)
		if err != nil {
			return nil, err
		}
	}

	for _, scan := range rels {
		keys, err := propertyKeysOf(scan.Table, IDColumn, SourceColumn, TargetColumn)
		if err != nil {
			return nil, fmt.Errorf("invalid scan [:%s]: %w", scan.Type, err)
		}

		s, err = s.WithRelationshipPropertyKeys(scan.Type, keys)
		if err != nil {
			return nil, err
		}
	}

	return newScanGraph(s, token.FromSchema(s), nodes, rels), nil
}

func newScanGraph(
	s schema.Schema,
	tokens *token.Registry,
	nodes []NodeScan,
	rels []RelationshipScan,
) *ScanGraph {
	g := &ScanGraph{
		schema: s,
		tokens: tokens,
		nodes:  make(map[string][]*table.Table),
		rels:   make(map[string][]*table.Table),
	}

	for _, scan := range nodes {
		key := schema.NewLabels(scan.Labels...).Key()
		if _, ok := g.nodes[key]; !ok {
			g.nodeKeys = append(g.nodeKeys, key)
		}
		g.nodes[key] = append(g.nodes[key], scan.Table)
	}

	for _, scan := range rels {
		if _, ok := g.rels[scan.Type]; !ok {
			g.relTypes = append(g.relTypes, scan.Type)
		}
		g.rels[scan.Type] = append(g.rels[scan.Type], scan.Table)
	}

	slices.Sort(g.nodeKeys)
	slices.Sort(g.relTypes)

	return g
}

func (g *ScanGraph) Schema() schema.Schema {
	return g.schema
}

func (g *ScanGraph) Tokens() *token.Registry {
	return g.tokens
}

func (g *ScanGraph) Nodes(varName string, labels schema.Labels, exact bool) (*table.Table, error) {
	return projectNodes(g, varName, labels, exact)
}

func (g *ScanGraph) Relationships(varName string, relTypes ...string) (*table.Table, error) {
	return projectRelationships(g, varName, relTypes)
}

func (g *ScanGraph) NodeTable(labels schema.Labels) (*table.Table, error) {
	labels = schema.NewLabels(labels...)

	scans, ok := g.nodes[labels.Key()]
	if !ok {
		return nil, errs.NotFound("node type", labels.String())
	}

	return unionScans(scans, NodeColumns(g.schema.NodePropertyKeys(labels)))
}

func (g *ScanGraph) RelationshipTable(relType string) (*table.Table, error) {
	scans, ok := g.rels[relType]
	if !ok {
		return nil, errs.NotFound("relationship type", relType)
	}

	return unionScans(scans, RelationshipColumns(g.schema.RelationshipPropertyKeys(relType)))
}

func (g *ScanGraph) Union(other PropertyGraph) (PropertyGraph, error) {
	return union(g, other)
}

// ScanCount reports how many scans back one label combination.
func (g *ScanGraph) ScanCount(labels schema.Labels) int {
	return len(g.nodes[schema.NewLabels(labels...).Key()])
}

func (g *ScanGraph) nodeScans() []NodeScan {
	res := make([]NodeScan, 0, len(g.nodeKeys))
	for _, key := range g.nodeKeys {
		for _, t := range g.nodes[key] {
			res = append(res, NodeScan{Labels: schema.LabelsFromKey(key), Table: t})
		}
	}

	return res
}

func (g *ScanGraph) relationshipScans() []RelationshipScan {
	res := make([]RelationshipScan, 0, len(g.relTypes))
	for _, relType := range g.relTypes {
		for _, t := range g.rels[relType] {
			res = append(res, RelationshipScan{Type: relType, Table: t})
		}
	}

	return res
}

func unionScans(scans []*table.Table, columns []table.Column) (*table.Table, error) {
	merged := table.Empty(columns...)

	for _, scan := range scans {
		reshaped, err := reshape(scan, columns)
		if err != nil {
			return nil, err
		}

		merged, err = merged.Union(reshaped)
		if err != nil {
			return nil, err
		}
	}

	return merged, nil
}
