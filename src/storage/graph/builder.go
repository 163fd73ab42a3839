package graph

import (
	"fmt"

	"github.com/Blackdeer1524/GraphCatalog/src/pkg/errs"
	"github.com/Blackdeer1524/GraphCatalog/src/pkg/utils"
	"github.com/Blackdeer1524/GraphCatalog/src/storage/schema"
	"github.com/Blackdeer1524/GraphCatalog/src/storage/table"
)

type element struct {
	id     []byte
	source []byte
	target []byte
	props  map[string]any
}

type group struct {
	elements []element
	declared schema.PropertyKeys
}

// Builder assembles a ScanGraph from individual elements. Property types are
// inferred from values; a key missing on some element of a type is nullable.
type Builder struct {
	nodes map[string]*group
	rels  map[string]*group
}

func NewBuilder() *Builder {
	return &Builder{
		nodes: make(map[string]*group),
		rels:  make(map[string]*group),
	}
}

func (b *Builder) Node(id []byte, labels []string, props map[string]any) *Builder {
	key := schema.NewLabels(labels...).Key()
	if _, ok := b.nodes[key]; !ok {
		b.nodes[key] = &group{}
	}

	b.nodes[key].elements = append(b.nodes[key].elements, element{id: id, props: props})

	return b
}

func (b *Builder) Relationship(id, source, target []byte, relType string, props map[string]any) *Builder {
	if _, ok := b.rels[relType]; !ok {
		b.rels[relType] = &group{}
	}

	b.rels[relType].elements = append(
		b.rels[relType].elements,
		element{id: id, source: source, target: target, props: props},
	)

	return b
}

// NodeType declares a label combination with explicit keys. It lets a graph
// carry a type without elements or fix the type of an all-null property.
func (b *Builder) NodeType(labels []string, keys schema.PropertyKeys) *Builder {
	key := schema.NewLabels(labels...).Key()
	if _, ok := b.nodes[key]; !ok {
		b.nodes[key] = &group{}
	}

	b.nodes[key].declared = keys.Copy()

	return b
}

func (b *Builder) RelationshipType(relType string, keys schema.PropertyKeys) *Builder {
	if _, ok := b.rels[relType]; !ok {
		b.rels[relType] = &group{}
	}

	b.rels[relType].declared = keys.Copy()

	return b
}

func (b *Builder) Build() (*ScanGraph, error) {
	nodes := make([]NodeScan, 0, len(b.nodes))
	for _, key := range utils.SortedKeys(b.nodes) {
		t, err := b.nodes[key].table(NodeColumns, func(e element) table.Row {
			return table.Row{e.id}
		})
		if err != nil {
			return nil, fmt.Errorf("failed to build %s: %w", schema.LabelsFromKey(key), err)
		}
		nodes = append(nodes, NodeScan{Labels: schema.LabelsFromKey(key), Table: t})
	}

	rels := make([]RelationshipScan, 0, len(b.rels))
	for _, relType := range utils.SortedKeys(b.rels) {
		t, err := b.rels[relType].table(RelationshipColumns, func(e element) table.Row {
			return table.Row{e.id, e.source, e.target}
		})
		if err != nil {
			return nil, fmt.Errorf("failed to build [:%s]: %w", relType, err)
		}
		rels = append(rels, RelationshipScan{Type: relType, Table: t})
	}

	return NewScanGraph(nodes, rels)
}

// MustBuild is Build for fixtures.
func (b *Builder) MustBuild() *ScanGraph {
	g, err := b.Build()
	if err != nil {
		panic(err)
	}

	return g
}

func (g *group) table(
	columnsFor func(schema.PropertyKeys) []table.Column,
	structural func(element) table.Row,
) (*table.Table, error) {
	keys, err := g.inferKeys()
	if err != nil {
		return nil, err
	}

	columns := columnsFor(keys)
	rows := make([]table.Row, 0, len(g.elements))
	for _, e := range g.elements {
		row := structural(e)
		for _, c := range columns[len(row):] {
			row = append(row, e.props[c.Name])
		}
		rows = append(rows, row)
	}

	return table.New(columns, rows...)
}

func (g *group) inferKeys() (schema.PropertyKeys, error) {
	keys := g.declared.Copy()

	seen := make(map[string]int)
	for _, e := range g.elements {
		for key, v := range e.props {
			if key == IDColumn || key == SourceColumn || key == TargetColumn {
				return nil, errs.IllegalArgument(key, "reserved column name")
			}

			if v == nil {
				continue
			}
			seen[key]++

			t, err := typeOf(v)
			if err != nil {
				return nil, fmt.Errorf("property %q: %w", key, err)
			}

			prev, ok := keys[key]
			if !ok {
				keys[key] = t
				continue
			}

			joined, ok := prev.Join(t)
			if !ok {
				return nil, errs.IllegalArgument(key, fmt.Sprintf("used as %s and %s", prev, t))
			}
			keys[key] = joined
		}
	}

	for key, t := range keys {
		if _, declared := g.declared[key]; declared {
			continue
		}

		if seen[key] < len(g.elements) {
			keys[key] = t.AsNullable()
		}
	}

	return keys, nil
}

func typeOf(v any) (schema.CypherType, error) {
	switch v.(type) {
	case int, int32, int64:
		return schema.Integer, nil
	case float32, float64:
		return schema.Float, nil
	case string:
		return schema.String, nil
	case bool:
		return schema.Boolean, nil
	case []byte:
		return schema.Binary, nil
	}

	return schema.CypherType{}, errs.IllegalArgument("value", fmt.Sprintf("unsupported type %T", v))
}
