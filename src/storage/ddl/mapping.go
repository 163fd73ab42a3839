package ddl

import (
	"fmt"
	"maps"
	"slices"

	"github.com/Blackdeer1524/GraphCatalog/src/pkg/errs"
	"github.com/Blackdeer1524/GraphCatalog/src/storage/schema"
)

// NodeViewKey identifies one label combination of one graph.
type NodeViewKey struct {
	GraphName string        `json:"graph"`
	Labels    schema.Labels `json:"labels"`
}

func (k NodeViewKey) String() string {
	return k.GraphName + k.Labels.String()
}

// NodeToViewMapping binds a node type to the table holding its nodes. The
// primary key column holds the element id as stored.
type NodeToViewMapping struct {
	Key          NodeViewKey         `json:"key"`
	Table        string              `json:"table"`
	PrimaryKey   string              `json:"primary_key"`
	PropertyKeys schema.PropertyKeys `json:"property_keys"`
}

// EdgeToViewMapping binds one (start)-[type]->(end) triple to its table.
// Source and target columns reference primary keys of the start and end
// node tables.
type EdgeToViewMapping struct {
	GraphName    string                  `json:"graph"`
	Type         schema.RelationshipType `json:"type"`
	Table        string                  `json:"table"`
	PrimaryKey   string                  `json:"primary_key"`
	Start        NodeViewKey             `json:"start"`
	SourceColumn string                  `json:"source_column"`
	End          NodeViewKey             `json:"end"`
	TargetColumn string                  `json:"target_column"`
	PropertyKeys schema.PropertyKeys     `json:"property_keys"`
}

// RelType is the single relationship type label of the mapped triple.
func (e EdgeToViewMapping) RelType() string {
	return e.Type.Labels[0]
}

// GraphDdl is everything needed to read one stored graph back.
type GraphDdl struct {
	DataSource string             `json:"data_source"`
	Database   string             `json:"database"`
	GraphName  string             `json:"graph"`
	GraphType  schema.GraphType   `json:"graph_type"`
	Nodes      []NodeToViewMapping `json:"nodes"`
	Edges      []EdgeToViewMapping `json:"edges"`
}

func (d GraphDdl) NodeMapping(key NodeViewKey) (NodeToViewMapping, bool) {
	for _, n := range d.Nodes {
		if n.Key.GraphName == key.GraphName && n.Key.Labels.Equal(key.Labels) {
			return n, true
		}
	}

	return NodeToViewMapping{}, false
}

func (d GraphDdl) Tables() []string {
	res := make([]string, 0, len(d.Nodes)+len(d.Edges))
	for _, n := range d.Nodes {
		res = append(res, n.Table)
	}

	for _, e := range d.Edges {
		res = append(res, e.Table)
	}

	return res
}

// unmappedRelationshipTypes are declared relationship types without any
// triple. They are read back as empty.
func (d GraphDdl) unmappedRelationshipTypes() []string {
	mapped := make(map[string]struct{})
	for _, e := range d.Edges {
		mapped[e.RelType()] = struct{}{}
	}

	res := make([]string, 0)
	for _, relType := range d.GraphType.RelationshipLabels() {
		if _, ok := mapped[relType]; !ok {
			res = append(res, relType)
		}
	}

	return res
}

// Schema is the schema of the graph as read back from the mapped tables.
// Triples sharing a relationship type are unioned.
func (d GraphDdl) Schema() (schema.Schema, error) {
	var err error

	res := schema.Empty
	for _, n := range d.Nodes {
		res, err = res.WithNodePropertyKeys(n.Key.Labels, n.PropertyKeys)
		if err != nil {
			return schema.Schema{}, err
		}
	}

	for _, e := range d.Edges {
		res, err = res.WithRelationshipPropertyKeys(e.RelType(), e.PropertyKeys)
		if err != nil {
			return schema.Schema{}, err
		}
	}

	for _, relType := range d.unmappedRelationshipTypes() {
		keys, err := d.GraphType.RelationshipPropertyKeys(relType)
		if err != nil {
			return schema.Schema{}, err
		}

		res, err = res.WithRelationshipPropertyKeys(relType, keys)
		if err != nil {
			return schema.Schema{}, err
		}
	}

	return res, nil
}

func (d GraphDdl) validate() error {
	seen := make(map[string]struct{})
	for _, name := range d.Tables() {
		if _, ok := seen[name]; ok {
			return errs.AlreadyExists("table", name)
		}
		seen[name] = struct{}{}
	}

	return nil
}

// Mappings accumulates the ddl of every graph stored into one relational
// source. Entries are never removed.
type Mappings struct {
	Graphs map[string]GraphDdl `json:"graphs"`
}

func (m Mappings) Graph(name string) (GraphDdl, bool) {
	d, ok := m.Graphs[name]
	return d, ok
}

func (m Mappings) GraphNames() []string {
	return slices.Sorted(maps.Keys(m.Graphs))
}

// Union merges two mapping sets. A graph name or a table claimed by both
// sides is an error; nothing is renamed.
func (m Mappings) Union(o Mappings) (Mappings, error) {
	res := Mappings{Graphs: make(map[string]GraphDdl, len(m.Graphs)+len(o.Graphs))}

	owners := make(map[string]string)
	for _, side := range []Mappings{m, o} {
		for _, name := range side.GraphNames() {
			d := side.Graphs[name]

			if _, ok := res.Graphs[name]; ok {
				return Mappings{}, errs.AlreadyExists("graph", name)
			}

			for _, table := range d.Tables() {
				if owner, ok := owners[table]; ok {
					return Mappings{}, fmt.Errorf(
						"table of %q already mapped by %q: %w",
						name,
						owner,
						errs.AlreadyExists("table", table),
					)
				}
				owners[table] = name
			}

			res.Graphs[name] = d
		}
	}

	return res, nil
}

func Single(d GraphDdl) Mappings {
	return Mappings{Graphs: map[string]GraphDdl{d.GraphName: d}}
}
