package graph

import (
	"fmt"
	"slices"

	"github.com/Blackdeer1524/GraphCatalog/src/pkg/errs"
	"github.com/Blackdeer1524/GraphCatalog/src/storage/schema"
	"github.com/Blackdeer1524/GraphCatalog/src/storage/table"
	"github.com/Blackdeer1524/GraphCatalog/src/storage/token"
)

const (
	TypeColumn     = "type"
	labelPrefix    = ":"
	propertyPrefix = "."
)

// LabelColumn names the flag column of a label in a flat table.
func LabelColumn(label string) string {
	return labelPrefix + label
}

// PropertyColumn names the column of a property key in a flat table. The
// prefix keeps keys apart from the structural columns.
func PropertyColumn(key string) string {
	return propertyPrefix + key
}

// PatternGraph is backed by one flat table holding every element. Node rows
// have a null type; relationship rows carry their type, source and target.
// Each label has a boolean flag column and each property key one column.
type PatternGraph struct {
	flat   *table.Table
	schema schema.Schema
	tokens *token.Registry
}

var _ PropertyGraph = &PatternGraph{}

func NewPatternGraph(flat *table.Table, s schema.Schema) (*PatternGraph, error) {
	required := []string{IDColumn, SourceColumn, TargetColumn, TypeColumn}
	for _, label := range s.AllLabels() {
		required = append(required, LabelColumn(label))
	}
	for _, key := range s.AllPropertyKeys() {
		required = append(required, PropertyColumn(key))
	}

	for _, name := range required {
		if _, ok := flat.Column(name); !ok {
			return nil, fmt.Errorf("invalid flat table: %w", errs.NotFound("column", name))
		}
	}

	return &PatternGraph{flat: flat, schema: s, tokens: token.FromSchema(s)}, nil
}

// Flatten lays out the elements of g in one flat table. A property key used
// with incompatible types by different elements can not share a column.
func Flatten(g PropertyGraph) (*PatternGraph, error) {
	s := g.Schema()

	columns := []table.Column{
		{Name: IDColumn, Type: schema.Binary},
		{Name: SourceColumn, Type: schema.Binary.AsNullable()},
		{Name: TargetColumn, Type: schema.Binary.AsNullable()},
		{Name: TypeColumn, Type: schema.String.AsNullable()},
	}
	for _, label := range s.AllLabels() {
		columns = append(columns, table.Column{Name: LabelColumn(label), Type: schema.Boolean.AsNullable()})
	}

	keyTypes := make(map[string]schema.CypherType)
	collect := func(keys schema.PropertyKeys) error {
		for key, t := range keys {
			prev, ok := keyTypes[key]
			if !ok {
				keyTypes[key] = t.AsNullable()
				continue
			}

			joined, ok := prev.Join(t)
			if !ok {
				return errs.IllegalArgument(key, fmt.Sprintf("used as %s and %s", prev, t))
			}
			keyTypes[key] = joined.AsNullable()
		}

		return nil
	}

	for _, labels := range s.LabelCombinations() {
		if err := collect(s.NodePropertyKeys(labels)); err != nil {
			return nil, err
		}
	}
	for _, relType := range s.RelationshipTypes() {
		if err := collect(s.RelationshipPropertyKeys(relType)); err != nil {
			return nil, err
		}
	}
	for _, key := range s.AllPropertyKeys() {
		columns = append(columns, table.Column{Name: PropertyColumn(key), Type: keyTypes[key]})
	}

	rows := make([]table.Row, 0)
	for _, labels := range s.LabelCombinations() {
		scan, err := g.NodeTable(labels)
		if err != nil {
			return nil, err
		}

		for _, r := range scan.Records() {
			row := table.Row{r.Get(IDColumn), nil, nil, nil}
			for _, label := range s.AllLabels() {
				row = append(row, labels.Contains(label))
			}
			for _, key := range s.AllPropertyKeys() {
				row = append(row, r.Get(key))
			}
			rows = append(rows, row)
		}
	}

	for _, relType := range s.RelationshipTypes() {
		scan, err := g.RelationshipTable(relType)
		if err != nil {
			return nil, err
		}

		for _, r := range scan.Records() {
			row := table.Row{r.Get(IDColumn), r.Get(SourceColumn), r.Get(TargetColumn), relType}
			for range s.AllLabels() {
				row = append(row, nil)
			}
			for _, key := range s.AllPropertyKeys() {
				row = append(row, r.Get(key))
			}
			rows = append(rows, row)
		}
	}

	flat, err := table.New(columns, rows...)
	if err != nil {
		return nil, fmt.Errorf("failed to flatten graph: %w", err)
	}

	return NewPatternGraph(flat, s)
}

func (g *PatternGraph) Schema() schema.Schema {
	return g.schema
}

func (g *PatternGraph) Tokens() *token.Registry {
	return g.tokens
}

func (g *PatternGraph) Flat() *table.Table {
	return g.flat
}

func (g *PatternGraph) Nodes(varName string, labels schema.Labels, exact bool) (*table.Table, error) {
	return projectNodes(g, varName, labels, exact)
}

func (g *PatternGraph) Relationships(varName string, relTypes ...string) (*table.Table, error) {
	return projectRelationships(g, varName, relTypes)
}

func (g *PatternGraph) NodeTable(labels schema.Labels) (*table.Table, error) {
	labels = schema.NewLabels(labels...)
	if !g.schema.HasNodeType(labels) {
		return nil, errs.NotFound("node type", labels.String())
	}

	all := g.schema.AllLabels()
	rows := g.flat.Filter(func(r table.Record) bool {
		if r.Get(TypeColumn) != nil {
			return false
		}

		for _, label := range all {
			flag, _ := r.Get(LabelColumn(label)).(bool)
			if flag != labels.Contains(label) {
				return false
			}
		}

		return true
	})

	return unflatten(rows, NodeColumns(g.schema.NodePropertyKeys(labels)), IDColumn)
}

func (g *PatternGraph) RelationshipTable(relType string) (*table.Table, error) {
	if !g.schema.HasRelationshipType(relType) {
		return nil, errs.NotFound("relationship type", relType)
	}

	rows := g.flat.Filter(func(r table.Record) bool {
		return r.Get(TypeColumn) == relType
	})

	return unflatten(
		rows,
		RelationshipColumns(g.schema.RelationshipPropertyKeys(relType)),
		IDColumn, SourceColumn, TargetColumn,
	)
}

// unflatten turns flat rows into a canonical table with the given columns.
// Every column but the structural ones is read from its property column.
func unflatten(rows *table.Table, columns []table.Column, structural ...string) (*table.Table, error) {
	names := make([]string, 0, len(columns))
	mapping := make(map[string]string)

	for _, c := range columns {
		if slices.Contains(structural, c.Name) {
			names = append(names, c.Name)
			continue
		}

		names = append(names, PropertyColumn(c.Name))
		mapping[PropertyColumn(c.Name)] = c.Name
	}

	selected, err := rows.Select(names...)
	if err != nil {
		return nil, err
	}

	renamed, err := selected.Rename(mapping)
	if err != nil {
		return nil, err
	}

	return reshape(renamed, columns)
}

func (g *PatternGraph) Union(other PropertyGraph) (PropertyGraph, error) {
	return union(g, other)
}
