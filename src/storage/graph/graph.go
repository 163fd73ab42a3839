package graph

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/Blackdeer1524/GraphCatalog/src/pkg/errs"
	"github.com/Blackdeer1524/GraphCatalog/src/storage/schema"
	"github.com/Blackdeer1524/GraphCatalog/src/storage/table"
	"github.com/Blackdeer1524/GraphCatalog/src/storage/token"
)

// Canonical column names of node and relationship tables. Property keys
// must not use them.
const (
	IDColumn     = "id"
	SourceColumn = "source"
	TargetColumn = "target"
)

// PropertyGraph is a schema, a token registry and tabular accessors over the
// elements of one graph. Accessors are side-effect free and safe for
// concurrent use. Union never modifies its operands.
type PropertyGraph interface {
	Schema() schema.Schema
	Tokens() *token.Registry

	// Nodes returns every node whose label combination equals labels (exact)
	// or contains labels. Columns are named through Header.
	Nodes(varName string, labels schema.Labels, exact bool) (*table.Table, error)
	// Relationships returns relationships of the given types, all types if
	// none are given.
	Relationships(varName string, relTypes ...string) (*table.Table, error)

	// NodeTable is the canonical scan of one label combination: the id column
	// followed by one column per property key in key order.
	NodeTable(labels schema.Labels) (*table.Table, error)
	// RelationshipTable is the canonical scan of one relationship type: id,
	// source and target followed by the property columns.
	RelationshipTable(relType string) (*table.Table, error)

	Union(other PropertyGraph) (PropertyGraph, error)
}

// Header derives column names of element projections from a token registry
// so that names only depend on the variable and the token of a string.
type Header struct {
	tokens *token.Registry
}

func NewHeader(tokens *token.Registry) Header {
	return Header{tokens: tokens}
}

func (h Header) ID(varName string) string {
	return varName
}

func (h Header) Label(varName, label string) string {
	return varName + ":l" + strconv.Itoa(int(h.tokens.TokenFor(label)))
}

func (h Header) Property(varName, key string) string {
	return varName + ".p" + strconv.Itoa(int(h.tokens.TokenFor(key)))
}

func (h Header) Source(varName string) string {
	return varName + ".source"
}

func (h Header) Target(varName string) string {
	return varName + ".target"
}

func (h Header) Type(varName string) string {
	return varName + ".type"
}

// SchemaMismatchError is returned by a lazily loaded graph whose content does
// not have the schema it was announced with.
type SchemaMismatchError struct {
	Expected schema.Schema
	Actual   schema.Schema
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("schema mismatch: expected\n%sgot\n%s", e.Expected, e.Actual)
}

func (e *SchemaMismatchError) Unwrap() error {
	return errs.ErrSchemaMismatch
}

func NodeColumns(keys schema.PropertyKeys) []table.Column {
	columns := []table.Column{{Name: IDColumn, Type: schema.Binary}}
	for _, key := range keys.Keys() {
		columns = append(columns, table.Column{Name: key, Type: keys[key]})
	}

	return columns
}

func RelationshipColumns(keys schema.PropertyKeys) []table.Column {
	columns := []table.Column{
		{Name: IDColumn, Type: schema.Binary},
		{Name: SourceColumn, Type: schema.Binary},
		{Name: TargetColumn, Type: schema.Binary},
	}
	for _, key := range keys.Keys() {
		columns = append(columns, table.Column{Name: key, Type: keys[key]})
	}

	return columns
}

// propertyKeysOf reads the property keys of a canonical scan, skipping the
// given structural columns.
func propertyKeysOf(t *table.Table, structural ...string) (schema.PropertyKeys, error) {
	for _, name := range structural {
		c, ok := t.Column(name)
		if !ok {
			return nil, errs.NotFound("column", name)
		}

		if c.Type != schema.Binary {
			return nil, errs.IllegalArgument(name, fmt.Sprintf("expected %s, got %s", schema.Binary, c.Type))
		}
	}

	keys := schema.PropertyKeys{}
	for _, c := range t.Columns() {
		if slices.Contains(structural, c.Name) {
			continue
		}
		keys[c.Name] = c.Type
	}

	return keys, nil
}

// reshape converts t into a table with exactly the given columns. Columns
// absent from t are filled with nulls.
func reshape(t *table.Table, columns []table.Column) (*table.Table, error) {
	return t.Reshape(columns...)
}

func projectNodes(g PropertyGraph, varName string, labels schema.Labels, exact bool) (*table.Table, error) {
	s := g.Schema()
	h := NewHeader(g.Tokens())

	combos := s.CombinationsFor(labels, exact)

	keys, err := s.NodePropertyKeysFor(labels, exact)
	if err != nil {
		return nil, err
	}

	flags := make([]string, 0)
	for _, combo := range combos {
		for _, label := range combo {
			if !slices.Contains(flags, label) {
				flags = append(flags, label)
			}
		}
	}
	slices.Sort(flags)

	columns := []table.Column{{Name: h.ID(varName), Type: schema.Binary}}
	for _, label := range flags {
		columns = append(columns, table.Column{Name: h.Label(varName, label), Type: schema.Boolean})
	}
	for _, key := range keys.Keys() {
		columns = append(columns, table.Column{Name: h.Property(varName, key), Type: keys[key]})
	}

	rows := make([]table.Row, 0)
	for _, combo := range combos {
		scan, err := g.NodeTable(combo)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", combo, err)
		}

		for _, r := range scan.Records() {
			row := make(table.Row, 0, len(columns))
			row = append(row, r.Get(IDColumn))
			for _, label := range flags {
				row = append(row, combo.Contains(label))
			}
			for _, key := range keys.Keys() {
				row = append(row, r.Get(key))
			}
			rows = append(rows, row)
		}
	}

	return table.New(columns, rows...)
}

func projectRelationships(g PropertyGraph, varName string, relTypes []string) (*table.Table, error) {
	s := g.Schema()
	h := NewHeader(g.Tokens())

	if len(relTypes) == 0 {
		relTypes = s.RelationshipTypes()
	}

	present := make([]string, 0, len(relTypes))
	for _, relType := range relTypes {
		if s.HasRelationshipType(relType) && !slices.Contains(present, relType) {
			present = append(present, relType)
		}
	}
	slices.Sort(present)

	keys, err := s.RelationshipPropertyKeysFor(present)
	if err != nil {
		return nil, err
	}

	columns := []table.Column{
		{Name: h.ID(varName), Type: schema.Binary},
		{Name: h.Source(varName), Type: schema.Binary},
		{Name: h.Target(varName), Type: schema.Binary},
		{Name: h.Type(varName), Type: schema.String},
	}
	for _, key := range keys.Keys() {
		columns = append(columns, table.Column{Name: h.Property(varName, key), Type: keys[key]})
	}

	rows := make([]table.Row, 0)
	for _, relType := range present {
		scan, err := g.RelationshipTable(relType)
		if err != nil {
			return nil, fmt.Errorf("failed to scan [:%s]: %w", relType, err)
		}

		for _, r := range scan.Records() {
			row := table.Row{r.Get(IDColumn), r.Get(SourceColumn), r.Get(TargetColumn), relType}
			for _, key := range keys.Keys() {
				row = append(row, r.Get(key))
			}
			rows = append(rows, row)
		}
	}

	return table.New(columns, rows...)
}

// scansOf reads every canonical table of g.
func scansOf(g PropertyGraph) ([]NodeScan, []RelationshipScan, error) {
	if sg, ok := g.(*ScanGraph); ok {
		return sg.nodeScans(), sg.relationshipScans(), nil
	}

	s := g.Schema()

	nodes := make([]NodeScan, 0)
	for _, labels := range s.LabelCombinations() {
		t, err := g.NodeTable(labels)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to scan %s: %w", labels, err)
		}
		nodes = append(nodes, NodeScan{Labels: labels, Table: t})
	}

	rels := make([]RelationshipScan, 0)
	for _, relType := range s.RelationshipTypes() {
		t, err := g.RelationshipTable(relType)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to scan [:%s]: %w", relType, err)
		}
		rels = append(rels, RelationshipScan{Type: relType, Table: t})
	}

	return nodes, rels, nil
}

// union is shared by every graph kind: the result is always a ScanGraph
// over the scans of both operands.
func union(left, right PropertyGraph) (PropertyGraph, error) {
	if isEmpty(right) {
		return left, nil
	}

	if isEmpty(left) {
		return right, nil
	}

	s, err := left.Schema().Union(right.Schema())
	if err != nil {
		return nil, fmt.Errorf("failed to union schemas: %w", err)
	}

	leftNodes, leftRels, err := scansOf(left)
	if err != nil {
		return nil, err
	}

	rightNodes, rightRels, err := scansOf(right)
	if err != nil {
		return nil, err
	}

	return newScanGraph(
		s,
		token.Merge(left.Tokens(), right.Tokens()),
		append(leftNodes, rightNodes...),
		append(leftRels, rightRels...),
	), nil
}
