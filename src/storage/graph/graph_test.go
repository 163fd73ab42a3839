package graph

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Blackdeer1524/GraphCatalog/src/pkg/errs"
	"github.com/Blackdeer1524/GraphCatalog/src/storage/ident"
	"github.com/Blackdeer1524/GraphCatalog/src/storage/schema"
	"github.com/Blackdeer1524/GraphCatalog/src/storage/table"
)

func people() *ScanGraph {
	return NewBuilder().
		Node(ident.Long(1), []string{"Person"}, map[string]any{"name": "alice", "age": 30}).
		Node(ident.Long(2), []string{"Person"}, map[string]any{"name": "bob"}).
		Node(ident.Long(3), []string{"Person", "Employee"}, map[string]any{"name": "carol", "company": "acme"}).
		Relationship(ident.Long(10), ident.Long(1), ident.Long(2), "KNOWS", map[string]any{"since": 2020}).
		MustBuild()
}

func cities() *ScanGraph {
	return NewBuilder().
		Node(ident.Long(100), []string{"City"}, map[string]any{"name": "paris", "population": 2100000}).
		MustBuild()
}

func morepeople() *ScanGraph {
	return NewBuilder().
		Node(ident.Long(4), []string{"Person"}, map[string]any{"name": "dave", "age": 41}).
		Relationship(ident.Long(11), ident.Long(4), ident.Long(1), "KNOWS", nil).
		MustBuild()
}

func TestBuilder_InfersSchema(t *testing.T) {
	s := people().Schema()

	require.Equal(
		t,
		schema.PropertyKeys{"name": schema.String, "age": schema.Integer.AsNullable()},
		s.NodePropertyKeys(schema.NewLabels("Person")),
	)
	require.Equal(
		t,
		schema.PropertyKeys{"name": schema.String, "company": schema.String},
		s.NodePropertyKeys(schema.NewLabels("Employee", "Person")),
	)
	require.Equal(t, schema.PropertyKeys{"since": schema.Integer}, s.RelationshipPropertyKeys("KNOWS"))
}

func TestBuilder_Rejects(t *testing.T) {
	_, err := NewBuilder().
		Node(ident.Long(1), []string{"A"}, map[string]any{"x": 1}).
		Node(ident.Long(2), []string{"A"}, map[string]any{"x": "one"}).
		Build()
	require.ErrorIs(t, err, errs.ErrIllegalArgument)

	_, err = NewBuilder().
		Node(ident.Long(1), []string{"A"}, map[string]any{"id": 1}).
		Build()
	require.ErrorIs(t, err, errs.ErrIllegalArgument)
}

func TestScanGraph_NodeTable(t *testing.T) {
	g := people()

	persons, err := g.NodeTable(schema.NewLabels("Person"))
	require.NoError(t, err)
	require.Equal(t, []string{"id", "age", "name"}, persons.ColumnNames())
	require.Equal(t, 2, persons.NumRows())

	_, err = g.NodeTable(schema.NewLabels("Robot"))
	require.ErrorIs(t, err, errs.ErrNotFound)

	_, err = g.RelationshipTable("LIKES")
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestScanGraph_Nodes(t *testing.T) {
	g := people()
	h := NewHeader(g.Tokens())

	all, err := g.Nodes("n", schema.NewLabels("Person"), false)
	require.NoError(t, err)
	require.Equal(t, 3, all.NumRows())
	require.Equal(
		t,
		[]string{
			h.ID("n"),
			h.Label("n", "Employee"),
			h.Label("n", "Person"),
			h.Property("n", "age"),
			h.Property("n", "company"),
			h.Property("n", "name"),
		},
		all.ColumnNames(),
	)

	name, _ := all.Column(h.Property("n", "name"))
	require.Equal(t, schema.String, name.Type)
	company, _ := all.Column(h.Property("n", "company"))
	require.Equal(t, schema.String.AsNullable(), company.Type)

	employees := all.Filter(func(r table.Record) bool {
		return r.Get(h.Label("n", "Employee")) == true
	})
	require.Equal(t, 1, employees.NumRows())
	require.Equal(t, "carol", employees.Value(0, h.Property("n", "name")))

	exact, err := g.Nodes("n", schema.NewLabels("Person"), true)
	require.NoError(t, err)
	require.Equal(t, 2, exact.NumRows())

	none, err := g.Nodes("n", schema.NewLabels("Robot"), false)
	require.NoError(t, err)
	require.Equal(t, 0, none.NumRows())
	require.Equal(t, []string{"n"}, none.ColumnNames())
}

func TestScanGraph_Relationships(t *testing.T) {
	g := people()
	h := NewHeader(g.Tokens())

	rels, err := g.Relationships("r")
	require.NoError(t, err)
	require.Equal(t, 1, rels.NumRows())
	require.Equal(t, "KNOWS", rels.Value(0, h.Type("r")))
	require.Equal(t, ident.Long(1), rels.Value(0, h.Source("r")))
	require.Equal(t, ident.Long(2), rels.Value(0, h.Target("r")))
	require.Equal(t, int64(2020), rels.Value(0, h.Property("r", "since")))

	unknown, err := g.Relationships("r", "LIKES")
	require.NoError(t, err)
	require.Equal(t, 0, unknown.NumRows())
}

func TestHeader_DeterministicForEqualSchemas(t *testing.T) {
	left, err := people().Nodes("n", nil, false)
	require.NoError(t, err)
	right, err := people().Nodes("n", nil, false)
	require.NoError(t, err)

	require.Equal(t, left.ColumnNames(), right.ColumnNames())
}

func TestUnion_EmptyIsIdentity(t *testing.T) {
	g := people()

	res, err := g.Union(Empty())
	require.NoError(t, err)
	require.Same(t, g, res)

	res, err = Empty().Union(g)
	require.NoError(t, err)
	require.Same(t, g, res)

	res, err = Empty().Union(Empty())
	require.NoError(t, err)
	require.True(t, res.Schema().IsEmpty())
}

func TestUnion_SchemaCommutativeAndAssociative(t *testing.T) {
	a, b, c := people(), cities(), morepeople()

	ab, err := a.Union(b)
	require.NoError(t, err)
	ba, err := b.Union(a)
	require.NoError(t, err)
	require.True(t, ab.Schema().Equal(ba.Schema()))

	abc1, err := ab.Union(c)
	require.NoError(t, err)

	bc, err := b.Union(c)
	require.NoError(t, err)
	abc2, err := a.Union(bc)
	require.NoError(t, err)

	require.True(t, abc1.Schema().Equal(abc2.Schema()))
}

func TestUnion_MergesScans(t *testing.T) {
	a, c := people(), morepeople()

	res, err := a.Union(c)
	require.NoError(t, err)

	sg, ok := res.(*ScanGraph)
	require.True(t, ok)
	require.Equal(t, 2, sg.ScanCount(schema.NewLabels("Person")))

	persons, err := res.NodeTable(schema.NewLabels("Person"))
	require.NoError(t, err)
	require.Equal(t, 3, persons.NumRows())

	knows, err := res.RelationshipTable("KNOWS")
	require.NoError(t, err)
	require.Equal(t, 2, knows.NumRows())
	since, _ := knows.Column("since")
	require.Equal(t, schema.Integer.AsNullable(), since.Type)

	// operands are untouched
	require.Equal(t, 1, a.ScanCount(schema.NewLabels("Person")))
	require.Equal(t, schema.Integer, a.Schema().RelationshipPropertyKeys("KNOWS")["since"])
}

func TestUnion_Conflict(t *testing.T) {
	other := NewBuilder().
		Node(ident.Long(9), []string{"Person"}, map[string]any{"name": 42}).
		MustBuild()

	_, err := people().Union(other)
	require.ErrorIs(t, err, errs.ErrSchemaConflict)

	var conflict *schema.SchemaConflictError
	require.True(t, errors.As(err, &conflict))
	require.Equal(t, "name", conflict.Property)
}

func TestNewScanGraph_InvalidScan(t *testing.T) {
	noID := table.MustNew([]table.Column{{Name: "name", Type: schema.String}})

	_, err := NewScanGraph([]NodeScan{{Labels: schema.NewLabels("A"), Table: noID}}, nil)
	require.ErrorIs(t, err, errs.ErrNotFound)

	wrongID := table.MustNew([]table.Column{{Name: "id", Type: schema.Integer}})
	_, err = NewScanGraph([]NodeScan{{Labels: schema.NewLabels("A"), Table: wrongID}}, nil)
	require.ErrorIs(t, err, errs.ErrIllegalArgument)
}

func TestFlatten_SameProjections(t *testing.T) {
	g := people()

	p, err := Flatten(g)
	require.NoError(t, err)
	require.True(t, p.Schema().Equal(g.Schema()))
	require.Equal(t, 4, p.Flat().NumRows())

	for _, labels := range g.Schema().LabelCombinations() {
		want, err := g.NodeTable(labels)
		require.NoError(t, err)
		got, err := p.NodeTable(labels)
		require.NoError(t, err)
		require.True(t, want.Equal(got), "combination %s", labels)
	}

	want, err := g.RelationshipTable("KNOWS")
	require.NoError(t, err)
	got, err := p.RelationshipTable("KNOWS")
	require.NoError(t, err)
	require.True(t, want.Equal(got))

	wantNodes, err := g.Nodes("n", nil, false)
	require.NoError(t, err)
	gotNodes, err := p.Nodes("n", nil, false)
	require.NoError(t, err)
	require.True(t, wantNodes.Equal(gotNodes))
}

func TestFlatten_PropertyNamedLikeStructuralColumn(t *testing.T) {
	g := NewBuilder().
		Node(ident.Long(1), []string{"Car"}, map[string]any{"type": "sedan"}).
		Node(ident.Long(2), []string{"Car"}, map[string]any{"type": "coupe"}).
		Relationship(ident.Long(3), ident.Long(1), ident.Long(2), "TOWS", map[string]any{"type": "rope"}).
		MustBuild()

	p, err := Flatten(g)
	require.NoError(t, err)
	require.Equal(t, 3, p.Flat().NumRows())

	want, err := g.NodeTable(schema.NewLabels("Car"))
	require.NoError(t, err)
	got, err := p.NodeTable(schema.NewLabels("Car"))
	require.NoError(t, err)
	require.True(t, want.Equal(got), "got %s", got)

	want, err = g.RelationshipTable("TOWS")
	require.NoError(t, err)
	got, err = p.RelationshipTable("TOWS")
	require.NoError(t, err)
	require.True(t, want.Equal(got), "got %s", got)
	require.Equal(t, "rope", got.Value(0, "type"))
}

func TestPatternGraph_Union(t *testing.T) {
	p, err := Flatten(people())
	require.NoError(t, err)

	res, err := p.Union(cities())
	require.NoError(t, err)
	require.True(t, res.Schema().HasNodeType(schema.NewLabels("City")))

	persons, err := res.NodeTable(schema.NewLabels("Person"))
	require.NoError(t, err)
	require.Equal(t, 2, persons.NumRows())
}

func TestNewPatternGraph_MissingColumn(t *testing.T) {
	flat := table.MustNew([]table.Column{{Name: IDColumn, Type: schema.Binary}})

	_, err := NewPatternGraph(flat, people().Schema())
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestLazyGraph_LoadsExactlyOnce(t *testing.T) {
	g := people()

	var loads atomic.Int32
	lazy := NewLazy(g.Schema(), func() (PropertyGraph, error) {
		loads.Add(1)
		return g, nil
	})

	require.True(t, lazy.Schema().Equal(g.Schema()))
	require.Equal(t, int32(0), loads.Load())

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			nodes, err := lazy.Nodes("n", schema.NewLabels("Person"), false)
			if assert.NoError(t, err) {
				assert.Equal(t, 3, nodes.NumRows())
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), loads.Load())
}

func TestLazyGraph_SchemaMismatch(t *testing.T) {
	var loads atomic.Int32
	lazy := NewLazy(people().Schema(), func() (PropertyGraph, error) {
		loads.Add(1)
		return cities(), nil
	})

	_, err := lazy.Nodes("n", nil, false)
	require.ErrorIs(t, err, errs.ErrSchemaMismatch)

	var mismatch *SchemaMismatchError
	require.True(t, errors.As(err, &mismatch))
	require.True(t, mismatch.Expected.Equal(people().Schema()))
	require.True(t, mismatch.Actual.Equal(cities().Schema()))

	_, err = lazy.RelationshipTable("KNOWS")
	require.ErrorIs(t, err, errs.ErrSchemaMismatch)
	require.Equal(t, int32(1), loads.Load())
}

func TestLazyGraph_LoadError(t *testing.T) {
	boom := errors.New("boom")
	lazy := NewLazy(schema.Empty, func() (PropertyGraph, error) {
		return nil, boom
	})

	_, err := lazy.Load()
	require.ErrorIs(t, err, boom)

	res, err := lazy.Union(Empty())
	require.NoError(t, err)
	require.Same(t, lazy, res)
}
