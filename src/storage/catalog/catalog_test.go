package catalog_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Blackdeer1524/GraphCatalog/src/metrics"
	"github.com/Blackdeer1524/GraphCatalog/src/pkg/errs"
	"github.com/Blackdeer1524/GraphCatalog/src/storage/catalog"
	"github.com/Blackdeer1524/GraphCatalog/src/storage/datasource/fs"
	"github.com/Blackdeer1524/GraphCatalog/src/storage/datasource/mocks"
	"github.com/Blackdeer1524/GraphCatalog/src/storage/datasource/session"
	"github.com/Blackdeer1524/GraphCatalog/src/storage/datasource/sql"
	"github.com/Blackdeer1524/GraphCatalog/src/storage/graph"
	"github.com/Blackdeer1524/GraphCatalog/src/storage/ident"
	"github.com/Blackdeer1524/GraphCatalog/src/storage/schema"
)

func TestParseQualifiedGraphName(t *testing.T) {
	qgn, err := catalog.ParseQualifiedGraphName("warehouse.social.v2")
	require.NoError(t, err)
	require.Equal(t, catalog.NewQualifiedGraphName("warehouse", "social.v2"), qgn)
	require.Equal(t, "warehouse.social.v2", qgn.String())

	qgn, err = catalog.ParseQualifiedGraphName("scratch")
	require.NoError(t, err)
	require.Equal(t, catalog.NewQualifiedGraphName(catalog.SessionNamespace, "scratch"), qgn)

	for _, bad := range []string{"", ".g", "ns."} {
		_, err := catalog.ParseQualifiedGraphName(bad)
		require.ErrorIs(t, err, errs.ErrIllegalArgument, bad)
	}
}

func TestCatalog_SessionNamespaceInvariant(t *testing.T) {
	c := catalog.New()

	require.Equal(t, []catalog.Namespace{catalog.SessionNamespace}, c.Namespaces())

	err := c.Deregister(catalog.SessionNamespace)
	require.ErrorIs(t, err, errs.ErrForbidden)

	var forbidden *errs.ForbiddenError
	require.True(t, errors.As(err, &forbidden))

	require.NoError(t, c.Register("fs", session.New()))
	require.ErrorIs(t, c.Deregister(catalog.SessionNamespace), errs.ErrForbidden)
	require.Equal(t, []catalog.Namespace{"fs", catalog.SessionNamespace}, c.Namespaces())
}

func TestCatalog_RegisterDeregister(t *testing.T) {
	c := catalog.New()

	_, err := c.Source("warehouse")
	require.ErrorIs(t, err, errs.ErrNotFound)

	ds := session.New()
	require.NoError(t, c.Register("warehouse", ds))

	got, err := c.Source("warehouse")
	require.NoError(t, err)
	require.Same(t, ds, got)

	require.ErrorIs(t, c.Register("warehouse", session.New()), errs.ErrAlreadyExists)
	require.ErrorIs(t, c.Register(catalog.SessionNamespace, session.New()), errs.ErrAlreadyExists)
	require.ErrorIs(t, c.Register("", session.New()), errs.ErrIllegalArgument)

	require.NoError(t, c.Deregister("warehouse"))
	require.ErrorIs(t, c.Deregister("warehouse"), errs.ErrNotFound)

	_, err = c.Source("warehouse")
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestCatalog_DelegatesToSource(t *testing.T) {
	ctx := context.Background()
	ds := &mocks.MockDataSource{}
	g := graph.Sample()

	ds.On("Store", mock.Anything, "sample", g).Return(nil).Once()
	ds.On("Graph", mock.Anything, "sample").Return(g, nil).Once()
	ds.On("Graph", mock.Anything, "missing").Return(nil, errs.NotFound("graph", "missing")).Once()
	ds.On("Delete", mock.Anything, "sample").Return(errs.Unsupported("delete", "sample")).Once()
	ds.On("GraphNames", mock.Anything).Return([]string{"sample"}, nil)

	c := catalog.New()
	require.NoError(t, c.Register("mock", ds))

	qgn := catalog.NewQualifiedGraphName("mock", "sample")
	require.NoError(t, c.Store(ctx, qgn, g))

	got, err := c.Graph(ctx, qgn)
	require.NoError(t, err)
	require.Same(t, g, got)

	_, err = c.Graph(ctx, catalog.NewQualifiedGraphName("mock", "missing"))
	require.ErrorIs(t, err, errs.ErrNotFound)

	err = c.Delete(ctx, qgn)
	require.ErrorIs(t, err, errs.ErrForbidden)
	require.ErrorIs(t, err, errs.ErrUnsupportedOperation)

	_, err = c.Graph(ctx, catalog.NewQualifiedGraphName("nowhere", "sample"))
	require.ErrorIs(t, err, errs.ErrNotFound)

	ds.AssertExpectations(t)
}

func TestCatalog_GraphNames(t *testing.T) {
	ctx := context.Background()
	c := catalog.New()

	require.NoError(t, c.Register("files", fs.New(afero.NewMemMapFs(), "/graphs", fs.CSVFormat{})))

	require.NoError(t, c.Store(ctx, catalog.NewQualifiedGraphName(catalog.SessionNamespace, "b"), graph.Sample()))
	require.NoError(t, c.Store(ctx, catalog.NewQualifiedGraphName(catalog.SessionNamespace, "a"), graph.Sample()))
	require.NoError(t, c.Store(ctx, catalog.NewQualifiedGraphName("files", "sample"), graph.Sample()))

	names, err := c.GraphNames(ctx)
	require.NoError(t, err)
	require.Equal(t, []catalog.QualifiedGraphName{
		catalog.NewQualifiedGraphName("files", "sample"),
		catalog.NewQualifiedGraphName(catalog.SessionNamespace, "a"),
		catalog.NewQualifiedGraphName(catalog.SessionNamespace, "b"),
	}, names)

	ok, err := c.HasGraph(ctx, catalog.NewQualifiedGraphName("files", "sample"))
	require.NoError(t, err)
	require.True(t, ok)

	sc, err := c.Schema(ctx, catalog.NewQualifiedGraphName("files", "sample"))
	require.NoError(t, err)
	require.True(t, sc.Equal(graph.Sample().Schema()))

	require.NoError(t, c.Delete(ctx, catalog.NewQualifiedGraphName(catalog.SessionNamespace, "a")))

	names, err = c.GraphNames(ctx)
	require.NoError(t, err)
	require.Len(t, names, 2)
}

func TestCatalog_GraphNamesFailure(t *testing.T) {
	ds := &mocks.MockDataSource{}
	ds.On("GraphNames", mock.Anything).Return(nil, errors.New("connection reset"))

	c := catalog.New()
	require.NoError(t, c.Register("broken", ds))

	_, err := c.GraphNames(context.Background())
	require.ErrorContains(t, err, "connection reset")
}

func TestCatalog_ConcurrentReaders(t *testing.T) {
	c := catalog.New()

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()

			ns := catalog.Namespace(string(rune('a' + i)))
			assert.NoError(t, c.Register(ns, session.New()))

			for range 100 {
				namespaces := c.Namespaces()
				assert.Contains(t, namespaces, catalog.SessionNamespace)
				assert.Contains(t, namespaces, ns)
			}

			assert.NoError(t, c.Deregister(ns))
		}()
	}
	wg.Wait()

	require.Equal(t, []catalog.Namespace{catalog.SessionNamespace}, c.Namespaces())
}

func TestCatalog_Metrics(t *testing.T) {
	ctx := context.Background()
	m := metrics.New()
	c := catalog.New(catalog.WithMetrics(m))

	require.NoError(t, c.Register("other", session.New()))
	require.NoError(t, c.Store(ctx, catalog.NewQualifiedGraphName("other", "g"), graph.Sample()))
	require.Error(t, c.Delete(ctx, catalog.NewQualifiedGraphName("other", "missing")))
	require.Error(t, c.Deregister(catalog.SessionNamespace))

	ops := m.Operations()
	require.Equal(t, 1.0, testutil.ToFloat64(ops.WithLabelValues("register", "other", metrics.OutcomeOK)))
	require.Equal(t, 1.0, testutil.ToFloat64(ops.WithLabelValues("store", "other", metrics.OutcomeOK)))
	require.Equal(t, 1.0, testutil.ToFloat64(ops.WithLabelValues("delete", "other", metrics.OutcomeNotFound)))
	require.Equal(t, 1.0, testutil.ToFloat64(
		ops.WithLabelValues("deregister", string(catalog.SessionNamespace), metrics.OutcomeForbidden),
	))
}

func TestCatalog_RelationalEndToEnd(t *testing.T) {
	ctx := context.Background()

	store, err := sql.OpenSQLite(ctx, filepath.Join(t.TempDir(), "graphs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ds, err := sql.New(sql.Config{
		DataSource: "warehouse",
		Database:   "db",
		Strategy:   ident.SerializedID{},
		Store:      store,
		Fs:         afero.NewMemMapFs(),
		DDLPath:    "/ddl/ddl.json",
	})
	require.NoError(t, err)

	c := catalog.New()
	require.NoError(t, c.Register("warehouse", ds))

	qgn := catalog.NewQualifiedGraphName("warehouse", "sample")
	require.NoError(t, c.Store(ctx, qgn, graph.Sample()))

	loaded, err := c.Graph(ctx, qgn)
	require.NoError(t, err)

	names := make(map[string]any)
	for _, labels := range loaded.Schema().LabelCombinations() {
		nodes, err := loaded.NodeTable(labels)
		require.NoError(t, err)

		for _, rec := range nodes.Records() {
			names[string(rec.Get(graph.IDColumn).([]byte))] = rec.Get("name")
		}
	}

	rels, err := loaded.RelationshipTable("R")
	require.NoError(t, err)
	require.Equal(t, 1, rels.NumRows())

	rel := rels.Records()[0]
	require.Equal(t, "x", names[string(rel.Get(graph.SourceColumn).([]byte))])
	require.Equal(t, "y", names[string(rel.Get(graph.TargetColumn).([]byte))])
	require.True(t, loaded.Schema().HasNodeType(schema.NewLabels("A")))

	require.ErrorIs(t, c.Delete(ctx, qgn), errs.ErrForbidden)
	require.ErrorIs(t, c.Store(ctx, qgn, graph.Sample()), errs.ErrAlreadyExists)
}
