package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Blackdeer1524/GraphCatalog/src/pkg/errs"
	"github.com/Blackdeer1524/GraphCatalog/src/storage/graph"
	"github.com/Blackdeer1524/GraphCatalog/src/storage/ident"
)

func sample() *graph.ScanGraph {
	return graph.NewBuilder().
		Node(ident.Long(1), []string{"A"}, map[string]any{"name": "x"}).
		Node(ident.Long(2), []string{"B"}, map[string]any{"name": "y"}).
		Relationship(ident.Long(3), ident.Long(1), ident.Long(2), "R", map[string]any{"since": 2020}).
		MustBuild()
}

func TestSource_RoundTrip(t *testing.T) {
	ctx := context.Background()
	src := New()
	g := sample()

	require.NoError(t, src.Store(ctx, "g", g))

	ok, err := src.HasGraph(ctx, "g")
	require.NoError(t, err)
	require.True(t, ok)

	loaded, err := src.Graph(ctx, "g")
	require.NoError(t, err)
	require.True(t, loaded.Schema().Equal(g.Schema()))

	for _, labels := range g.Schema().LabelCombinations() {
		want, err := g.NodeTable(labels)
		require.NoError(t, err)
		got, err := loaded.NodeTable(labels)
		require.NoError(t, err)
		require.True(t, want.Equal(got))
	}

	s, err := src.Schema(ctx, "g")
	require.NoError(t, err)
	require.True(t, s.Equal(g.Schema()))
}

func TestSource_StoreOverwrites(t *testing.T) {
	ctx := context.Background()
	src := New()

	require.NoError(t, src.Store(ctx, "g", sample()))
	require.NoError(t, src.Store(ctx, "g", graph.Empty()))

	loaded, err := src.Graph(ctx, "g")
	require.NoError(t, err)
	require.True(t, loaded.Schema().IsEmpty())
}

func TestSource_Delete(t *testing.T) {
	ctx := context.Background()
	src := New()

	require.ErrorIs(t, src.Delete(ctx, "missing"), errs.ErrNotFound)

	require.NoError(t, src.Store(ctx, "b", sample()))
	require.NoError(t, src.Store(ctx, "a", sample()))

	names, err := src.GraphNames(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, names)

	require.NoError(t, src.Delete(ctx, "a"))

	_, err = src.Graph(ctx, "a")
	require.ErrorIs(t, err, errs.ErrNotFound)

	_, err = src.Schema(ctx, "a")
	require.ErrorIs(t, err, errs.ErrNotFound)

	names, err = src.GraphNames(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"b"}, names)
}
