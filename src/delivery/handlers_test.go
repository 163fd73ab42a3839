package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Blackdeer1524/GraphCatalog/src/metrics"
	"github.com/Blackdeer1524/GraphCatalog/src/storage/catalog"
	"github.com/Blackdeer1524/GraphCatalog/src/storage/datasource/mocks"
	"github.com/Blackdeer1524/GraphCatalog/src/storage/graph"
)

func newHandler(t *testing.T) (*APIHandler, *catalog.Catalog) {
	m := metrics.New()
	c := catalog.New(catalog.WithMetrics(m))

	require.NoError(t, c.Store(
		context.Background(),
		catalog.NewQualifiedGraphName(catalog.SessionNamespace, "sample"),
		graph.Sample(),
	))

	return &APIHandler{Catalog: c, Logger: zap.NewNop().Sugar(), Metrics: m.Handler()}, c
}

func serve(t *testing.T, h http.Handler, path string, dst any) int {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	if dst != nil {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst), rec.Body.String())
	}

	return rec.Code
}

func TestAPIHandler_Namespaces(t *testing.T) {
	h, _ := newHandler(t)

	var resp NamespacesResponse
	require.Equal(t, http.StatusOK, serve(t, h.Router(), "/namespaces", &resp))
	require.Equal(t, []catalog.Namespace{catalog.SessionNamespace}, resp.Namespaces)
}

func TestAPIHandler_Graphs(t *testing.T) {
	h, _ := newHandler(t)

	var resp GraphsResponse
	require.Equal(t, http.StatusOK, serve(t, h.Router(), "/graphs", &resp))
	require.Equal(t, []catalog.QualifiedGraphName{
		catalog.NewQualifiedGraphName(catalog.SessionNamespace, "sample"),
	}, resp.Graphs)
}

func TestAPIHandler_Schema(t *testing.T) {
	h, _ := newHandler(t)

	var resp SchemaResponse
	require.Equal(t, http.StatusOK, serve(t, h.Router(), "/graphs/session/sample/schema", &resp))
	require.Equal(t, "session.sample", resp.Graph)
	require.True(t, resp.Schema.Equal(graph.Sample().Schema()))

	var apiErr Error
	require.Equal(t, http.StatusNotFound, serve(t, h.Router(), "/graphs/session/missing/schema", &apiErr))
	require.Contains(t, apiErr.Message, "missing")

	require.Equal(t, http.StatusNotFound, serve(t, h.Router(), "/graphs/nowhere/sample/schema", &apiErr))
}

func TestAPIHandler_InternalError(t *testing.T) {
	h, c := newHandler(t)

	ds := &mocks.MockDataSource{}
	ds.On("GraphNames", mock.Anything).Return(nil, errors.New("disk unplugged"))
	require.NoError(t, c.Register("broken", ds))

	var apiErr Error
	require.Equal(t, http.StatusInternalServerError, serve(t, h.Router(), "/graphs", &apiErr))
	require.Equal(t, "Internal Server Error", apiErr.Message)
}

func TestAPIHandler_Metrics(t *testing.T) {
	h, _ := newHandler(t)

	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "graphcat_catalog_operations_total")
}
