package delivery

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/Blackdeer1524/GraphCatalog/src"
	"github.com/Blackdeer1524/GraphCatalog/src/pkg/errs"
	"github.com/Blackdeer1524/GraphCatalog/src/storage/catalog"
	"github.com/Blackdeer1524/GraphCatalog/src/storage/schema"
)

type APIHandler struct {
	Catalog Catalog
	Logger  src.Logger
	// Metrics is served on /metrics when set.
	Metrics http.Handler
}

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type NamespacesResponse struct {
	Namespaces []catalog.Namespace `json:"namespaces"`
}

type GraphsResponse struct {
	Graphs []catalog.QualifiedGraphName `json:"graphs"`
}

type SchemaResponse struct {
	Graph  string        `json:"graph"`
	Schema schema.Schema `json:"schema"`
}

func (h *APIHandler) Router() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/namespaces", h.Namespaces).Methods(http.MethodGet)
	router.HandleFunc("/graphs", h.Graphs).Methods(http.MethodGet)
	router.HandleFunc("/graphs/{namespace}/{graph}/schema", h.Schema).Methods(http.MethodGet)

	if h.Metrics != nil {
		router.Handle("/metrics", h.Metrics).Methods(http.MethodGet)
	}

	return router
}

func (h *APIHandler) Namespaces(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, NamespacesResponse{Namespaces: h.Catalog.Namespaces()})
}

func (h *APIHandler) Graphs(w http.ResponseWriter, r *http.Request) {
	names, err := h.Catalog.GraphNames(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	if names == nil {
		names = []catalog.QualifiedGraphName{}
	}

	h.writeJSON(w, http.StatusOK, GraphsResponse{Graphs: names})
}

func (h *APIHandler) Schema(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	qgn := catalog.NewQualifiedGraphName(catalog.Namespace(vars["namespace"]), vars["graph"])

	sc, err := h.Catalog.Schema(r.Context(), qgn)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, SchemaResponse{Graph: qgn.String(), Schema: sc})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errs.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, errs.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, errs.ErrIllegalArgument):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *APIHandler) writeError(w http.ResponseWriter, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		h.Logger.Error("internal server error", zap.Error(err))
		h.writeJSON(w, status, Error{Code: "500", Message: "Internal Server Error"})

		return
	}

	h.writeJSON(w, status, Error{Code: http.StatusText(status), Message: err.Error()})
}

func (h *APIHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.Logger.Errorf("failed to encode response: %v", err)
	}
}
