package app

import (
	"net/http"

	"github.com/Blackdeer1524/GraphCatalog/src"
	"github.com/Blackdeer1524/GraphCatalog/src/delivery"
)

func newRouter(stack *Stack, log src.Logger) http.Handler {
	handler := &delivery.APIHandler{
		Catalog: stack.Catalog,
		Logger:  log,
		Metrics: stack.Metrics.Handler(),
	}

	return handler.Router()
}
