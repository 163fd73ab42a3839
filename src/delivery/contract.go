package delivery

import (
	"context"

	"github.com/Blackdeer1524/GraphCatalog/src/storage/catalog"
	"github.com/Blackdeer1524/GraphCatalog/src/storage/schema"
)

// Catalog is the read side of catalog.Catalog served over HTTP.
type Catalog interface {
	Namespaces() []catalog.Namespace
	GraphNames(ctx context.Context) ([]catalog.QualifiedGraphName, error)
	Schema(ctx context.Context, qgn catalog.QualifiedGraphName) (schema.Schema, error)
}

var _ Catalog = &catalog.Catalog{}
