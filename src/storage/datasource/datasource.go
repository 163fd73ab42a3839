package datasource

import (
	"context"

	"github.com/Blackdeer1524/GraphCatalog/src/storage/graph"
	"github.com/Blackdeer1524/GraphCatalog/src/storage/schema"
)

// PropertyGraphDataSource is a named collection of graphs behind one
// physical backend. Unknown graph names fail with errs.ErrNotFound.
type PropertyGraphDataSource interface {
	HasGraph(ctx context.Context, name string) (bool, error)
	Graph(ctx context.Context, name string) (graph.PropertyGraph, error)
	// Schema returns the schema of a stored graph without reading its data
	// where the backend allows it.
	Schema(ctx context.Context, name string) (schema.Schema, error)
	Store(ctx context.Context, name string, g graph.PropertyGraph) error
	Delete(ctx context.Context, name string) error
	GraphNames(ctx context.Context) ([]string, error)
}

// Kind names a backend in configuration and logs.
type Kind string

const (
	KindSession    Kind = "session"
	KindFile       Kind = "fs"
	KindRelational Kind = "sql"
)
