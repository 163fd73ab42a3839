package session

import (
	"context"
	"sync"

	"github.com/Blackdeer1524/GraphCatalog/src/pkg/errs"
	"github.com/Blackdeer1524/GraphCatalog/src/pkg/utils"
	"github.com/Blackdeer1524/GraphCatalog/src/storage/datasource"
	"github.com/Blackdeer1524/GraphCatalog/src/storage/graph"
	"github.com/Blackdeer1524/GraphCatalog/src/storage/schema"
)

// Source keeps graphs in memory for the lifetime of the process. Storing an
// existing name replaces the graph.
type Source struct {
	mu     sync.RWMutex
	graphs map[string]graph.PropertyGraph
}

var _ datasource.PropertyGraphDataSource = &Source{}

func New() *Source {
	return &Source{graphs: make(map[string]graph.PropertyGraph)}
}

func (s *Source) HasGraph(_ context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.graphs[name]

	return ok, nil
}

func (s *Source) Graph(_ context.Context, name string) (graph.PropertyGraph, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.graphs[name]
	if !ok {
		return nil, errs.NotFound("graph", name)
	}

	return g, nil
}

func (s *Source) Schema(ctx context.Context, name string) (schema.Schema, error) {
	g, err := s.Graph(ctx, name)
	if err != nil {
		return schema.Schema{}, err
	}

	return g.Schema(), nil
}

func (s *Source) Store(_ context.Context, name string, g graph.PropertyGraph) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.graphs[name] = g

	return nil
}

func (s *Source) Delete(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.graphs[name]; !ok {
		return errs.NotFound("graph", name)
	}

	delete(s.graphs, name)

	return nil
}

func (s *Source) GraphNames(context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return utils.SortedKeys(s.graphs), nil
}
