package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/Blackdeer1524/GraphCatalog/src/storage/datasource"
	"github.com/Blackdeer1524/GraphCatalog/src/storage/graph"
	"github.com/Blackdeer1524/GraphCatalog/src/storage/schema"
)

type MockDataSource struct {
	mock.Mock
}

var _ datasource.PropertyGraphDataSource = &MockDataSource{}

func (m *MockDataSource) HasGraph(ctx context.Context, name string) (bool, error) {
	args := m.Called(ctx, name)
	return args.Bool(0), args.Error(1)
}

func (m *MockDataSource) Graph(ctx context.Context, name string) (graph.PropertyGraph, error) {
	args := m.Called(ctx, name)

	g, _ := args.Get(0).(graph.PropertyGraph)

	return g, args.Error(1)
}

func (m *MockDataSource) Schema(ctx context.Context, name string) (schema.Schema, error) {
	args := m.Called(ctx, name)
	return args.Get(0).(schema.Schema), args.Error(1)
}

func (m *MockDataSource) Store(ctx context.Context, name string, g graph.PropertyGraph) error {
	args := m.Called(ctx, name, g)
	return args.Error(0)
}

func (m *MockDataSource) Delete(ctx context.Context, name string) error {
	args := m.Called(ctx, name)
	return args.Error(0)
}

func (m *MockDataSource) GraphNames(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)

	names, _ := args.Get(0).([]string)

	return names, args.Error(1)
}
