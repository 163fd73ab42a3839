package sql

import (
	"context"
	"fmt"
	"sync"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/Blackdeer1524/GraphCatalog/src"
	"github.com/Blackdeer1524/GraphCatalog/src/pkg/errs"
	"github.com/Blackdeer1524/GraphCatalog/src/storage/datasource"
	"github.com/Blackdeer1524/GraphCatalog/src/storage/datasource/fs"
	"github.com/Blackdeer1524/GraphCatalog/src/storage/ddl"
	"github.com/Blackdeer1524/GraphCatalog/src/storage/graph"
	"github.com/Blackdeer1524/GraphCatalog/src/storage/ident"
	"github.com/Blackdeer1524/GraphCatalog/src/storage/schema"
)

type Config struct {
	// DataSource and Database prefix every table name.
	DataSource string
	Database   string

	Strategy ident.Strategy
	Store    ddl.TableStore

	// DDLPath is the file on Fs holding the mappings of every stored graph.
	Fs      afero.Fs
	DDLPath string

	Logger src.Logger
}

// ddlFile is the persisted side description of the source.
type ddlFile struct {
	Strategy string       `json:"id_strategy"`
	Mappings ddl.Mappings `json:"mappings"`
}

// Source stores graphs into relational tables through the mapping engine.
// Stored graphs can't be deleted.
type Source struct {
	cfg    Config
	engine *ddl.Engine
	log    src.Logger

	mu       sync.RWMutex
	mappings ddl.Mappings
}

var _ datasource.PropertyGraphDataSource = &Source{}

// New opens the source, reading the mappings of previously stored graphs.
// The id strategy can't change once graphs were stored.
func New(cfg Config) (*Source, error) {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop().Sugar()
	}

	if cfg.Strategy == nil {
		cfg.Strategy = ident.SerializedID{}
	}

	s := &Source{
		cfg:      cfg,
		engine:   ddl.NewEngine(cfg.Strategy, cfg.Store, cfg.Logger),
		log:      cfg.Logger,
		mappings: ddl.Mappings{Graphs: map[string]ddl.GraphDdl{}},
	}

	var persisted ddlFile

	ok, err := fs.ReadJSON(cfg.Fs, cfg.DDLPath, &persisted)
	if err != nil {
		return nil, fmt.Errorf("failed to read ddl: %w", err)
	}

	if !ok {
		return s, nil
	}

	if persisted.Strategy != cfg.Strategy.Name() {
		return nil, errs.IllegalArgument(
			"id strategy",
			fmt.Sprintf("graphs of %s were stored with %q, got %q", cfg.DDLPath, persisted.Strategy, cfg.Strategy.Name()),
		)
	}

	if persisted.Mappings.Graphs != nil {
		s.mappings = persisted.Mappings
	}

	s.log.Infow("relational ddl loaded", "path", cfg.DDLPath, "graphs", len(s.mappings.Graphs))

	return s, nil
}

func (s *Source) graphDdl(name string) (ddl.GraphDdl, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.mappings.Graph(name)
	if !ok {
		return ddl.GraphDdl{}, errs.NotFound("graph", name)
	}

	return d, nil
}

func (s *Source) HasGraph(_ context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.mappings.Graph(name)

	return ok, nil
}

func (s *Source) Schema(_ context.Context, name string) (schema.Schema, error) {
	d, err := s.graphDdl(name)
	if err != nil {
		return schema.Schema{}, err
	}

	return d.Schema()
}

// Graph reads the mapped tables on first access.
func (s *Source) Graph(ctx context.Context, name string) (graph.PropertyGraph, error) {
	d, err := s.graphDdl(name)
	if err != nil {
		return nil, err
	}

	expected, err := d.Schema()
	if err != nil {
		return nil, err
	}

	ctx = context.WithoutCancel(ctx)

	return graph.NewLazy(expected, func() (graph.PropertyGraph, error) {
		return s.engine.Load(ctx, d)
	}), nil
}

func (s *Source) Store(ctx context.Context, name string, g graph.PropertyGraph) error {
	return s.StoreWithGraphType(ctx, name, g, nil)
}

// StoreWithGraphType stores g under the declared shape gt. A nil gt is
// derived from g.
func (s *Source) StoreWithGraphType(
	ctx context.Context,
	name string,
	g graph.PropertyGraph,
	gt *schema.GraphType,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.mappings.Graph(name); ok {
		return errs.AlreadyExists("graph", name)
	}

	plan, err := s.engine.Plan(ddl.MapRequest{
		DataSource: s.cfg.DataSource,
		Database:   s.cfg.Database,
		GraphName:  name,
		Graph:      g,
		GraphType:  gt,
	})
	if err != nil {
		return fmt.Errorf("failed to map graph %q: %w", name, err)
	}

	// collisions are detected before any table of another graph is replaced
	mappings, err := s.mappings.Union(ddl.Single(plan.Ddl))
	if err != nil {
		return err
	}

	if err := s.engine.Write(ctx, plan); err != nil {
		return fmt.Errorf("failed to store graph %q: %w", name, err)
	}

	if err := fs.WriteJSON(s.cfg.Fs, s.cfg.DDLPath, ddlFile{
		Strategy: s.cfg.Strategy.Name(),
		Mappings: mappings,
	}); err != nil {
		return fmt.Errorf("failed to persist ddl: %w", err)
	}

	s.mappings = mappings

	return nil
}

// Delete always fails: relational stores are not reversible.
func (s *Source) Delete(_ context.Context, name string) error {
	return errs.Unsupported("delete", name)
}

func (s *Source) GraphNames(context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.mappings.GraphNames(), nil
}
