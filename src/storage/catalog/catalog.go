package catalog

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Blackdeer1524/GraphCatalog/src"
	"github.com/Blackdeer1524/GraphCatalog/src/metrics"
	"github.com/Blackdeer1524/GraphCatalog/src/pkg/errs"
	"github.com/Blackdeer1524/GraphCatalog/src/storage/datasource"
	"github.com/Blackdeer1524/GraphCatalog/src/storage/datasource/session"
	"github.com/Blackdeer1524/GraphCatalog/src/storage/graph"
	"github.com/Blackdeer1524/GraphCatalog/src/storage/schema"
)

type sources = map[Namespace]datasource.PropertyGraphDataSource

// Catalog maps namespaces to data sources. Readers load the current map
// without locking; writers replace the whole map under mu.
type Catalog struct {
	current atomic.Pointer[sources]
	mu      sync.Mutex

	log     src.Logger
	metrics *metrics.Metrics
}

type Option func(*Catalog)

func WithLogger(log src.Logger) Option {
	return func(c *Catalog) {
		c.log = log
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Catalog) {
		c.metrics = m
	}
}

// WithSession replaces the in-memory source backing the session namespace.
func WithSession(ds datasource.PropertyGraphDataSource) Option {
	return func(c *Catalog) {
		c.swap(func(m sources) { m[SessionNamespace] = ds })
	}
}

func New(opts ...Option) *Catalog {
	c := &Catalog{log: zap.NewNop().Sugar()}

	initial := sources{SessionNamespace: session.New()}
	c.current.Store(&initial)

	for _, opt := range opts {
		opt(c)
	}

	c.observeNamespaces()

	return c
}

func (c *Catalog) snapshot() sources {
	return *c.current.Load()
}

// swap needs mu before calling
func (c *Catalog) swap(mutate func(sources)) {
	next := maps.Clone(c.snapshot())
	mutate(next)
	c.current.Store(&next)
}

func (c *Catalog) observe(op string, ns Namespace, err error) {
	if c.metrics != nil {
		c.metrics.ObserveOperation(op, string(ns), err)
	}
}

func (c *Catalog) observeNamespaces() {
	if c.metrics != nil {
		c.metrics.SetNamespaces(len(c.snapshot()))
	}
}

func (c *Catalog) Namespaces() []Namespace {
	return slices.Sorted(maps.Keys(c.snapshot()))
}

func (c *Catalog) Source(ns Namespace) (datasource.PropertyGraphDataSource, error) {
	ds, ok := c.snapshot()[ns]
	if !ok {
		return nil, errs.NotFound("namespace", string(ns))
	}

	return ds, nil
}

func (c *Catalog) Register(ns Namespace, ds datasource.PropertyGraphDataSource) (err error) {
	defer func() { c.observe("register", ns, err) }()

	if ns == "" {
		return errs.IllegalArgument("namespace", "must not be empty")
	}

	if ds == nil {
		return errs.IllegalArgument("data source", "must not be nil")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.snapshot()[ns]; ok {
		return errs.AlreadyExists("namespace", string(ns))
	}

	c.swap(func(m sources) { m[ns] = ds })
	c.observeNamespaces()
	c.log.Infow("namespace registered", "namespace", ns)

	return nil
}

func (c *Catalog) Deregister(ns Namespace) (err error) {
	defer func() { c.observe("deregister", ns, err) }()

	if ns == SessionNamespace {
		return errs.Forbidden("deregister", string(ns))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.snapshot()[ns]; !ok {
		return errs.NotFound("namespace", string(ns))
	}

	c.swap(func(m sources) { delete(m, ns) })
	c.observeNamespaces()
	c.log.Infow("namespace deregistered", "namespace", ns)

	return nil
}

// GraphNames lists the graphs of every registered source, sorted by
// namespace and then by name.
func (c *Catalog) GraphNames(ctx context.Context) ([]QualifiedGraphName, error) {
	current := c.snapshot()

	var names []QualifiedGraphName
	for _, ns := range slices.Sorted(maps.Keys(current)) {
		graphNames, err := current[ns].GraphNames(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list graphs of namespace %q: %w", ns, err)
		}

		for _, name := range graphNames {
			names = append(names, NewQualifiedGraphName(ns, name))
		}
	}

	slices.SortFunc(names, compareQualified)

	return names, nil
}

func (c *Catalog) HasGraph(ctx context.Context, qgn QualifiedGraphName) (bool, error) {
	ds, err := c.Source(qgn.Namespace)
	if err != nil {
		return false, err
	}

	return ds.HasGraph(ctx, qgn.GraphName)
}

func (c *Catalog) Graph(ctx context.Context, qgn QualifiedGraphName) (g graph.PropertyGraph, err error) {
	defer func() { c.observe("graph", qgn.Namespace, err) }()

	ds, err := c.Source(qgn.Namespace)
	if err != nil {
		return nil, err
	}

	return ds.Graph(ctx, qgn.GraphName)
}

func (c *Catalog) Schema(ctx context.Context, qgn QualifiedGraphName) (schema.Schema, error) {
	ds, err := c.Source(qgn.Namespace)
	if err != nil {
		return schema.Schema{}, err
	}

	return ds.Schema(ctx, qgn.GraphName)
}

func (c *Catalog) Store(ctx context.Context, qgn QualifiedGraphName, g graph.PropertyGraph) (err error) {
	defer func() { c.observe("store", qgn.Namespace, err) }()

	c.mu.Lock()
	defer c.mu.Unlock()

	ds, err := c.Source(qgn.Namespace)
	if err != nil {
		return err
	}

	start := time.Now()

	if err := ds.Store(ctx, qgn.GraphName, g); err != nil {
		c.log.Warnw("failed to store graph", "graph", qgn.String(), "error", err)
		return fmt.Errorf("failed to store graph %s: %w", qgn, err)
	}

	if c.metrics != nil {
		c.metrics.ObserveStore(string(qgn.Namespace), time.Since(start))
	}

	c.log.Infow("graph stored", "graph", qgn.String(), "took", time.Since(start))

	return nil
}

func (c *Catalog) Delete(ctx context.Context, qgn QualifiedGraphName) (err error) {
	defer func() { c.observe("delete", qgn.Namespace, err) }()

	c.mu.Lock()
	defer c.mu.Unlock()

	ds, err := c.Source(qgn.Namespace)
	if err != nil {
		return err
	}

	if err := ds.Delete(ctx, qgn.GraphName); err != nil {
		return fmt.Errorf("failed to delete graph %s: %w", qgn, err)
	}

	c.log.Infow("graph deleted", "graph", qgn.String())

	return nil
}
