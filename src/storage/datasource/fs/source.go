package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"go.uber.org/zap"

	"github.com/Blackdeer1524/GraphCatalog/src"
	"github.com/Blackdeer1524/GraphCatalog/src/pkg/errs"
	"github.com/Blackdeer1524/GraphCatalog/src/storage/datasource"
	"github.com/Blackdeer1524/GraphCatalog/src/storage/graph"
	"github.com/Blackdeer1524/GraphCatalog/src/storage/schema"
	"github.com/Blackdeer1524/GraphCatalog/src/storage/table"
)

const (
	metadataFile     = "schema.json"
	nodesDir         = "nodes"
	relationshipsDir = "relationships"

	defaultParallelism = 4
)

type tableEntry struct {
	Labels schema.Labels `json:"labels,omitempty"`
	Type   string        `json:"type,omitempty"`
	File   string        `json:"file"`
	Rows   int           `json:"rows"`
}

// metadata is written after every table of the graph, so its presence marks
// a completely stored graph.
type metadata struct {
	Format        string        `json:"format"`
	Schema        schema.Schema `json:"schema"`
	Nodes         []tableEntry  `json:"nodes"`
	Relationships []tableEntry  `json:"relationships"`
}

// Source stores every graph in its own directory under root, one file per
// label combination and per relationship type.
type Source struct {
	fs          afero.Fs
	root        string
	format      Format
	parallelism int
	log         src.Logger

	// serializes Store and Delete
	mu    sync.Mutex
	loads singleflight.Group
}

var _ datasource.PropertyGraphDataSource = &Source{}

type Option func(*Source)

func WithParallelism(n int) Option {
	return func(s *Source) {
		if n > 0 {
			s.parallelism = n
		}
	}
}

func WithLogger(log src.Logger) Option {
	return func(s *Source) {
		s.log = log
	}
}

func New(fsys afero.Fs, root string, format Format, opts ...Option) *Source {
	s := &Source{
		fs:          fsys,
		root:        root,
		format:      format,
		parallelism: defaultParallelism,
		log:         zap.NewNop().Sugar(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func validateName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return errs.IllegalArgument("graph name", fmt.Sprintf("%q can not be used as a directory name", name))
	}

	return nil
}

func (s *Source) graphDir(name string) string {
	return filepath.Join(s.root, name)
}

func (s *Source) metadataPath(name string) string {
	return filepath.Join(s.graphDir(name), metadataFile)
}

// escapeFileName keeps distinct labels distinct after joining with "_".
func escapeFileName(part string) string {
	return strings.ReplaceAll(url.PathEscape(part), "_", "%5F")
}

func nodeFileName(labels schema.Labels, ext string) string {
	parts := make([]string, 0, len(labels))
	for _, label := range labels {
		parts = append(parts, escapeFileName(label))
	}

	name := strings.Join(parts, "_")
	if name == "" {
		name = "_"
	}

	return filepath.Join(nodesDir, name+ext)
}

func relationshipFileName(relType, ext string) string {
	return filepath.Join(relationshipsDir, escapeFileName(relType)+ext)
}

func (s *Source) readMetadata(name string) (metadata, error) {
	if err := validateName(name); err != nil {
		return metadata{}, err
	}

	var meta metadata

	ok, err := ReadJSON(s.fs, s.metadataPath(name), &meta)
	if err != nil {
		return metadata{}, err
	}

	if !ok {
		return metadata{}, errs.NotFound("graph", name)
	}

	return meta, nil
}

func (s *Source) HasGraph(_ context.Context, name string) (bool, error) {
	if err := validateName(name); err != nil {
		return false, err
	}

	return isFileExists(s.fs, s.metadataPath(name))
}

func (s *Source) Schema(_ context.Context, name string) (schema.Schema, error) {
	meta, err := s.readMetadata(name)
	if err != nil {
		return schema.Schema{}, err
	}

	return meta.Schema, nil
}

// Graph returns a lazily loaded graph. Concurrent loads of one graph share a
// single read.
func (s *Source) Graph(ctx context.Context, name string) (graph.PropertyGraph, error) {
	meta, err := s.readMetadata(name)
	if err != nil {
		return nil, err
	}

	ctx = context.WithoutCancel(ctx)

	return graph.NewLazy(meta.Schema, func() (graph.PropertyGraph, error) {
		g, err, shared := s.loads.Do(name, func() (any, error) {
			return s.load(ctx, name, meta)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to load graph %q: %w", name, err)
		}

		if shared {
			s.log.Debugf("graph %q load shared with a concurrent caller", name)
		}

		return g.(graph.PropertyGraph), nil
	}), nil
}

func (s *Source) load(ctx context.Context, name string, meta metadata) (*graph.ScanGraph, error) {
	format, err := FormatByName(meta.Format)
	if err != nil {
		return nil, err
	}

	dir := s.graphDir(name)

	nodes := make([]graph.NodeScan, len(meta.Nodes))
	rels := make([]graph.RelationshipScan, len(meta.Relationships))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(s.parallelism)

	for i, entry := range meta.Nodes {
		eg.Go(func() error {
			columns := graph.NodeColumns(meta.Schema.NodePropertyKeys(entry.Labels))

			t, err := s.readTable(ctx, format, filepath.Join(dir, entry.File), columns)
			if err != nil {
				return err
			}

			nodes[i] = graph.NodeScan{Labels: entry.Labels, Table: t}

			return nil
		})
	}

	for i, entry := range meta.Relationships {
		eg.Go(func() error {
			columns := graph.RelationshipColumns(meta.Schema.RelationshipPropertyKeys(entry.Type))

			t, err := s.readTable(ctx, format, filepath.Join(dir, entry.File), columns)
			if err != nil {
				return err
			}

			rels[i] = graph.RelationshipScan{Type: entry.Type, Table: t}

			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	s.log.Infow("graph loaded", "graph", name, "nodeTables", len(nodes), "relationshipTables", len(rels))

	return graph.NewScanGraph(nodes, rels)
}

func (s *Source) readTable(
	ctx context.Context,
	format Format,
	path string,
	columns []table.Column,
) (_ *table.Table, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	file, err := s.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() {
		err = errors.Join(err, file.Close())
	}()

	t, err := format.Read(file, columns)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	return t, nil
}

// Store writes every table of g and then the metadata file. A directory left
// by an interrupted store is replaced.
func (s *Source) Store(ctx context.Context, name string, g graph.PropertyGraph) error {
	if err := validateName(name); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ok, err := isFileExists(s.fs, s.metadataPath(name))
	if err != nil {
		return fmt.Errorf("failed to check existence of graph: %w", err)
	}

	if ok {
		return errs.AlreadyExists("graph", name)
	}

	dir := s.graphDir(name)
	if err := s.fs.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to clean up %s: %w", dir, err)
	}

	sc := g.Schema()
	meta := metadata{Format: s.format.Name(), Schema: sc}

	for _, labels := range sc.LabelCombinations() {
		meta.Nodes = append(meta.Nodes, tableEntry{Labels: labels, File: nodeFileName(labels, s.format.Ext())})
	}

	for _, relType := range sc.RelationshipTypes() {
		meta.Relationships = append(
			meta.Relationships,
			tableEntry{Type: relType, File: relationshipFileName(relType, s.format.Ext())},
		)
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(s.parallelism)

	for i := range meta.Nodes {
		entry := &meta.Nodes[i]
		eg.Go(func() error {
			t, err := g.NodeTable(entry.Labels)
			if err != nil {
				return err
			}
			entry.Rows = t.NumRows()

			return s.writeTable(egCtx, filepath.Join(dir, entry.File), t)
		})
	}

	for i := range meta.Relationships {
		entry := &meta.Relationships[i]
		eg.Go(func() error {
			t, err := g.RelationshipTable(entry.Type)
			if err != nil {
				return err
			}
			entry.Rows = t.NumRows()

			return s.writeTable(egCtx, filepath.Join(dir, entry.File), t)
		})
	}

	if err := eg.Wait(); err != nil {
		return fmt.Errorf("failed to store graph %q: %w", name, err)
	}

	if err := WriteJSON(s.fs, s.metadataPath(name), meta); err != nil {
		return fmt.Errorf("failed to write metadata of %q: %w", name, err)
	}

	s.log.Infow(
		"graph stored",
		"graph", name,
		"format", s.format.Name(),
		"nodeTables", len(meta.Nodes),
		"relationshipTables", len(meta.Relationships),
	)

	return nil
}

func (s *Source) writeTable(ctx context.Context, path string, t *table.Table) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return WriteFile(s.fs, path, func(w io.Writer) error {
		return s.format.Write(w, t)
	})
}

func (s *Source) Delete(_ context.Context, name string) error {
	if err := validateName(name); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ok, err := isFileExists(s.fs, s.metadataPath(name))
	if err != nil {
		return fmt.Errorf("failed to check existence of graph: %w", err)
	}

	if !ok {
		return errs.NotFound("graph", name)
	}

	// the metadata goes first so that a failed removal leaves no graph behind
	if err := s.fs.Remove(s.metadataPath(name)); err != nil {
		return fmt.Errorf("failed to remove metadata of %q: %w", name, err)
	}

	if err := s.fs.RemoveAll(s.graphDir(name)); err != nil {
		return fmt.Errorf("failed to remove graph %q: %w", name, err)
	}

	s.log.Infow("graph deleted", "graph", name)

	return nil
}

func (s *Source) GraphNames(context.Context) ([]string, error) {
	ok, err := isFileExists(s.fs, s.root)
	if err != nil {
		return nil, fmt.Errorf("failed to check existence of root: %w", err)
	}

	if !ok {
		return []string{}, nil
	}

	entries, err := afero.ReadDir(s.fs, s.root)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", s.root, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		ok, err := isFileExists(s.fs, s.metadataPath(entry.Name()))
		if err != nil {
			return nil, err
		}

		if ok {
			names = append(names, entry.Name())
		}
	}

	slices.Sort(names)

	return names, nil
}
