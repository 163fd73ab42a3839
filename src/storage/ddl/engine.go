package ddl

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Blackdeer1524/GraphCatalog/src"
	"github.com/Blackdeer1524/GraphCatalog/src/pkg/errs"
	"github.com/Blackdeer1524/GraphCatalog/src/storage/graph"
	"github.com/Blackdeer1524/GraphCatalog/src/storage/ident"
	"github.com/Blackdeer1524/GraphCatalog/src/storage/schema"
	"github.com/Blackdeer1524/GraphCatalog/src/storage/table"
)

// helper columns of the endpoint joins
const (
	startRefColumn = "_start_ref"
	endRefColumn   = "_end_ref"
)

// Engine writes graphs into a TableStore as one table per node type and per
// relationship triple and reads them back through the recorded mappings.
type Engine struct {
	Strategy ident.Strategy
	Store    TableStore
	Log      src.Logger
}

func NewEngine(strategy ident.Strategy, store TableStore, log src.Logger) *Engine {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	return &Engine{Strategy: strategy, Store: store, Log: log}
}

type MapRequest struct {
	DataSource string
	Database   string
	GraphName  string
	Graph      graph.PropertyGraph
	// GraphType is the declared shape of the graph. When nil it is derived
	// from the schema and the endpoints observed in the data.
	GraphType *schema.GraphType
}

type pendingWrite struct {
	name string
	t    *table.Table
}

// Plan is a computed but not yet written mapping of one graph.
type Plan struct {
	Ddl    GraphDdl
	writes []pendingWrite
}

// Map plans req and writes the planned tables.
func (e *Engine) Map(ctx context.Context, req MapRequest) (GraphDdl, error) {
	p, err := e.Plan(req)
	if err != nil {
		return GraphDdl{}, err
	}

	if err := e.Write(ctx, p); err != nil {
		return GraphDdl{}, err
	}

	return p.Ddl, nil
}

// Write writes the tables of p in order. A failed write leaves the tables
// written before it in place.
func (e *Engine) Write(ctx context.Context, p *Plan) error {
	for _, w := range p.writes {
		if err := e.Store.WriteTable(ctx, w.name, w.t, Overwrite); err != nil {
			return fmt.Errorf("failed to write table %s: %w", w.name, err)
		}
	}

	e.Log.Infow(
		"graph mapped",
		"dataSource", p.Ddl.DataSource,
		"database", p.Ddl.Database,
		"graph", p.Ddl.GraphName,
		"nodeTables", len(p.Ddl.Nodes),
		"relationshipTables", len(p.Ddl.Edges),
	)

	return nil
}

// Plan computes the mappings and the tables of req.Graph without touching
// the store.
func (e *Engine) Plan(req MapRequest) (*Plan, error) {
	gt, err := e.graphType(req)
	if err != nil {
		return nil, err
	}

	if err := checkCovered(gt, req.Graph.Schema()); err != nil {
		return nil, err
	}

	d := GraphDdl{
		DataSource: req.DataSource,
		Database:   req.Database,
		GraphName:  req.GraphName,
		GraphType:  gt,
	}

	prefix := tablePrefix(req.DataSource, req.Database, req.GraphName)

	writes := make([]pendingWrite, 0)
	nodeTables := make(map[string]*table.Table)
	stored := make(map[string]int)

	for _, labels := range gt.NodeTypes() {
		declared, err := gt.NodePropertyKeys(labels)
		if err != nil {
			return nil, err
		}

		t, err := nodeTable(req.Graph, labels, declared)
		if err != nil {
			return nil, err
		}

		t, keys, err := conform(t, labels.String(), declared, graph.IDColumn)
		if err != nil {
			return nil, err
		}

		key := NodeViewKey{GraphName: req.GraphName, Labels: labels}
		name := prefix + "_node_" + labelsPart(labels)

		d.Nodes = append(d.Nodes, NodeToViewMapping{
			Key:          key,
			Table:        name,
			PrimaryKey:   graph.IDColumn,
			PropertyKeys: keys,
		})
		nodeTables[labels.Key()] = t
		writes = append(writes, pendingWrite{name: name, t: t})
	}

	for _, rt := range gt.RelationshipTypes() {
		relType := rt.Labels[0]

		declared, err := gt.RelationshipPropertyKeys(relType)
		if err != nil {
			return nil, err
		}

		t, err := relationshipTable(req.Graph, relType, declared)
		if err != nil {
			return nil, err
		}

		start, ok := nodeTables[rt.Start.Key()]
		if !ok {
			return nil, errs.NotFound("node type", rt.Start.String())
		}

		end, ok := nodeTables[rt.End.Key()]
		if !ok {
			return nil, errs.NotFound("node type", rt.End.String())
		}

		t, err = joinEndpoints(t, start, end)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve endpoints of %s: %w", rt, err)
		}
		stored[relType] += t.NumRows()

		t, keys, err := conform(
			t,
			"[:"+relType+"]",
			declared,
			graph.IDColumn,
			graph.SourceColumn,
			graph.TargetColumn,
		)
		if err != nil {
			return nil, err
		}

		name := prefix + "_rel_" + sanitize(relType) + "_from_" + labelsPart(rt.Start) + "_to_" + labelsPart(rt.End)

		d.Edges = append(d.Edges, EdgeToViewMapping{
			GraphName:    req.GraphName,
			Type:         rt,
			Table:        name,
			PrimaryKey:   graph.IDColumn,
			Start:        NodeViewKey{GraphName: req.GraphName, Labels: rt.Start},
			SourceColumn: graph.SourceColumn,
			End:          NodeViewKey{GraphName: req.GraphName, Labels: rt.End},
			TargetColumn: graph.TargetColumn,
			PropertyKeys: keys,
		})
		writes = append(writes, pendingWrite{name: name, t: t})
	}

	if err := checkStored(req.Graph, stored); err != nil {
		return nil, err
	}

	if err := d.validate(); err != nil {
		return nil, err
	}

	return &Plan{Ddl: d, writes: writes}, nil
}

func (e *Engine) graphType(req MapRequest) (schema.GraphType, error) {
	var gt schema.GraphType
	if req.GraphType != nil {
		gt = *req.GraphType
	} else {
		discovered, err := discoverGraphType(req.Graph)
		if err != nil {
			return schema.GraphType{}, fmt.Errorf("failed to derive graph type: %w", err)
		}
		gt = discovered
	}

	for _, rt := range gt.RelationshipTypes() {
		if len(rt.Labels) != 1 {
			return schema.GraphType{}, errs.IllegalArgument(
				"relationship type",
				fmt.Sprintf("%s must carry exactly one relationship type label, got %d", rt, len(rt.Labels)),
			)
		}
	}

	return gt, nil
}

// checkCovered rejects data the graph type has no place for.
func checkCovered(gt schema.GraphType, observed schema.Schema) error {
	for _, labels := range observed.LabelCombinations() {
		if !gt.HasNodeType(labels) {
			return errs.IllegalArgument(
				"graph type",
				fmt.Sprintf("node type %s is not declared", labels),
			)
		}
	}

	declared := make(map[string]struct{})
	for _, relType := range gt.RelationshipLabels() {
		declared[relType] = struct{}{}
	}

	for _, relType := range observed.RelationshipTypes() {
		if _, ok := declared[relType]; !ok {
			return errs.IllegalArgument(
				"graph type",
				fmt.Sprintf("relationship type %q is not declared", relType),
			)
		}
	}

	return nil
}

// checkStored fails when some relationships of a type match no declared
// (start, type, end) triple and would be lost by the write.
func checkStored(g graph.PropertyGraph, stored map[string]int) error {
	for _, relType := range g.Schema().RelationshipTypes() {
		t, err := g.RelationshipTable(relType)
		if err != nil {
			return err
		}

		if total := t.NumRows(); stored[relType] < total {
			return errs.IllegalArgument(
				"relationships",
				fmt.Sprintf(
					"%d of %d relationships of type %q have no declared endpoint pair",
					total-stored[relType],
					total,
					relType,
				),
			)
		}
	}

	return nil
}

// discoverGraphType declares the observed schema plus one triple per
// (start labels, type, end labels) occurring in the data.
func discoverGraphType(g graph.PropertyGraph) (schema.GraphType, error) {
	s := g.Schema()
	gt := schema.GraphTypeFromSchema(s)

	owners := make(map[string]schema.Labels)
	for _, labels := range s.LabelCombinations() {
		t, err := g.NodeTable(labels)
		if err != nil {
			return schema.GraphType{}, err
		}

		for _, rec := range t.Records() {
			owners[idKey(rec.Get(graph.IDColumn))] = labels
		}
	}

	seen := make(map[string]struct{})
	for _, relType := range s.RelationshipTypes() {
		t, err := g.RelationshipTable(relType)
		if err != nil {
			return schema.GraphType{}, err
		}

		for _, rec := range t.Records() {
			start, ok := owners[idKey(rec.Get(graph.SourceColumn))]
			if !ok {
				continue
			}

			end, ok := owners[idKey(rec.Get(graph.TargetColumn))]
			if !ok {
				continue
			}

			rt := schema.NewRelationshipType(start, []string{relType}, end)
			if _, ok := seen[rt.Key()]; ok {
				continue
			}
			seen[rt.Key()] = struct{}{}

			gt = gt.WithRelationshipType(start, []string{relType}, end)
		}
	}

	return gt, nil
}

func idKey(v any) string {
	if b, ok := v.([]byte); ok {
		return string(b)
	}

	return fmt.Sprint(v)
}

func nodeTable(g graph.PropertyGraph, labels schema.Labels, declared schema.PropertyKeys) (*table.Table, error) {
	if !g.Schema().HasNodeType(labels) {
		return table.Empty(graph.NodeColumns(declared)...), nil
	}

	return g.NodeTable(labels)
}

func relationshipTable(g graph.PropertyGraph, relType string, declared schema.PropertyKeys) (*table.Table, error) {
	if !g.Schema().HasRelationshipType(relType) {
		return table.Empty(graph.RelationshipColumns(declared)...), nil
	}

	return g.RelationshipTable(relType)
}

// joinEndpoints keeps the relationships whose source is a row of start and
// whose target is a row of end.
func joinEndpoints(rels, start, end *table.Table) (*table.Table, error) {
	names := rels.ColumnNames()

	starts, err := refs(start, startRefColumn)
	if err != nil {
		return nil, err
	}

	ends, err := refs(end, endRefColumn)
	if err != nil {
		return nil, err
	}

	joined, err := rels.Join(starts, graph.SourceColumn, startRefColumn)
	if err != nil {
		return nil, err
	}

	joined, err = joined.Join(ends, graph.TargetColumn, endRefColumn)
	if err != nil {
		return nil, err
	}

	return joined.Select(names...)
}

func refs(nodes *table.Table, as string) (*table.Table, error) {
	ids, err := nodes.Select(graph.IDColumn)
	if err != nil {
		return nil, err
	}

	return ids.Rename(map[string]string{graph.IDColumn: as})
}

// conform lays t out as the structural columns followed by every declared
// key. Declared keys absent from t are added as typed null columns, so their
// type becomes nullable. An observed type wider than the declared one is a
// conflict.
func conform(
	t *table.Table,
	element string,
	declared schema.PropertyKeys,
	structural ...string,
) (*table.Table, schema.PropertyKeys, error) {
	keys := declared.Copy()

	for _, key := range declared.Keys() {
		typ := declared[key]

		observed, ok := t.Column(key)
		if !ok {
			var err error

			t, err = t.WithConstColumn(table.Column{Name: key, Type: typ.AsNullable()}, nil)
			if err != nil {
				return nil, nil, err
			}
			keys[key] = typ.AsNullable()

			continue
		}

		joined, ok := typ.Join(observed.Type)
		if !ok || joined != typ {
			return nil, nil, &schema.SchemaConflictError{
				Element:  element,
				Property: key,
				Left:     typ,
				Right:    observed.Type,
			}
		}
	}

	for _, c := range t.Columns() {
		if _, ok := declared[c.Name]; !ok && !isStructural(c.Name, structural) {
			return nil, nil, errs.IllegalArgument(
				element,
				fmt.Sprintf("property %q is not declared", c.Name),
			)
		}
	}

	columns := make([]table.Column, 0, len(structural)+len(keys))
	for _, name := range structural {
		columns = append(columns, table.Column{Name: name, Type: schema.Binary})
	}

	for _, key := range keys.Keys() {
		columns = append(columns, table.Column{Name: key, Type: keys[key]})
	}

	res, err := t.Reshape(columns...)
	if err != nil {
		return nil, nil, err
	}

	return res, keys, nil
}

func isStructural(name string, structural []string) bool {
	for _, s := range structural {
		if s == name {
			return true
		}
	}

	return false
}

func tablePrefix(dataSource, database, graphName string) string {
	return sanitize(dataSource) + "_" + sanitize(database) + "_" + sanitize(graphName)
}

func labelsPart(labels schema.Labels) string {
	parts := make([]string, 0, len(labels))
	for _, label := range labels {
		parts = append(parts, sanitize(label))
	}

	return strings.Join(parts, "_and_")
}

// sanitize maps a name onto the characters every relational store accepts
// in an unquoted identifier. Letters and digits are kept and every other
// byte, "_" included, becomes "_" followed by its upper case hex code. An
// escaped name never has "_" before a lower case letter, which leaves
// "_and_", "_from_", "_to_", "_node_" and "_rel_" free to join the parts of
// a table name.
func sanitize(name string) string {
	var b strings.Builder
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "_%02X", c)
		}
	}

	return b.String()
}

// Load reads every mapped table of d and rebuilds the graph. Element ids are
// derived from (table, stored primary key) through the engine's strategy.
func (e *Engine) Load(ctx context.Context, d GraphDdl) (*graph.ScanGraph, error) {
	tables := make(map[string]string)
	for _, n := range d.Nodes {
		tables[n.Key.Labels.Key()] = n.Table
	}

	nodes := make([]graph.NodeScan, 0, len(d.Nodes))
	for _, n := range d.Nodes {
		t, err := e.Store.ReadTable(ctx, n.Table)
		if err != nil {
			return nil, fmt.Errorf("failed to read table %s: %w", n.Table, err)
		}

		t, err = e.withIDs(t, map[string]string{n.PrimaryKey: n.Table}, n.PrimaryKey)
		if err != nil {
			return nil, fmt.Errorf("failed to derive ids of %s: %w", n.Table, err)
		}

		nodes = append(nodes, graph.NodeScan{Labels: n.Key.Labels, Table: t})
	}

	rels := make([]graph.RelationshipScan, 0, len(d.Edges))
	for _, edge := range d.Edges {
		t, err := e.Store.ReadTable(ctx, edge.Table)
		if err != nil {
			return nil, fmt.Errorf("failed to read table %s: %w", edge.Table, err)
		}

		t, err = e.withIDs(
			t,
			map[string]string{
				edge.PrimaryKey:   edge.Table,
				edge.SourceColumn: tables[edge.Start.Labels.Key()],
				edge.TargetColumn: tables[edge.End.Labels.Key()],
			},
			edge.PrimaryKey,
			edge.SourceColumn,
			edge.TargetColumn,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to derive ids of %s: %w", edge.Table, err)
		}

		rels = append(rels, graph.RelationshipScan{Type: edge.RelType(), Table: t})
	}

	for _, relType := range d.unmappedRelationshipTypes() {
		keys, err := d.GraphType.RelationshipPropertyKeys(relType)
		if err != nil {
			return nil, err
		}

		rels = append(rels, graph.RelationshipScan{
			Type:  relType,
			Table: table.Empty(graph.RelationshipColumns(keys)...),
		})
	}

	return graph.NewScanGraph(nodes, rels)
}

// withIDs replaces each key column by the ids the strategy derives from the
// column's owning table and the stored value. The result uses canonical
// column names.
func (e *Engine) withIDs(t *table.Table, owners map[string]string, keyColumns ...string) (*table.Table, error) {
	canonical := []string{graph.IDColumn, graph.SourceColumn, graph.TargetColumn}

	renames := make(map[string]string, len(keyColumns))
	res := t
	for i, col := range keyColumns {
		owner := owners[col]
		derived := "_derived_" + canonical[i]

		var idErr error
		next, err := res.WithColumn(table.Column{Name: derived, Type: schema.Binary}, func(r table.Record) any {
			id, err := e.Strategy.ID(owner, r.Get(col))
			if err != nil && idErr == nil {
				idErr = err
			}

			return id
		})
		if idErr != nil {
			return nil, idErr
		}

		if err != nil {
			return nil, err
		}

		res = next
		renames[derived] = canonical[i]
	}

	names := make([]string, 0, len(res.Columns()))
	for _, c := range res.Columns() {
		if isStructural(c.Name, keyColumns) {
			continue
		}
		names = append(names, c.Name)
	}

	res, err := res.Select(names...)
	if err != nil {
		return nil, err
	}

	return res.Rename(renames)
}
