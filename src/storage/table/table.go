package table

import (
	"fmt"
	"slices"
	"strings"

	"github.com/Blackdeer1524/GraphCatalog/src/pkg/errs"
	"github.com/Blackdeer1524/GraphCatalog/src/storage/schema"
)

type Column struct {
	Name string            `json:"name"`
	Type schema.CypherType `json:"type"`
}

// Row holds one value per column. Values are int64, float64, string, bool,
// []byte or nil.
type Row []any

// Table is an immutable in-memory relation. Every operation returns a new
// Table and shares row storage only where rows are not modified.
type Table struct {
	columns []Column
	index   map[string]int
	rows    []Row
}

func newTable(columns []Column, rows []Row) *Table {
	index := make(map[string]int, len(columns))
	for i, c := range columns {
		index[c.Name] = i
	}

	return &Table{columns: columns, index: index, rows: rows}
}

// New validates rows against columns. Go ints are widened to int64 and
// float32 to float64.
func New(columns []Column, rows ...Row) (*Table, error) {
	seen := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		if _, ok := seen[c.Name]; ok {
			return nil, errs.IllegalArgument("columns", fmt.Sprintf("duplicate column %q", c.Name))
		}
		seen[c.Name] = struct{}{}
	}

	normalized := make([]Row, 0, len(rows))
	for i, row := range rows {
		if len(row) != len(columns) {
			return nil, errs.IllegalArgument(
				"rows",
				fmt.Sprintf("row %d has %d values, expected %d", i, len(row), len(columns)),
			)
		}

		r := make(Row, len(row))
		for j, v := range row {
			nv, err := normalize(columns[j], v)
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", i, err)
			}
			r[j] = nv
		}

		normalized = append(normalized, r)
	}

	return newTable(slices.Clone(columns), normalized), nil
}

func MustNew(columns []Column, rows ...Row) *Table {
	t, err := New(columns, rows...)
	if err != nil {
		panic(err)
	}

	return t
}

func Empty(columns ...Column) *Table {
	return newTable(slices.Clone(columns), nil)
}

func normalize(c Column, v any) (any, error) {
	if v == nil {
		if !c.Type.Nullable {
			return nil, errs.IllegalArgument(c.Name, "null in non-nullable column")
		}

		return nil, nil
	}

	switch c.Type.Base {
	case schema.TypeInteger:
		switch n := v.(type) {
		case int64:
			return n, nil
		case int:
			return int64(n), nil
		case int32:
			return int64(n), nil
		}
	case schema.TypeFloat:
		switch n := v.(type) {
		case float64:
			return n, nil
		case float32:
			return float64(n), nil
		}
	case schema.TypeString:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case schema.TypeBoolean:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case schema.TypeBinary:
		if b, ok := v.([]byte); ok {
			return b, nil
		}
	}

	return nil, errs.IllegalArgument(c.Name, fmt.Sprintf("value %v (%T) is not of type %s", v, v, c.Type))
}

func (t *Table) Columns() []Column {
	return slices.Clone(t.columns)
}

func (t *Table) ColumnNames() []string {
	res := make([]string, 0, len(t.columns))
	for _, c := range t.columns {
		res = append(res, c.Name)
	}

	return res
}

func (t *Table) Column(name string) (Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return Column{}, false
	}

	return t.columns[i], true
}

func (t *Table) NumRows() int {
	return len(t.rows)
}

// Row returns a copy of the i-th row.
func (t *Table) Row(i int) Row {
	return slices.Clone(t.rows[i])
}

func (t *Table) Value(i int, name string) any {
	idx, ok := t.index[name]
	if !ok {
		return nil
	}

	return t.rows[i][idx]
}

// Record is a read-only view of one row addressed by column name.
type Record struct {
	t   *Table
	row Row
}

func (r Record) Get(name string) any {
	idx, ok := r.t.index[name]
	if !ok {
		return nil
	}

	return r.row[idx]
}

func (t *Table) Records() []Record {
	res := make([]Record, 0, len(t.rows))
	for _, row := range t.rows {
		res = append(res, Record{t: t, row: row})
	}

	return res
}

func (t *Table) Select(names ...string) (*Table, error) {
	columns := make([]Column, 0, len(names))
	idxs := make([]int, 0, len(names))

	for _, name := range names {
		i, ok := t.index[name]
		if !ok {
			return nil, errs.NotFound("column", name)
		}
		columns = append(columns, t.columns[i])
		idxs = append(idxs, i)
	}

	rows := make([]Row, 0, len(t.rows))
	for _, row := range t.rows {
		r := make(Row, len(idxs))
		for j, i := range idxs {
			r[j] = row[i]
		}
		rows = append(rows, r)
	}

	return New(columns, rows...)
}

// Rename renames columns present in mapping and keeps the rest.
func (t *Table) Rename(mapping map[string]string) (*Table, error) {
	columns := t.Columns()
	for i, c := range columns {
		if to, ok := mapping[c.Name]; ok {
			columns[i].Name = to
		}
	}

	res, err := New(columns)
	if err != nil {
		return nil, err
	}

	res.rows = t.rows

	return res, nil
}

// WithConstColumn appends a column holding v in every row. A nil v yields a
// typed null column, which requires a nullable type.
func (t *Table) WithConstColumn(c Column, v any) (*Table, error) {
	return t.WithColumn(c, func(Record) any { return v })
}

func (t *Table) WithColumn(c Column, fn func(Record) any) (*Table, error) {
	if _, ok := t.index[c.Name]; ok {
		return nil, errs.AlreadyExists("column", c.Name)
	}

	rows := make([]Row, 0, len(t.rows))
	for _, row := range t.rows {
		v, err := normalize(c, fn(Record{t: t, row: row}))
		if err != nil {
			return nil, err
		}

		r := make(Row, 0, len(row)+1)
		r = append(r, row...)
		rows = append(rows, append(r, v))
	}

	return newTable(append(t.Columns(), c), rows), nil
}

func (t *Table) Filter(pred func(Record) bool) *Table {
	rows := make([]Row, 0)
	for _, row := range t.rows {
		if pred(Record{t: t, row: row}) {
			rows = append(rows, row)
		}
	}

	return newTable(t.columns, rows)
}

// Join is an inner equi-join on t.leftCol = right.rightCol. Column names of
// both sides must be disjoint.
func (t *Table) Join(right *Table, leftCol, rightCol string) (*Table, error) {
	li, ok := t.index[leftCol]
	if !ok {
		return nil, errs.NotFound("column", leftCol)
	}

	ri, ok := right.index[rightCol]
	if !ok {
		return nil, errs.NotFound("column", rightCol)
	}

	for _, c := range right.columns {
		if _, ok := t.index[c.Name]; ok {
			return nil, errs.AlreadyExists("column", c.Name)
		}
	}

	byKey := make(map[any][]Row, len(right.rows))
	for _, row := range right.rows {
		if row[ri] == nil {
			continue
		}
		k := hashKey(row[ri])
		byKey[k] = append(byKey[k], row)
	}

	rows := make([]Row, 0)
	for _, lrow := range t.rows {
		if lrow[li] == nil {
			continue
		}

		for _, rrow := range byKey[hashKey(lrow[li])] {
			r := make(Row, 0, len(lrow)+len(rrow))
			r = append(r, lrow...)
			rows = append(rows, append(r, rrow...))
		}
	}

	return newTable(append(t.Columns(), right.columns...), rows), nil
}

// Union concatenates rows of both tables matching columns by name. Columns
// missing on one side are filled with nulls and become nullable.
func (t *Table) Union(o *Table) (*Table, error) {
	columns := t.Columns()

	for i, c := range columns {
		oc, ok := o.Column(c.Name)
		if !ok {
			columns[i].Type = c.Type.AsNullable()
			continue
		}

		joined, ok := c.Type.Join(oc.Type)
		if !ok {
			return nil, errs.IllegalArgument(
				c.Name,
				fmt.Sprintf("incompatible column types %s and %s", c.Type, oc.Type),
			)
		}
		columns[i].Type = joined
	}

	for _, oc := range o.columns {
		if _, ok := t.index[oc.Name]; !ok {
			columns = append(columns, Column{Name: oc.Name, Type: oc.Type.AsNullable()})
		}
	}

	res := newTable(columns, make([]Row, 0, len(t.rows)+len(o.rows)))
	res.rows = append(res.rows, t.project(columns)...)
	res.rows = append(res.rows, o.project(columns)...)

	return res, nil
}

func (t *Table) project(columns []Column) []Row {
	rows := make([]Row, 0, len(t.rows))
	for _, row := range t.rows {
		r := make(Row, len(columns))
		for j, c := range columns {
			if i, ok := t.index[c.Name]; ok {
				r[j] = row[i]
			}
		}
		rows = append(rows, r)
	}

	return rows
}

// Reshape lays the rows of t out under columns, matched by name. Columns t
// lacks are null-filled and every value is checked against its new type.
func (t *Table) Reshape(columns ...Column) (*Table, error) {
	return New(columns, t.project(columns)...)
}

// Equal compares two tables as sets of columns and multisets of rows.
func (t *Table) Equal(o *Table) bool {
	if len(t.columns) != len(o.columns) || len(t.rows) != len(o.rows) {
		return false
	}

	for _, c := range t.columns {
		oc, ok := o.Column(c.Name)
		if !ok || oc.Type != c.Type {
			return false
		}
	}

	return slices.Equal(t.canonicalRows(t.columns), o.canonicalRows(t.columns))
}

func (t *Table) canonicalRows(columns []Column) []string {
	res := make([]string, 0, len(t.rows))
	for _, row := range t.project(columns) {
		parts := make([]string, 0, len(row))
		for _, v := range row {
			parts = append(parts, fmt.Sprintf("%#v", v))
		}
		res = append(res, strings.Join(parts, "\x00"))
	}

	slices.Sort(res)

	return res
}

func (t *Table) String() string {
	var sb strings.Builder

	sb.WriteString(strings.Join(t.ColumnNames(), " | "))
	sb.WriteString("\n")

	for _, row := range t.rows {
		parts := make([]string, 0, len(row))
		for _, v := range row {
			parts = append(parts, formatValue(v))
		}
		sb.WriteString(strings.Join(parts, " | "))
		sb.WriteString("\n")
	}

	return sb.String()
}

func formatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return "null"
	case []byte:
		return fmt.Sprintf("0x%x", v)
	default:
		return fmt.Sprint(v)
	}
}

// hashKey makes byte slices usable as map keys.
func hashKey(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}

	return v
}
