package fs

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/Blackdeer1524/GraphCatalog/src/pkg/errs"
	"github.com/Blackdeer1524/GraphCatalog/src/storage/schema"
	"github.com/Blackdeer1524/GraphCatalog/src/storage/table"
)

// ArrowFormat stores each table as an Arrow IPC file with a single record
// batch. Nullability is carried by the field metadata.
type ArrowFormat struct{}

var _ Format = ArrowFormat{}

func (ArrowFormat) Name() string {
	return "arrow"
}

func (ArrowFormat) Ext() string {
	return ".arrow"
}

func arrowType(t schema.CypherType) (arrow.DataType, error) {
	switch t.Base {
	case schema.TypeInteger:
		return arrow.PrimitiveTypes.Int64, nil
	case schema.TypeFloat:
		return arrow.PrimitiveTypes.Float64, nil
	case schema.TypeString:
		return arrow.BinaryTypes.String, nil
	case schema.TypeBoolean:
		return arrow.FixedWidthTypes.Boolean, nil
	case schema.TypeBinary:
		return arrow.BinaryTypes.Binary, nil
	}

	return nil, errs.IllegalArgument("type", fmt.Sprintf("no arrow type for %s", t))
}

func arrowSchema(columns []table.Column) (*arrow.Schema, error) {
	fields := make([]arrow.Field, 0, len(columns))
	for _, c := range columns {
		dt, err := arrowType(c.Type)
		if err != nil {
			return nil, err
		}
		fields = append(fields, arrow.Field{Name: c.Name, Type: dt, Nullable: c.Type.Nullable})
	}

	return arrow.NewSchema(fields, nil), nil
}

func (ArrowFormat) Write(w io.Writer, t *table.Table) (err error) {
	mem := memory.NewGoAllocator()

	sc, err := arrowSchema(t.Columns())
	if err != nil {
		return err
	}

	fw, err := ipc.NewFileWriter(w, ipc.WithSchema(sc), ipc.WithAllocator(mem))
	if err != nil {
		return fmt.Errorf("failed to create arrow writer: %w", err)
	}
	defer func() {
		err = errors.Join(err, fw.Close())
	}()

	b := array.NewRecordBuilder(mem, sc)
	defer b.Release()

	for i := range t.NumRows() {
		for j, v := range t.Row(i) {
			if err := appendValue(b.Field(j), v); err != nil {
				return err
			}
		}
	}

	rec := b.NewRecord()
	defer rec.Release()

	if err := fw.Write(rec); err != nil {
		return fmt.Errorf("failed to write arrow record: %w", err)
	}

	return nil
}

func appendValue(b array.Builder, v any) error {
	if v == nil {
		b.AppendNull()
		return nil
	}

	switch b := b.(type) {
	case *array.Int64Builder:
		b.Append(v.(int64))
	case *array.Float64Builder:
		b.Append(v.(float64))
	case *array.StringBuilder:
		b.Append(v.(string))
	case *array.BooleanBuilder:
		b.Append(v.(bool))
	case *array.BinaryBuilder:
		b.Append(v.([]byte))
	default:
		return errs.IllegalArgument("builder", fmt.Sprintf("unsupported arrow builder %T", b))
	}

	return nil
}

func (ArrowFormat) Read(r File, columns []table.Column) (*table.Table, error) {
	fr, err := ipc.NewFileReader(r, ipc.WithAllocator(memory.NewGoAllocator()))
	if err != nil {
		return nil, fmt.Errorf("failed to open arrow file: %w", err)
	}
	defer fr.Close()

	names := make([]string, 0, fr.Schema().NumFields())
	for _, f := range fr.Schema().Fields() {
		names = append(names, f.Name)
	}

	positions := make([]int, len(columns))
	for i, c := range columns {
		positions[i] = slices.Index(names, c.Name)
		if positions[i] < 0 {
			return nil, errs.NotFound("column", c.Name)
		}
	}

	rows := make([]table.Row, 0)
	for n := range fr.NumRecords() {
		rec, err := fr.Record(n)
		if err != nil {
			return nil, fmt.Errorf("failed to read arrow record %d: %w", n, err)
		}

		for i := range int(rec.NumRows()) {
			row := make(table.Row, len(columns))
			for j, pos := range positions {
				v, err := arrowValue(rec.Column(pos), i)
				if err != nil {
					return nil, fmt.Errorf("column %q: %w", columns[j].Name, err)
				}
				row[j] = v
			}
			rows = append(rows, row)
		}
	}

	return table.New(columns, rows...)
}

// arrowValue copies the i-th value out of arr so that it outlives the
// record.
func arrowValue(arr arrow.Array, i int) (any, error) {
	if arr.IsNull(i) {
		return nil, nil
	}

	switch arr := arr.(type) {
	case *array.Int64:
		return arr.Value(i), nil
	case *array.Float64:
		return arr.Value(i), nil
	case *array.String:
		return strings.Clone(arr.Value(i)), nil
	case *array.Boolean:
		return arr.Value(i), nil
	case *array.Binary:
		return slices.Clone(arr.Value(i)), nil
	}

	return nil, errs.IllegalArgument("array", fmt.Sprintf("unsupported arrow array %T", arr))
}
