package fs

import (
	"encoding/base64"
	"encoding/csv"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/Blackdeer1524/GraphCatalog/src/pkg/errs"
	"github.com/Blackdeer1524/GraphCatalog/src/storage/schema"
	"github.com/Blackdeer1524/GraphCatalog/src/storage/table"
)

// csvNull marks a null cell. String values starting with a backslash get one
// more backslash so they never read back as null.
const csvNull = `\N`

// CSVFormat writes a header row of column names followed by one record per
// row. Binary values are base64 encoded.
type CSVFormat struct{}

var _ Format = CSVFormat{}

func (CSVFormat) Name() string {
	return "csv"
}

func (CSVFormat) Ext() string {
	return ".csv"
}

func (CSVFormat) Write(w io.Writer, t *table.Table) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(t.ColumnNames()); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	for i := range t.NumRows() {
		row := t.Row(i)

		record := make([]string, len(row))
		for j, v := range row {
			record[j] = encodeCell(v)
		}

		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write csv record: %w", err)
		}
	}

	cw.Flush()

	return cw.Error()
}

func encodeCell(v any) string {
	switch v := v.(type) {
	case nil:
		return csvNull
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case []byte:
		return base64.StdEncoding.EncodeToString(v)
	case string:
		if strings.HasPrefix(v, `\`) {
			return `\` + v
		}
		return v
	}

	return fmt.Sprint(v)
}

func decodeCell(c table.Column, s string) (any, error) {
	if s == csvNull {
		return nil, nil
	}

	switch c.Type.Base {
	case schema.TypeInteger:
		return strconv.ParseInt(s, 10, 64)
	case schema.TypeFloat:
		return strconv.ParseFloat(s, 64)
	case schema.TypeBoolean:
		return strconv.ParseBool(s)
	case schema.TypeBinary:
		return base64.StdEncoding.DecodeString(s)
	case schema.TypeString:
		return strings.TrimPrefix(s, `\`), nil
	}

	return nil, errs.IllegalArgument(c.Name, fmt.Sprintf("unsupported type %s", c.Type))
}

func (CSVFormat) Read(r File, columns []table.Column) (*table.Table, error) {
	cr := csv.NewReader(r)

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	positions := make([]int, len(columns))
	for i, c := range columns {
		positions[i] = slices.Index(header, c.Name)
		if positions[i] < 0 {
			return nil, errs.NotFound("column", c.Name)
		}
	}

	rows := make([]table.Row, 0)
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv record: %w", err)
		}

		row := make(table.Row, len(columns))
		for j, pos := range positions {
			v, err := decodeCell(columns[j], record[pos])
			if err != nil {
				return nil, fmt.Errorf("column %q: %w", columns[j].Name, err)
			}
			row[j] = v
		}
		rows = append(rows, row)
	}

	return table.New(columns, rows...)
}
