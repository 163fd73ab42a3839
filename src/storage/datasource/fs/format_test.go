package fs

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Blackdeer1524/GraphCatalog/src/pkg/errs"
	"github.com/Blackdeer1524/GraphCatalog/src/storage/schema"
	"github.com/Blackdeer1524/GraphCatalog/src/storage/table"
)

func sampleTable() *table.Table {
	return table.MustNew(
		[]table.Column{
			{Name: "id", Type: schema.Binary},
			{Name: "age", Type: schema.Integer.AsNullable()},
			{Name: "score", Type: schema.Float},
			{Name: "name", Type: schema.String.AsNullable()},
			{Name: "active", Type: schema.Boolean.AsNullable()},
		},
		table.Row{[]byte{0x80, 0, 1}, 30, 1.5, "alice", true},
		table.Row{[]byte{0x80, 0, 2}, nil, -0.25, nil, nil},
		table.Row{[]byte{0x80, 0, 3}, 1, 0.0, `\N`, false},
		table.Row{[]byte{0x80, 0, 4}, -1, 3.0, `\backslash`, false},
	)
}

func TestFormats_RoundTrip(t *testing.T) {
	for _, format := range []Format{ArrowFormat{}, CSVFormat{}} {
		t.Run(format.Name(), func(t *testing.T) {
			want := sampleTable()

			var buf bytes.Buffer
			require.NoError(t, format.Write(&buf, want))

			got, err := format.Read(bytes.NewReader(buf.Bytes()), want.Columns())
			require.NoError(t, err)
			require.True(t, want.Equal(got), "got %s", got)
		})
	}
}

func TestFormats_EmptyTable(t *testing.T) {
	for _, format := range []Format{ArrowFormat{}, CSVFormat{}} {
		t.Run(format.Name(), func(t *testing.T) {
			columns := []table.Column{{Name: "id", Type: schema.Binary}, {Name: "x", Type: schema.Integer}}

			var buf bytes.Buffer
			require.NoError(t, format.Write(&buf, table.Empty(columns...)))

			got, err := format.Read(bytes.NewReader(buf.Bytes()), columns)
			require.NoError(t, err)
			require.Equal(t, 0, got.NumRows())
			require.Equal(t, columns, got.Columns())
		})
	}
}

func TestFormats_MissingColumn(t *testing.T) {
	for _, format := range []Format{ArrowFormat{}, CSVFormat{}} {
		t.Run(format.Name(), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, format.Write(&buf, sampleTable()))

			_, err := format.Read(
				bytes.NewReader(buf.Bytes()),
				[]table.Column{{Name: "unknown", Type: schema.String}},
			)
			require.ErrorIs(t, err, errs.ErrNotFound)
		})
	}
}

func TestFormatByName(t *testing.T) {
	f, err := FormatByName("arrow")
	require.NoError(t, err)
	require.Equal(t, ArrowFormat{}, f)

	f, err = FormatByName("csv")
	require.NoError(t, err)
	require.Equal(t, CSVFormat{}, f)

	_, err = FormatByName("parquet")
	require.ErrorIs(t, err, errs.ErrNotFound)
}
