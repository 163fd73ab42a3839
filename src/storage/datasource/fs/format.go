package fs

import (
	"io"

	"github.com/Blackdeer1524/GraphCatalog/src/pkg/errs"
	"github.com/Blackdeer1524/GraphCatalog/src/storage/table"
)

// File is what formats need to read a table back. afero.File satisfies it.
type File interface {
	io.Reader
	io.ReaderAt
	io.Seeker
}

// Format is a columnar encoding applied to every table of a graph.
type Format interface {
	Name() string
	Ext() string
	Write(w io.Writer, t *table.Table) error
	// Read decodes a table written by Write. columns is the expected layout
	// recorded in the graph metadata.
	Read(r File, columns []table.Column) (*table.Table, error)
}

func FormatByName(name string) (Format, error) {
	switch name {
	case ArrowFormat{}.Name():
		return ArrowFormat{}, nil
	case CSVFormat{}.Name():
		return CSVFormat{}, nil
	}

	return nil, errs.NotFound("format", name)
}
