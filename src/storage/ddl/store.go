package ddl

import (
	"context"

	"github.com/Blackdeer1524/GraphCatalog/src/storage/table"
)

type WriteMode int

const (
	Overwrite WriteMode = iota
	Append
)

func (m WriteMode) String() string {
	switch m {
	case Overwrite:
		return "overwrite"
	case Append:
		return "append"
	default:
		return "unknown"
	}
}

// TableStore is the relational side of a relational data source. Column
// types must survive a write/read cycle, including nullability.
type TableStore interface {
	WriteTable(ctx context.Context, name string, t *table.Table, mode WriteMode) error
	ReadTable(ctx context.Context, name string) (*table.Table, error)
	HasTable(ctx context.Context, name string) (bool, error)
	TableNames(ctx context.Context) ([]string, error)
}
