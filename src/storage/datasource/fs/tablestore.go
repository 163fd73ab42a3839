package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"slices"
	"sync"

	"github.com/spf13/afero"

	"github.com/Blackdeer1524/GraphCatalog/src/pkg/errs"
	"github.com/Blackdeer1524/GraphCatalog/src/storage/ddl"
	"github.com/Blackdeer1524/GraphCatalog/src/storage/table"
)

const (
	columnsFile = "columns.json"
	dataFile    = "data"
)

// TableStore keeps relational tables as files: a column list and a data file
// in the store's format, one directory per table.
type TableStore struct {
	fs     afero.Fs
	root   string
	format Format

	mu sync.Mutex
}

var _ ddl.TableStore = &TableStore{}

func NewTableStore(fsys afero.Fs, root string, format Format) *TableStore {
	return &TableStore{fs: fsys, root: root, format: format}
}

func (s *TableStore) columnsPath(name string) string {
	return filepath.Join(s.root, url.PathEscape(name), columnsFile)
}

func (s *TableStore) dataPath(name string) string {
	return filepath.Join(s.root, url.PathEscape(name), dataFile+s.format.Ext())
}

func (s *TableStore) WriteTable(ctx context.Context, name string, t *table.Table, mode ddl.WriteMode) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if mode == ddl.Append {
		existing, err := s.readTable(name)
		if err != nil && !errors.Is(err, errs.ErrNotFound) {
			return err
		}

		if err == nil {
			t, err = existing.Union(t)
			if err != nil {
				return fmt.Errorf("failed to append to table %s: %w", name, err)
			}
		}
	}

	if err := WriteFile(s.fs, s.dataPath(name), func(w io.Writer) error {
		return s.format.Write(w, t)
	}); err != nil {
		return err
	}

	// the column list marks the table as present
	return WriteJSON(s.fs, s.columnsPath(name), t.Columns())
}

func (s *TableStore) ReadTable(ctx context.Context, name string) (*table.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.readTable(name)
}

func (s *TableStore) readTable(name string) (_ *table.Table, err error) {
	var columns []table.Column

	ok, err := ReadJSON(s.fs, s.columnsPath(name), &columns)
	if err != nil {
		return nil, err
	}

	if !ok {
		return nil, errs.NotFound("table", name)
	}

	file, err := s.fs.Open(s.dataPath(name))
	if err != nil {
		return nil, fmt.Errorf("failed to open table %s: %w", name, err)
	}
	defer func() {
		err = errors.Join(err, file.Close())
	}()

	return s.format.Read(file, columns)
}

func (s *TableStore) HasTable(_ context.Context, name string) (bool, error) {
	return isFileExists(s.fs, s.columnsPath(name))
}

func (s *TableStore) TableNames(context.Context) ([]string, error) {
	ok, err := isFileExists(s.fs, s.root)
	if err != nil {
		return nil, err
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

		name, err := url.PathUnescape(entry.Name())
		if err != nil {
			continue
		}

		ok, err := isFileExists(s.fs, s.columnsPath(name))
		if err != nil {
			return nil, err
		}

		if ok {
			names = append(names, name)
		}
	}

	slices.Sort(names)

	return names, nil
}
