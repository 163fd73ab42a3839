package sql

import (
	"context"
	dbsql "database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/Blackdeer1524/GraphCatalog/src/pkg/errs"
	"github.com/Blackdeer1524/GraphCatalog/src/storage/ddl"
	"github.com/Blackdeer1524/GraphCatalog/src/storage/schema"
	"github.com/Blackdeer1524/GraphCatalog/src/storage/table"
)

// columnsTable records the declared column types of every stored table.
// SQLite column affinities alone lose nullability and booleans.
const columnsTable = "_graphcat_columns"

const createColumnsTable = `CREATE TABLE IF NOT EXISTS ` + columnsTable + ` (
	table_name  TEXT    NOT NULL,
	position    INTEGER NOT NULL,
	column_name TEXT    NOT NULL,
	column_type TEXT    NOT NULL,
	PRIMARY KEY (table_name, position)
)`

// SQLiteStore is a TableStore over one SQLite database.
type SQLiteStore struct {
	db *dbsql.DB

	// serializes writers; SQLite allows a single one anyway
	mu sync.Mutex
}

var _ ddl.TableStore = &SQLiteStore{}

// OpenSQLite opens (creating if needed) the database at path. ":memory:"
// opens a private in-memory database.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := dbsql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite %s: %w", path, err)
	}

	// an in-memory database lives as long as its only connection
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, createColumnsTable); err != nil {
		return nil, errors.Join(fmt.Errorf("failed to create %s: %w", columnsTable, err), db.Close())
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func quote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func sqlType(t schema.CypherType) string {
	var res string
	switch t.Base {
	case schema.TypeInteger, schema.TypeBoolean:
		res = "INTEGER"
	case schema.TypeFloat:
		res = "REAL"
	case schema.TypeString:
		res = "TEXT"
	default:
		res = "BLOB"
	}

	if !t.Nullable {
		res += " NOT NULL"
	}

	return res
}

func (s *SQLiteStore) WriteTable(ctx context.Context, name string, t *table.Table, mode ddl.WriteMode) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, tx.Rollback())
		}
	}()

	existing, err := columnsOf(ctx, tx, name)
	if err != nil {
		return err
	}

	switch {
	case mode == ddl.Append && existing != nil:
		if !sameColumns(existing, t.Columns()) {
			return errs.IllegalArgument(
				"table",
				fmt.Sprintf("columns of %s don't match the appended rows", name),
			)
		}
	default:
		if err := createTable(ctx, tx, name, t.Columns()); err != nil {
			return err
		}
	}

	if err := insertRows(ctx, tx, name, t); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit table %s: %w", name, err)
	}

	return nil
}

func createTable(ctx context.Context, tx *dbsql.Tx, name string, columns []table.Column) error {
	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+quote(name)); err != nil {
		return fmt.Errorf("failed to drop table %s: %w", name, err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM "+columnsTable+" WHERE table_name = ?", name); err != nil {
		return fmt.Errorf("failed to clear columns of %s: %w", name, err)
	}

	defs := make([]string, 0, len(columns))
	for _, c := range columns {
		defs = append(defs, quote(c.Name)+" "+sqlType(c.Type))
	}

	stmt := fmt.Sprintf("CREATE TABLE %s (%s)", quote(name), strings.Join(defs, ", "))
	if _, err := tx.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to create table %s: %w", name, err)
	}

	for i, c := range columns {
		if _, err := tx.ExecContext(
			ctx,
			"INSERT INTO "+columnsTable+" (table_name, position, column_name, column_type) VALUES (?, ?, ?, ?)",
			name,
			i,
			c.Name,
			c.Type.String(),
		); err != nil {
			return fmt.Errorf("failed to record column %s of %s: %w", c.Name, name, err)
		}
	}

	return nil
}

func insertRows(ctx context.Context, tx *dbsql.Tx, name string, t *table.Table) (err error) {
	if t.NumRows() == 0 {
		return nil
	}

	names := make([]string, 0, len(t.Columns()))
	for _, c := range t.Columns() {
		names = append(names, quote(c.Name))
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(names)), ", ")

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		quote(name),
		strings.Join(names, ", "),
		placeholders,
	))
	if err != nil {
		return fmt.Errorf("failed to prepare insert into %s: %w", name, err)
	}
	defer func() {
		err = errors.Join(err, stmt.Close())
	}()

	for i := range t.NumRows() {
		if _, err := stmt.ExecContext(ctx, t.Row(i)...); err != nil {
			return fmt.Errorf("failed to insert row %d into %s: %w", i, name, err)
		}
	}

	return nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*dbsql.Rows, error)
}

// columnsOf returns nil for an unknown table.
func columnsOf(ctx context.Context, q queryer, name string) (_ []table.Column, err error) {
	rows, err := q.QueryContext(
		ctx,
		"SELECT column_name, column_type FROM "+columnsTable+" WHERE table_name = ? ORDER BY position",
		name,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to read columns of %s: %w", name, err)
	}
	defer func() {
		err = errors.Join(err, rows.Close())
	}()

	var columns []table.Column
	for rows.Next() {
		var columnName, columnType string
		if err := rows.Scan(&columnName, &columnType); err != nil {
			return nil, err
		}

		typ, err := schema.ParseCypherType(columnType)
		if err != nil {
			return nil, fmt.Errorf("invalid type of %s.%s: %w", name, columnName, err)
		}

		columns = append(columns, table.Column{Name: columnName, Type: typ})
	}

	return columns, rows.Err()
}

func sameColumns(a, b []table.Column) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}

func (s *SQLiteStore) ReadTable(ctx context.Context, name string) (_ *table.Table, err error) {
	columns, err := columnsOf(ctx, s.db, name)
	if err != nil {
		return nil, err
	}

	if columns == nil {
		return nil, errs.NotFound("table", name)
	}

	names := make([]string, 0, len(columns))
	for _, c := range columns {
		names = append(names, quote(c.Name))
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT %s FROM %s", strings.Join(names, ", "), quote(name)))
	if err != nil {
		return nil, fmt.Errorf("failed to query table %s: %w", name, err)
	}
	defer func() {
		err = errors.Join(err, rows.Close())
	}()

	res := make([]table.Row, 0)
	for rows.Next() {
		dest := make([]any, len(columns))
		for i, c := range columns {
			dest[i] = scanTarget(c.Type)
		}

		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan row of %s: %w", name, err)
		}

		row := make(table.Row, len(columns))
		for i := range columns {
			row[i] = scanned(dest[i])
		}
		res = append(res, row)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return table.New(columns, res...)
}

func scanTarget(t schema.CypherType) any {
	switch t.Base {
	case schema.TypeInteger:
		return &dbsql.NullInt64{}
	case schema.TypeFloat:
		return &dbsql.NullFloat64{}
	case schema.TypeString:
		return &dbsql.NullString{}
	case schema.TypeBoolean:
		return &dbsql.NullBool{}
	default:
		return &[]byte{}
	}
}

func scanned(v any) any {
	switch v := v.(type) {
	case *dbsql.NullInt64:
		if v.Valid {
			return v.Int64
		}
	case *dbsql.NullFloat64:
		if v.Valid {
			return v.Float64
		}
	case *dbsql.NullString:
		if v.Valid {
			return v.String
		}
	case *dbsql.NullBool:
		if v.Valid {
			return v.Bool
		}
	case *[]byte:
		if *v != nil {
			return *v
		}
	}

	return nil
}

func (s *SQLiteStore) HasTable(ctx context.Context, name string) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(
		ctx,
		"SELECT COUNT(*) FROM "+columnsTable+" WHERE table_name = ?",
		name,
	).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to look up table %s: %w", name, err)
	}

	return n > 0, nil
}

func (s *SQLiteStore) TableNames(ctx context.Context) (_ []string, err error) {
	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT table_name FROM "+columnsTable+" ORDER BY table_name")
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer func() {
		err = errors.Join(err, rows.Close())
	}()

	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}

	return names, rows.Err()
}
