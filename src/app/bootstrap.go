package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/Blackdeer1524/GraphCatalog/src"
	"github.com/Blackdeer1524/GraphCatalog/src/metrics"
	"github.com/Blackdeer1524/GraphCatalog/src/pkg/utils"
	"github.com/Blackdeer1524/GraphCatalog/src/storage/catalog"
	"github.com/Blackdeer1524/GraphCatalog/src/storage/datasource"
	"github.com/Blackdeer1524/GraphCatalog/src/storage/datasource/fs"
	"github.com/Blackdeer1524/GraphCatalog/src/storage/datasource/sql"
	"github.com/Blackdeer1524/GraphCatalog/src/storage/ident"
)

const ddlFileName = "ddl.json"

// Namespaces the configured backends are registered under.
const (
	FileNamespace       = catalog.Namespace(datasource.KindFile)
	RelationalNamespace = catalog.Namespace(datasource.KindRelational)
)

func newLogger(environment string) src.Logger {
	if environment == EnvDev {
		return utils.Must(zap.NewDevelopment()).Sugar()
	}

	return utils.Must(zap.NewProduction()).Sugar()
}

// Stack is a catalog with the file and relational backends registered next
// to the session namespace.
type Stack struct {
	Catalog *catalog.Catalog
	Metrics *metrics.Metrics

	sqlite *sql.SQLiteStore
}

func newStack(ctx context.Context, env envVars, fsys afero.Fs, log src.Logger) (_ *Stack, err error) {
	format, err := fs.FormatByName(env.FileFormat)
	if err != nil {
		return nil, fmt.Errorf("failed to select file format: %w", err)
	}

	strategy, err := ident.StrategyByName(env.IDStrategy)
	if err != nil {
		return nil, fmt.Errorf("failed to select id strategy: %w", err)
	}

	if err := fsys.MkdirAll(filepath.Dir(env.SQLitePath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create sqlite directory: %w", err)
	}

	store, err := sql.OpenSQLite(ctx, env.SQLitePath)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err != nil {
			err = errors.Join(err, store.Close())
		}
	}()

	relational, err := sql.New(sql.Config{
		DataSource: env.DataSource,
		Database:   env.Database,
		Strategy:   strategy,
		Store:      store,
		Fs:         fsys,
		DDLPath:    filepath.Join(env.DDLRoot, ddlFileName),
		Logger:     log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open relational source: %w", err)
	}

	m := metrics.New()
	c := catalog.New(catalog.WithLogger(log), catalog.WithMetrics(m))

	if err := c.Register(FileNamespace, fs.New(fsys, env.FileRoot, format, fs.WithLogger(log))); err != nil {
		return nil, err
	}

	if err := c.Register(RelationalNamespace, relational); err != nil {
		return nil, err
	}

	log.Infow(
		"catalog ready",
		"file_root", env.FileRoot,
		"file_format", format.Name(),
		"sqlite", env.SQLitePath,
		"id_strategy", strategy.Name(),
	)

	return &Stack{Catalog: c, Metrics: m, sqlite: store}, nil
}

func (s *Stack) Close() error {
	if s.sqlite == nil {
		return nil
	}

	return s.sqlite.Close()
}
