package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Blackdeer1524/GraphCatalog/src/pkg/errs"
	"github.com/Blackdeer1524/GraphCatalog/src/storage/catalog"
)

func setupEnv(t *testing.T) string {
	dir := t.TempDir()

	t.Setenv("GRAPHCAT_ENVIRONMENT", EnvProd)
	t.Setenv("GRAPHCAT_FILE_ROOT", filepath.Join(dir, "graphs"))
	t.Setenv("GRAPHCAT_FILE_FORMAT", "csv")
	t.Setenv("GRAPHCAT_SQLITE_PATH", filepath.Join(dir, "db", "graphs.db"))
	t.Setenv("GRAPHCAT_DDL_ROOT", filepath.Join(dir, "ddl"))

	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	cmd := NewRootCommand()

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs(append([]string{"--env-file", ""}, args...))

	err := cmd.ExecuteContext(context.Background())

	return out.String(), err
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(file, []byte("GRAPHCAT_SERVER_PORT=9090\nGRAPHCAT_DATABASE=fromfile\n"), 0o600))

	t.Setenv("GRAPHCAT_DATABASE", "fromenv")
	t.Cleanup(func() { _ = os.Unsetenv("GRAPHCAT_SERVER_PORT") })

	env, err := loadEnv(file, filepath.Join(dir, "missing.env"))
	require.NoError(t, err)

	require.Equal(t, 9090, env.ServerPort)
	require.Equal(t, "fromenv", env.Database)
	require.Equal(t, EnvDev, env.Environment)
	require.Equal(t, "arrow", env.FileFormat)
}

func TestNewStack_RejectsUnknownSettings(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	env := envVars{
		FileFormat: "parquet",
		IDStrategy: "serialized",
		SQLitePath: filepath.Join(dir, "graphs.db"),
	}

	_, err := newStack(ctx, env, afero.NewOsFs(), zap.NewNop().Sugar())
	require.ErrorIs(t, err, errs.ErrNotFound)

	env.FileFormat = "arrow"
	env.IDStrategy = "random"

	_, err = newStack(ctx, env, afero.NewOsFs(), zap.NewNop().Sugar())
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestNewStack_Namespaces(t *testing.T) {
	setupEnv(t)

	env, err := loadEnv()
	require.NoError(t, err)

	stack, err := newStack(context.Background(), env, afero.NewOsFs(), zap.NewNop().Sugar())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, stack.Close()) })

	require.Equal(
		t,
		[]catalog.Namespace{FileNamespace, catalog.SessionNamespace, RelationalNamespace},
		stack.Catalog.Namespaces(),
	)
}

func TestCommands(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "demo")
	require.NoError(t, err)
	require.Equal(t, "stored sql.sample\n", out)

	_, err = run(t, "demo")
	require.ErrorIs(t, err, errs.ErrAlreadyExists)

	out, err = run(t, "copy", "sql.sample", "fs.sample")
	require.NoError(t, err)
	require.Equal(t, "copied sql.sample to fs.sample\n", out)

	out, err = run(t, "graphs")
	require.NoError(t, err)
	require.Equal(t, "fs.sample\nsql.sample\n", out)

	out, err = run(t, "schema", "fs.sample")
	require.NoError(t, err)
	require.Contains(t, out, "since")

	_, err = run(t, "delete", "sql.sample")
	require.ErrorIs(t, err, errs.ErrForbidden)

	_, err = run(t, "delete", "fs.sample")
	require.NoError(t, err)

	out, err = run(t, "graphs")
	require.NoError(t, err)
	require.Equal(t, "sql.sample\n", out)

	_, err = run(t, "schema", "nowhere.sample")
	require.ErrorIs(t, err, errs.ErrNotFound)

	_, err = run(t, "schema", ".sample")
	require.ErrorIs(t, err, errs.ErrIllegalArgument)
}
