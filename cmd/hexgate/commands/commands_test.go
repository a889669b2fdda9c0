package commands

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hexgate/hexgate/internal/config"
	"github.com/hexgate/hexgate/internal/ui"
)

func init() {
	ui.DisableColor()
}

func run(t *testing.T, fs afero.Fs, args ...string) (string, error) {
	t.Helper()
	t.Setenv("DATABASE_URL", "")

	root := newRootCommand(&State{Fs: fs, Out: ui.Stdout})
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestCompile_JSON(t *testing.T) {
	out, err := run(t, afero.NewMemMapFs(), "compile", "get", "/public/users?age=gte.18&sort=-age&limit=10", "--provider", "postgres", "--json")
	require.NoError(t, err)

	var got []compiledOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "read", got[0].Operation)
	assert.Equal(t, `SELECT * FROM "public"."users" WHERE "age" >= $1 ORDER BY "age" DESC LIMIT 10`, got[0].SQL)
	assert.Equal(t, []interface{}{"18"}, got[0].Params)
}

func TestCompile_Body(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "rows.json", []byte(`[{"name":"ann"},{"name":"bob"}]`), 0o644))

	out, err := run(t, fs, "compile", "POST", "/shop/users", "--provider", "mysql", "--body-file", "rows.json")
	require.NoError(t, err)
	assert.Contains(t, out, "INSERT INTO `shop`.`users` (`name`) VALUES (?), (?)")
	assert.Contains(t, out, `"ann"`)
	assert.Contains(t, out, "transaction")
}

func TestCompile_Errors(t *testing.T) {
	fs := afero.NewMemMapFs()

	_, err := run(t, fs, "compile", "DELETE", "/public/users", "--provider", "postgres")
	assert.ErrorContains(t, err, "requires at least one filter")

	out, err := run(t, fs, "compile", "DELETE", "/public/users", "--provider", "postgres", "--allow-unfiltered", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `DELETE FROM \"public\".\"users\" RETURNING *`)

	_, err = run(t, fs, "compile", "GET", "/health", "--provider", "postgres")
	assert.Error(t, err)

	_, err = run(t, fs, "compile", "GET", "/public/users", "--provider", "oracle")
	assert.Error(t, err)
}

func TestRoutes_Plain(t *testing.T) {
	out, err := run(t, afero.NewMemMapFs(), "routes", "--plain")
	require.NoError(t, err)
	assert.Contains(t, out, "`/{schema}/{name}`")
	assert.Contains(t, out, "`/{schema}/function/{name}`")
	assert.Contains(t, out, "`ilike`")
	assert.Contains(t, out, "allow_unfiltered")
}

func TestInit(t *testing.T) {
	fs := afero.NewMemMapFs()

	out, err := run(t, fs, "init", "--yes", "--db-provider", "sqlite", "--db-url", "sqlite://app.db")
	require.NoError(t, err)
	assert.Contains(t, out, "Created .hexgate.yaml")

	data, err := afero.ReadFile(fs, ".hexgate.yaml")
	require.NoError(t, err)
	assert.Contains(t, string(data), "sqlite://app.db")

	_, err = run(t, fs, "init", "--yes")
	assert.ErrorContains(t, err, "already exists")

	_, err = run(t, fs, "init", "--yes", "--force", "--db-provider", "oracle")
	assert.Error(t, err)

	_, err = run(t, fs, "init", "--yes", "--force")
	assert.NoError(t, err)
}

func TestLoad_ConfigFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, config.Save(fs, &config.Config{
		Server:   config.ServerConfig{Addr: ":8181"},
		Database: config.DatabaseConfig{Provider: "mysql"},
		Auth:     config.AuthConfig{Mode: "none"},
		Log:      config.LogConfig{Level: "info", Format: "text"},
	}, "/srv/hexgate.yaml"))

	out, err := run(t, fs, "--config", "/srv/hexgate.yaml", "compile", "GET", "/shop/items", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, "SELECT * FROM `shop`.`items`")

	_, err = run(t, fs, "--config", "/srv/missing.yaml", "compile", "GET", "/shop/items")
	assert.Error(t, err)
}

func TestCatalog_SQLite(t *testing.T) {
	out, err := run(t, afero.NewMemMapFs(), "catalog", "--provider", "sqlite", "--database-url", "sqlite::memory:", "--json")
	require.NoError(t, err)

	var snap map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &snap))
	assert.NotEmpty(t, snap["server_version"])
}

func TestServe_RequiresURL(t *testing.T) {
	_, err := run(t, afero.NewMemMapFs(), "serve", "--provider", "sqlite")
	assert.ErrorContains(t, err, "no database URL")
}

func TestVersion(t *testing.T) {
	out, err := run(t, afero.NewMemMapFs(), "version")
	require.NoError(t, err)
	assert.Contains(t, out, "version")
	assert.Contains(t, out, "platform")

	out, err = run(t, afero.NewMemMapFs(), "version", "--server", "--provider", "sqlite", "--database-url", "sqlite::memory:")
	require.NoError(t, err)
	assert.Contains(t, out, "returning")
}
