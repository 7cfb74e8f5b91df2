package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrations(t *testing.T) {
	pg, err := sqlFiles(PostgresFS, "postgres")
	require.NoError(t, err)
	assert.Equal(t, []string{"001_post_trade.sql", "002_calibration_runs.sql"}, pg)

	ch, err := sqlFiles(ClickhouseFS, "clickhouse")
	require.NoError(t, err)
	require.NotEmpty(t, ch)

	for _, file := range ch {
		data, err := fs.ReadFile(ClickhouseFS, "clickhouse/"+file)
		require.NoError(t, err)
		assert.NoError(t, validateNoSemicolonInStrings(string(data)), file)
		for _, stmt := range splitStatements(string(data)) {
			assert.True(t, strings.HasPrefix(stmt, "CREATE"), "unexpected statement in %s: %q", file, stmt)
		}
	}
}

func TestSplitStatements(t *testing.T) {
	input := `
-- leading comment
CREATE TABLE a (x Int32);

CREATE TABLE b (
    y String -- trailing
);
`
	stmts := splitStatements(input)
	require.Len(t, stmts, 2)
	assert.Equal(t, "CREATE TABLE a (x Int32)", stmts[0])
	assert.True(t, strings.HasPrefix(stmts[1], "CREATE TABLE b ("))
}

func TestValidateNoSemicolonInStrings(t *testing.T) {
	assert.NoError(t, validateNoSemicolonInStrings(`SELECT 'it''s fine';`))
	assert.Error(t, validateNoSemicolonInStrings(`SELECT 'a;b';`))
}

func TestDatabaseFromDSN(t *testing.T) {
	db, err := databaseFromDSN("clickhouse://default:@localhost:9000/tca")
	require.NoError(t, err)
	assert.Equal(t, "tca", db)

	_, err = databaseFromDSN("clickhouse://localhost:9000")
	assert.Error(t, err)
}
