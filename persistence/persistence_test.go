package persistence_test

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/goliatone/go-user-auth/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialectFor(t *testing.T) {
	assert.Equal(t, persistence.DialectPostgres, persistence.DialectFor("postgres://u:p@localhost:5432/app"))
	assert.Equal(t, persistence.DialectPostgres, persistence.DialectFor("POSTGRESQL://localhost/app"))
	assert.Equal(t, persistence.DialectSQLite, persistence.DialectFor("file:app.db?cache=shared"))
	assert.Equal(t, persistence.DialectSQLite, persistence.DialectFor(":memory:"))
}

func TestOpenAndMigrate(t *testing.T) {
	ctx := context.Background()

	db, err := persistence.Open(ctx, ":memory:")
	require.NoError(t, err)
	defer db.Close()

	fsys := fstest.MapFS{
		"20240101000001_widgets.up.sql":   {Data: []byte("CREATE TABLE widgets (id TEXT PRIMARY KEY, name TEXT NOT NULL);")},
		"20240101000001_widgets.down.sql": {Data: []byte("DROP TABLE widgets;")},
	}

	require.NoError(t, persistence.Migrate(ctx, db, fsys, nil))

	_, err = db.ExecContext(ctx, "INSERT INTO widgets (id, name) VALUES ('w1', 'bolt')")
	require.NoError(t, err)

	// running again is a no-op
	require.NoError(t, persistence.Migrate(ctx, db, fsys, nil))

	var count int
	require.NoError(t, db.NewSelect().TableExpr("widgets").ColumnExpr("COUNT(*)").Scan(ctx, &count))
	assert.Equal(t, 1, count)
}
