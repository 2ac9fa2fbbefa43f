package users

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/carmarket/marketauth/internal/server/migrations"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

var sqliteSeq atomic.Int64

func newSQLiteDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:users_%d?mode=memory&cache=shared", sqliteSeq.Add(1))
	db, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	goose.SetBaseFS(migrations.Migrations)
	require.NoError(t, goose.SetDialect("sqlite3"))
	require.NoError(t, goose.UpContext(context.Background(), db, migrations.SQLiteDir))
	return db
}

func TestSQLiteRepository(t *testing.T) {
	testRepositoryContract(t, func(t *testing.T) Repository {
		return NewSQLiteRepository(newSQLiteDB(t))
	})
}

func TestSQLiteRepository_RejectsUnknownRole(t *testing.T) {
	db := newSQLiteDB(t)
	_, err := db.Exec(`INSERT INTO users (name, email, password_hash, role, created_at) VALUES ('x', 'x@example.com', 'h', 'Root', 0)`)
	require.Error(t, err)
}
