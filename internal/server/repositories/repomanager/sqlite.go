package repomanager

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/carmarket/marketauth/internal/filex"
	"github.com/carmarket/marketauth/internal/server/migrations"
	"github.com/carmarket/marketauth/internal/server/repositories/users"
	_ "modernc.org/sqlite"
)

type SQLiteRepositoryManager struct {
	db *sql.DB
}

func NewSQLiteRepositoryManager(db *sql.DB) (RepositoryManager, error) {
	return &SQLiteRepositoryManager{db: db}, nil
}

func (m *SQLiteRepositoryManager) Users() users.Repository {
	return users.NewSQLiteRepository(m.db)
}

func (m *SQLiteRepositoryManager) RunMigrations(ctx context.Context) error {
	return runGoose(ctx, m.db, "sqlite3", migrations.SQLiteDir)
}

func (m *SQLiteRepositoryManager) Close() error {
	return m.db.Close()
}

// openSQLite opens path in WAL mode with a single connection, which
// serializes writers. Missing parent directories are created.
func openSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if err := filex.EnsureParentDir(path); err != nil {
		return nil, fmt.Errorf("prepare sqlite path: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return db, nil
}
