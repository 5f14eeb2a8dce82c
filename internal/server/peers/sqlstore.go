package peers

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/gophkerb/internal/dbx"
	"github.com/dmitrijs2005/gophkerb/internal/server/migrations"
	"github.com/pressly/goose/v3"
)

// gooseUpContext is swapped in tests.
var gooseUpContext = goose.UpContext

// SQLStore keeps client records in Postgres or SQLite.
type SQLStore struct {
	db     *sql.DB
	q      dbx.DBTX
	driver string
}

// NewSQLStore wraps an open database. driver is dbx.DriverPostgres or
// dbx.DriverSQLite.
func NewSQLStore(db *sql.DB, driver string) *SQLStore {
	return &SQLStore{db: db, q: db, driver: driver}
}

// OpenSQLStore connects to dsn and applies migrations.
func OpenSQLStore(ctx context.Context, dsn string) (*SQLStore, error) {
	db, driver, err := dbx.Open(ctx, dsn)
	if err != nil {
		return nil, err
	}
	s := NewSQLStore(db, driver)
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Migrate brings the schema up to date.
func (s *SQLStore) Migrate(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	dialect := "postgres"
	if s.driver == dbx.DriverSQLite {
		dialect = "sqlite3"
	}
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := gooseUpContext(ctx, s.db, "."); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) Load(ctx context.Context) ([]ClientRecord, error) {
	query := `SELECT id, name, password_hash, last_seen FROM clients`

	rows, err := s.q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []ClientRecord
	for rows.Next() {
		var id, name, hash, lastSeen string
		if err := rows.Scan(&id, &name, &hash, &lastSeen); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		rec, err := parseFields(id, name, hash, lastSeen)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (s *SQLStore) Append(ctx context.Context, rec ClientRecord) error {
	query :=
		`INSERT INTO clients (id, name, password_hash, last_seen)
		 VALUES ($1, $2, $3, $4)`

	f := rec.fields()
	if _, err := s.q.ExecContext(ctx, query, f[0], f[1], f[2], f[3]); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (s *SQLStore) Reset(ctx context.Context) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM clients`); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		return nil
	})
}
