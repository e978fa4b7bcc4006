package docstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

type SQLite struct {
	db  *sqlx.DB
	now func() time.Time
}

type row struct {
	ID        string `db:"id"`
	Version   string `db:"version"`
	Body      []byte `db:"body"`
	UpdatedAt int64  `db:"updated_at"`
}

func (r row) record() Record {
	return Record{ID: r.ID, Version: r.Version, Body: r.Body, UpdatedAt: time.UnixMilli(r.UpdatedAt).UTC()}
}

func OpenSQLite(path string) (*SQLite, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One connection serializes writers inside the process; the version check still
	// guards against lost updates between read and write.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &SQLite{db: db, now: time.Now}, nil
}

func initPragmas(db *sqlx.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sqlx.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			version TEXT NOT NULL,
			body BLOB NOT NULL,
			updated_at INTEGER NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLite) Create(ctx context.Context, id string, body []byte) (Record, error) {
	r := row{ID: id, Version: uuid.NewString(), Body: body, UpdatedAt: s.now().UnixMilli()}
	res, err := s.db.NamedExecContext(ctx,
		`INSERT INTO documents (id, version, body, updated_at) VALUES (:id, :version, :body, :updated_at)
		 ON CONFLICT(id) DO NOTHING`, r)
	if err != nil {
		return Record{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Record{}, err
	}
	if n == 0 {
		return Record{}, ErrExists
	}
	return r.record(), nil
}

func (s *SQLite) Get(ctx context.Context, id string) (Record, error) {
	var r row
	err := s.db.GetContext(ctx, &r, `SELECT id, version, body, updated_at FROM documents WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}
	return r.record(), nil
}

func (s *SQLite) CompareAndSwap(ctx context.Context, id, prev string, body []byte) (Record, error) {
	r := row{ID: id, Version: uuid.NewString(), Body: body, UpdatedAt: s.now().UnixMilli()}
	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET version = ?, body = ?, updated_at = ? WHERE id = ? AND version = ?`,
		r.Version, r.Body, r.UpdatedAt, id, prev)
	if err != nil {
		return Record{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Record{}, err
	}
	if n == 0 {
		if _, err := s.Get(ctx, id); err != nil {
			return Record{}, err
		}
		return Record{}, ErrVersionMismatch
	}
	return r.record(), nil
}

func (s *SQLite) Put(ctx context.Context, id string, body []byte) (Record, error) {
	r := row{ID: id, Version: uuid.NewString(), Body: body, UpdatedAt: s.now().UnixMilli()}
	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET version = ?, body = ?, updated_at = ? WHERE id = ?`,
		r.Version, r.Body, r.UpdatedAt, id)
	if err != nil {
		return Record{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Record{}, err
	}
	if n == 0 {
		return Record{}, ErrNotFound
	}
	return r.record(), nil
}

func (s *SQLite) List(ctx context.Context) ([]string, error) {
	var ids []string
	if err := s.db.SelectContext(ctx, &ids, `SELECT id FROM documents ORDER BY id`); err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *SQLite) Close() error { return s.db.Close() }
