package verify

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS results (
	key      TEXT PRIMARY KEY,
	outcome  INTEGER NOT NULL,
	expected TEXT NOT NULL DEFAULT '',
	actual   TEXT NOT NULL DEFAULT '',
	created  INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS counterexamples (
	key      TEXT NOT NULL,
	position INTEGER NOT NULL,
	name     TEXT NOT NULL,
	value    TEXT NOT NULL,
	PRIMARY KEY (key, position)
);
CREATE TABLE IF NOT EXISTS tags (
	key       TEXT NOT NULL,
	structure TEXT NOT NULL,
	PRIMARY KEY (key, structure)
);
CREATE INDEX IF NOT EXISTS tags_structure ON tags (structure);
`

// SQLiteCache is a Cache persisted in a SQLite database, so that results
// survive across runs
type SQLiteCache struct {
	db *sql.DB
}

var _ Cache = (*SQLiteCache)(nil)

// OpenSQLiteCache opens or creates the cache database at path.
// ":memory:" is a private in-memory database.
func OpenSQLiteCache(ctx context.Context, path string) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening cache %s: %w", path, err)
	}
	// a single connection keeps :memory: databases alive and serialises writers
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating cache schema in %s: %w", path, err)
	}
	return &SQLiteCache{db: db}, nil
}

func (c *SQLiteCache) Close() error {
	return c.db.Close()
}

func (c *SQLiteCache) Get(ctx context.Context, key string) (Result, bool, error) {
	var r Result
	row := c.db.QueryRowContext(ctx, `SELECT outcome, expected, actual FROM results WHERE key = ?`, key)
	switch err := row.Scan(&r.Outcome, &r.Expected, &r.Actual); err {
	case nil:
	case sql.ErrNoRows:
		return Result{}, false, nil
	default:
		return Result{}, false, fmt.Errorf("reading cached result: %w", err)
	}

	rows, err := c.db.QueryContext(ctx, `SELECT name, value FROM counterexamples WHERE key = ? ORDER BY position`, key)
	if err != nil {
		return Result{}, false, fmt.Errorf("reading cached counterexample: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var b Binding
		if err := rows.Scan(&b.Name, &b.Value); err != nil {
			return Result{}, false, fmt.Errorf("reading cached counterexample: %w", err)
		}
		r.Counterexample = append(r.Counterexample, b)
	}
	if err := rows.Err(); err != nil {
		return Result{}, false, fmt.Errorf("reading cached counterexample: %w", err)
	}
	return r, true, nil
}

func (c *SQLiteCache) Put(ctx context.Context, key string, r Result, structures []string) error {
	return c.inTx(ctx, func(tx *sql.Tx) error {
		if err := deleteKey(ctx, tx, key); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO results (key, outcome, expected, actual, created) VALUES (?, ?, ?, ?, ?)`,
			key, r.Outcome, r.Expected, r.Actual, time.Now().Unix(),
		); err != nil {
			return err
		}
		for i, b := range r.Counterexample {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO counterexamples (key, position, name, value) VALUES (?, ?, ?, ?)`,
				key, i, b.Name, b.Value,
			); err != nil {
				return err
			}
		}
		for _, s := range structures {
			if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO tags (key, structure) VALUES (?, ?)`, key, s); err != nil {
				return err
			}
		}
		return nil
	})
}

func (c *SQLiteCache) Invalidate(ctx context.Context, structure string) error {
	return c.inTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `SELECT key FROM tags WHERE structure = ?`, structure)
		if err != nil {
			return err
		}
		var keys []string
		for rows.Next() {
			var key string
			if err := rows.Scan(&key); err != nil {
				_ = rows.Close()
				return err
			}
			keys = append(keys, key)
		}
		_ = rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
		for _, key := range keys {
			if err := deleteKey(ctx, tx, key); err != nil {
				return err
			}
		}
		return nil
	})
}

func deleteKey(ctx context.Context, tx *sql.Tx, key string) error {
	for _, table := range []string{"results", "counterexamples", "tags"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE key = ?`, key); err != nil {
			return err
		}
	}
	return nil
}

func (c *SQLiteCache) inTx(ctx context.Context, f func(tx *sql.Tx) error) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("cache transaction: %w", err)
	}
	if err := f(tx); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("cache transaction: %w", err)
	}
	return tx.Commit()
}
