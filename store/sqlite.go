package store

import (
	"os"
	"path/filepath"

	"crawshaw.io/sqlite"
	"crawshaw.io/sqlite/sqliteutil"
	"github.com/pkg/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS settings (
	key TEXT PRIMARY KEY NOT NULL,
	value TEXT NOT NULL
);
`

// SQLiteStore keeps settings in a single-table sqlite database,
// usually in the user's app data folder.
type SQLiteStore struct {
	pool *sqlite.Pool
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens (and creates, if needed) the settings database at dbPath
func OpenSQLite(dbPath string) (*SQLiteStore, error) {
	err := os.MkdirAll(filepath.Dir(dbPath), 0755)
	if err != nil {
		return nil, errors.WithMessage(err, "creating settings directory")
	}

	pool, err := sqlite.Open(dbPath, 0, 4)
	if err != nil {
		return nil, errors.WithMessage(err, "opening settings database")
	}

	conn := pool.Get(nil)
	err = sqliteutil.ExecScript(conn, schema)
	pool.Put(conn)
	if err != nil {
		pool.Close()
		return nil, errors.WithMessage(err, "preparing settings database")
	}

	return &SQLiteStore{pool: pool}, nil
}

func (ss *SQLiteStore) Get(key string) (string, bool, error) {
	conn := ss.pool.Get(nil)
	defer ss.pool.Put(conn)

	var value string
	var found bool
	err := sqliteutil.Exec(conn, "SELECT value FROM settings WHERE key = ?", func(stmt *sqlite.Stmt) error {
		value = stmt.ColumnText(0)
		found = true
		return nil
	}, key)
	if err != nil {
		return "", false, errors.WithMessage(err, "reading setting")
	}

	return value, found, nil
}

func (ss *SQLiteStore) Set(key string, value string) error {
	conn := ss.pool.Get(nil)
	defer ss.pool.Put(conn)

	err := sqliteutil.Exec(conn, "INSERT OR REPLACE INTO settings (key, value) VALUES (?, ?)", nil, key, value)
	if err != nil {
		return errors.WithMessage(err, "writing setting")
	}
	return nil
}

func (ss *SQLiteStore) Close() error {
	return ss.pool.Close()
}
