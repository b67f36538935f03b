package database

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

func init() {
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

type DB struct {
	DB *sqlx.DB
}

// Connect opens a postgres database for postgres:// and postgresql:// URLs
// and an sqlite database for sqlite://<path> URLs.
func Connect(databaseURL string) (*DB, error) {
	driver, dsn, err := ParseURL(databaseURL)
	if err != nil {
		return nil, err
	}

	return Open(driver, dsn)
}

func (db *DB) Ping(ctx context.Context) error {
	return db.DB.PingContext(ctx)
}

func (db *DB) Close() error {
	return db.DB.Close()
}

func (db *DB) DriverName() string {
	return db.DB.DriverName()
}

// ParseURL maps a DATABASE_URL to a registered driver name and DSN.
func ParseURL(databaseURL string) (driver, dsn string, err error) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return DriverPostgres, databaseURL, nil
	case strings.HasPrefix(databaseURL, "sqlite://"):
		path := strings.TrimPrefix(databaseURL, "sqlite://")
		if path == "" {
			return "", "", fmt.Errorf("sqlite database url has no path")
		}
		return DriverSQLite, SQLiteDSN(path), nil
	default:
		return "", "", fmt.Errorf("unsupported database url scheme")
	}
}

// SQLiteDSN builds a modernc sqlite DSN for a database file with WAL mode and
// foreign keys enforced.
func SQLiteDSN(path string) string {
	q := sqlitePragmas()
	q.Add("_pragma", "journal_mode(WAL)")
	return "file:" + path + "?" + q.Encode()
}

// SQLiteMemoryDSN builds a DSN for a named in-memory database. WAL does not
// apply to memory databases.
func SQLiteMemoryDSN(name string) string {
	q := sqlitePragmas()
	q.Set("mode", "memory")
	q.Set("cache", "shared")
	return "file:" + url.PathEscape(name) + "?" + q.Encode()
}

func sqlitePragmas() url.Values {
	q := url.Values{}
	q.Add("_pragma", "foreign_keys(ON)")
	q.Add("_pragma", "busy_timeout(5000)")
	q.Set("_txlock", "immediate")
	return q
}

// Open wraps an already built driver DSN; Connect is the usual entry point.
func Open(driver, dsn string) (*DB, error) {
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}
	configurePool(db)
	return &DB{DB: db}, nil
}

func configurePool(db *sqlx.DB) {
	if db.DriverName() == DriverSQLite {
		// A single connection serializes writers; transactions start with
		// BEGIN IMMEDIATE so the rate window read-modify-write is exclusive.
		db.SetMaxOpenConns(1)
		return
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
}
