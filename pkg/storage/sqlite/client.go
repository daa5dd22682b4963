// Package sqlite provides the SQLite implementation of storage.Provider.
//
// SQLite is a lightweight, file-based database suitable for local agents and
// tests. Each record kind is stored in its own table; payloads are JSON strings
// in TEXT fields and timestamps are unix nanoseconds.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"github.com/oceanbase/finmem-go/pkg/storage/sqlbase"
)

const (
	// DriverCGO is the cgo driver from github.com/mattn/go-sqlite3.
	DriverCGO = "sqlite3"

	// DriverPure is the pure Go driver from modernc.org/sqlite.
	DriverPure = "sqlite"
)

// Client implements storage.Provider using SQLite as the backend.
type Client struct {
	*sqlbase.Provider

	// path is the database file path.
	path string
}

// Config contains configuration for creating a SQLite provider.
type Config struct {
	// DBPath is the path to the SQLite database file. ":memory:" opens a
	// private in-memory database.
	DBPath string

	// Driver selects the database/sql driver: DriverCGO (default) or DriverPure.
	Driver string

	// TablePrefix is prepended to every table name.
	TablePrefix string
}

// NewClient creates a new SQLite provider.
//
// Parameters:
//   - cfg: Configuration containing database path, driver and table prefix
//
// Returns:
//   - *Client: The SQLite client instance
//   - error: Error if the directory cannot be created or the connection fails
func NewClient(cfg *Config) (*Client, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = DriverCGO
	}
	if driver != DriverCGO && driver != DriverPure {
		return nil, fmt.Errorf("NewSQLiteClient: unknown driver %q", driver)
	}

	inMemory := cfg.DBPath == "" || cfg.DBPath == ":memory:"

	// Create parent directory if it doesn't exist
	if !inMemory {
		dbDir := filepath.Dir(cfg.DBPath)
		if dbDir != "" && dbDir != "." {
			if err := os.MkdirAll(dbDir, 0755); err != nil {
				return nil, fmt.Errorf("NewSQLiteClient: failed to create directory: %w", err)
			}
		}
	}

	db, err := sql.Open(driver, dataSource(driver, cfg.DBPath, inMemory))
	if err != nil {
		return nil, fmt.Errorf("NewSQLiteClient: %w", err)
	}

	// An in-memory database lives as long as its connection.
	if inMemory {
		db.SetMaxOpenConns(1)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("NewSQLiteClient: %w", err)
	}

	return &Client{
		Provider: sqlbase.NewProvider(db, Dialect, cfg.TablePrefix),
		path:     cfg.DBPath,
	}, nil
}

// Path returns the database file path.
func (c *Client) Path() string { return c.path }
