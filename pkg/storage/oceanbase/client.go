package oceanbase

import (
	"database/sql"
	"fmt"

	"github.com/oceanbase/finmem-go/pkg/storage/sqlbase"
)

// Client is an OceanBase storage provider speaking the MySQL protocol.
type Client struct {
	*sqlbase.Provider
	config *Config
}

// Config contains OceanBase configuration.
type Config struct {
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	TablePrefix string
}

// NewClient creates a new OceanBase client.
func NewClient(cfg *Config) (*Client, error) {
	db, err := sql.Open("mysql", dsn(cfg))
	if err != nil {
		return nil, fmt.Errorf("NewOceanBaseClient: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("NewOceanBaseClient: %w", err)
	}

	return &Client{
		Provider: sqlbase.NewProvider(db, Dialect, cfg.TablePrefix),
		config:   cfg,
	}, nil
}

// DBName returns the configured database name.
func (c *Client) DBName() string { return c.config.DBName }
