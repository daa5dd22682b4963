package sqlbase

import (
	"context"
	"database/sql"
	"sync"

	"github.com/oceanbase/finmem-go/pkg/storage"
)

// Provider implements storage.Provider over one *sql.DB.
type Provider struct {
	db      *sql.DB
	dialect Dialect
	prefix  string

	mu     sync.Mutex
	tables map[string]*Table
}

// NewProvider wraps an open database. Table names are prefixed with prefix.
func NewProvider(db *sql.DB, dialect Dialect, prefix string) *Provider {
	return &Provider{
		db:      db,
		dialect: dialect,
		prefix:  prefix,
		tables:  make(map[string]*Table),
	}
}

// Backend implements storage.Provider.
func (p *Provider) Backend(ctx context.Context, table string) (storage.Backend, error) {
	name := p.prefix + table

	p.mu.Lock()
	defer p.mu.Unlock()

	if t, ok := p.tables[name]; ok {
		return t, nil
	}
	t, err := OpenTable(ctx, p.db, p.dialect, name)
	if err != nil {
		return nil, err
	}
	p.tables[name] = t
	return t, nil
}

// Durable implements storage.Provider.
func (p *Provider) Durable() bool { return true }

// DB returns the underlying connection.
func (p *Provider) DB() *sql.DB { return p.db }

// Close closes the database connection.
func (p *Provider) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}
