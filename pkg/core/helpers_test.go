package core_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	finmem "github.com/oceanbase/finmem-go/pkg/core"
	"github.com/oceanbase/finmem-go/pkg/record"
	"github.com/oceanbase/finmem-go/pkg/storage"
	sqliteStore "github.com/oceanbase/finmem-go/pkg/storage/sqlite"
)

const day = 24 * time.Hour

var errDisk = errors.New("disk on fire")

func ago(d time.Duration) time.Time {
	return time.Now().UTC().Add(-d)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testConfig persists to a fresh SQLite file with the retention task disabled.
func testConfig(t *testing.T) *finmem.Config {
	t.Helper()
	cfg := finmem.DefaultConfig()
	cfg.Persistence.Config = map[string]interface{}{
		"db_path": filepath.Join(t.TempDir(), "finmem.db"),
		"driver":  sqliteStore.DriverPure,
	}
	cfg.Retention.Enabled = false
	return cfg
}

func newManager(t *testing.T, cfg *finmem.Config, opts ...finmem.Option) *finmem.Manager {
	t.Helper()
	opts = append([]finmem.Option{finmem.WithLogger(quietLogger())}, opts...)
	m, err := finmem.NewManager(context.Background(), cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func market(id, symbol string, price float64, ts time.Time) *record.MarketObservation {
	return &record.MarketObservation{
		ID:        id,
		Symbol:    symbol,
		Price:     price,
		Volume:    1000,
		Timestamp: ts,
	}
}

func decision(id, symbol, action string, ts time.Time) *record.Decision {
	return &record.Decision{
		ID:         id,
		Symbol:     symbol,
		Action:     action,
		Confidence: record.ConfidenceMedium,
		Reasoning:  "breakout above resistance",
		Timestamp:  ts,
	}
}

// brokenProvider serves in-memory backends whose cleanup can be made to fail.
type brokenProvider struct {
	failCleanup atomic.Bool

	mu       sync.Mutex
	backends map[string]*brokenBackend
}

func newBrokenProvider() *brokenProvider {
	return &brokenProvider{backends: make(map[string]*brokenBackend)}
}

func (p *brokenProvider) Backend(_ context.Context, table string) (storage.Backend, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	b, ok := p.backends[table]
	if !ok {
		b = &brokenBackend{owner: p, rows: make(map[string]*storage.Row)}
		p.backends[table] = b
	}
	return b, nil
}

func (p *brokenProvider) Durable() bool { return true }

func (p *brokenProvider) Close() error { return nil }

type brokenBackend struct {
	owner *brokenProvider

	mu   sync.Mutex
	rows map[string]*storage.Row
}

func (b *brokenBackend) Get(_ context.Context, id string) (*storage.Row, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	row, ok := b.rows[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *row
	return &cp, nil
}

func (b *brokenBackend) Upsert(_ context.Context, row *storage.Row) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	cp := *row
	b.rows[row.ID] = &cp
	return nil
}

func (b *brokenBackend) Delete(_ context.Context, id string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.rows[id]
	delete(b.rows, id)
	return ok, nil
}

func (b *brokenBackend) Scan(_ context.Context, _ *storage.ScanOptions) ([]*storage.Row, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*storage.Row, 0, len(b.rows))
	for _, row := range b.rows {
		cp := *row
		out = append(out, &cp)
	}
	return out, nil
}

func (b *brokenBackend) DeleteBefore(_ context.Context, cutoff time.Time) ([]string, error) {
	if b.owner.failCleanup.Load() {
		return nil, errDisk
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	var ids []string
	for id, row := range b.rows {
		if row.Timestamp.Before(cutoff) {
			ids = append(ids, id)
			delete(b.rows, id)
		}
	}
	return ids, nil
}

func (b *brokenBackend) Count(context.Context) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.rows), nil
}
