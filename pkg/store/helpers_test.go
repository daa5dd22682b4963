package store_test

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oceanbase/finmem-go/pkg/record"
	"github.com/oceanbase/finmem-go/pkg/storage"
	sqliteStore "github.com/oceanbase/finmem-go/pkg/storage/sqlite"
)

var errDisk = errors.New("disk on fire")

func newSQLiteProvider(t *testing.T) storage.Provider {
	t.Helper()
	client, err := sqliteStore.NewClient(&sqliteStore.Config{
		DBPath: filepath.Join(t.TempDir(), "finmem.db"),
		Driver: sqliteStore.DriverPure,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

// flakyProvider serves in-memory backends whose operations can be made to fail.
type flakyProvider struct {
	mu       sync.Mutex
	backends map[string]*flakyBackend
}

func newFlakyProvider() *flakyProvider {
	return &flakyProvider{backends: make(map[string]*flakyBackend)}
}

func (p *flakyProvider) Backend(_ context.Context, table string) (storage.Backend, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	b, ok := p.backends[table]
	if !ok {
		b = &flakyBackend{rows: make(map[string]*storage.Row)}
		p.backends[table] = b
	}
	return b, nil
}

func (p *flakyProvider) Durable() bool { return true }
func (p *flakyProvider) Close() error  { return nil }

type flakyBackend struct {
	mu         sync.Mutex
	rows       map[string]*storage.Row
	failWrites bool
	failReads  bool
}

func (b *flakyBackend) setFailWrites(v bool) {
	b.mu.Lock()
	b.failWrites = v
	b.mu.Unlock()
}

func (b *flakyBackend) setFailReads(v bool) {
	b.mu.Lock()
	b.failReads = v
	b.mu.Unlock()
}

func (b *flakyBackend) Get(_ context.Context, id string) (*storage.Row, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failReads {
		return nil, errDisk
	}
	row, ok := b.rows[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *row
	return &cp, nil
}

func (b *flakyBackend) Upsert(_ context.Context, row *storage.Row) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failWrites {
		return errDisk
	}
	cp := *row
	b.rows[row.ID] = &cp
	return nil
}

func (b *flakyBackend) Delete(_ context.Context, id string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failWrites {
		return false, errDisk
	}
	_, ok := b.rows[id]
	delete(b.rows, id)
	return ok, nil
}

func (b *flakyBackend) Scan(_ context.Context, opts *storage.ScanOptions) ([]*storage.Row, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failReads {
		return nil, errDisk
	}
	if opts == nil {
		opts = &storage.ScanOptions{}
	}
	var out []*storage.Row
	for _, row := range b.rows {
		if opts.Symbol != "" && row.Symbol != opts.Symbol {
			continue
		}
		if opts.Action != "" && row.Action != opts.Action {
			continue
		}
		if !opts.Start.IsZero() && row.Timestamp.Before(opts.Start) {
			continue
		}
		if !opts.End.IsZero() && row.Timestamp.After(opts.End) {
			continue
		}
		cp := *row
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (b *flakyBackend) DeleteBefore(_ context.Context, cutoff time.Time) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failWrites {
		return nil, errDisk
	}
	var ids []string
	for id, row := range b.rows {
		if row.Timestamp.Before(cutoff) {
			ids = append(ids, id)
			delete(b.rows, id)
		}
	}
	return ids, nil
}

func (b *flakyBackend) Count(context.Context) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.rows), nil
}

func ago(d time.Duration) time.Time {
	return time.Now().UTC().Add(-d)
}

const day = 24 * time.Hour

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
		ID:             id,
		Symbol:         symbol,
		Action:         action,
		Confidence:     record.ConfidenceHigh,
		Reasoning:      "momentum and earnings beat",
		ExpectedReturn: 0.05,
		Timestamp:      ts,
	}
}

func ptr(f float64) *float64 { return &f }
