package storage

import (
	"context"
	"time"
)

// NopProvider is the provider used when persistence is disabled.
// Its backends store nothing and report zero rows.
type NopProvider struct{}

// Backend implements Provider.
func (NopProvider) Backend(context.Context, string) (Backend, error) { return nopBackend{}, nil }

// Durable implements Provider.
func (NopProvider) Durable() bool { return false }

// Close implements Provider.
func (NopProvider) Close() error { return nil }

type nopBackend struct{}

func (nopBackend) Get(context.Context, string) (*Row, error)                 { return nil, ErrNotFound }
func (nopBackend) Upsert(context.Context, *Row) error                        { return nil }
func (nopBackend) Delete(context.Context, string) (bool, error)              { return false, nil }
func (nopBackend) Scan(context.Context, *ScanOptions) ([]*Row, error)        { return nil, nil }
func (nopBackend) DeleteBefore(context.Context, time.Time) ([]string, error) { return nil, nil }
func (nopBackend) Count(context.Context) (int, error)                        { return 0, nil }
