package core

import (
	"context"
	"time"
)

// Start launches the background retention task, which calls
// CleanupExpired every Retention.CleanupInterval.
//
// It does nothing when retention is disabled or the task is already
// running. A failed cycle is logged and retried after a backoff that starts
// at Retention.RetryBackoff and doubles up to Retention.MaxBackoff; the
// task itself never exits on error.
//
// The task stops when Stop or Close is called or when ctx is cancelled.
// After ctx is cancelled, Start can be called again with a new context.
//
// Example:
//
//	if err := manager.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer manager.Stop()
func (m *Manager) Start(ctx context.Context) error {
	if m.closed.Load() {
		return NewMemoryError("Start", ErrManagerStopped)
	}
	if !m.config.Retention.Enabled {
		m.logger.Info("retention task disabled")
		return nil
	}

	m.runMu.Lock()
	defer m.runMu.Unlock()
	if m.cancel != nil {
		select {
		case <-m.done:
			// The previous loop exited because its parent context ended.
			m.cancel()
			m.cancel, m.done = nil, nil
		default:
			return nil
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	m.cancel, m.done = cancel, done

	go m.runRetention(runCtx, done)
	return nil
}

// Stop cancels the retention task and waits for it to exit. A cleanup
// cycle already in progress is allowed to finish; no new cycle starts.
// Stop is safe to call when the task is not running.
func (m *Manager) Stop() {
	m.runMu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.runMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether the retention task is running.
func (m *Manager) Running() bool {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	if m.done == nil {
		return false
	}
	select {
	case <-m.done:
		return false
	default:
		return true
	}
}

func (m *Manager) runRetention(ctx context.Context, done chan struct{}) {
	defer close(done)

	r := m.config.Retention
	interval := r.CleanupInterval.Duration()
	retry := newBackoff(r.RetryBackoff.Duration(), r.MaxBackoff.Duration())

	m.logger.Info("retention task started", "interval", interval)
	defer m.logger.Info("retention task stopped")

	wait := interval
	if r.CleanupOnStart {
		wait = 0
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		if m.closed.Load() {
			return
		}

		// The cycle runs detached from ctx so a Stop during the cycle lets it finish.
		start := time.Now()
		removed, err := m.CleanupExpired(context.WithoutCancel(ctx))
		if err != nil {
			delay := retry.next()
			m.logger.Error("cleanup cycle failed",
				"op", "CleanupExpired",
				"removed", removed,
				"retry_in", delay,
				"err", err,
			)
			timer.Reset(delay)
			continue
		}

		retry.reset()
		m.logger.Info("cleanup cycle finished",
			"op", "CleanupExpired",
			"count", removed,
			"elapsed", time.Since(start),
		)
		timer.Reset(interval)
	}
}

// backoff is a doubling retry delay with an upper bound.
type backoff struct {
	initial time.Duration
	limit   time.Duration
	current time.Duration
}

func newBackoff(initial, limit time.Duration) *backoff {
	if initial <= 0 {
		initial = DefaultRetryBackoff
	}
	if limit <= 0 {
		limit = DefaultMaxBackoff
	}
	if limit < initial {
		limit = initial
	}
	return &backoff{initial: initial, limit: limit}
}

// next returns the delay for the next retry.
func (b *backoff) next() time.Duration {
	if b.current == 0 {
		b.current = b.initial
	} else {
		b.current *= 2
	}
	if b.current > b.limit {
		b.current = b.limit
	}
	return b.current
}

func (b *backoff) reset() { b.current = 0 }
