package core

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oceanbase/finmem-go/pkg/idgen"
	"github.com/oceanbase/finmem-go/pkg/intelligence"
	"github.com/oceanbase/finmem-go/pkg/record"
	"github.com/oceanbase/finmem-go/pkg/storage"
	"github.com/oceanbase/finmem-go/pkg/storage/oceanbase"
	postgresStore "github.com/oceanbase/finmem-go/pkg/storage/postgres"
	sqliteStore "github.com/oceanbase/finmem-go/pkg/storage/sqlite"
	"github.com/oceanbase/finmem-go/pkg/store"
)

// Manager is the entry point of the memory subsystem.
//
// It owns one store per record kind and provides:
//   - Routing of Store, Get and Delete to the store of the record kind
//   - Search fanned out to every store and merged by relevance
//   - Retention cleanup with per-kind windows, on demand or on a schedule
//   - Decision outcome tracking and performance analysis
//   - Aggregated statistics
//
// The manager is thread-safe and can be used concurrently from multiple goroutines.
//
// Example usage:
//
//	config, _ := core.LoadConfigFromEnv()
//	manager, _ := core.NewManager(ctx, config)
//	defer manager.Close()
//
//	_ = manager.Start(ctx)
//	id, _ := manager.StoreMarket(ctx, &record.MarketObservation{
//	    Symbol: "AAPL",
//	    Price:  187.2,
//	})
type Manager struct {
	// config contains the manager configuration.
	config *Config

	// provider opens the durable backends of the stores.
	provider storage.Provider

	// ownsProvider is true when the manager opened provider and must close it.
	ownsProvider bool

	conversations *store.ConversationStore
	markets       *store.MarketStore
	decisions     *store.DecisionStore

	// stores routes by kind.
	stores map[record.Kind]store.KindStore

	// intel fills the derived fields of returned entries.
	intel *intelligence.Manager

	logger *slog.Logger
	now    func() time.Time

	stored          atomic.Int64
	deleted         atomic.Int64
	searches        atomic.Int64
	cleanupRuns     atomic.Int64
	cleanupFailures atomic.Int64

	// cleanupMu guards the last cleanup result.
	cleanupMu          sync.Mutex
	lastCleanupAt      time.Time
	lastCleanupRemoved int

	// runMu guards the retention task state.
	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	closed atomic.Bool
}

// NewManager creates a memory manager.
//
// The manager is initialized with:
//   - A durable store provider (SQLite, PostgreSQL or OceanBase), or the
//     no-op provider when persistence is disabled
//   - One store per record kind, with indices rebuilt from the durable store
//   - The entry evaluation model
//
// The retention task is not started; call Start.
//
// Parameters:
//   - ctx: Context for the initial connection and index rebuild
//   - cfg: Configuration (nil uses DefaultConfig)
//   - opts: Optional settings (logger, provider, id generator, clock)
//
// Returns a new Manager, or an error if the configuration is invalid or a
// store cannot be opened.
//
// Example:
//
//	config := core.DefaultConfig()
//	config.Persistence.Config["db_path"] = "./agent.db"
//	manager, err := core.NewManager(ctx, config, core.WithLogger(logger))
func NewManager(ctx context.Context, cfg *Config, opts ...Option) (*Manager, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	o := applyOptions(opts)

	// Validate before any I/O. An injected provider replaces the
	// persistence settings, so only the rest of the config is checked.
	check := *cfg
	if o.provider != nil {
		check.Persistence = PersistenceConfig{}
	}
	if err := check.Validate(); err != nil {
		return nil, err
	}

	ids := o.ids
	if ids == nil {
		gen, err := idgen.New(cfg.IDs.Strategy, cfg.IDs.Node)
		if err != nil {
			return nil, NewMemoryError("NewManager", errors.Join(ErrInvalidConfig, err))
		}
		ids = gen
	}

	provider := o.provider
	owns := false
	if provider == nil {
		p, err := initStorage(cfg.Persistence)
		if err != nil {
			return nil, NewMemoryError("NewManager", err)
		}
		provider, owns = p, true
	}

	m := &Manager{
		config:       cfg,
		provider:     provider,
		ownsProvider: owns,
		intel:        intelligence.NewManager(cfg.Intelligence),
		logger:       o.logger,
		now:          o.now,
	}

	storeOpts := func(kind record.Kind) *store.Options {
		return &store.Options{
			CacheLimit: cfg.Cache.Limit(kind),
			Logger:     o.logger,
			IDs:        ids,
			Now:        o.now,
		}
	}

	var err error
	if m.conversations, err = store.NewConversationStore(ctx, provider, storeOpts(record.KindConversation)); err != nil {
		m.closeProvider()
		return nil, NewMemoryError("NewManager", err)
	}
	if m.markets, err = store.NewMarketStore(ctx, provider, storeOpts(record.KindMarket)); err != nil {
		m.closeProvider()
		return nil, NewMemoryError("NewManager", err)
	}
	if m.decisions, err = store.NewDecisionStore(ctx, provider, storeOpts(record.KindDecision)); err != nil {
		m.closeProvider()
		return nil, NewMemoryError("NewManager", err)
	}

	m.stores = map[record.Kind]store.KindStore{
		record.KindConversation: m.conversations,
		record.KindMarket:       m.markets,
		record.KindDecision:     m.decisions,
	}

	m.logger.Info("memory manager ready",
		"durable", provider.Durable(),
		"provider", cfg.Persistence.Provider,
	)
	return m, nil
}

// Conversations returns the conversation store.
func (m *Manager) Conversations() *store.ConversationStore { return m.conversations }

// Markets returns the market observation store.
func (m *Manager) Markets() *store.MarketStore { return m.markets }

// Decisions returns the decision store.
func (m *Manager) Decisions() *store.DecisionStore { return m.decisions }

// Config returns the manager configuration.
func (m *Manager) Config() *Config { return m.config }

func (m *Manager) route(kind record.Kind) (store.KindStore, error) {
	if m.closed.Load() {
		return nil, ErrManagerStopped
	}
	st, ok := m.stores[kind]
	if !ok {
		return nil, ErrUnknownKind
	}
	return st, nil
}

// Store saves rec in the store of its kind and returns its id.
//
// Records without an id get a generated one. Storing an existing id
// replaces the previous record.
//
// Parameters:
//   - ctx: Context for cancellation
//   - rec: A *record.Conversation, *record.MarketObservation or *record.Decision
//
// Returns the record id, or an error matching ErrInvalidRecord or
// ErrPersistence. On error nothing was written.
func (m *Manager) Store(ctx context.Context, rec record.Record) (string, error) {
	if rec == nil {
		return "", NewMemoryError("Store", ErrInvalidRecord)
	}
	st, err := m.route(rec.RecordKind())
	if err != nil {
		return "", NewMemoryError("Store", err)
	}
	id, err := st.StoreRecord(ctx, rec)
	if err != nil {
		return "", NewMemoryError("Store", err)
	}
	m.stored.Add(1)
	return id, nil
}

// StoreConversation saves a conversation.
func (m *Manager) StoreConversation(ctx context.Context, c *record.Conversation) (string, error) {
	return m.Store(ctx, c)
}

// StoreMarket saves a market observation.
func (m *Manager) StoreMarket(ctx context.Context, obs *record.MarketObservation) (string, error) {
	return m.Store(ctx, obs)
}

// StoreDecision saves a decision.
func (m *Manager) StoreDecision(ctx context.Context, d *record.Decision) (string, error) {
	return m.Store(ctx, d)
}

// Get retrieves a record by kind and id, wrapped in an entry with its
// importance, access statistics and decayed relevance.
//
// A missing record is reported with found == false and a nil error.
//
// Example:
//
//	entry, found, err := manager.Get(ctx, record.KindDecision, id)
//	if err == nil && found {
//	    d, _ := entry.Decision()
//	    fmt.Println(d.Action, entry.RelevanceScore)
//	}
func (m *Manager) Get(ctx context.Context, kind record.Kind, id string) (*record.Entry, bool, error) {
	st, err := m.route(kind)
	if err != nil {
		return nil, false, NewMemoryError("Get", err)
	}
	rec, found, err := st.GetRecord(ctx, id)
	if err != nil {
		return nil, false, NewMemoryError("Get", err)
	}
	if !found {
		return nil, false, nil
	}
	return m.entry(st, rec, 0), true, nil
}

// entry wraps rec and fills its derived fields.
func (m *Manager) entry(st store.KindStore, rec record.Record, score float64) *record.Entry {
	e := record.NewEntry(rec)
	count, last := st.Access(rec.RecordID())
	m.intel.Annotate(e, count, last, m.now())
	e.Score = score
	return e
}

// Delete removes a record by kind and id and reports whether it existed.
func (m *Manager) Delete(ctx context.Context, kind record.Kind, id string) (bool, error) {
	st, err := m.route(kind)
	if err != nil {
		return false, NewMemoryError("Delete", err)
	}
	removed, err := st.Delete(ctx, id)
	if err != nil {
		return false, NewMemoryError("Delete", err)
	}
	if removed {
		m.deleted.Add(1)
	}
	return removed, nil
}

// Search searches every store allowed by the options and returns the
// merged matches.
//
// Each store ranks its own matches; the merged list is ordered by score
// (highest first), then by record time (newest first), and truncated to
// the limit (DefaultSearchLimit unless WithLimit is given).
//
// Parameters:
//   - ctx: Context for cancellation
//   - text: Search text (empty matches every record passing the filters)
//   - opts: Optional parameters (Kinds, TimeRange, MetadataFilter, Limit)
//
// Example:
//
//	entries, err := manager.Search(ctx, "AAPL",
//	    core.WithKinds(record.KindDecision),
//	    core.WithLimit(5),
//	)
func (m *Manager) Search(ctx context.Context, text string, opts ...SearchOption) ([]*record.Entry, error) {
	return m.SearchWithQuery(ctx, applySearchOptions(text, opts))
}

// SearchWithQuery is Search with an explicit query.
func (m *Manager) SearchWithQuery(ctx context.Context, q *SearchQuery) ([]*record.Entry, error) {
	if q == nil {
		q = &SearchQuery{Limit: DefaultSearchLimit}
	}
	if m.closed.Load() {
		return nil, NewMemoryError("Search", ErrManagerStopped)
	}
	for _, kind := range q.Kinds {
		if !kind.Valid() {
			return nil, NewMemoryError("Search", ErrUnknownKind)
		}
	}
	m.searches.Add(1)

	type found struct {
		st   store.KindStore
		hits []store.Hit
		err  error
	}

	// Every store receives the overall limit so the merged top results are exact.
	sq := q.storeQuery()
	var targets []store.KindStore
	for _, kind := range record.Kinds {
		if q.allows(kind) {
			targets = append(targets, m.stores[kind])
		}
	}

	results := make([]found, len(targets))
	var wg sync.WaitGroup
	for i, st := range targets {
		wg.Add(1)
		go func(i int, st store.KindStore) {
			defer wg.Done()
			hits, err := st.SearchRecords(ctx, sq)
			results[i] = found{st: st, hits: hits, err: err}
		}(i, st)
	}
	wg.Wait()

	type scored struct {
		st  store.KindStore
		hit store.Hit
	}
	var merged []scored
	var errs []error
	for _, r := range results {
		if r.err != nil {
			errs = append(errs, r.err)
			continue
		}
		for _, h := range r.hits {
			merged = append(merged, scored{st: r.st, hit: h})
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, NewMemoryError("Search", err)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		a, b := merged[i].hit, merged[j].hit
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		ta, tb := a.Record.RecordTime(), b.Record.RecordTime()
		if !ta.Equal(tb) {
			return ta.After(tb)
		}
		return a.Record.RecordID() < b.Record.RecordID()
	})
	if q.Limit > 0 && len(merged) > q.Limit {
		merged = merged[:q.Limit]
	}

	entries := make([]*record.Entry, len(merged))
	for i, s := range merged {
		entries[i] = m.entry(s.st, s.hit.Record, s.hit.Score)
	}
	return entries, nil
}

// QueryMarket returns market observations matching f, newest first.
func (m *Manager) QueryMarket(ctx context.Context, f *store.Filter) ([]*record.MarketObservation, error) {
	if m.closed.Load() {
		return nil, NewMemoryError("QueryMarket", ErrManagerStopped)
	}
	out, err := m.markets.Query(ctx, f)
	return out, NewMemoryError("QueryMarket", err)
}

// QueryDecisions returns decisions matching f, newest first.
func (m *Manager) QueryDecisions(ctx context.Context, f *store.Filter) ([]*record.Decision, error) {
	if m.closed.Load() {
		return nil, NewMemoryError("QueryDecisions", ErrManagerStopped)
	}
	out, err := m.decisions.Query(ctx, f)
	return out, NewMemoryError("QueryDecisions", err)
}

// QueryConversations returns conversations matching f, most recently
// active first. Filter.Symbol selects a topic.
func (m *Manager) QueryConversations(ctx context.Context, f *store.Filter) ([]*record.Conversation, error) {
	if m.closed.Load() {
		return nil, NewMemoryError("QueryConversations", ErrManagerStopped)
	}
	out, err := m.conversations.Query(ctx, f)
	return out, NewMemoryError("QueryConversations", err)
}

// LatestMarket returns the newest observation for symbol.
func (m *Manager) LatestMarket(ctx context.Context, symbol string) (*record.MarketObservation, bool, error) {
	if m.closed.Load() {
		return nil, false, NewMemoryError("LatestMarket", ErrManagerStopped)
	}
	obs, found, err := m.markets.Latest(ctx, symbol)
	return obs, found, NewMemoryError("LatestMarket", err)
}

// AppendMessage appends a message to an existing conversation and returns
// the updated conversation. found is false if the conversation is unknown.
func (m *Manager) AppendMessage(ctx context.Context, id string, role record.Role, content string) (*record.Conversation, bool, error) {
	if m.closed.Load() {
		return nil, false, NewMemoryError("AppendMessage", ErrManagerStopped)
	}
	c, found, err := m.conversations.AppendMessage(ctx, id, role, content)
	return c, found, NewMemoryError("AppendMessage", err)
}

// UpdateOutcome records the realised outcome of a decision. It returns
// false if the decision is unknown.
//
// Example:
//
//	ok, err := manager.UpdateOutcome(ctx, decisionID, 0.042) // +4.2%
func (m *Manager) UpdateOutcome(ctx context.Context, id string, outcome float64) (bool, error) {
	if m.closed.Load() {
		return false, NewMemoryError("UpdateOutcome", ErrManagerStopped)
	}
	ok, err := m.decisions.UpdateOutcome(ctx, id, outcome)
	return ok, NewMemoryError("UpdateOutcome", err)
}

// PerformanceAnalysis aggregates decision outcomes over the last
// windowDays days (zero or less means all time), optionally restricted to
// a symbol and an action. An empty result is not an error.
//
// Example:
//
//	perf, _ := manager.PerformanceAnalysis(ctx, "AAPL", "", 30)
//	fmt.Printf("success rate %.0f%%\n", perf.SuccessRate*100)
func (m *Manager) PerformanceAnalysis(ctx context.Context, symbol, action string, windowDays int) (*store.Performance, error) {
	if m.closed.Load() {
		return nil, NewMemoryError("PerformanceAnalysis", ErrManagerStopped)
	}
	perf, err := m.decisions.PerformanceAnalysis(ctx, symbol, action, windowDays)
	return perf, NewMemoryError("PerformanceAnalysis", err)
}

// CleanupExpired removes expired records from every store, using the
// retention window configured for each kind, and returns the total number
// removed.
//
// A failing store does not stop the others; their errors are joined.
func (m *Manager) CleanupExpired(ctx context.Context) (int, error) {
	if m.closed.Load() {
		return 0, NewMemoryError("CleanupExpired", ErrManagerStopped)
	}

	total := 0
	var errs []error
	for _, kind := range record.Kinds {
		n, err := m.stores[kind].CleanupExpired(ctx, m.config.Retention.Window(kind))
		total += n
		if err != nil {
			errs = append(errs, err)
		}
	}
	err := errors.Join(errs...)

	m.cleanupRuns.Add(1)
	if err != nil {
		m.cleanupFailures.Add(1)
	}
	m.cleanupMu.Lock()
	m.lastCleanupAt = m.now()
	m.lastCleanupRemoved = total
	m.cleanupMu.Unlock()

	return total, NewMemoryError("CleanupExpired", err)
}

// Stats reports the stats of every store plus the manager counters.
func (m *Manager) Stats(ctx context.Context) (*Stats, error) {
	if m.closed.Load() {
		return nil, NewMemoryError("Stats", ErrManagerStopped)
	}

	stats := &Stats{
		Stores:           make(map[record.Kind]store.Stats, len(m.stores)),
		RetentionRunning: m.Running(),
	}
	for _, kind := range record.Kinds {
		st, err := m.stores[kind].Stats(ctx)
		if err != nil {
			return nil, NewMemoryError("Stats", err)
		}
		stats.Stores[kind] = st
	}

	m.cleanupMu.Lock()
	stats.Counters = Counters{
		Stored:             m.stored.Load(),
		Deleted:            m.deleted.Load(),
		Searches:           m.searches.Load(),
		CleanupRuns:        m.cleanupRuns.Load(),
		CleanupFailures:    m.cleanupFailures.Load(),
		LastCleanupAt:      m.lastCleanupAt,
		LastCleanupRemoved: m.lastCleanupRemoved,
	}
	m.cleanupMu.Unlock()

	return stats, nil
}

// Close stops the retention task and closes the storage provider if the
// manager opened it. Further calls fail with ErrManagerStopped.
func (m *Manager) Close() error {
	if m.closed.Swap(true) {
		return nil
	}
	m.Stop()
	if err := m.closeProvider(); err != nil {
		return NewMemoryError("Close", err)
	}
	return nil
}

func (m *Manager) closeProvider() error {
	if !m.ownsProvider || m.provider == nil {
		return nil
	}
	return m.provider.Close()
}

// initStorage initializes the storage provider.
func initStorage(cfg PersistenceConfig) (storage.Provider, error) {
	if !cfg.Enabled {
		return storage.NopProvider{}, nil
	}
	c := cfg.Config
	prefix := configString(c, "table_prefix", "")
	switch cfg.Provider {
	case "sqlite":
		return sqliteStore.NewClient(&sqliteStore.Config{
			DBPath:      configString(c, "db_path", ""),
			Driver:      configString(c, "driver", ""),
			TablePrefix: prefix,
		})
	case "postgres":
		return postgresStore.NewClient(&postgresStore.Config{
			Host:        configString(c, "host", "localhost"),
			Port:        configInt(c, "port", 5432),
			User:        configString(c, "user", "postgres"),
			Password:    configString(c, "password", ""),
			DBName:      configString(c, "db_name", "finmem"),
			SSLMode:     configString(c, "ssl_mode", "disable"),
			TablePrefix: prefix,
		})
	case "oceanbase":
		return oceanbase.NewClient(&oceanbase.Config{
			Host:        configString(c, "host", "127.0.0.1"),
			Port:        configInt(c, "port", 2881),
			User:        configString(c, "user", "root@sys"),
			Password:    configString(c, "password", ""),
			DBName:      configString(c, "db_name", "finmem"),
			TablePrefix: prefix,
		})
	default:
		return nil, ErrInvalidConfig
	}
}
