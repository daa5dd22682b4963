package core

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/oceanbase/finmem-go/pkg/intelligence"
	"github.com/oceanbase/finmem-go/pkg/record"
)

// Default configuration values.
const (
	DefaultConversationRetention = 30 * Day
	DefaultMarketRetention       = 90 * Day
	DefaultDecisionRetention     = 365 * Day
	DefaultCleanupInterval       = 6 * time.Hour
	DefaultRetryBackoff          = 30 * time.Second
	DefaultMaxBackoff            = 10 * time.Minute
)

// Day is a 24 hour duration.
const Day = 24 * time.Hour

// Config contains the complete configuration for a memory manager.
//
// It includes settings for:
//   - Persistence (durable backing store for every record kind)
//   - Cache (per-kind cache capacity)
//   - Retention (per-kind retention windows and the background cleanup task)
//   - Intelligence (decay and importance model for returned entries)
//   - IDs (id generation for records stored without one)
//
// Example:
//
//	config := &core.Config{
//	    Persistence: core.PersistenceConfig{
//	        Enabled:  true,
//	        Provider: "sqlite",
//	        Config: map[string]interface{}{
//	            "db_path": "./finmem.db",
//	        },
//	    },
//	    Retention: core.RetentionConfig{
//	        Enabled:         true,
//	        Conversation:    core.Duration(30 * core.Day),
//	        Market:          core.Duration(90 * core.Day),
//	        Decision:        core.Duration(365 * core.Day),
//	        CleanupInterval: core.Duration(6 * time.Hour),
//	    },
//	}
type Config struct {
	// Persistence contains durable store configuration.
	Persistence PersistenceConfig `json:"persistence"`

	// Cache contains per-kind cache capacities.
	Cache CacheConfig `json:"cache"`

	// Retention contains retention windows and cleanup task settings.
	Retention RetentionConfig `json:"retention"`

	// Intelligence contains the entry evaluation settings (optional).
	Intelligence *intelligence.Config `json:"intelligence,omitempty"`

	// IDs contains id generation settings.
	IDs IDConfig `json:"ids"`
}

// PersistenceConfig contains configuration for the durable store.
//
// Supported providers: sqlite, postgres, oceanbase
//
// Example:
//
//	persistence := core.PersistenceConfig{
//	    Enabled:  true,
//	    Provider: "postgres",
//	    Config: map[string]interface{}{
//	        "host":     "localhost",
//	        "port":     5432,
//	        "user":     "postgres",
//	        "password": "secret",
//	        "db_name":  "finmem",
//	    },
//	}
type PersistenceConfig struct {
	// Enabled indicates whether records are persisted. When false the
	// stores run cache-only.
	Enabled bool `json:"enabled"`

	// Provider is the durable store provider name (sqlite, postgres, oceanbase).
	Provider string `json:"provider"`

	// Config contains provider-specific configuration.
	// For SQLite: db_path, driver, table_prefix
	// For PostgreSQL: host, port, user, password, db_name, ssl_mode, table_prefix
	// For OceanBase: host, port, user, password, db_name, table_prefix
	Config map[string]interface{} `json:"config"`
}

// CacheConfig contains the cache capacity of each store. Zero means
// store.DefaultCacheLimit.
type CacheConfig struct {
	ConversationLimit int `json:"conversation_limit"`
	MarketLimit       int `json:"market_limit"`
	DecisionLimit     int `json:"decision_limit"`
}

// Limit returns the configured capacity for kind.
func (c CacheConfig) Limit(kind record.Kind) int {
	switch kind {
	case record.KindConversation:
		return c.ConversationLimit
	case record.KindMarket:
		return c.MarketLimit
	case record.KindDecision:
		return c.DecisionLimit
	}
	return 0
}

// RetentionConfig contains the retention windows and background task settings.
type RetentionConfig struct {
	// Enabled indicates whether Start runs the periodic cleanup task.
	// CleanupExpired can always be called directly.
	Enabled bool `json:"enabled"`

	// Conversation is the maximum age of a conversation since its last activity.
	Conversation Duration `json:"conversation"`

	// Market is the maximum age of a market observation.
	Market Duration `json:"market"`

	// Decision is the maximum age of a decision.
	Decision Duration `json:"decision"`

	// CleanupInterval is the time between two cleanup cycles.
	CleanupInterval Duration `json:"cleanup_interval"`

	// RetryBackoff is the first delay after a failed cycle; it doubles on
	// every consecutive failure. Default: 30s
	RetryBackoff Duration `json:"retry_backoff,omitempty"`

	// MaxBackoff caps the retry delay. Default: 10m
	MaxBackoff Duration `json:"max_backoff,omitempty"`

	// CleanupOnStart runs a cycle as soon as the task starts.
	CleanupOnStart bool `json:"cleanup_on_start,omitempty"`
}

// Window returns the retention window for kind.
func (r RetentionConfig) Window(kind record.Kind) time.Duration {
	switch kind {
	case record.KindConversation:
		return r.Conversation.Duration()
	case record.KindMarket:
		return r.Market.Duration()
	case record.KindDecision:
		return r.Decision.Duration()
	}
	return 0
}

// IDConfig selects the id generator.
type IDConfig struct {
	// Strategy is "snowflake" (default) or "ulid".
	Strategy string `json:"strategy,omitempty"`

	// Node is the snowflake node number (0-1023).
	Node int64 `json:"node,omitempty"`
}

// Duration is a time.Duration that reads and writes JSON as a string such
// as "6h" or "30d". Plain numbers are read as nanoseconds.
type Duration time.Duration

// Duration returns d as a time.Duration.
func (d Duration) Duration() time.Duration { return time.Duration(d) }

// String formats d, using whole days when possible.
func (d Duration) String() string {
	td := time.Duration(d)
	if td > 0 && td%Day == 0 {
		return strconv.FormatInt(int64(td/Day), 10) + "d"
	}
	return td.String()
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		parsed, err := ParseDuration(s)
		if err != nil {
			return err
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("duration must be a string or an integer: %s", data)
	}
	*d = Duration(n)
	return nil
}

// maxDays is the largest day count a time.Duration can hold.
const maxDays = math.MaxInt64 / int64(Day)

// ParseDuration parses a Go duration string, additionally accepting a
// whole number of days with a "d" suffix ("30d").
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.ParseInt(days, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		if n > maxDays || n < -maxDays {
			return 0, fmt.Errorf("duration %q out of range", s)
		}
		return time.Duration(n) * Day, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return d, nil
}

// DefaultConfig returns a configuration persisting to ./finmem.db with the
// default retention windows and the cleanup task enabled.
func DefaultConfig() *Config {
	return &Config{
		Persistence: PersistenceConfig{
			Enabled:  true,
			Provider: "sqlite",
			Config: map[string]interface{}{
				"db_path": "./finmem.db",
			},
		},
		Retention: RetentionConfig{
			Enabled:         true,
			Conversation:    Duration(DefaultConversationRetention),
			Market:          Duration(DefaultMarketRetention),
			Decision:        Duration(DefaultDecisionRetention),
			CleanupInterval: Duration(DefaultCleanupInterval),
			RetryBackoff:    Duration(DefaultRetryBackoff),
			MaxBackoff:      Duration(DefaultMaxBackoff),
		},
		Intelligence: intelligence.DefaultConfig(),
		IDs: IDConfig{
			Strategy: "snowflake",
			Node:     1,
		},
	}
}

// LoadConfigFromEnv loads configuration from environment variables.
//
// The function:
//  1. Searches for .env or .env.example files (up to 5 directory levels up)
//  2. Loads environment variables from the found file
//  3. Parses environment variables into a Config struct, starting from DefaultConfig
//
// Supported environment variables:
//   - FINMEM_PERSISTENCE_ENABLED (default true)
//   - DATABASE_PROVIDER (sqlite, postgres, oceanbase)
//   - SQLITE_PATH, SQLITE_DRIVER
//   - POSTGRES_HOST, POSTGRES_PORT, POSTGRES_USER, POSTGRES_PASSWORD, POSTGRES_DATABASE, POSTGRES_SSLMODE
//   - OCEANBASE_HOST, OCEANBASE_PORT, OCEANBASE_USER, OCEANBASE_PASSWORD, OCEANBASE_DATABASE
//   - FINMEM_TABLE_PREFIX
//   - FINMEM_CACHE_CONVERSATION_LIMIT, FINMEM_CACHE_MARKET_LIMIT, FINMEM_CACHE_DECISION_LIMIT
//   - FINMEM_RETENTION_ENABLED, FINMEM_RETENTION_CONVERSATION, FINMEM_RETENTION_MARKET,
//     FINMEM_RETENTION_DECISION, FINMEM_CLEANUP_INTERVAL, FINMEM_CLEANUP_ON_START
//   - FINMEM_ID_STRATEGY, FINMEM_ID_NODE
//
// Durations accept Go syntax ("6h") or days ("30d").
//
// Returns a Config instance, or an error if a variable cannot be parsed.
//
// Example:
//
//	config, err := core.LoadConfigFromEnv()
//	if err != nil {
//	    log.Fatal(err)
//	}
func LoadConfigFromEnv() (*Config, error) {
	// Use FindEnvFile to locate .env file (supports upward search)
	envPath, found := FindEnvFile()
	if found {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	config := DefaultConfig()
	p := &envParser{}

	config.Persistence.Enabled = p.getBool("FINMEM_PERSISTENCE_ENABLED", true)
	provider := getEnvOrDefault("DATABASE_PROVIDER", "sqlite")
	config.Persistence.Provider = provider

	var storeConfig map[string]interface{}
	switch provider {
	case "sqlite":
		storeConfig = map[string]interface{}{
			"db_path": getEnvOrDefault("SQLITE_PATH", "./finmem.db"),
			"driver":  os.Getenv("SQLITE_DRIVER"),
		}
	case "postgres":
		storeConfig = map[string]interface{}{
			"host":     getEnvOrDefault("POSTGRES_HOST", "localhost"),
			"port":     p.getInt("POSTGRES_PORT", 5432),
			"user":     getEnvOrDefault("POSTGRES_USER", "postgres"),
			"password": os.Getenv("POSTGRES_PASSWORD"),
			"db_name":  getEnvOrDefault("POSTGRES_DATABASE", "finmem"),
			"ssl_mode": getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
		}
	case "oceanbase":
		storeConfig = map[string]interface{}{
			"host":     getEnvOrDefault("OCEANBASE_HOST", "127.0.0.1"),
			"port":     p.getInt("OCEANBASE_PORT", 2881),
			"user":     getEnvOrDefault("OCEANBASE_USER", "root@sys"),
			"password": os.Getenv("OCEANBASE_PASSWORD"),
			"db_name":  getEnvOrDefault("OCEANBASE_DATABASE", "finmem"),
		}
	default:
		storeConfig = map[string]interface{}{}
	}
	if prefix := os.Getenv("FINMEM_TABLE_PREFIX"); prefix != "" {
		storeConfig["table_prefix"] = prefix
	}
	config.Persistence.Config = storeConfig

	config.Cache = CacheConfig{
		ConversationLimit: p.getInt("FINMEM_CACHE_CONVERSATION_LIMIT", 0),
		MarketLimit:       p.getInt("FINMEM_CACHE_MARKET_LIMIT", 0),
		DecisionLimit:     p.getInt("FINMEM_CACHE_DECISION_LIMIT", 0),
	}

	r := &config.Retention
	r.Enabled = p.getBool("FINMEM_RETENTION_ENABLED", r.Enabled)
	r.Conversation = p.getDuration("FINMEM_RETENTION_CONVERSATION", r.Conversation)
	r.Market = p.getDuration("FINMEM_RETENTION_MARKET", r.Market)
	r.Decision = p.getDuration("FINMEM_RETENTION_DECISION", r.Decision)
	r.CleanupInterval = p.getDuration("FINMEM_CLEANUP_INTERVAL", r.CleanupInterval)
	r.CleanupOnStart = p.getBool("FINMEM_CLEANUP_ON_START", r.CleanupOnStart)

	config.IDs.Strategy = getEnvOrDefault("FINMEM_ID_STRATEGY", config.IDs.Strategy)
	config.IDs.Node = int64(p.getInt("FINMEM_ID_NODE", int(config.IDs.Node)))

	if p.err != nil {
		return nil, NewMemoryError("LoadConfigFromEnv", p.err)
	}
	return config, nil
}

// LoadConfigFromEnvFile loads configuration from a specific .env file.
//
// Parameters:
//   - envPath: Path to the .env file
//
// Returns a Config instance, or an error if loading fails.
func LoadConfigFromEnvFile(envPath string) (*Config, error) {
	if err := godotenv.Load(envPath); err != nil {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}
	return LoadConfigFromEnv()
}

// LoadConfigFromJSON loads configuration from a JSON file.
//
// Fields missing from the file keep their DefaultConfig values.
//
// Parameters:
//   - path: Path to the JSON configuration file
//
// Returns a Config instance, or an error if loading or parsing fails.
func LoadConfigFromJSON(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewMemoryError("LoadConfigFromJSON", err)
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, NewMemoryError("LoadConfigFromJSON", err)
	}

	return config, nil
}

// Validate validates the configuration.
//
// Checks that:
//   - the persistence provider is known and carries its required settings
//   - cache limits are not negative
//   - every retention window is positive
//   - the cleanup interval is positive when the cleanup task is enabled
//   - the id strategy is known
//
// Returns an error wrapping ErrInvalidConfig if validation fails, nil otherwise.
func (c *Config) Validate() error {
	if c.Persistence.Enabled {
		cfg := c.Persistence.Config
		switch c.Persistence.Provider {
		case "sqlite":
			if configString(cfg, "db_path", "") == "" {
				return invalidConfig("sqlite requires db_path")
			}
		case "postgres", "oceanbase":
			if configString(cfg, "host", "") == "" {
				return invalidConfig("%s requires host", c.Persistence.Provider)
			}
		default:
			return invalidConfig("unknown persistence provider %q", c.Persistence.Provider)
		}
	}

	for _, kind := range record.Kinds {
		if c.Cache.Limit(kind) < 0 {
			return invalidConfig("negative cache limit for %s", kind)
		}
		if c.Retention.Window(kind) <= 0 {
			return invalidConfig("retention window for %s must be positive", kind)
		}
	}

	r := c.Retention
	if r.Enabled && r.CleanupInterval <= 0 {
		return invalidConfig("cleanup interval must be positive")
	}
	if r.RetryBackoff < 0 || r.MaxBackoff < 0 {
		return invalidConfig("retry backoff must not be negative")
	}

	switch c.IDs.Strategy {
	case "", "snowflake", "ulid":
	default:
		return invalidConfig("unknown id strategy %q", c.IDs.Strategy)
	}
	return nil
}

// envParser reads typed environment variables and keeps the first error.
type envParser struct {
	err error
}

func (p *envParser) fail(key, value string) {
	if p.err == nil {
		p.err = fmt.Errorf("%w: %s=%q", ErrInvalidConfig, key, value)
	}
}

func (p *envParser) getInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(key, v)
		return def
	}
	return n
}

func (p *envParser) getBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(key, v)
		return def
	}
	return b
}

func (p *envParser) getDuration(key string, def Duration) Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := ParseDuration(v)
	if err != nil {
		p.fail(key, v)
		return def
	}
	return Duration(d)
}

// getEnvOrDefault gets an environment variable or returns the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// configString reads a string setting from a provider config map.
func configString(cfg map[string]interface{}, key, def string) string {
	if s, ok := cfg[key].(string); ok && s != "" {
		return s
	}
	return def
}

// configInt reads an integer setting from a provider config map. JSON
// numbers arrive as float64 and env values as int.
func configInt(cfg map[string]interface{}, key string, def int) int {
	switch v := cfg[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// FindEnvFile searches for .env or .env.example files.
//
// The search:
//  1. Checks the current directory
//  2. Searches up to 5 directory levels up
//  3. Returns the first .env or .env.example file found
//
// Returns:
//   - path: Path to the found file (empty if not found)
//   - found: True if a file was found, false otherwise
func FindEnvFile() (string, bool) {
	if _, err := os.Stat(".env"); err == nil {
		return ".env", true
	}
	if _, err := os.Stat(".env.example"); err == nil {
		return ".env.example", true
	}

	dir, _ := os.Getwd()
	for i := 0; i < 5; i++ {
		envPath := filepath.Join(dir, ".env")
		envExamplePath := filepath.Join(dir, ".env.example")

		if _, err := os.Stat(envPath); err == nil {
			return envPath, true
		}
		if _, err := os.Stat(envExamplePath); err == nil {
			return envExamplePath, true
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", false
}
