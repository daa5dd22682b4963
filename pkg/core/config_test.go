package core_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	finmem "github.com/oceanbase/finmem-go/pkg/core"
	"github.com/oceanbase/finmem-go/pkg/record"
)

func TestLoadConfigFromEnv(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		check   func(t *testing.T, cfg *finmem.Config)
	}{
		{
			name: "sqlite with custom retention",
			envVars: map[string]string{
				"DATABASE_PROVIDER":             "sqlite",
				"SQLITE_PATH":                   "./test.db",
				"FINMEM_RETENTION_MARKET":       "45d",
				"FINMEM_CLEANUP_INTERVAL":       "2h",
				"FINMEM_CACHE_DECISION_LIMIT":   "50",
				"FINMEM_RETENTION_CONVERSATION": "12h",
			},
			check: func(t *testing.T, cfg *finmem.Config) {
				assert.Equal(t, "sqlite", cfg.Persistence.Provider)
				assert.Equal(t, "./test.db", cfg.Persistence.Config["db_path"])
				assert.Equal(t, 45*finmem.Day, cfg.Retention.Window(record.KindMarket))
				assert.Equal(t, 12*time.Hour, cfg.Retention.Window(record.KindConversation))
				assert.Equal(t, finmem.DefaultDecisionRetention, cfg.Retention.Window(record.KindDecision))
				assert.Equal(t, 2*time.Hour, cfg.Retention.CleanupInterval.Duration())
				assert.Equal(t, 50, cfg.Cache.DecisionLimit)
			},
		},
		{
			name: "postgres",
			envVars: map[string]string{
				"DATABASE_PROVIDER":   "postgres",
				"POSTGRES_HOST":       "db.internal",
				"POSTGRES_PORT":       "6543",
				"FINMEM_TABLE_PREFIX": "agent1_",
			},
			check: func(t *testing.T, cfg *finmem.Config) {
				assert.Equal(t, "postgres", cfg.Persistence.Provider)
				assert.Equal(t, "db.internal", cfg.Persistence.Config["host"])
				assert.Equal(t, 6543, cfg.Persistence.Config["port"])
				assert.Equal(t, "agent1_", cfg.Persistence.Config["table_prefix"])
			},
		},
		{
			name: "persistence and retention disabled",
			envVars: map[string]string{
				"FINMEM_PERSISTENCE_ENABLED": "false",
				"FINMEM_RETENTION_ENABLED":   "false",
				"FINMEM_ID_STRATEGY":         "ulid",
			},
			check: func(t *testing.T, cfg *finmem.Config) {
				assert.False(t, cfg.Persistence.Enabled)
				assert.False(t, cfg.Retention.Enabled)
				assert.Equal(t, "ulid", cfg.IDs.Strategy)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			config, err := finmem.LoadConfigFromEnv()
			require.NoError(t, err)
			require.NotNil(t, config)
			tt.check(t, config)
			assert.NoError(t, config.Validate())
		})
	}
}

func TestLoadConfigFromEnv_InvalidValue(t *testing.T) {
	t.Setenv("FINMEM_RETENTION_MARKET", "ninety days")

	config, err := finmem.LoadConfigFromEnv()
	assert.Nil(t, config)
	assert.ErrorIs(t, err, finmem.ErrInvalidConfig)
}

func TestLoadConfigFromEnv_DayCountOutOfRange(t *testing.T) {
	t.Setenv("FINMEM_RETENTION_DECISION", "200000d")

	config, err := finmem.LoadConfigFromEnv()
	assert.Nil(t, config)
	assert.ErrorIs(t, err, finmem.ErrInvalidConfig)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *finmem.Config)
		wantErr bool
	}{
		{name: "default", mutate: func(*finmem.Config) {}},
		{
			name:    "zero retention window",
			mutate:  func(cfg *finmem.Config) { cfg.Retention.Decision = 0 },
			wantErr: true,
		},
		{
			name:    "negative retention window",
			mutate:  func(cfg *finmem.Config) { cfg.Retention.Conversation = finmem.Duration(-time.Hour) },
			wantErr: true,
		},
		{
			name:    "unknown provider",
			mutate:  func(cfg *finmem.Config) { cfg.Persistence.Provider = "redis" },
			wantErr: true,
		},
		{
			name: "unknown provider ignored when persistence is off",
			mutate: func(cfg *finmem.Config) {
				cfg.Persistence.Enabled = false
				cfg.Persistence.Provider = "redis"
			},
		},
		{
			name:    "sqlite without path",
			mutate:  func(cfg *finmem.Config) { cfg.Persistence.Config = map[string]interface{}{} },
			wantErr: true,
		},
		{
			name: "postgres without host",
			mutate: func(cfg *finmem.Config) {
				cfg.Persistence.Provider = "postgres"
				cfg.Persistence.Config = map[string]interface{}{"user": "postgres"}
			},
			wantErr: true,
		},
		{
			name:    "negative cache limit",
			mutate:  func(cfg *finmem.Config) { cfg.Cache.MarketLimit = -1 },
			wantErr: true,
		},
		{
			name:    "zero interval with task enabled",
			mutate:  func(cfg *finmem.Config) { cfg.Retention.CleanupInterval = 0 },
			wantErr: true,
		},
		{
			name: "zero interval with task disabled",
			mutate: func(cfg *finmem.Config) {
				cfg.Retention.Enabled = false
				cfg.Retention.CleanupInterval = 0
			},
		},
		{
			name:    "unknown id strategy",
			mutate:  func(cfg *finmem.Config) { cfg.IDs.Strategy = "uuid-v9" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := finmem.DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, finmem.ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadConfigFromJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "finmem.json")
	data := `{
		"persistence": {"enabled": false},
		"retention": {"market": "7d", "cleanup_interval": "30m"},
		"cache": {"conversation_limit": 10}
	}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := finmem.LoadConfigFromJSON(path)
	require.NoError(t, err)
	assert.False(t, cfg.Persistence.Enabled)
	assert.Equal(t, 7*finmem.Day, cfg.Retention.Window(record.KindMarket))
	assert.Equal(t, finmem.DefaultConversationRetention, cfg.Retention.Window(record.KindConversation))
	assert.Equal(t, 30*time.Minute, cfg.Retention.CleanupInterval.Duration())
	assert.Equal(t, 10, cfg.Cache.Limit(record.KindConversation))
	assert.NoError(t, cfg.Validate())

	_, err = finmem.LoadConfigFromJSON(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestDuration(t *testing.T) {
	d, err := finmem.ParseDuration("30d")
	require.NoError(t, err)
	assert.Equal(t, 30*finmem.Day, d)

	d, err = finmem.ParseDuration(" 90m ")
	require.NoError(t, err)
	assert.Equal(t, 90*time.Minute, d)

	_, err = finmem.ParseDuration("xd")
	assert.Error(t, err)

	d, err = finmem.ParseDuration("106751d")
	require.NoError(t, err)
	assert.Positive(t, d)

	for _, s := range []string{"200000d", "-200000d", "99999999999999999999d"} {
		_, err = finmem.ParseDuration(s)
		assert.Error(t, err, s)
	}

	var overflow finmem.Duration
	assert.Error(t, json.Unmarshal([]byte(`"200000d"`), &overflow))

	out, err := json.Marshal(finmem.Duration(2 * finmem.Day))
	require.NoError(t, err)
	assert.JSONEq(t, `"2d"`, string(out))

	var parsed finmem.Duration
	require.NoError(t, json.Unmarshal([]byte(`3600000000000`), &parsed))
	assert.Equal(t, time.Hour, parsed.Duration())
}
