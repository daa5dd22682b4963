package postgres

import (
	"fmt"

	"github.com/oceanbase/finmem-go/pkg/storage/sqlbase"
)

// Dialect is the PostgreSQL SQL dialect.
var Dialect = sqlbase.Dialect{
	Name: "postgres",
	Bind: sqlbase.DollarBind,
	Schema: func(table string) []string {
		return []string{
			fmt.Sprintf(`
				CREATE TABLE IF NOT EXISTS %s (
					id VARCHAR(255) PRIMARY KEY,
					symbol VARCHAR(255) NOT NULL DEFAULT '',
					action VARCHAR(64) NOT NULL DEFAULT '',
					ts BIGINT NOT NULL,
					payload TEXT NOT NULL,
					updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
				)
			`, table),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_symbol_ts ON %s(symbol, ts)`, table, table),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_action_ts ON %s(action, ts)`, table, table),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_ts ON %s(ts)`, table, table),
		}
	},
	Upsert: func(table string) string {
		return fmt.Sprintf(`
			INSERT INTO %s (id, symbol, action, ts, payload)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE SET
				symbol = EXCLUDED.symbol,
				action = EXCLUDED.action,
				ts = EXCLUDED.ts,
				payload = EXCLUDED.payload,
				updated_at = CURRENT_TIMESTAMP
		`, table)
	},
}

// dsn builds a lib/pq connection string.
func dsn(cfg *Config) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	port := cfg.Port
	if port == 0 {
		port = 5432
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, port, cfg.User, cfg.Password, cfg.DBName, sslMode)
}
