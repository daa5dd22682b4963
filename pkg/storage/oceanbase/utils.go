package oceanbase

import (
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/oceanbase/finmem-go/pkg/storage/sqlbase"
)

// Dialect is the OceanBase (MySQL mode) SQL dialect.
// MySQL has no CREATE INDEX IF NOT EXISTS, so indexes are declared inline.
var Dialect = sqlbase.Dialect{
	Name: "oceanbase",
	Bind: sqlbase.QuestionBind,
	Schema: func(table string) []string {
		return []string{fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id VARCHAR(128) PRIMARY KEY,
				symbol VARCHAR(255) NOT NULL DEFAULT '',
				action VARCHAR(64) NOT NULL DEFAULT '',
				ts BIGINT NOT NULL,
				payload LONGTEXT NOT NULL,
				updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
				INDEX idx_symbol_ts (symbol, ts),
				INDEX idx_action_ts (action, ts),
				INDEX idx_ts (ts)
			)
		`, table)}
	},
	Upsert: func(table string) string {
		return fmt.Sprintf(`
			INSERT INTO %s (id, symbol, action, ts, payload)
			VALUES (?, ?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE
				symbol = VALUES(symbol),
				action = VALUES(action),
				ts = VALUES(ts),
				payload = VALUES(payload)
		`, table)
	},
}

// dsn builds a go-sql-driver/mysql data source name.
func dsn(cfg *Config) string {
	port := cfg.Port
	if port == 0 {
		port = 2881
	}
	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = fmt.Sprintf("%s:%d", cfg.Host, port)
	mc.DBName = cfg.DBName
	mc.ParseTime = true
	return mc.FormatDSN()
}
