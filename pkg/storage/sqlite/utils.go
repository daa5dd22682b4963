package sqlite

import (
	"fmt"

	"github.com/oceanbase/finmem-go/pkg/storage/sqlbase"
)

// Dialect is the SQLite SQL dialect.
var Dialect = sqlbase.Dialect{
	Name: "sqlite",
	Bind: sqlbase.QuestionBind,
	Schema: func(table string) []string {
		return []string{
			fmt.Sprintf(`
				CREATE TABLE IF NOT EXISTS %s (
					id TEXT PRIMARY KEY,
					symbol TEXT NOT NULL DEFAULT '',
					action TEXT NOT NULL DEFAULT '',
					ts INTEGER NOT NULL,
					payload TEXT NOT NULL,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
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
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				symbol = excluded.symbol,
				action = excluded.action,
				ts = excluded.ts,
				payload = excluded.payload,
				updated_at = CURRENT_TIMESTAMP
		`, table)
	},
}

// dataSource builds the DSN for the selected driver.
func dataSource(driver, path string, inMemory bool) string {
	if inMemory {
		return ":memory:"
	}
	if driver == DriverPure {
		return "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	return path + "?_journal_mode=WAL&_busy_timeout=5000"
}
