// Package cli implements the finmem command line tool.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/oceanbase/finmem-go/pkg/core"
)

// globalFlags are the flags shared by every command.
type globalFlags struct {
	configPath string
	envFile    string
	dbPath     string
	logLevel   string
}

// NewRootCmd builds the finmem command tree.
func NewRootCmd() *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:   "finmem",
		Short: "Inspect and maintain a financial agent memory store",
		Long: "finmem reads and maintains the memory of a financial agent: conversations,\n" +
			"market observations and trading decisions, with retention cleanup.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&g.configPath, "config", "c", "", "JSON configuration file (default: environment and .env)")
	pf.StringVar(&g.envFile, "env-file", "", "Load environment variables from this file")
	pf.StringVarP(&g.dbPath, "db", "d", "", "SQLite database path (overrides the configuration)")
	pf.StringVar(&g.logLevel, "log-level", "warn", "Log level: debug, info, warn or error")

	root.AddCommand(
		newMarketCmd(g),
		newDecideCmd(g),
		newConverseCmd(g),
		newGetCmd(g),
		newSearchCmd(g),
		newDeleteCmd(g),
		newOutcomeCmd(g),
		newPerformanceCmd(g),
		newCleanupCmd(g),
		newStatsCmd(g),
		newRunCmd(g),
	)
	return root
}

// Execute runs the command tree and returns the process exit code.
func Execute() int {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func (g *globalFlags) loadConfig() (*core.Config, error) {
	var (
		cfg *core.Config
		err error
	)
	switch {
	case g.configPath != "":
		cfg, err = core.LoadConfigFromJSON(g.configPath)
	case g.envFile != "":
		cfg, err = core.LoadConfigFromEnvFile(g.envFile)
	default:
		cfg, err = core.LoadConfigFromEnv()
	}
	if err != nil {
		return nil, err
	}
	if g.dbPath != "" {
		cfg.Persistence.Enabled = true
		cfg.Persistence.Provider = "sqlite"
		driver, _ := cfg.Persistence.Config["driver"].(string)
		cfg.Persistence.Config = map[string]interface{}{
			"db_path": g.dbPath,
			"driver":  driver,
		}
	}
	return cfg, nil
}

func (g *globalFlags) logger(w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(g.logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// openManager loads the configuration and opens a manager. The caller closes it.
func (g *globalFlags) openManager(cmd *cobra.Command) (*core.Manager, error) {
	cfg, err := g.loadConfig()
	if err != nil {
		return nil, err
	}
	return core.NewManager(cmd.Context(), cfg, core.WithLogger(g.logger(cmd.ErrOrStderr())))
}

// withManager opens a manager, runs fn and closes the manager.
func (g *globalFlags) withManager(cmd *cobra.Command, fn func(m *core.Manager) error) (err error) {
	m, err := g.openManager(cmd)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := m.Close(); err == nil {
			err = cerr
		}
	}()
	return fn(m)
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(b))
	return err
}

// parseMetadata parses repeated key=value flags. Values that parse as JSON
// (numbers, booleans, quoted strings, lists) keep their type.
func parseMetadata(pairs []string) (map[string]interface{}, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]interface{}, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("metadata must be key=value, got %q", pair)
		}
		var v interface{}
		if err := json.Unmarshal([]byte(value), &v); err != nil {
			v = value
		}
		out[key] = v
	}
	return out, nil
}
