package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/oceanbase/finmem-go/pkg/core"
	"github.com/oceanbase/finmem-go/pkg/record"
)

func newGetCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <kind> <id>",
		Short: "Retrieve a record by kind and id",
		Long:  "Retrieve a record. Kind is conversation, market or decision.",
		Args:  cobra.ExactArgs(2),
	}

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		kind, err := record.ParseKind(args[0])
		if err != nil {
			return err
		}
		return g.withManager(cmd, func(m *core.Manager) error {
			entry, found, err := m.Get(cmd.Context(), kind, args[1])
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("%s %s not found", kind, args[1])
			}
			return printJSON(cmd, entry)
		})
	}
	return cmd
}

func newSearchCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search [text]",
		Short: "Search every store and rank the matches",
		Args:  cobra.MaximumNArgs(1),
	}

	f := cmd.Flags()
	f.StringSliceP("kind", "k", nil, "Restrict to these kinds (repeatable or comma separated)")
	f.IntP("limit", "l", core.DefaultSearchLimit, "Maximum number of results (0 for no limit)")
	f.String("since", "", "Only records newer than this age, e.g. 6h or 7d")
	f.StringArray("meta", nil, "Required metadata as key=value (repeatable)")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		text := ""
		if len(args) == 1 {
			text = args[0]
		}
		kindNames, _ := f.GetStringSlice("kind")
		limit, _ := f.GetInt("limit")
		since, _ := f.GetString("since")
		metaPairs, _ := f.GetStringArray("meta")

		opts := []core.SearchOption{core.WithLimit(limit)}
		if len(kindNames) > 0 {
			kinds := make([]record.Kind, 0, len(kindNames))
			for _, name := range kindNames {
				kind, err := record.ParseKind(strings.TrimSpace(name))
				if err != nil {
					return err
				}
				kinds = append(kinds, kind)
			}
			opts = append(opts, core.WithKinds(kinds...))
		}
		if since != "" {
			age, err := core.ParseDuration(since)
			if err != nil {
				return err
			}
			opts = append(opts, core.WithTimeRange(time.Now().UTC().Add(-age), time.Time{}))
		}
		meta, err := parseMetadata(metaPairs)
		if err != nil {
			return err
		}
		if meta != nil {
			opts = append(opts, core.WithMetadataFilter(meta))
		}

		return g.withManager(cmd, func(m *core.Manager) error {
			entries, err := m.Search(cmd.Context(), text, opts...)
			if err != nil {
				return err
			}
			if entries == nil {
				entries = []*record.Entry{}
			}
			return printJSON(cmd, entries)
		})
	}
	return cmd
}

func newPerformanceCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "performance",
		Short: "Summarize realized decision outcomes",
		Args:  cobra.NoArgs,
	}

	f := cmd.Flags()
	f.StringP("symbol", "s", "", "Restrict to one symbol")
	f.StringP("action", "a", "", "Restrict to one action label")
	f.Int("days", 30, "Window in days (0 for all time)")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		symbol, _ := f.GetString("symbol")
		action, _ := f.GetString("action")
		days, _ := f.GetInt("days")

		return g.withManager(cmd, func(m *core.Manager) error {
			perf, err := m.PerformanceAnalysis(cmd.Context(), symbol, action, days)
			if err != nil {
				return err
			}
			return printJSON(cmd, perf)
		})
	}
	return cmd
}

func newStatsCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show store statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withManager(cmd, func(m *core.Manager) error {
				stats, err := m.Stats(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd, stats)
			})
		},
	}
}
