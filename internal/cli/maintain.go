package cli

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oceanbase/finmem-go/pkg/core"
	"github.com/oceanbase/finmem-go/pkg/record"
)

func newDeleteCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <kind> <id>",
		Short: "Delete a record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := record.ParseKind(args[0])
			if err != nil {
				return err
			}
			return g.withManager(cmd, func(m *core.Manager) error {
				deleted, err := m.Delete(cmd.Context(), kind, args[1])
				if err != nil {
					return err
				}
				return printJSON(cmd, map[string]bool{"deleted": deleted})
			})
		},
	}
}

func newOutcomeCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outcome <decision-id> <return>",
		Short: "Record the realized return of a decision, e.g. 0.042 for +4.2%",
		Args:  cobra.ExactArgs(2),
	}

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		outcome, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("invalid return %q", args[1])
		}
		return g.withManager(cmd, func(m *core.Manager) error {
			found, err := m.UpdateOutcome(cmd.Context(), args[0], outcome)
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("decision %s not found", args[0])
			}
			return printJSON(cmd, map[string]interface{}{"id": args[0], "outcome": outcome})
		})
	}
	return cmd
}

func newCleanupCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Remove records older than their retention window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withManager(cmd, func(m *core.Manager) error {
				removed, err := m.CleanupExpired(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd, map[string]int{"removed": removed})
			})
		},
	}
}

func newRunCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the retention task until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return g.withManager(cmd, func(m *core.Manager) error {
				if !m.Config().Retention.Enabled {
					return errors.New("retention is disabled in the configuration")
				}
				if err := m.Start(ctx); err != nil {
					return err
				}
				<-ctx.Done()
				m.Stop()
				return nil
			})
		},
	}
}
