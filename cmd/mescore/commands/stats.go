package commands

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"mescore/internal/core"
)

func newStatsCommand() *cobra.Command {
	var (
		kind   string
		window time.Duration
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print production statistics",
		Long: `Aggregate production statistics from the configured store and print
them as JSON.

Kinds: orders, ncrs, kanban, maintenance, quality, breakdowns, schedule.`,
		Example: `  # Order counts by state
  mescore stats --kind orders

  # Quality pass rate over the last week
  mescore stats --kind quality --window 168h`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			svc, _, _, err := newService(cfg)
			if err != nil {
				return err
			}
			result, err := svc.AggregateStats(cmd.Context(), core.StatsKind(kind), window)
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}

	cmd.Flags().StringVarP(&kind, "kind", "k", string(core.StatsOrders), "statistics kind")
	cmd.Flags().DurationVarP(&window, "window", "w", 0, "look-back window, 0 for all time")

	return cmd
}
