// Package stats provides the read-only reporting CLI surface:
// aggregated scan activity per service area.
package stats

import (
	"github.com/spf13/cobra"
)

// StatsCmd is the statistics command group.
var StatsCmd = &cobra.Command{
	Use:     "stats",
	Aliases: []string{"stat", "statistics", "metrics"},
	Short:   "Statistics and metrics commands",
	Long:    `Retrieve aggregated scan statistics.`,
}

func init() {
	StatsCmd.AddCommand(AreaStatsCmd)
}
