package stats

import (
	"fmt"

	"github.com/pynara/geogrid/db"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var areaID uint

// AreaStatsCmd reports aggregated scan activity for one service area:
// scan counts by status and the number of distinct businesses ranked
// there across every scan that has ever run.
var AreaStatsCmd = &cobra.Command{
	Use:     "area",
	Aliases: []string{"a", "areas"},
	Short:   "Get service area scan statistics",
	Long:    `Retrieve aggregated scan statistics for a service area: scan counts by status and distinct businesses ranked.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if areaID == 0 {
			return fmt.Errorf("service area ID is required")
		}

		area, err := db.Connection.GetServiceAreaByID(areaID)
		if err != nil {
			log.Error().Err(err).Uint("id", areaID).Msg("Service area not found")
			return fmt.Errorf("service area with ID %d does not exist", areaID)
		}

		summary, err := db.Connection.GetServiceAreaScanSummary(areaID)
		if err != nil {
			return fmt.Errorf("failed to retrieve service area statistics: %v", err)
		}

		fmt.Printf("Service Area: %s (%s)\n", area.Name, area.State)
		fmt.Printf("  Total scans:       %d\n", summary.TotalScans)
		fmt.Printf("  Running/queued:    %d\n", summary.RunningScans)
		fmt.Printf("  Completed:         %d\n", summary.CompletedScans)
		fmt.Printf("  Failed:            %d\n", summary.FailedScans)
		fmt.Printf("  Distinct business: %d\n", summary.DistinctBusiness)
		return nil
	},
}

func init() {
	AreaStatsCmd.Flags().UintVarP(&areaID, "area", "a", 0, "Service area ID (required)")
	AreaStatsCmd.MarkFlagRequired("area")
}
