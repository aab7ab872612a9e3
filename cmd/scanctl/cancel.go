package scanctl

import (
	"fmt"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/pynara/geogrid/db"
	"github.com/spf13/cobra"
)

// cancelScanCmd cancels a scan: status -> cancelled, completedAt set.
// In-flight tasks still finish and persist their results (spec.md §5
// "Cancellation and timeouts").
var cancelScanCmd = &cobra.Command{
	Use:        "cancel [scan-id]",
	Aliases:    []string{"c", "stop"},
	Short:      "Cancel a scan",
	Long:       `Cancels a queued or running scan. In-flight tasks finish and are still persisted; no further tasks are enqueued for it.`,
	Args:       cobra.ExactArgs(1),
	ArgAliases: []string{"id"},
	Run: func(cmd *cobra.Command, args []string) {
		scanID, err := strconv.Atoi(args[0])
		if err != nil || scanID <= 0 {
			fmt.Println("A valid scan ID needs to be provided")
			os.Exit(1)
		}

		scan, err := db.Connection.CancelScan(uint(scanID))
		if err != nil {
			fmt.Printf("Failed to cancel scan: %s\n", err)
			os.Exit(1)
		}

		fmt.Printf("Scan %d cancel request applied\n", scan.ID)
		fmt.Printf("  - Keyword:  %s\n", scan.Keyword)
		fmt.Printf("  - Engine:   %s\n", scan.EngineID)
		fmt.Printf("  - Status:   %s\n", color.YellowString(string(scan.Status)))
		fmt.Printf("  - Progress: %d/%d points\n", scan.PointsCompleted, scan.PointsTotal)
	},
}

func init() {
	ScanCtlCmd.AddCommand(cancelScanCmd)
}
