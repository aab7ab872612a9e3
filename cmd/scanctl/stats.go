package scanctl

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/pynara/geogrid/db"
	"github.com/pynara/geogrid/lib"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// statusColor renders a scan/point status the way the teacher's CLI
// colors severity: green once terminal-successful, red once
// terminal-failed, yellow while still in flight.
func statusColor(status string) string {
	switch status {
	case "completed":
		return color.GreenString(status)
	case "failed", "cancelled":
		return color.RedString(status)
	default:
		return color.YellowString(status)
	}
}

var statsFormat string

// statsScanCmd shows the point-status breakdown of a scan, using
// CountScanPointsByStatus rather than a separate job-stats table since
// this schema tracks progress on ScanPoint.Status directly.
var statsScanCmd = &cobra.Command{
	Use:        "stats [scan-id]",
	Aliases:    []string{"s", "status"},
	Short:      "Show scan statistics",
	Long:       `Shows a scan's status and a breakdown of its grid points by pending/running/completed/failed.`,
	Args:       cobra.ExactArgs(1),
	ArgAliases: []string{"id"},
	Run: func(cmd *cobra.Command, args []string) {
		scanID, err := strconv.Atoi(args[0])
		if err != nil || scanID <= 0 {
			fmt.Println("A valid scan ID needs to be provided")
			os.Exit(1)
		}

		scan, err := db.Connection.GetScanByID(uint(scanID))
		if err != nil {
			fmt.Printf("Failed to get scan: %s\n", err)
			os.Exit(1)
		}

		pointStatuses := []db.ScanPointStatus{
			db.ScanPointStatusPending,
			db.ScanPointStatusRunning,
			db.ScanPointStatusCompleted,
			db.ScanPointStatusFailed,
		}
		counts := make(map[db.ScanPointStatus]int64, len(pointStatuses))
		for _, status := range pointStatuses {
			count, err := db.Connection.CountScanPointsByStatus(uint(scanID), status)
			if err != nil {
				fmt.Printf("Failed to count scan points: %s\n", err)
				os.Exit(1)
			}
			counts[status] = count
		}

		formatType, err := lib.ParseFormatType(statsFormat)
		if err != nil {
			fmt.Println("Error parsing format type")
			os.Exit(1)
		}

		if formatType == lib.JSON || formatType == lib.YAML {
			output := map[string]interface{}{
				"scan":         scan,
				"point_status": counts,
			}
			var formatted []byte
			if formatType == lib.JSON {
				formatted, err = json.MarshalIndent(output, "", "  ")
			} else {
				formatted, err = yaml.Marshal(output)
			}
			if err != nil {
				fmt.Printf("Error formatting output: %s\n", err)
				os.Exit(1)
			}
			fmt.Println(string(formatted))
			return
		}

		fmt.Println(scan.Pretty())
		fmt.Printf("  (status: %s)\n", statusColor(string(scan.Status)))
		fmt.Println()
		fmt.Println("Grid points:")
		fmt.Printf("  Pending:   %d\n", counts[db.ScanPointStatusPending])
		fmt.Printf("  Running:   %d\n", counts[db.ScanPointStatusRunning])
		fmt.Printf("  Completed: %s\n", color.GreenString("%d", counts[db.ScanPointStatusCompleted]))
		fmt.Printf("  Failed:    %s\n", color.RedString("%d", counts[db.ScanPointStatusFailed]))
	},
}

func init() {
	ScanCtlCmd.AddCommand(statsScanCmd)
	statsScanCmd.Flags().StringVarP(&statsFormat, "format", "f", "pretty", "Output format (json, yaml, pretty)")
}
