package scanctl

import (
	"fmt"
	"os"
	"strconv"

	"github.com/pynara/geogrid/db"
	"github.com/pynara/geogrid/lib"
	"github.com/spf13/cobra"
)

var pauseFormat string

// pauseScheduleCmd disables a ScanSchedule. spec.md has no "paused Scan"
// concept (§3 status set is pending/queued/running/completed/failed/
// cancelled) — the only thing a caller can toggle is whether a
// recurring schedule keeps firing, so pause/resume act on ScanSchedule
// rather than Scan.
var pauseScheduleCmd = &cobra.Command{
	Use:        "pause [schedule-id]",
	Aliases:    []string{"p"},
	Short:      "Disable a scan schedule",
	Long:       `Disables a recurring scan schedule so it no longer fires. It can be re-enabled later using the resume command.`,
	Args:       cobra.ExactArgs(1),
	ArgAliases: []string{"id"},
	Run: func(cmd *cobra.Command, args []string) {
		scheduleID, err := strconv.Atoi(args[0])
		if err != nil || scheduleID <= 0 {
			fmt.Println("A valid schedule ID needs to be provided")
			os.Exit(1)
		}

		schedule, err := db.Connection.SetScanScheduleActive(uint(scheduleID), false)
		if err != nil {
			fmt.Printf("Failed to disable schedule: %s\n", err)
			os.Exit(1)
		}

		formatType, err := lib.ParseFormatType(pauseFormat)
		if err != nil {
			fmt.Println("Error parsing format type")
			os.Exit(1)
		}
		output, err := lib.FormatSingleOutput(*schedule, formatType)
		if err != nil {
			fmt.Printf("Error formatting output: %s\n", err)
			os.Exit(1)
		}
		fmt.Println(output)
	},
}

func init() {
	ScanCtlCmd.AddCommand(pauseScheduleCmd)
	pauseScheduleCmd.Flags().StringVarP(&pauseFormat, "format", "f", "pretty", "Output format (json, yaml, table, pretty)")
}
