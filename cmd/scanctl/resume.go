package scanctl

import (
	"fmt"
	"os"
	"strconv"

	"github.com/pynara/geogrid/db"
	"github.com/pynara/geogrid/lib"
	"github.com/spf13/cobra"
)

var resumeFormat string

// resumeScheduleCmd re-enables a ScanSchedule previously disabled with
// pause. A running scheduler that still has the schedule registered
// resumes it at its next firing; one that did not register it (it was
// inactive at load) only picks it up on its next ReloadAll/ReloadSchedule
// pass.
var resumeScheduleCmd = &cobra.Command{
	Use:        "resume [schedule-id]",
	Aliases:    []string{"r"},
	Short:      "Re-enable a scan schedule",
	Long:       `Re-enables a previously disabled scan schedule so it resumes firing on its cron expression.`,
	Args:       cobra.ExactArgs(1),
	ArgAliases: []string{"id"},
	Run: func(cmd *cobra.Command, args []string) {
		scheduleID, err := strconv.Atoi(args[0])
		if err != nil || scheduleID <= 0 {
			fmt.Println("A valid schedule ID needs to be provided")
			os.Exit(1)
		}

		schedule, err := db.Connection.SetScanScheduleActive(uint(scheduleID), true)
		if err != nil {
			fmt.Printf("Failed to enable schedule: %s\n", err)
			os.Exit(1)
		}

		formatType, err := lib.ParseFormatType(resumeFormat)
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
	ScanCtlCmd.AddCommand(resumeScheduleCmd)
	resumeScheduleCmd.Flags().StringVarP(&resumeFormat, "format", "f", "pretty", "Output format (json, yaml, table, pretty)")
}
