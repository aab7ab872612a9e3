package scanctl

import (
	"fmt"
	"os"

	"github.com/pynara/geogrid/db"
	"github.com/pynara/geogrid/lib"
	"github.com/spf13/cobra"
)

var resumeAllFormat string

var resumeAllSchedulesCmd = &cobra.Command{
	Use:     "resume-all",
	Aliases: []string{"ra"},
	Short:   "Re-enable all disabled scan schedules",
	Long:    `Re-enables every currently-disabled scan schedule so each resumes firing on its cron expression.`,
	Args:    cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		schedules, err := db.Connection.BulkSetScanSchedulesActive(true)
		if err != nil {
			fmt.Printf("Failed to enable schedules: %s\n", err)
			os.Exit(1)
		}

		if len(schedules) == 0 {
			fmt.Println("No schedules found")
			return
		}

		formatType, err := lib.ParseFormatType(resumeAllFormat)
		if err != nil {
			fmt.Println("Error parsing format type")
			os.Exit(1)
		}
		values := make([]db.ScanSchedule, 0, len(schedules))
		for _, s := range schedules {
			values = append(values, *s)
		}
		output, err := lib.FormatOutput(values, formatType)
		if err != nil {
			fmt.Printf("Error formatting output: %s\n", err)
			os.Exit(1)
		}
		fmt.Println(output)
	},
}

func init() {
	ScanCtlCmd.AddCommand(resumeAllSchedulesCmd)
	resumeAllSchedulesCmd.Flags().StringVarP(&resumeAllFormat, "format", "f", "table", "Output format (json, yaml, table, pretty)")
}
