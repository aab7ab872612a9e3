package scanctl

import (
	"fmt"
	"os"

	"github.com/pynara/geogrid/db"
	"github.com/pynara/geogrid/lib"
	"github.com/spf13/cobra"
)

var pauseAllFormat string

var pauseAllSchedulesCmd = &cobra.Command{
	Use:     "pause-all",
	Aliases: []string{"pa"},
	Short:   "Disable all active scan schedules",
	Long:    `Disables every currently-active scan schedule. They can be re-enabled later using the resume-all command.`,
	Args:    cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		schedules, err := db.Connection.BulkSetScanSchedulesActive(false)
		if err != nil {
			fmt.Printf("Failed to disable schedules: %s\n", err)
			os.Exit(1)
		}

		if len(schedules) == 0 {
			fmt.Println("No schedules found")
			return
		}

		formatType, err := lib.ParseFormatType(pauseAllFormat)
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
	ScanCtlCmd.AddCommand(pauseAllSchedulesCmd)
	pauseAllSchedulesCmd.Flags().StringVarP(&pauseAllFormat, "format", "f", "table", "Output format (json, yaml, table, pretty)")
}
