package cmd

import (
	"github.com/pynara/geogrid/cmd/scanctl"
	"github.com/pynara/geogrid/cmd/stats"
	"github.com/pynara/geogrid/lib"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var debugLogging bool

// rootCmd is the geogrid CLI's base command.
var rootCmd = &cobra.Command{
	Use:   "geogrid",
	Short: "Local-SEO geo-grid scan execution engine",
	Long: `geogrid runs geo-grid rank-tracking scans across search engines:
grid generation, per-engine throttled queues, business entity resolution,
and the recurring-scan scheduler.`,
}

// Execute adds all child commands to the root command and runs it. This
// is called by main.main(), once.
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func init() {
	cobra.OnInitialize(initLogging)

	rootCmd.PersistentFlags().BoolVar(&debugLogging, "debug", false, "use debug level logging")

	rootCmd.AddCommand(scanctl.ScanCtlCmd)
	rootCmd.AddCommand(stats.StatsCmd)
	rootCmd.AddCommand(serveCmd)
}

func initLogging() {
	lib.ZeroConsoleAndFileLog()
	if debugLogging {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}
