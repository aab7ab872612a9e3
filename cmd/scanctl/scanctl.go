// Package scanctl provides the administrative CLI surface over scans
// and scan schedules: cancel a running scan, and enable/disable
// schedules (spec.md §4.5/§4.6 expose no "pause" concept for a Scan
// itself — only ScanSchedule.IsActive is a toggle a caller can flip).
package scanctl

import (
	"github.com/spf13/cobra"
)

// ScanCtlCmd is the scan-control command group.
var ScanCtlCmd = &cobra.Command{
	Use:     "scanctl",
	Aliases: []string{"sc"},
	Short:   "Scan and schedule control commands",
	Long:    `Commands for cancelling scans and enabling/disabling scan schedules.`,
}
