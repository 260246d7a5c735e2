// Package cli holds the dhermica command line: the HTTP server and the
// maintenance commands that share its configuration.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "dhermica",
	Short: "Dhermica clinic booking API",
	Long: `Dhermica serves the booking API of the clinic.

Available commands:
  serve         - Run the HTTP server
  migrate       - Create or update the database schema and seed roles
  seed-admin    - Create or reset an administrator account
  geoip-update  - Download the GeoIP database used by the security log`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd, seedAdminCmd, geoipUpdateCmd)
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
