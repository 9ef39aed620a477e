package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "clusterdrv",
	Short: "Group-communication cluster membership driver",
	Long: `clusterdrv runs a corosync-style cluster membership and
totally-ordered messaging driver: a master-elected join protocol,
virtual-synchrony event dispatch, and block/unblock serialization, over
a pluggable group-communication service (in-process or gRPC).`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global flags can be added here
}
