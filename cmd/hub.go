package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sheepdog/clusterdrv/gcs"
	"github.com/sheepdog/clusterdrv/logger"
)

var (
	hubAddr     string
	hubCapacity int
)

var hubCmd = &cobra.Command{
	Use:   "hub",
	Short: "Run the gRPC group-communication sequencer",
	Long: `Run a gcs.GRPCServer: the networked stand-in for corosync that
start nodes connect to. It does not participate in the cluster protocol
itself, only sequences and rebroadcasts frames and membership changes.

Examples:
  clusterdrv hub --addr=:7946`,
	Run: runHub,
}

func init() {
	rootCmd.AddCommand(hubCmd)
	hubCmd.Flags().StringVarP(&hubAddr, "addr", "a", ":7946", "Address to listen on")
	hubCmd.Flags().IntVarP(&hubCapacity, "capacity", "c", 64, "Per-member buffered channel capacity")
}

func runHub(cmd *cobra.Command, args []string) {
	logger.Init("hub", true)

	hub := gcs.NewHub(hubCapacity)
	srv := gcs.NewGRPCServer(hubAddr, hub)

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("listening on %s", hubAddr)
		errCh <- srv.Serve()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			fmt.Fprintf(os.Stderr, "hub: %v\n", err)
			os.Exit(1)
		}
	case <-sigCh:
		logger.Info("shutting down hub")
		srv.Stop()
	}
}
