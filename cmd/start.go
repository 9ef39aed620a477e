package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sheepdog/clusterdrv/cluster"
	"github.com/sheepdog/clusterdrv/discovery"
	"github.com/sheepdog/clusterdrv/gcs"
	"github.com/sheepdog/clusterdrv/logger"
	"github.com/sheepdog/clusterdrv/metrics"
)

var (
	startHubAddr     string
	startEtcdSeeds   []string
	startEtcdHubKey  string
	startNodeName    string
	startMaxNodes    int
	startMetricsAddr string
	startJoinPayload string
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start one cluster driver node",
	Long: `Start one cluster.Driver against a gcs.GRPCServer hub, attempt
to join the group, and run until interrupted.

Examples:
  # Start a node pointed directly at a hub
  clusterdrv start --hub=127.0.0.1:7946 --name=node-1

  # Start a node that first resolves the hub's address from etcd
  clusterdrv start --etcd=127.0.0.1:2379 --name=node-2`,
	Run: runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)

	startCmd.Flags().StringVar(&startHubAddr, "hub", "", "Hub address (host:port); ignored when --etcd is set")
	startCmd.Flags().StringSliceVar(&startEtcdSeeds, "etcd", nil, "etcd endpoints to resolve the hub address from (comma-separated)")
	startCmd.Flags().StringVar(&startEtcdHubKey, "etcd-hub-key", "clusterdrv/hub", "etcd key the hub address is published under")
	startCmd.Flags().StringVarP(&startNodeName, "name", "n", "node", "Name for this node, used only in logs and metrics labels")
	startCmd.Flags().IntVar(&startMaxNodes, "max-nodes", 0, "Roster capacity (0 uses the wire default)")
	startCmd.Flags().StringVar(&startMetricsAddr, "metrics-addr", "", "If set, serve Prometheus metrics on this address")
	startCmd.Flags().StringVar(&startJoinPayload, "payload", "", "Opaque payload to send with this node's JOIN_REQUEST")
}

func resolveHubAddr(ctx context.Context) (string, error) {
	if len(startEtcdSeeds) == 0 {
		if startHubAddr == "" {
			return "", cluster.ErrNotInitialized
		}
		return startHubAddr, nil
	}
	cli, err := discovery.NewClient(startEtcdSeeds)
	if err != nil {
		return "", err
	}
	defer cli.Close()
	lookupCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return discovery.LookupHub(lookupCtx, cli, startEtcdHubKey)
}

func runStart(cmd *cobra.Command, args []string) {
	logger.Init(startNodeName, true)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	hubAddr, err := resolveHubAddr(ctx)
	if err != nil {
		logger.Errorf("resolving hub address: %v", err)
		os.Exit(1)
	}
	logger.Infof("connecting to hub at %s", hubAddr)

	collector := metrics.NewCollector(startNodeName)
	if startMetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", collector.Handler())
		go func() {
			if err := http.ListenAndServe(startMetricsAddr, mux); err != nil {
				logger.Errorf("metrics server: %v", err)
			}
		}()
		logger.Infof("serving metrics on %s", startMetricsAddr)
	}

	opts := cluster.DefaultOptions()
	opts.MaxNodes = startMaxNodes

	transport := gcs.NewGRPCClient(hubAddr)
	drv, err := cluster.NewDriver(opts, transport, newLogUpcalls(startNodeName), logger.Infof, collector)
	if err != nil {
		logger.Errorf("constructing driver: %v", err)
		os.Exit(1)
	}

	if err := drv.Start(ctx); err != nil {
		logger.Errorf("starting driver: %v", err)
		os.Exit(1)
	}
	if err := drv.Join([]byte(strings.TrimSpace(startJoinPayload))); err != nil {
		logger.Errorf("sending join request: %v", err)
		os.Exit(1)
	}
	logger.Infof("%s: joined as %s", startNodeName, drv.LocalAddr())

	<-ctx.Done()
	logger.Info("shutting down...")
	if err := drv.Leave(); err != nil {
		logger.Errorf("leave failed: %v", err)
	}
	drv.Stop()
}
