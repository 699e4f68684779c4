//go:build tikv

// Command vaultcheck runs the object-store integrity checker daemon against
// a TiKV-backed metadata store. Build with `-tags tikv`, matching the way
// SeaweedFS gates its TiKV filer store behind the same build tag.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/objvault/vaultcheck/config"
	"github.com/objvault/vaultcheck/glog"
	"github.com/objvault/vaultcheck/kvstore"
	"github.com/objvault/vaultcheck/recycler"
	"github.com/objvault/vaultcheck/stats"
)

var logLevel = flag.Int("v", 0, "log verbosity level")

func main() {
	flag.Parse()
	glog.SetVerbosity(*logLevel)

	opts, err := config.Load()
	if err != nil {
		glog.Fatalf("failed to load configuration: %v", err)
	}

	client, err := kvstore.NewClient(opts.PDEndpoints)
	if err != nil {
		glog.Fatalf("failed to connect to tikv cluster: %v", err)
	}
	defer client.Close()

	stats.StartMetricsServer("0.0.0.0", opts.MetricsListenPort)

	lesseeIPPort := fmt.Sprintf("%s:%d", localIP(), opts.BrpcListenPort)
	daemon := recycler.NewDaemon(client, opts, lesseeIPPort)

	glog.Infof("starting vaultcheck daemon, lessee=%s concurrency=%d scan_interval_s=%d",
		lesseeIPPort, opts.RecycleConcurrency, opts.ScanInstancesIntervalSec)
	daemon.Start(context.Background())

	waitForShutdown(daemon)
	glog.Infof("vaultcheck daemon shutdown complete")
}

func waitForShutdown(daemon *recycler.Daemon) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	glog.Infof("shutdown signal received, stopping daemon...")
	daemon.Stop()
}

func localIP() string {
	if h, err := os.Hostname(); err == nil {
		return h
	}
	return "127.0.0.1"
}
