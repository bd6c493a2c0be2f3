// Package flags defines the command line flags of the beacon node binary.
package flags

import (
	"github.com/urfave/cli/v2"
)

var (
	// DataDirFlag points at the directory the node's bbolt database lives
	// under.
	DataDirFlag = &cli.StringFlag{
		Name:  "datadir",
		Usage: "Data directory for the fork choice store's database",
		Value: "",
	}
	// ClearDB removes any previously persisted database before starting.
	ClearDB = &cli.BoolFlag{
		Name:  "clear-db",
		Usage: "Clears any previously persisted fork choice database at datadir",
	}
	// InteropGenesisStateFlag points at a pre-generated genesis state file for
	// local development networks; decoding it is the host application's
	// (SSZ layer's) responsibility.
	InteropGenesisStateFlag = &cli.StringFlag{
		Name:  "interop-genesis-state",
		Usage: "Path to an encoded genesis state file, for interop/devnet use",
	}
	// DemoConfig runs the node against the short-epoch MinimalConfig chain
	// spec instead of MainnetConfig.
	DemoConfig = &cli.BoolFlag{
		Name:  "demo-config",
		Usage: "Run with the short-epoch minimal chain spec instead of mainnet parameters",
	}
	// MinSyncPeers is the peer count at which the sync-state tracker is
	// willing to declare the node caught up; when set, it overrides the chain
	// spec's SyncTargetPeerCount.
	MinSyncPeers = &cli.IntFlag{
		Name:  "min-sync-peers",
		Usage: "The required number of valid peers to consider the node in sync",
		Value: 3,
	}
	// RPCHost, RPCPort, MonitoringPortFlag and DisableMonitoringFlag are
	// accepted on the command line, but this binary starts no RPC or metrics
	// server and nothing in it reads them.
	RPCHost = &cli.StringFlag{
		Name:  "rpc-host",
		Usage: "Host on which the RPC server should listen",
		Value: "0.0.0.0",
	}
	// RPCPort is the RPC port; see RPCHost.
	RPCPort = &cli.IntFlag{
		Name:  "rpc-port",
		Usage: "RPC port exposed by a beacon node",
		Value: 4000,
	}
	// MonitoringPortFlag is the metrics port; see RPCHost.
	MonitoringPortFlag = &cli.IntFlag{
		Name:  "monitoring-port",
		Usage: "Port used to serve Prometheus metrics",
		Value: 8080,
	}
	// DisableMonitoringFlag is the metrics opt-out; see RPCHost.
	DisableMonitoringFlag = &cli.BoolFlag{
		Name:  "disable-monitoring",
		Usage: "Disable the Prometheus metrics server",
	}
	// VerbosityFlag sets the logrus logging level.
	VerbosityFlag = &cli.StringFlag{
		Name:  "verbosity",
		Usage: "Logging verbosity (debug, info, warn, error, fatal, panic)",
		Value: "info",
	}
)
