// Package beacon-chain defines all the utilities needed for a beacon chain node.
package main

import (
	"os"
	"runtime"
	runtimeDebug "runtime/debug"

	"github.com/prysmaticlabs/prysm/beacon-chain/flags"
	"github.com/prysmaticlabs/prysm/beacon-chain/node"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	_ "go.uber.org/automaxprocs"
)

var appFlags = []cli.Flag{
	flags.DataDirFlag,
	flags.ClearDB,
	flags.DemoConfig,
	flags.InteropGenesisStateFlag,
	flags.MinSyncPeers,
	flags.RPCHost,
	flags.RPCPort,
	flags.MonitoringPortFlag,
	flags.DisableMonitoringFlag,
	flags.VerbosityFlag,
}

func main() {
	log := logrus.WithField("prefix", "main")
	app := cli.NewApp()
	app.Name = "beacon-chain"
	app.Usage = "a beacon chain node implementing the Ethereum consensus core"
	app.Action = startNode
	app.Flags = appFlags

	app.Before = func(ctx *cli.Context) error {
		runtime.GOMAXPROCS(runtime.NumCPU())
		return nil
	}

	defer func() {
		if x := recover(); x != nil {
			log.Errorf("Runtime panic: %v\n%v", x, string(runtimeDebug.Stack()))
			panic(x)
		}
	}()

	if err := app.Run(os.Args); err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}
}

func startNode(ctx *cli.Context) error {
	// codec is nil here: this binary has no SSZ/wire-encoding layer of its
	// own, so it always runs against an in-memory fork choice store. A host
	// binary that links in a concrete block/state encoding would construct
	// node.New with its own dbkv.Codec implementation instead.
	beacon, err := node.New(ctx, nil)
	if err != nil {
		return err
	}
	beacon.Start()
	return nil
}
