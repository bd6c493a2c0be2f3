package node

import (
	"github.com/prysmaticlabs/prysm/beacon-chain/flags"
	"github.com/prysmaticlabs/prysm/beacon-chain/params"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

// configureChainSpec selects the mainnet or minimal chain spec, matching the
// older node.go's "demo-config" convention for local/interop runs with short
// (8-slot) epochs. An explicitly set --min-sync-peers overrides the spec's
// SyncTargetPeerCount.
func configureChainSpec(cliCtx *cli.Context) *params.ChainSpec {
	spec := params.MainnetConfig()
	if cliCtx.Bool(flags.DemoConfig.Name) {
		spec = params.MinimalConfig()
	}
	if cliCtx.IsSet(flags.MinSyncPeers.Name) {
		spec.SyncTargetPeerCount = cliCtx.Int(flags.MinSyncPeers.Name)
	}
	return spec
}

func configureVerbosity(cliCtx *cli.Context) error {
	verbosity := cliCtx.String(flags.VerbosityFlag.Name)
	level, err := logrus.ParseLevel(verbosity)
	if err != nil {
		return err
	}
	logrus.SetLevel(level)
	return nil
}
