package kv

// Bucket names for the bbolt schema. Two top-level keyspaces separate hot
// (recent, prunable) data from finalized (permanent) data, matching the
// hot/finalized split the older db/kv schema drew between its per-slot
// indices and its archived-* buckets.
var (
	hotBlocksBucket      = []byte("hot-blocks")
	hotStatesBucket      = []byte("hot-states")
	checkpointStatesBucket = []byte("checkpoint-states")

	finalizedBlockRootsBucket = []byte("finalized-block-roots")
	finalizedBySlotBucket     = []byte("finalized-block-roots-by-slot")

	chainMetadataBucket = []byte("chain-metadata")
)

var (
	keyGenesisTime    = []byte("genesis-time")
	keyJustified      = []byte("justified-checkpoint")
	keyBestJustified  = []byte("best-justified-checkpoint")
	keyFinalized      = []byte("finalized-checkpoint")
)
