package kv

import "github.com/prysmaticlabs/prysm/beacon-chain/core/types"

// Codec translates the opaque SignedBlock/BeaconState interfaces this module
// operates on into bytes. The concrete SSZ (or any other) wire encoding is
// host-application territory - out of scope here the same way the state
// transition function itself is - so the store takes one as a constructor
// argument instead of assuming a concrete type.
type Codec interface {
	EncodeBlock(types.SignedBlock) ([]byte, error)
	DecodeBlock([]byte) (types.SignedBlock, error)
	EncodeState(types.BeaconState) ([]byte, error)
	DecodeState([]byte) (types.BeaconState, error)
}
