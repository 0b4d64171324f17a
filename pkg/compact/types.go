// Copyright 2025 The Compact Protocol
//
// Package compact defines the Compact domain type (spec §3.1) and the
// top-level admission service (spec §4.6).
package compact

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Compact is a sponsor's signed commitment that an arbiter may settle
// against their resource lock (spec §3.1).
type Compact struct {
	Arbiter common.Address
	Sponsor common.Address
	// Nonce is nil when the caller asked the allocator to generate one.
	Nonce   *big.Int
	Expires uint64
	ID      *big.Int
	Amount  *big.Int

	// Witness fields: either both set (WitnessTypeString != "") or both
	// zero-valued (structural invariant W1).
	WitnessTypeString string
	WitnessHash       [32]byte
	HasWitness        bool
}

// Record is a persisted, admitted compact (spec §3.4 CompactRecord,
// §4.7 CompactStore): the compact itself plus the artifacts produced by
// admission.
type Record struct {
	ChainID   string
	Compact   Compact
	ClaimHash [32]byte
	Signature [65]byte
	CreatedAt time.Time
}
