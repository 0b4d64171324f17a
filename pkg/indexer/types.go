// Copyright 2025 The Compact Protocol
//
// Package indexer provides the strongly-typed query interface to the
// external chain indexer (spec §6.1). The core trusts the indexer's
// balance, pendingDeltas, and claims; no second source is cross-checked
// (spec §9).
package indexer

import "math/big"

// Query identifies the resource lock a LockSnapshot is requested for.
type Query struct {
	Allocator   *big.Int
	Sponsor     [20]byte
	TokenLockID *big.Int
	ChainID     string
}

// Claim is a settled claim hash reported by the indexer.
type Claim struct {
	ClaimHash [32]byte
}

// PendingDelta is one entry of the indexer's pendingDeltas array; Delta
// may be negative (spec §4.4 pendingDelta = Σ delta_i).
type PendingDelta struct {
	Delta *big.Int
}

// LockSnapshot is a point-in-time view of a resource lock's state, as
// returned by the indexer for (allocator, sponsor, tokenLockId, chainId)
// (spec §4.4, §6.1).
type LockSnapshot struct {
	Balance          *big.Int
	WithdrawalStatus uint8
	PendingDeltas    []PendingDelta
	Claims           []Claim
	AllocatorID      *big.Int
}
