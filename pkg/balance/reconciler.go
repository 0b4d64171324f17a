// Copyright 2025 The Compact Protocol
//
// Package balance implements the BalanceReconciler (spec §4.4): given an
// indexer snapshot and the local ledger of outstanding compacts for a
// (sponsor, chainId, tokenLockId) triple, compute the remaining
// allocatable balance. Every function here is pure: no I/O, no logging.
package balance

import (
	"math/big"
	"time"

	"github.com/the-compact/allocator-core/pkg/indexer"
)

// OutstandingCandidate is one locally-known compact considered for
// outstanding-ness against a snapshot (spec §4.4).
type OutstandingCandidate struct {
	ClaimHash [32]byte
	Expires   uint64
	Amount    *big.Int
}

// PendingDeltaSum sums the indexer's pendingDeltas (spec §4.4
// pendingDelta = Σ delta_i).
func PendingDeltaSum(snapshot *indexer.LockSnapshot) *big.Int {
	sum := big.NewInt(0)
	for _, d := range snapshot.PendingDeltas {
		sum.Add(sum, d.Delta)
	}
	return sum
}

// SnapshotAllocatable computes max(0, balance - pendingDelta).
func SnapshotAllocatable(snapshot *indexer.LockSnapshot) *big.Int {
	allocatable := new(big.Int).Sub(snapshot.Balance, PendingDeltaSum(snapshot))
	if allocatable.Sign() < 0 {
		return big.NewInt(0)
	}
	return allocatable
}

// IsOutstanding reports whether a local compact still counts against the
// allocatable balance: it has not finalized (its claimHash is not yet in
// snapshot.claims) and it has not passed its finalization deadline
// (spec §4.4, §4.8).
func IsOutstanding(c OutstandingCandidate, snapshot *indexer.LockSnapshot, now time.Time, finalizationThreshold time.Duration) bool {
	deadline := time.Unix(int64(c.Expires), 0).Add(finalizationThreshold)
	if !now.Before(deadline) {
		return false
	}
	for _, claim := range snapshot.Claims {
		if claim.ClaimHash == c.ClaimHash {
			return false
		}
	}
	return true
}

// LocallyAllocated sums the amount of every outstanding candidate.
func LocallyAllocated(candidates []OutstandingCandidate, snapshot *indexer.LockSnapshot, now time.Time, finalizationThreshold time.Duration) *big.Int {
	sum := big.NewInt(0)
	for _, c := range candidates {
		if IsOutstanding(c, snapshot, now, finalizationThreshold) {
			sum.Add(sum, c.Amount)
		}
	}
	return sum
}

// AllocatableRemaining returns snapshotAllocatable - locallyAllocated,
// the quantity a new compact's amount is checked against (spec §4.4).
func AllocatableRemaining(snapshot *indexer.LockSnapshot, candidates []OutstandingCandidate, now time.Time, finalizationThreshold time.Duration) *big.Int {
	remaining := new(big.Int).Sub(SnapshotAllocatable(snapshot), LocallyAllocated(candidates, snapshot, now, finalizationThreshold))
	return remaining
}
