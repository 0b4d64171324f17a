package balance

import (
	"math/big"
	"testing"
	"time"

	"github.com/the-compact/allocator-core/pkg/indexer"
)

func snapshot(balance int64, deltas ...int64) *indexer.LockSnapshot {
	s := &indexer.LockSnapshot{Balance: big.NewInt(balance)}
	for _, d := range deltas {
		s.PendingDeltas = append(s.PendingDeltas, indexer.PendingDelta{Delta: big.NewInt(d)})
	}
	return s
}

func TestSnapshotAllocatableClampsAtZero(t *testing.T) {
	s := snapshot(100, 500)
	if got := SnapshotAllocatable(s); got.Sign() != 0 {
		t.Fatalf("got %s, want 0", got)
	}
}

func TestSnapshotAllocatableSubtractsPending(t *testing.T) {
	s := snapshot(1000, 100, -50)
	got := SnapshotAllocatable(s)
	if got.Cmp(big.NewInt(950)) != 0 {
		t.Fatalf("got %s, want 950", got)
	}
}

func TestIsOutstandingFinalizedByClaim(t *testing.T) {
	hash := [32]byte{1}
	s := &indexer.LockSnapshot{Claims: []indexer.Claim{{ClaimHash: hash}}}
	c := OutstandingCandidate{ClaimHash: hash, Expires: uint64(time.Now().Add(time.Hour).Unix()), Amount: big.NewInt(1)}
	if IsOutstanding(c, s, time.Now(), time.Hour) {
		t.Fatalf("claimed compact should not be outstanding")
	}
}

func TestIsOutstandingExpiredPastThreshold(t *testing.T) {
	s := &indexer.LockSnapshot{}
	c := OutstandingCandidate{
		ClaimHash: [32]byte{9},
		Expires:   uint64(time.Now().Add(-2 * time.Hour).Unix()),
		Amount:    big.NewInt(1),
	}
	if IsOutstanding(c, s, time.Now(), time.Hour) {
		t.Fatalf("compact past finalization threshold should not be outstanding")
	}
}

func TestIsOutstandingWithinThreshold(t *testing.T) {
	s := &indexer.LockSnapshot{}
	c := OutstandingCandidate{
		ClaimHash: [32]byte{9},
		Expires:   uint64(time.Now().Add(-30 * time.Minute).Unix()),
		Amount:    big.NewInt(1),
	}
	if !IsOutstanding(c, s, time.Now(), time.Hour) {
		t.Fatalf("compact within finalization threshold should be outstanding")
	}
}

func TestAllocatableRemaining(t *testing.T) {
	s := snapshot(1000)
	candidates := []OutstandingCandidate{
		{ClaimHash: [32]byte{1}, Expires: uint64(time.Now().Add(time.Hour).Unix()), Amount: big.NewInt(300)},
		{ClaimHash: [32]byte{2}, Expires: uint64(time.Now().Add(time.Hour).Unix()), Amount: big.NewInt(200)},
	}
	got := AllocatableRemaining(s, candidates, time.Now(), time.Hour)
	if got.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("got %s, want 500", got)
	}
}
