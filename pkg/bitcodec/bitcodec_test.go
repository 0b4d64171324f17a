package bitcodec

import (
	"math/big"
	"testing"
)

func TestPackSplitIDRoundTrip(t *testing.T) {
	cases := []CompactID{
		{ResetPeriodIndex: 0, AllocatorID: big.NewInt(0), TokenLockID: big.NewInt(0)},
		{ResetPeriodIndex: 7, AllocatorID: big.NewInt(1), TokenLockID: big.NewInt(0)},
		{ResetPeriodIndex: 3, AllocatorID: big.NewInt(123456789), TokenLockID: big.NewInt(987654321)},
	}
	for _, c := range cases {
		id := PackID(c)
		got := SplitID(id)
		if got.ResetPeriodIndex != c.ResetPeriodIndex {
			t.Fatalf("resetPeriodIndex: got %d want %d", got.ResetPeriodIndex, c.ResetPeriodIndex)
		}
		if got.AllocatorID.Cmp(c.AllocatorID) != 0 {
			t.Fatalf("allocatorID: got %s want %s", got.AllocatorID, c.AllocatorID)
		}
		if got.TokenLockID.Cmp(c.TokenLockID) != 0 {
			t.Fatalf("tokenLockID: got %s want %s", got.TokenLockID, c.TokenLockID)
		}
	}
}

func TestSplitIDResetPeriodIndexRange(t *testing.T) {
	id := PackID(CompactID{ResetPeriodIndex: 7, AllocatorID: big.NewInt(1), TokenLockID: big.NewInt(0)})
	got := SplitID(id)
	if got.ResetPeriodIndex > 7 {
		t.Fatalf("resetPeriodIndex out of range: %d", got.ResetPeriodIndex)
	}
}

func TestExampleID(t *testing.T) {
	// From spec.md §8 end-to-end scenario: resetPeriodIndex=7, allocatorId=1, tokenLockId=0.
	id := PackID(CompactID{ResetPeriodIndex: 7, AllocatorID: big.NewInt(1), TokenLockID: big.NewInt(0)})
	want := new(big.Int).Lsh(big.NewInt(7), 253)
	want.Or(want, new(big.Int).Lsh(big.NewInt(1), 160))
	if id.Cmp(want) != 0 {
		t.Fatalf("id = %s, want %s", HexString(id), HexString(want))
	}
}

func sponsorFromHex(t *testing.T, hx string) [20]byte {
	t.Helper()
	b, ok := new(big.Int).SetString(hx, 16)
	if !ok {
		t.Fatalf("bad hex %q", hx)
	}
	var out [20]byte
	b.FillBytes(out[:])
	return out
}

func TestPackSplitNonceRoundTrip(t *testing.T) {
	sponsor := sponsorFromHex(t, "f39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	cases := []struct {
		high uint64
		low  uint32
	}{
		{0, 0},
		{0, 1},
		{1, 0},
		{123456789, MaxLow},
	}
	for _, c := range cases {
		n := PackNonce(sponsor, c.high, c.low)
		got := SplitNonce(n)
		if got.Sponsor != sponsor {
			t.Fatalf("sponsor mismatch")
		}
		if got.High != c.high || got.Low != c.low {
			t.Fatalf("got (%d,%d) want (%d,%d)", got.High, got.Low, c.high, c.low)
		}
	}
}

func TestSuccessorRollsOverAtMaxLow(t *testing.T) {
	h, l := Successor(0, MaxLow)
	if h != 1 || l != 0 {
		t.Fatalf("successor(0, MaxLow) = (%d, %d), want (1, 0)", h, l)
	}
}

func TestSuccessorIncrementsLow(t *testing.T) {
	h, l := Successor(5, 10)
	if h != 5 || l != 11 {
		t.Fatalf("successor(5, 10) = (%d, %d), want (5, 11)", h, l)
	}
}

func TestHexStringWidth(t *testing.T) {
	s := HexString(big.NewInt(1))
	if len(s) != 64 {
		t.Fatalf("len = %d, want 64", len(s))
	}
	if s[63] != '1' {
		t.Fatalf("unexpected suffix: %s", s)
	}
}

func TestResetPeriodTable(t *testing.T) {
	want := [8]uint64{1, 15, 60, 600, 3900, 86400, 612000, 2592000}
	for i, w := range want {
		if got := ResetPeriod(uint8(i)); got != w {
			t.Fatalf("ResetPeriod(%d) = %d, want %d", i, got, w)
		}
	}
}
