// Copyright 2025 The Compact Protocol
//
// Package bitcodec packs and splits the 256-bit compact-id and nonce
// bit layouts used throughout the allocator. Every function here is a
// pure, total function over *big.Int; extraction is done with masks and
// shifts, never by slicing a hex string.
package bitcodec

import "math/big"

// Reset-period table, seconds, indexed 0..7.
var resetPeriods = [8]uint64{1, 15, 60, 600, 3900, 86400, 612000, 2592000}

// ResetPeriod returns the reset-period duration, in seconds, for the given
// 3-bit index. Index values outside 0..7 cannot occur because SplitID
// masks the field to 3 bits.
func ResetPeriod(index uint8) uint64 {
	return resetPeriods[index&0x7]
}

const (
	allocatorIDBits = 93
	tokenLockIDBits = 160
	sponsorBits     = 160
	highBits        = 64
	lowBits         = 32
	// MaxLow is the highest permitted nonce low value: the storage column
	// backing it is a signed 32-bit integer, so bit 31 is never set.
	MaxLow uint32 = 1<<31 - 1
)

var (
	mask3   = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 3), big.NewInt(1))
	mask93  = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), allocatorIDBits), big.NewInt(1))
	mask160 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), tokenLockIDBits), big.NewInt(1))
	mask64  = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), highBits), big.NewInt(1))
	mask32  = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), lowBits), big.NewInt(1))
)

// CompactID is the decoded form of the 256-bit compact-id (spec §3.2).
type CompactID struct {
	ResetPeriodIndex uint8
	AllocatorID      *big.Int
	TokenLockID      *big.Int
}

// SplitID decodes a 256-bit compact-id into its bit-fields.
//
//	bits 255..253 resetPeriodIndex (3 bits)
//	bits 252..160 allocatorId      (93 bits)
//	bits 159..0   tokenLockId      (160 bits)
func SplitID(id *big.Int) CompactID {
	v := new(big.Int).Set(id)

	tokenLockID := new(big.Int).And(v, mask160)

	rest := new(big.Int).Rsh(v, tokenLockIDBits)
	allocatorID := new(big.Int).And(rest, mask93)

	rest2 := new(big.Int).Rsh(rest, allocatorIDBits)
	resetPeriodIndex := uint8(new(big.Int).And(rest2, mask3).Uint64())

	return CompactID{
		ResetPeriodIndex: resetPeriodIndex,
		AllocatorID:      allocatorID,
		TokenLockID:      tokenLockID,
	}
}

// PackID re-encodes a CompactID into its 256-bit representation. Present
// so that SplitID(PackID(c)) round-trips (spec §8).
func PackID(c CompactID) *big.Int {
	id := new(big.Int).Lsh(big.NewInt(int64(c.ResetPeriodIndex&0x7)), allocatorIDBits+tokenLockIDBits)
	id.Or(id, new(big.Int).Lsh(new(big.Int).And(c.AllocatorID, mask93), tokenLockIDBits))
	id.Or(id, new(big.Int).And(c.TokenLockID, mask160))
	return id
}

// Nonce is the decoded form of the 256-bit nonce (spec §3.3).
type Nonce struct {
	Sponsor [20]byte
	High    uint64
	Low     uint32
}

// Combined returns high*2^32 + low, the ordering key for the 96-bit
// nonce fragment.
func (n Nonce) Combined() uint64 {
	return n.High<<32 | uint64(n.Low)
}

// SplitNonce decodes a 256-bit nonce into sponsor address, high, and low.
//
//	bits 255..96 sponsor address (160 bits)
//	bits 95..32  high            (64 bits)
//	bits 31..0   low             (32 bits)
func SplitNonce(nonce *big.Int) Nonce {
	v := new(big.Int).Set(nonce)

	low := uint32(new(big.Int).And(v, mask32).Uint64())

	rest := new(big.Int).Rsh(v, lowBits)
	high := new(big.Int).And(rest, mask64).Uint64()

	rest2 := new(big.Int).Rsh(rest, highBits)
	sponsorInt := new(big.Int).And(rest2, mask160)

	var sponsor [20]byte
	sponsorInt.FillBytes(sponsor[:])

	return Nonce{Sponsor: sponsor, High: high, Low: low}
}

// PackNonce encodes a sponsor address, high, and low into a 256-bit
// nonce. Present so that SplitNonce(PackNonce(a, h, l)) round-trips
// (spec §8).
func PackNonce(sponsor [20]byte, high uint64, low uint32) *big.Int {
	v := new(big.Int).SetBytes(sponsor[:])
	v.Lsh(v, highBits)
	v.Or(v, new(big.Int).SetUint64(high))
	v.Lsh(v, lowBits)
	v.Or(v, big.NewInt(int64(low)))
	return v
}

// Successor returns the next (high, low) pair after (h, l), rolling over
// to (h+1, 0) once low reaches MaxLow (spec §4.3).
func Successor(h uint64, l uint32) (uint64, uint32) {
	if l < MaxLow {
		return h, l + 1
	}
	return h + 1, 0
}

// HexString renders a 256-bit value as 64 lower-case hex nibbles, no
// "0x" prefix, left-padded with zeros.
func HexString(v *big.Int) string {
	b := make([]byte, 32)
	v.FillBytes(b)
	const hexdigits = "0123456789abcdef"
	out := make([]byte, 64)
	for i, c := range b {
		out[2*i] = hexdigits[c>>4]
		out[2*i+1] = hexdigits[c&0xf]
	}
	return string(out)
}
