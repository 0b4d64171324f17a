// Copyright 2025 The Compact Protocol
//
// Package signer provides the allocator's signing oracle: an opaque
// digest-to-signature primitive (spec §6.3). The core never touches the
// private key directly outside this package; everything else depends on
// the Oracle interface.
package signer

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
)

// Oracle signs an arbitrary 32-byte digest and returns a 65-byte
// recoverable Ethereum signature (r, s, v). It is treated as opaque by
// the rest of the core (spec §1).
type Oracle interface {
	Sign(digest [32]byte) ([65]byte, error)
}

// ECDSAOracle signs with a secp256k1 private key held in process memory.
type ECDSAOracle struct {
	privateKey *ecdsa.PrivateKey
}

// NewECDSAOracle constructs an Oracle from a hex-encoded private key, in
// the same shape as the teacher's ethereum.Client private-key helpers.
func NewECDSAOracle(privateKeyHex string) (*ECDSAOracle, error) {
	key, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("parse signer private key: %w", err)
	}
	return &ECDSAOracle{privateKey: key}, nil
}

// Sign produces a 65-byte recoverable signature over the raw digest. No
// message prefix is applied: the digest passed in is already the final
// EIP-712 result (spec §6.3).
func (o *ECDSAOracle) Sign(digest [32]byte) ([65]byte, error) {
	sig, err := crypto.Sign(digest[:], o.privateKey)
	if err != nil {
		return [65]byte{}, fmt.Errorf("sign digest: %w", err)
	}
	var out [65]byte
	copy(out[:], sig)
	// go-ethereum's crypto.Sign returns v in {0,1}; normalize to the
	// Ethereum recoverable-signature convention of {27,28}.
	if out[64] < 27 {
		out[64] += 27
	}
	return out, nil
}
