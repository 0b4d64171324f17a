// Copyright 2025 The Compact Protocol
//
// Package eip712 implements the deterministic EIP-712 domain+struct
// hashing used by the on-chain verifier (spec §4.2), built on
// go-ethereum's apitypes.TypedData the same way the pack's
// eth_verifier.go reference implementation does.
package eip712

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/the-compact/allocator-core/pkg/compact"
)

// VerifyingContract is the fixed on-chain verifier address for The Compact.
var VerifyingContract = common.HexToAddress("0x00000000000018DF021Ff2467dF97ff846E09f48")

const (
	domainName    = "The Compact"
	domainVersion = "0"

	primaryTypeNoWitness   = "Compact"
	primaryTypeWithWitness = "CompactWitness"
)

var baseFields = []apitypes.Type{
	{Name: "arbiter", Type: "address"},
	{Name: "sponsor", Type: "address"},
	{Name: "nonce", Type: "uint256"},
	{Name: "expires", Type: "uint256"},
	{Name: "id", Type: "uint256"},
	{Name: "amount", Type: "uint256"},
}

var witnessFields = []apitypes.Type{
	{Name: "witnessTypeString", Type: "string"},
	{Name: "witnessHash", Type: "bytes32"},
}

var domainFields = []apitypes.Type{
	{Name: "name", Type: "string"},
	{Name: "version", Type: "string"},
	{Name: "chainId", Type: "uint256"},
	{Name: "verifyingContract", Type: "address"},
}

// Hasher computes EIP-712 claim-hash digests for compacts.
type Hasher struct{}

// NewHasher constructs a Hasher. It carries no state: the type schemas
// are package-level constants and the domain varies only by chainId,
// which is supplied per call.
func NewHasher() *Hasher {
	return &Hasher{}
}

// Digest returns keccak256(0x1901 || domainSeparator || structHash), the
// 32-byte digest the allocator signs (spec §4.2). Digest is a pure
// function of its inputs: identical (compact, chainId) pairs always
// produce identical bytes.
func (h *Hasher) Digest(c *compact.Compact, chainID *big.Int) ([32]byte, error) {
	td := typedData(c, chainID)

	domainSeparator, err := td.HashStruct("EIP712Domain", td.Domain.Map())
	if err != nil {
		return [32]byte{}, fmt.Errorf("hash domain: %w", err)
	}

	structHash, err := td.HashStruct(td.PrimaryType, td.Message)
	if err != nil {
		return [32]byte{}, fmt.Errorf("hash struct: %w", err)
	}

	raw := make([]byte, 0, 66)
	raw = append(raw, 0x19, 0x01)
	raw = append(raw, domainSeparator...)
	raw = append(raw, structHash...)

	var digest [32]byte
	copy(digest[:], crypto.Keccak256(raw))
	return digest, nil
}

func typedData(c *compact.Compact, chainID *big.Int) apitypes.TypedData {
	types := apitypes.Types{
		"EIP712Domain": domainFields,
	}

	primaryType := primaryTypeNoWitness
	fields := append([]apitypes.Type{}, baseFields...)
	if c.HasWitness {
		primaryType = primaryTypeWithWitness
		fields = append(fields, witnessFields...)
	}
	types[primaryType] = fields

	return apitypes.TypedData{
		Types:       types,
		PrimaryType: primaryType,
		Domain: apitypes.TypedDataDomain{
			Name:              domainName,
			Version:           domainVersion,
			ChainId:           (*apitypes.HexOrDecimal256)(chainID),
			VerifyingContract: VerifyingContract.Hex(),
		},
		Message: buildMessage(c),
	}
}

func buildMessage(c *compact.Compact) apitypes.TypedDataMessage {
	msg := apitypes.TypedDataMessage{
		"arbiter": c.Arbiter.Hex(),
		"sponsor": c.Sponsor.Hex(),
		"nonce":   c.Nonce,
		"expires": new(big.Int).SetUint64(c.Expires),
		"id":      c.ID,
		"amount":  c.Amount,
	}
	if c.HasWitness {
		msg["witnessTypeString"] = c.WitnessTypeString
		msg["witnessHash"] = c.WitnessHash[:]
	}
	return msg
}
