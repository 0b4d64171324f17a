package compact

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/the-compact/allocator-core/pkg/bitcodec"
)

// wireCompact is the JSON shape of a Compact on the wire (spec §6.5):
// addresses EIP-55 checksummed, id/nonce/claimHash 0x-prefixed 64-nibble
// hex, amount/expires decimal strings.
type wireCompact struct {
	Arbiter           string `json:"arbiter"`
	Sponsor           string `json:"sponsor"`
	Nonce             string `json:"nonce,omitempty"`
	Expires           string `json:"expires"`
	ID                string `json:"id"`
	Amount            string `json:"amount"`
	WitnessTypeString string `json:"witnessTypeString,omitempty"`
	WitnessHash       string `json:"witnessHash,omitempty"`
}

// MarshalJSON renders c per the wire field encoding in spec §6.5.
func (c Compact) MarshalJSON() ([]byte, error) {
	w := wireCompact{
		Arbiter: c.Arbiter.Hex(),
		Sponsor: c.Sponsor.Hex(),
		Expires: fmt.Sprintf("%d", c.Expires),
		ID:      "0x" + bitcodec.HexString(c.ID),
		Amount:  c.Amount.String(),
	}
	if c.Nonce != nil {
		w.Nonce = "0x" + bitcodec.HexString(c.Nonce)
	}
	if c.HasWitness {
		w.WitnessTypeString = c.WitnessTypeString
		w.WitnessHash = "0x" + hex.EncodeToString(c.WitnessHash[:])
	}
	return json.Marshal(w)
}

// UnmarshalJSON parses the wire shape back into a Compact.
func (c *Compact) UnmarshalJSON(data []byte) error {
	var w wireCompact
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	arbiter, err := decodeChecksumAddress(w.Arbiter)
	if err != nil {
		return fmt.Errorf("arbiter: %w", err)
	}
	sponsor, err := decodeChecksumAddress(w.Sponsor)
	if err != nil {
		return fmt.Errorf("sponsor: %w", err)
	}
	c.Arbiter = arbiter
	c.Sponsor = sponsor

	if w.Nonce != "" {
		n, ok := new(big.Int).SetString(strings.TrimPrefix(w.Nonce, "0x"), 16)
		if !ok {
			return fmt.Errorf("invalid nonce hex %q", w.Nonce)
		}
		c.Nonce = n
	} else {
		c.Nonce = nil
	}

	var expires uint64
	if _, err := fmt.Sscanf(w.Expires, "%d", &expires); err != nil {
		return fmt.Errorf("invalid expires %q: %w", w.Expires, err)
	}
	c.Expires = expires

	id, ok := new(big.Int).SetString(strings.TrimPrefix(w.ID, "0x"), 16)
	if !ok {
		return fmt.Errorf("invalid id hex %q", w.ID)
	}
	c.ID = id

	amount, ok := new(big.Int).SetString(w.Amount, 10)
	if !ok {
		return fmt.Errorf("invalid amount %q", w.Amount)
	}
	c.Amount = amount

	if w.WitnessTypeString != "" || w.WitnessHash != "" {
		c.HasWitness = true
		c.WitnessTypeString = w.WitnessTypeString
		raw, err := hex.DecodeString(strings.TrimPrefix(w.WitnessHash, "0x"))
		if err != nil || len(raw) != 32 {
			return fmt.Errorf("invalid witnessHash %q", w.WitnessHash)
		}
		copy(c.WitnessHash[:], raw)
	}

	return nil
}

// decodeChecksumAddress parses a hex address and rejects it unless it is
// exactly the EIP-55 checksummed rendering of its own bytes (spec §4.5
// structural stage: "arbiter, sponsor checksum-decode").
func decodeChecksumAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("not a valid hex address: %q", s)
	}
	addr := common.HexToAddress(s)
	if addr.Hex() != s {
		return common.Address{}, fmt.Errorf("failed EIP-55 checksum: %q", s)
	}
	return addr, nil
}

// wireRecord is the JSON shape of a Record on the wire.
type wireRecord struct {
	ChainID   string  `json:"chainId"`
	Compact   Compact `json:"compact"`
	ClaimHash string  `json:"claimHash"`
	Signature string  `json:"signature"`
	CreatedAt string  `json:"createdAt"`
}

// MarshalJSON renders r per the wire field encoding in spec §6.5.
func (r Record) MarshalJSON() ([]byte, error) {
	w := wireRecord{
		ChainID:   r.ChainID,
		Compact:   r.Compact,
		ClaimHash: "0x" + hex.EncodeToString(r.ClaimHash[:]),
		Signature: "0x" + hex.EncodeToString(r.Signature[:]),
		CreatedAt: r.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
	return json.Marshal(w)
}
