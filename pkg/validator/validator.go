package validator

import (
	"context"
	"fmt"
	"math/big"
	"regexp"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/the-compact/allocator-core/pkg/balance"
	"github.com/the-compact/allocator-core/pkg/bitcodec"
	"github.com/the-compact/allocator-core/pkg/compact"
	"github.com/the-compact/allocator-core/pkg/indexer"
)

const expiryWindow = 7200 * time.Second

var canonicalChainID = regexp.MustCompile(`^[1-9][0-9]*$`)

// NonceLedger is the subset of pkg/database's NonceRepository the
// validator needs: membership checks (spec §4.5 stage 3).
type NonceLedger interface {
	CheckUsed(ctx context.Context, chainID string, sponsor [20]byte, high uint64, low uint32) (bool, error)
}

// OutstandingSource supplies every locally-known compact for a
// (chainId, sponsor) pair so the validator can filter to the triple's
// tokenLockId and hand the result to pkg/balance (spec §4.4).
type OutstandingSource interface {
	OutstandingCandidates(ctx context.Context, chainID string, sponsor common.Address) ([]compact.Record, error)
}

// FinalizationThresholds supplies the chain-specific grace period used
// by the balance reconciler (spec §4.4 finalizationThreshold(chainId)).
type FinalizationThresholds interface {
	For(chainID string) time.Duration
}

// Validator runs the fixed six-stage admission pipeline (spec §4.5).
type Validator struct {
	Nonces      NonceLedger
	Indexer     indexer.Client
	Outstanding OutstandingSource
	Thresholds  FinalizationThresholds
	Clock       Clock
}

// NewValidator constructs a Validator from its collaborators.
func NewValidator(nonces NonceLedger, idx indexer.Client, outstanding OutstandingSource, thresholds FinalizationThresholds, clock Clock) *Validator {
	if clock == nil {
		clock = RealClock{}
	}
	return &Validator{Nonces: nonces, Indexer: idx, Outstanding: outstanding, Thresholds: thresholds, Clock: clock}
}

// Validate runs every stage against c for chainID, short-circuiting on
// the first failure. c.Nonce must already be resolved (CompactService
// reserves one via NonceLedger.GenerateNext before calling Validate when
// the caller omitted it).
func (v *Validator) Validate(ctx context.Context, chainID string, c compact.Compact) error {
	now := v.Clock.Now()

	if err := validateChainID(chainID); err != nil {
		return err
	}
	if err := validateStructural(c); err != nil {
		return err
	}
	if err := v.validateNonce(ctx, chainID, c); err != nil {
		return err
	}
	if err := validateExpiration(c, now); err != nil {
		return err
	}
	id, err := validateDomain(c, now)
	if err != nil {
		return err
	}
	return v.validateAllocation(ctx, chainID, c, id, now)
}

// 1. Chain-id well-formedness: a positive integer with no leading zeros
// or surrounding whitespace, i.e. parse(render(n)) == input.
func validateChainID(chainID string) error {
	if !canonicalChainID.MatchString(chainID) {
		return invalid(KindInvalidChainID, fmt.Sprintf("chainId %q is not a canonical positive integer", chainID))
	}
	n, err := strconv.ParseUint(chainID, 10, 64)
	if err != nil || strconv.FormatUint(n, 10) != chainID {
		return invalid(KindInvalidChainID, fmt.Sprintf("chainId %q does not round-trip", chainID))
	}
	return nil
}

// 2. Structural + W1. Address checksum decoding happens at the wire
// boundary (pkg/compact.UnmarshalJSON); here we re-assert the
// consequences a directly-constructed Compact must also satisfy.
func validateStructural(c compact.Compact) error {
	if c.Arbiter == (common.Address{}) {
		return invalidField(KindInvalidAddress, "arbiter", "arbiter must not be the zero address")
	}
	if c.Sponsor == (common.Address{}) {
		return invalidField(KindInvalidAddress, "sponsor", "sponsor must not be the zero address")
	}
	if c.Expires == 0 {
		return invalid(KindInvalidAmount, "expires must be greater than zero")
	}
	if c.ID == nil || c.ID.Sign() <= 0 {
		return invalid(KindInvalidAmount, "id must be greater than zero")
	}
	if c.Amount == nil || c.Amount.Sign() < 0 {
		return invalid(KindInvalidAmount, "amount must be a non-negative integer")
	}
	if c.HasWitness && c.WitnessTypeString == "" {
		return invalid(KindWitnessInconsistent, "witnessHash present without witnessTypeString")
	}
	if !c.HasWitness && (c.WitnessTypeString != "" || c.WitnessHash != ([32]byte{})) {
		return invalid(KindWitnessInconsistent, "witnessTypeString present without witnessHash")
	}
	return nil
}

// 3. Nonce: top 160 bits must equal sponsor (N2); the 4-tuple must be
// absent from the ledger.
func (v *Validator) validateNonce(ctx context.Context, chainID string, c compact.Compact) error {
	if c.Nonce == nil {
		return invalid(KindNonceMismatchSponsor, "nonce must be resolved before validation")
	}
	n := bitcodec.SplitNonce(c.Nonce)
	if n.Sponsor != c.Sponsor {
		return invalid(KindNonceMismatchSponsor, "nonce address prefix does not match sponsor")
	}
	used, err := v.Nonces.CheckUsed(ctx, chainID, n.Sponsor, n.High, n.Low)
	if err != nil {
		return fmt.Errorf("check nonce used: %w", err)
	}
	if used {
		return invalid(KindNonceUsed, "nonce already consumed")
	}
	return nil
}

// 4. Expiration (E1): now < expires <= now + 7200.
func validateExpiration(c compact.Compact, now time.Time) error {
	expires := time.Unix(int64(c.Expires), 0)
	if !expires.After(now) {
		return invalid(KindExpired, "expires is not after now")
	}
	if expires.After(now.Add(expiryWindow)) {
		return invalid(KindExpiryTooFar, "expires is more than 7200s in the future")
	}
	return nil
}

// 5. Domain/id (E2): resetPeriod(resetPeriodIndex) + now >= expires.
func validateDomain(c compact.Compact, now time.Time) (bitcodec.CompactID, error) {
	id := bitcodec.SplitID(c.ID)
	deadline := now.Add(time.Duration(bitcodec.ResetPeriod(id.ResetPeriodIndex)) * time.Second)
	if deadline.Before(time.Unix(int64(c.Expires), 0)) {
		return id, invalid(KindResetPeriodTooShort, "reset period does not cover expires")
	}
	return id, nil
}

// 6. Allocation: fetch the indexer snapshot, check withdrawal and
// allocator-id, then require allocatableRemaining >= amount.
func (v *Validator) validateAllocation(ctx context.Context, chainID string, c compact.Compact, id bitcodec.CompactID, now time.Time) error {
	var sponsor [20]byte
	copy(sponsor[:], c.Sponsor.Bytes())

	snapshot, err := v.Indexer.LockSnapshot(ctx, indexer.Query{
		Allocator:   id.AllocatorID,
		Sponsor:     sponsor,
		TokenLockID: id.TokenLockID,
		ChainID:     chainID,
	})
	if err != nil {
		if err == indexer.ErrLockNotFound {
			return invalid(KindLockNotFound, "resource lock not found")
		}
		if err == indexer.ErrSupportedChainNotFound {
			return invalid(KindAllocatorMismatch, "allocator does not support chain")
		}
		return fmt.Errorf("fetch lock snapshot: %w", err)
	}

	if snapshot.WithdrawalStatus != 0 {
		return invalid(KindForcedWithdrawalEnabled, "forced withdrawal is enabled on this lock")
	}
	if snapshot.AllocatorID == nil || snapshot.AllocatorID.Cmp(id.AllocatorID) != 0 {
		return invalid(KindAllocatorMismatch, "allocatorId does not match the resource lock's allocator")
	}

	candidates, err := v.outstandingCandidates(ctx, chainID, c.Sponsor, id.TokenLockID)
	if err != nil {
		return fmt.Errorf("load outstanding candidates: %w", err)
	}

	threshold := v.Thresholds.For(chainID)
	remaining := balance.AllocatableRemaining(snapshot, candidates, now, threshold)
	if remaining.Cmp(c.Amount) < 0 {
		return insufficientBalance(remaining.String(), c.Amount.String())
	}
	return nil
}

func (v *Validator) outstandingCandidates(ctx context.Context, chainID string, sponsor common.Address, tokenLockID *big.Int) ([]balance.OutstandingCandidate, error) {
	records, err := v.Outstanding.OutstandingCandidates(ctx, chainID, sponsor)
	if err != nil {
		return nil, err
	}

	var candidates []balance.OutstandingCandidate
	for _, r := range records {
		recID := bitcodec.SplitID(r.Compact.ID)
		if recID.TokenLockID.Cmp(tokenLockID) != 0 {
			continue
		}
		candidates = append(candidates, balance.OutstandingCandidate{
			ClaimHash: r.ClaimHash,
			Expires:   r.Compact.Expires,
			Amount:    r.Compact.Amount,
		})
	}
	return candidates, nil
}
