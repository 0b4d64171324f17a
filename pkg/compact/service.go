package compact

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/the-compact/allocator-core/pkg/bitcodec"
	"github.com/the-compact/allocator-core/pkg/signer"
)

// Hasher is the subset of pkg/eip712.Hasher the service needs, named
// locally to avoid an import cycle (pkg/eip712 depends on this package
// for the Compact type).
type Hasher interface {
	Digest(c *Compact, chainID *big.Int) ([32]byte, error)
}

// Validator is the subset of pkg/validator.Validator the service needs,
// named locally for the same reason.
type Validator interface {
	Validate(ctx context.Context, chainID string, c Compact) error
}

// NonceReserver is the subset of pkg/database.NonceRepository the
// service needs to reserve and commit nonces (spec §4.3, §4.6).
type NonceReserver interface {
	GenerateNext(ctx context.Context, chainID string, sponsor [20]byte) (uint64, uint32, error)
	CommitUsed(ctx context.Context, tx *sql.Tx, chainID string, sponsor [20]byte, high uint64, low uint32) error
}

// Store is the subset of pkg/database.CompactRepository the service
// needs (spec §4.7).
type Store interface {
	Insert(ctx context.Context, tx *sql.Tx, record Record) error
	Lookup(ctx context.Context, chainID string, claimHash [32]byte) (*Record, error)
	ListBySponsor(ctx context.Context, sponsor common.Address) ([]Record, error)
}

// DBTx is a transaction handle obtained from a TxBeginner. It is
// satisfied by *database.Client's Tx wrapper.
type DBTx interface {
	Commit() error
	Rollback() error
	Tx() *sql.Tx
}

// TxBeginner starts a transaction through a connection-pool wrapper
// (pkg/database.Client), rather than a raw *sql.DB, named locally to
// avoid an import cycle.
type TxBeginner interface {
	BeginTx(ctx context.Context) (DBTx, error)
}

// RetryObserver reports nonce-race retries during admission, satisfied
// by *metrics.Registry. Named locally so pkg/compact need not import
// pkg/metrics.
type RetryObserver interface {
	ObserveNonceRetry()
}

// DefaultRetryLimit is the suggested bound on nonce-race retries (spec
// §4.6 step 5).
const DefaultRetryLimit = 3

// Service is the top-level admission pipeline (spec §4.6): validate,
// hash, sign, persist.
type Service struct {
	DB         TxBeginner
	Nonces     NonceReserver
	Store      Store
	Validator  Validator
	Hasher     Hasher
	Signer     signer.Oracle
	Retries    RetryObserver
	RetryLimit int
}

// NewService constructs a Service from its collaborators, applying
// DefaultRetryLimit if retryLimit <= 0. retries may be nil, in which
// case nonce-race retries simply aren't reported.
func NewService(db TxBeginner, nonces NonceReserver, store Store, v Validator, hasher Hasher, oracle signer.Oracle, retries RetryObserver, retryLimit int) *Service {
	if retryLimit <= 0 {
		retryLimit = DefaultRetryLimit
	}
	return &Service{DB: db, Nonces: nonces, Store: store, Validator: v, Hasher: hasher, Signer: oracle, Retries: retries, RetryLimit: retryLimit}
}

// Admission is the result of a successful Admit call.
type Admission struct {
	ClaimHash [32]byte
	Signature [65]byte
}

// Admit runs the full admission pipeline for c against chainID, on
// behalf of authenticatedSponsor (spec §4.6).
func (s *Service) Admit(ctx context.Context, chainID string, c Compact, authenticatedSponsor common.Address) (*Admission, error) {
	if c.Sponsor != authenticatedSponsor {
		return nil, ErrUnauthorised()
	}

	var sponsorBytes [20]byte
	copy(sponsorBytes[:], c.Sponsor.Bytes())

	for attempt := 0; attempt < s.RetryLimit; attempt++ {
		candidate := c
		reserved := candidate.Nonce == nil
		if reserved {
			high, low, err := s.Nonces.GenerateNext(ctx, chainID, sponsorBytes)
			if err != nil {
				return nil, ErrUpstream("nonce-ledger", err)
			}
			candidate.Nonce = bitcodec.PackNonce(sponsorBytes, high, low)
		}

		if err := s.Validator.Validate(ctx, chainID, candidate); err != nil {
			return nil, err
		}

		digest, err := s.Hasher.Digest(&candidate, chainIDBig(chainID))
		if err != nil {
			return nil, fmt.Errorf("compute digest: %w", err)
		}

		sig, err := s.Signer.Sign(digest)
		if err != nil {
			return nil, ErrUpstream("signer", err)
		}

		admitted, err := s.persist(ctx, chainID, candidate, digest, sig)
		if err == nil {
			return admitted, nil
		}
		if errors.Is(err, ErrNonceTaken) {
			if s.Retries != nil {
				s.Retries.ObserveNonceRetry()
			}
			continue // another admission won this gap; retry from generate-next
		}
		return nil, err
	}
	return nil, ErrContention(s.RetryLimit)
}

// persist commits NonceEntry and CompactRecord within a single
// transaction (spec §4.6 step 5, §5).
func (s *Service) persist(ctx context.Context, chainID string, c Compact, digest [32]byte, sig [65]byte) (*Admission, error) {
	n := bitcodec.SplitNonce(c.Nonce)

	tx, err := s.DB.BeginTx(ctx)
	if err != nil {
		return nil, ErrUpstream("database", err)
	}
	defer tx.Rollback()

	if err := s.Nonces.CommitUsed(ctx, tx.Tx(), chainID, n.Sponsor, n.High, n.Low); err != nil {
		if errors.Is(err, ErrNonceTaken) {
			return nil, ErrNonceTaken
		}
		return nil, ErrUpstream("nonce-ledger", err)
	}

	record := Record{
		ChainID:   chainID,
		Compact:   c,
		ClaimHash: digest,
		Signature: sig,
		CreatedAt: time.Now(),
	}
	if err := s.Store.Insert(ctx, tx.Tx(), record); err != nil {
		return nil, ErrUpstream("compact-store", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, ErrUpstream("database", err)
	}

	return &Admission{ClaimHash: digest, Signature: sig}, nil
}

// Lookup retrieves an admitted compact by (chainId, claimHash).
func (s *Service) Lookup(ctx context.Context, chainID string, claimHash [32]byte) (*Record, error) {
	record, err := s.Store.Lookup(ctx, chainID, claimHash)
	if err != nil {
		if errors.Is(err, ErrCompactNotFound) {
			return nil, ErrCompactNotFound
		}
		return nil, ErrUpstream("compact-store", err)
	}
	return record, nil
}

// ListBySponsor returns every compact admitted for sponsor, newest first.
func (s *Service) ListBySponsor(ctx context.Context, sponsor common.Address) ([]Record, error) {
	records, err := s.Store.ListBySponsor(ctx, sponsor)
	if err != nil {
		return nil, ErrUpstream("compact-store", err)
	}
	return records, nil
}

func chainIDBig(chainID string) *big.Int {
	n, ok := new(big.Int).SetString(chainID, 10)
	if !ok {
		return big.NewInt(0)
	}
	return n
}
