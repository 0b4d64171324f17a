// NonceRepository implements the NonceLedger (spec §3.4, §4.3): a sparse
// persistent set of consumed (chainId, sponsor, high, low) tuples, with
// gap search and insert.

package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/the-compact/allocator-core/pkg/bitcodec"
)

// NonceRepository handles nonce ledger operations.
type NonceRepository struct {
	client *Client
}

// NewNonceRepository creates a new nonce repository.
func NewNonceRepository(client *Client) *NonceRepository {
	return &NonceRepository{client: client}
}

// GenerateNext returns the smallest (high, low) tuple, lexicographic by
// high*2^32+low, not already present in the ledger for (chainId, sponsor)
// (spec §4.3). The scan and the decision are made from a single query
// result, satisfying the "single transactional read" requirement; the
// caller commits the chosen tuple separately (CompactService retries on
// ErrNonceTaken if another admission wins the race first).
func (r *NonceRepository) GenerateNext(ctx context.Context, chainID string, sponsor [20]byte) (uint64, uint32, error) {
	rows, err := r.client.QueryContext(ctx,
		`SELECT high, low FROM nonces WHERE chain_id = $1 AND sponsor = $2 ORDER BY high, low`,
		chainID, sponsor[:])
	if err != nil {
		return 0, 0, fmt.Errorf("query nonce ledger: %w", err)
	}
	defer rows.Close()

	var (
		have      bool
		prevH     uint64
		prevL     uint32
		firstPair = true
	)

	for rows.Next() {
		var h int64
		var l int32
		if err := rows.Scan(&h, &l); err != nil {
			return 0, 0, fmt.Errorf("scan nonce row: %w", err)
		}
		high, low := uint64(h), uint32(l)

		if firstPair {
			if high != 0 || low != 0 {
				return 0, 0, nil
			}
			firstPair = false
			prevH, prevL = high, low
			have = true
			continue
		}

		wantH, wantL := bitcodec.Successor(prevH, prevL)
		if high != wantH || low != wantL {
			return wantH, wantL, nil
		}
		prevH, prevL = high, low
	}
	if err := rows.Err(); err != nil {
		return 0, 0, fmt.Errorf("iterate nonce ledger: %w", err)
	}

	if !have {
		return 0, 0, nil
	}
	h, l := bitcodec.Successor(prevH, prevL)
	return h, l, nil
}

// CheckUsed reports whether (chainId, sponsor, high, low) is already
// present in the ledger.
func (r *NonceRepository) CheckUsed(ctx context.Context, chainID string, sponsor [20]byte, high uint64, low uint32) (bool, error) {
	var exists bool
	err := r.client.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM nonces WHERE chain_id = $1 AND sponsor = $2 AND high = $3 AND low = $4)`,
		chainID, sponsor[:], int64(high), int32(low),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check nonce used: %w", err)
	}
	return exists, nil
}

// CommitUsed inserts (chainId, sponsor, high, low) within tx. Returns
// ErrNonceTaken on a primary-key race with a concurrent admission
// (spec §4.3, §5).
func (r *NonceRepository) CommitUsed(ctx context.Context, tx *sql.Tx, chainID string, sponsor [20]byte, high uint64, low uint32) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO nonces (chain_id, sponsor, high, low) VALUES ($1, $2, $3, $4)`,
		chainID, sponsor[:], int64(high), int32(low),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrNonceTaken
		}
		return fmt.Errorf("commit nonce: %w", err)
	}
	return nil
}
