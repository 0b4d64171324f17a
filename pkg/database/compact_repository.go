// CompactRepository implements the CompactStore (spec §3.4, §4.7): an
// append-only log of admitted compacts keyed by (chainId, claimHash).

package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/the-compact/allocator-core/pkg/compact"
)

// CompactRepository handles compact record operations.
type CompactRepository struct {
	client *Client
}

// NewCompactRepository creates a new compact repository.
func NewCompactRepository(client *Client) *CompactRepository {
	return &CompactRepository{client: client}
}

// Insert persists record within tx. Returns ErrCompactExists on a
// duplicate (chainId, claimHash).
func (r *CompactRepository) Insert(ctx context.Context, tx *sql.Tx, record compact.Record) error {
	body, err := json.Marshal(record.Compact)
	if err != nil {
		return fmt.Errorf("marshal compact: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO compacts (chain_id, claim_hash, sponsor, compact, signature, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		record.ChainID, record.ClaimHash[:], record.Compact.Sponsor.Bytes(), body,
		record.Signature[:], record.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrCompactExists
		}
		return fmt.Errorf("insert compact: %w", err)
	}
	return nil
}

// Lookup retrieves a compact by (chainId, claimHash). Returns
// ErrCompactNotFound if absent.
func (r *CompactRepository) Lookup(ctx context.Context, chainID string, claimHash [32]byte) (*compact.Record, error) {
	row := r.client.QueryRowContext(ctx,
		`SELECT chain_id, compact, claim_hash, signature, created_at
		 FROM compacts WHERE chain_id = $1 AND claim_hash = $2`,
		chainID, claimHash[:])

	record, err := scanCompactRow(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrCompactNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup compact: %w", err)
	}
	return record, nil
}

// ListBySponsor returns every compact admitted for sponsor, ordered by
// createdAt descending.
func (r *CompactRepository) ListBySponsor(ctx context.Context, sponsor common.Address) ([]compact.Record, error) {
	rows, err := r.client.QueryContext(ctx,
		`SELECT chain_id, compact, claim_hash, signature, created_at
		 FROM compacts WHERE sponsor = $1 ORDER BY created_at DESC`,
		sponsor.Bytes())
	if err != nil {
		return nil, fmt.Errorf("list compacts by sponsor: %w", err)
	}
	defer rows.Close()

	var records []compact.Record
	for rows.Next() {
		record, err := scanCompactRow(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan compact row: %w", err)
		}
		records = append(records, *record)
	}
	return records, rows.Err()
}

// OutstandingCandidates returns every compact admitted for (chainId,
// sponsor), regardless of finalization state — the caller (Validator via
// pkg/balance) applies the outstanding-ness test itself (spec §4.4). The
// tokenLockId is not a stored column; callers filter by it using
// bitcodec.SplitID(record.Compact.ID).
func (r *CompactRepository) OutstandingCandidates(ctx context.Context, chainID string, sponsor common.Address) ([]compact.Record, error) {
	rows, err := r.client.QueryContext(ctx,
		`SELECT chain_id, compact, claim_hash, signature, created_at
		 FROM compacts WHERE chain_id = $1 AND sponsor = $2`,
		chainID, sponsor.Bytes())
	if err != nil {
		return nil, fmt.Errorf("list outstanding candidates: %w", err)
	}
	defer rows.Close()

	var records []compact.Record
	for rows.Next() {
		record, err := scanCompactRow(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan compact row: %w", err)
		}
		records = append(records, *record)
	}
	return records, rows.Err()
}

func scanCompactRow(scan func(dest ...any) error) (*compact.Record, error) {
	var (
		chainID   string
		body      []byte
		claimHash []byte
		signature []byte
		createdAt time.Time
	)
	if err := scan(&chainID, &body, &claimHash, &signature, &createdAt); err != nil {
		return nil, err
	}

	var c compact.Compact
	if err := json.Unmarshal(body, &c); err != nil {
		return nil, fmt.Errorf("unmarshal compact: %w", err)
	}

	record := &compact.Record{
		ChainID:   chainID,
		Compact:   c,
		CreatedAt: createdAt,
	}
	copy(record.ClaimHash[:], claimHash)
	copy(record.Signature[:], signature)
	return record, nil
}
