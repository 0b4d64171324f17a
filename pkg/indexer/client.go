package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Client is the narrow interface the Validator and BalanceReconciler use
// to consult the chain indexer (spec §6.1). The core never talks to the
// indexer's transport directly outside an implementation of this
// interface.
type Client interface {
	LockSnapshot(ctx context.Context, q Query) (*LockSnapshot, error)
	Health(ctx context.Context) error
}

// HTTPClient is the concrete Client implementation: a thin wrapper over
// an HTTP/JSON endpoint, shaped like the teacher's pkg/ethereum.Client
// (context-aware methods, wrapped errors, a Health check) but over REST
// rather than JSON-RPC, since the indexer is not a geth node.
type HTTPClient struct {
	baseURL string
	http    *http.Client
}

// NewHTTPClient constructs an indexer client against baseURL.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// wireResponse mirrors the shape described in spec §6.1.
type wireResponse struct {
	Account struct {
		ResourceLocks []struct {
			Balance          string `json:"balance"`
			WithdrawalStatus uint8  `json:"withdrawalStatus"`
		} `json:"resourceLocks"`
		Claims []struct {
			ClaimHash string `json:"claimHash"`
		} `json:"claims"`
	} `json:"account"`
	Allocator struct {
		SupportedChains []struct {
			AllocatorID string `json:"allocatorId"`
		} `json:"supportedChains"`
	} `json:"allocator"`
	AccountDeltas []struct {
		Delta string `json:"delta"`
	} `json:"accountDeltas"`
}

// LockSnapshot fetches the current LockSnapshot for q (spec §4.4, §6.1).
// It maps indexer-side absence of a resource lock or supported-chain
// entry onto ErrLockNotFound / ErrSupportedChainNotFound so the Validator
// can translate them into the §7 error taxonomy.
func (c *HTTPClient) LockSnapshot(ctx context.Context, q Query) (*LockSnapshot, error) {
	url := fmt.Sprintf("%s/v1/account?allocator=%s&sponsor=%s&tokenLockId=%s&chainId=%s",
		c.baseURL, q.Allocator.String(), common.BytesToAddress(q.Sponsor[:]).Hex(), q.TokenLockID.String(), q.ChainID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build indexer request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query indexer: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("indexer returned status %d", resp.StatusCode)
	}

	var wire wireResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("decode indexer response: %w", err)
	}

	return wireToSnapshot(q, wire)
}

func wireToSnapshot(q Query, wire wireResponse) (*LockSnapshot, error) {
	if len(wire.Account.ResourceLocks) == 0 {
		return nil, ErrLockNotFound
	}
	if len(wire.Allocator.SupportedChains) == 0 {
		return nil, ErrSupportedChainNotFound
	}

	lock := wire.Account.ResourceLocks[0]
	balance, ok := new(big.Int).SetString(lock.Balance, 10)
	if !ok {
		return nil, fmt.Errorf("indexer: malformed balance %q", lock.Balance)
	}

	allocatorID, ok := new(big.Int).SetString(wire.Allocator.SupportedChains[0].AllocatorID, 10)
	if !ok {
		return nil, fmt.Errorf("indexer: malformed allocatorId %q", wire.Allocator.SupportedChains[0].AllocatorID)
	}

	snapshot := &LockSnapshot{
		Balance:          balance,
		WithdrawalStatus: lock.WithdrawalStatus,
		AllocatorID:      allocatorID,
	}

	for _, d := range wire.AccountDeltas {
		delta, ok := new(big.Int).SetString(d.Delta, 10)
		if !ok {
			return nil, fmt.Errorf("indexer: malformed delta %q", d.Delta)
		}
		snapshot.PendingDeltas = append(snapshot.PendingDeltas, PendingDelta{Delta: delta})
	}

	for _, cl := range wire.Account.Claims {
		hashBytes := common.FromHex(cl.ClaimHash)
		var h [32]byte
		copy(h[32-len(hashBytes):], hashBytes)
		snapshot.Claims = append(snapshot.Claims, Claim{ClaimHash: h})
	}

	return snapshot, nil
}

// Health checks that the indexer endpoint is reachable.
func (c *HTTPClient) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("indexer health check failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("indexer health check failed: status %d", resp.StatusCode)
	}
	return nil
}
