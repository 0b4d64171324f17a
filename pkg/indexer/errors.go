package indexer

import "errors"

var (
	// ErrLockNotFound is returned when the indexer has no resource lock
	// record for the requested (allocator, sponsor, tokenLockId, chainId).
	ErrLockNotFound = errors.New("resource lock not found")

	// ErrSupportedChainNotFound is returned when the indexer's allocator
	// record has no entry for the requested chainId.
	ErrSupportedChainNotFound = errors.New("allocator does not support chain")
)
