package compact

import (
	"errors"
	"fmt"
)

// Persistence-layer sentinels. They live here, rather than in
// pkg/database, because both pkg/database and pkg/validator depend on
// this package for the Compact/Record types; defining them in
// pkg/database would make them unreachable from pkg/validator without
// an import cycle.
var (
	// ErrNonceTaken signals a primary-key race on (chainId, sponsor,
	// high, low): two admissions reserved the same gap (spec §4.3, §5).
	ErrNonceTaken = errors.New("nonce taken")

	// ErrCompactExists signals a duplicate (chainId, claimHash) insert.
	ErrCompactExists = errors.New("compact already exists")

	// ErrCompactNotFound signals a lookup miss by (chainId, claimHash).
	ErrCompactNotFound = errors.New("compact not found")
)

// ServiceErrorKind identifies a CompactService-level failure — the part
// of the spec §7 taxonomy not owned by pkg/validator or pkg/database.
type ServiceErrorKind string

const (
	KindUnauthorised ServiceErrorKind = "Unauthorised"
	KindContention   ServiceErrorKind = "Contention"
	KindUpstream     ServiceErrorKind = "Upstream"
)

// ServiceError is a typed CompactService failure.
type ServiceError struct {
	Kind   ServiceErrorKind
	Detail string
	Source string // populated only for KindUpstream
}

func (e *ServiceError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("%s[%s]: %s", e.Kind, e.Source, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

// ErrUnauthorised is returned when the authenticated principal does not
// match the compact's sponsor (spec §4.6 step 1).
func ErrUnauthorised() error {
	return &ServiceError{Kind: KindUnauthorised, Detail: "authenticated sponsor does not match compact.sponsor"}
}

// ErrContention is returned when the bounded nonce-race retry loop is
// exhausted (spec §4.6 step 5, §7).
func ErrContention(attempts int) error {
	return &ServiceError{Kind: KindContention, Detail: fmt.Sprintf("nonce race not resolved after %d attempts", attempts)}
}

// ErrUpstream wraps an I/O failure against the indexer or the store,
// tagged with its source so it is never conflated with a validation
// failure (spec §7 propagation policy).
func ErrUpstream(source string, err error) error {
	return &ServiceError{Kind: KindUpstream, Source: source, Detail: err.Error()}
}
