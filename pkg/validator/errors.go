// Package validator orchestrates the structural, nonce, expiry, domain,
// and allocation checks a compact must pass before admission (spec §4.5).
package validator

import "fmt"

// Kind identifies a validation failure (spec §7 error taxonomy — the
// subset owned by the validation pipeline rather than by CompactService
// or the persistence layer).
type Kind string

const (
	KindInvalidChainID          Kind = "InvalidChainId"
	KindInvalidAddress          Kind = "InvalidAddress"
	KindInvalidAmount           Kind = "InvalidAmount"
	KindWitnessInconsistent     Kind = "WitnessInconsistent"
	KindExpired                 Kind = "Expired"
	KindExpiryTooFar            Kind = "ExpiryTooFar"
	KindResetPeriodTooShort     Kind = "ResetPeriodTooShort"
	KindNonceMismatchSponsor    Kind = "NonceMismatchSponsor"
	KindNonceUsed               Kind = "NonceUsed"
	KindLockNotFound            Kind = "LockNotFound"
	KindForcedWithdrawalEnabled Kind = "ForcedWithdrawalEnabled"
	KindAllocatorMismatch       Kind = "AllocatorMismatch"
	KindInsufficientBalance     Kind = "InsufficientBalance"
)

// Error is a typed validation failure. Have/Need are populated only for
// KindInsufficientBalance; Field is populated only for KindInvalidAddress.
type Error struct {
	Kind   Kind
	Detail string
	Field  string
	Have   string
	Need   string
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s[%s]: %s", e.Kind, e.Field, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func invalid(kind Kind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

func invalidField(kind Kind, field, detail string) *Error {
	return &Error{Kind: kind, Field: field, Detail: detail}
}

func insufficientBalance(have, need string) *Error {
	return &Error{
		Kind:   KindInsufficientBalance,
		Detail: fmt.Sprintf("have %s, need %s", have, need),
		Have:   have,
		Need:   need,
	}
}
