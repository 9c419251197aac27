// Package capacity enforces contribution limits on demat account pools.
//
// Two limits apply when a participant joins a pool: the target account's
// own capacity (how much pooled money one account may carry into a single
// IPO application), and an aggregate cap across every account belonging to
// the same owner. The owner-level cap exists because retail allotment is
// per applicant — several maxed-out accounts under one owner concentrate
// the group's money behind a single allotment chance.
package capacity

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrAccountCapExceeded is returned when a contribution would push a
	// single account's pool beyond its capacity.
	ErrAccountCapExceeded = errors.New("capacity: account capacity exceeded")

	// ErrOwnerCapExceeded is returned when a contribution would push the
	// aggregate pooled total across one owner's accounts beyond the
	// per-owner maximum.
	ErrOwnerCapExceeded = errors.New("capacity: owner aggregate cap exceeded")
)

// Limiter enforces per-account and per-owner contribution limits.
// A zero limit means unlimited at that level.
type Limiter struct {
	// DefaultPerAccount applies to accounts that do not declare their own
	// capacity.
	DefaultPerAccount decimal.Decimal

	// MaxPerOwner is the aggregate cap across all accounts sharing an
	// owner within one IPO.
	MaxPerOwner decimal.Decimal
}

// NewLimiter creates a limiter with the given default per-account and
// per-owner limits.
func NewLimiter(defaultPerAccount, maxPerOwner decimal.Decimal) *Limiter {
	return &Limiter{
		DefaultPerAccount: defaultPerAccount,
		MaxPerOwner:       maxPerOwner,
	}
}

// Check validates whether adding delta to the target account's pool
// respects both limits.
//
// Parameters:
//   - targetAccount: ID of the account receiving the contribution
//   - accountCap: the target account's declared capacity (0 → default)
//   - owner: the target account's owner name
//   - delta: the contribution being added
//   - accountTotals: accountID → current pooled total for this IPO
//   - owners: accountID → owner name, for the owner-level aggregate
//
// Returns nil when the contribution fits, or an error naming the limit hit.
func (l *Limiter) Check(
	targetAccount, owner string,
	accountCap, delta decimal.Decimal,
	accountTotals map[string]decimal.Decimal,
	owners map[string]string,
) error {
	cap := accountCap
	if !cap.IsPositive() {
		cap = l.DefaultPerAccount
	}

	newTotal := accountTotals[targetAccount].Add(delta)
	if cap.IsPositive() && newTotal.GreaterThan(cap) {
		return ErrAccountCapExceeded
	}

	if !l.MaxPerOwner.IsPositive() {
		return nil
	}

	ownerTotal := newTotal
	for accountID, total := range accountTotals {
		if accountID == targetAccount {
			continue // already counted via newTotal above
		}
		if owners[accountID] == owner {
			ownerTotal = ownerTotal.Add(total)
		}
	}
	if ownerTotal.GreaterThan(l.MaxPerOwner) {
		return ErrOwnerCapExceeded
	}

	return nil
}
