package settle

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Contributor is one participant's stake in a pool.
type Contributor struct {
	ParticipantID string
	Investment    decimal.Decimal
}

// Share is one contributor's slice of a settled pool.
type Share struct {
	ParticipantID string
	Fraction      decimal.Decimal // Investment / pool total, unrounded
	Return        decimal.Decimal
	Profit        decimal.Decimal // Return - Investment
}

// Distribute splits a settled final amount across contributors in
// proportion to their investments.
//
// Each return is rounded to MoneyScale independently, then reconciled:
// any residual between the rounded sum and finalAmount is folded into the
// largest contributor's return, so the shares always sum to finalAmount
// exactly — downstream totals must tie out, not just approximate.
//
// Contributors with a zero investment receive a zero share. A pool whose
// total contribution is zero cannot be distributed (ErrDegeneratePool).
func Distribute(finalAmount decimal.Decimal, contributors []Contributor) ([]Share, error) {
	if len(contributors) == 0 {
		return nil, fmt.Errorf("%w: no contributors in pool", ErrInvalidInput)
	}

	total := decimal.Zero
	for _, c := range contributors {
		if c.Investment.IsNegative() {
			return nil, fmt.Errorf("%w: investment for %s must be >= 0, got %s",
				ErrInvalidInput, c.ParticipantID, c.Investment)
		}
		total = total.Add(c.Investment)
	}
	if !total.IsPositive() {
		return nil, ErrDegeneratePool
	}

	shares := make([]Share, len(contributors))
	largest := 0
	roundedSum := decimal.Zero

	for i, c := range contributors {
		fraction := c.Investment.Div(total)
		ret := finalAmount.Mul(fraction).Round(MoneyScale)
		shares[i] = Share{
			ParticipantID: c.ParticipantID,
			Fraction:      fraction,
			Return:        ret,
			Profit:        ret.Sub(c.Investment).Round(MoneyScale),
		}
		roundedSum = roundedSum.Add(ret)
		if c.Investment.GreaterThan(contributors[largest].Investment) {
			largest = i
		}
	}

	// Reconcile: the largest contributor absorbs the rounding residual.
	residual := finalAmount.Round(MoneyScale).Sub(roundedSum)
	if !residual.IsZero() {
		s := &shares[largest]
		s.Return = s.Return.Add(residual)
		s.Profit = s.Return.Sub(contributors[largest].Investment).Round(MoneyScale)
	}

	return shares, nil
}
