// Package settle implements the allotment settlement calculation for a
// pooled IPO application and the proportional distribution of the settled
// amount back to the pool's contributors.
//
// Both entry points are pure functions of their arguments: no state, no
// I/O, no side effects. Calling them twice with identical inputs yields
// identical outputs, which is what makes "edit an outcome and recompute"
// safe — the caller replaces the stored result wholesale instead of
// patching it.
//
// All monetary values use shopspring/decimal — never float64 for money.
// Every monetary sub-result (sale value, gross profit, commission, final
// amount) is rounded to MoneyScale places as it is produced, so binary
// drift never accumulates into reported totals.
package settle

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidInput is returned when a precondition is violated:
	// negative money, a missing selling price on an allotted outcome,
	// or an empty pool. Violations are rejected, never coerced.
	ErrInvalidInput = errors.New("settle: invalid input")

	// ErrDegeneratePool is returned when distribution is attempted on a
	// pool whose total contribution is zero. Wraps ErrInvalidInput.
	ErrDegeneratePool = fmt.Errorf("%w: pool has zero total contribution", ErrInvalidInput)

	// MoneyScale is the number of decimal places for monetary rounding.
	MoneyScale int32 = 2
)

// LotTerms describes the lot economics of one IPO.
type LotTerms struct {
	// LotPrice is the application amount for one whole lot.
	LotPrice decimal.Decimal

	// SharesPerLot is the number of shares a single lot carries.
	SharesPerLot int64
}

// IssuePrice derives the per-share issue price: LotPrice / SharesPerLot
// when both are positive, zero otherwise. It is a derived value and must
// be recomputed whenever either input changes.
func (t LotTerms) IssuePrice() decimal.Decimal {
	if t.LotPrice.LessThanOrEqual(decimal.Zero) || t.SharesPerLot <= 0 {
		return decimal.Zero
	}
	return t.LotPrice.Div(decimal.NewFromInt(t.SharesPerLot))
}

// Outcome is the recorded allotment outcome for one pool.
// SellingPrice must be set when Allotted is true and is ignored otherwise.
type Outcome struct {
	Allotted       bool
	SellingPrice   *decimal.Decimal
	CommissionRate decimal.Decimal // percent of positive gross profit
}

// Settlement is the full breakdown of one pool's settled application.
type Settlement struct {
	Allotted           bool
	SellingPrice       decimal.Decimal
	LotsWon            int64
	SharesWon          int64
	UsedInvestment     decimal.Decimal
	UnusedRemainder    decimal.Decimal
	SaleValue          decimal.Decimal
	GrossProfit        decimal.Decimal
	CommissionDeducted decimal.Decimal
	FinalAmount        decimal.Decimal
}

// Settle computes the settled amount for a pool.
//
// Not allotted: the broker refunds the full application amount, so
// FinalAmount = totalContribution and no commission applies.
//
// Allotted: only whole lots are purchased — floor(total / lotPrice) lots.
// The fractional-lot remainder was never invested and is always refunded.
// The shares are sold at SellingPrice; commission applies only to a
// positive gross profit, never to losses or to the refunded remainder.
// Selling below issue cost yields a loss that passes through in full.
//
//	finalAmount = saleValue + unusedRemainder - commission
//
// FinalAmount is never negative: the refunded remainder is untouched and
// a loss only shrinks the sale-derived portion, which bottoms out at zero.
func Settle(totalContribution decimal.Decimal, terms LotTerms, outcome Outcome) (*Settlement, error) {
	if totalContribution.IsNegative() {
		return nil, fmt.Errorf("%w: total contribution must be >= 0, got %s",
			ErrInvalidInput, totalContribution)
	}
	if terms.LotPrice.IsNegative() {
		return nil, fmt.Errorf("%w: lot price must be >= 0, got %s",
			ErrInvalidInput, terms.LotPrice)
	}
	if terms.SharesPerLot < 0 {
		return nil, fmt.Errorf("%w: shares per lot must be >= 0, got %d",
			ErrInvalidInput, terms.SharesPerLot)
	}
	if outcome.CommissionRate.IsNegative() {
		return nil, fmt.Errorf("%w: commission rate must be >= 0, got %s",
			ErrInvalidInput, outcome.CommissionRate)
	}

	if !outcome.Allotted {
		return &Settlement{
			Allotted:           false,
			CommissionDeducted: decimal.Zero,
			FinalAmount:        totalContribution.Round(MoneyScale),
		}, nil
	}

	if outcome.SellingPrice == nil {
		return nil, fmt.Errorf("%w: selling price is required for an allotted outcome",
			ErrInvalidInput)
	}
	sellingPrice := *outcome.SellingPrice
	if sellingPrice.IsNegative() {
		return nil, fmt.Errorf("%w: selling price must be >= 0, got %s",
			ErrInvalidInput, sellingPrice)
	}

	var lotsWon int64
	if terms.LotPrice.IsPositive() {
		lotsWon = totalContribution.Div(terms.LotPrice).Floor().IntPart()
	}

	usedInvestment := terms.LotPrice.Mul(decimal.NewFromInt(lotsWon)).Round(MoneyScale)
	unusedRemainder := totalContribution.Sub(usedInvestment).Round(MoneyScale)
	sharesWon := lotsWon * terms.SharesPerLot

	saleValue := sellingPrice.Mul(decimal.NewFromInt(sharesWon)).Round(MoneyScale)
	grossProfit := saleValue.Sub(usedInvestment).Round(MoneyScale)

	commission := decimal.Zero
	if grossProfit.IsPositive() {
		commission = grossProfit.Mul(outcome.CommissionRate).
			Div(decimal.NewFromInt(100)).Round(MoneyScale)
	}

	finalAmount := saleValue.Add(unusedRemainder).Sub(commission).Round(MoneyScale)

	return &Settlement{
		Allotted:           true,
		SellingPrice:       sellingPrice,
		LotsWon:            lotsWon,
		SharesWon:          sharesWon,
		UsedInvestment:     usedInvestment,
		UnusedRemainder:    unusedRemainder,
		SaleValue:          saleValue,
		GrossProfit:        grossProfit,
		CommissionDeducted: commission,
		FinalAmount:        finalAmount,
	}, nil
}
