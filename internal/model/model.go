// Package model defines the core domain types shared across the pool engine.
// All monetary values use shopspring/decimal — never float64 for money.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// IPO holds the lot economics of one public offering.
// IssuePrice is derived (LotPrice / SharesPerLot) and recomputed on every
// edit of either input — it is never accepted from a client.
type IPO struct {
	ID           string          `json:"id" db:"id"`
	Name         string          `json:"name" db:"name"`
	LotPrice     decimal.Decimal `json:"lot_price" db:"lot_price"`
	SharesPerLot int64           `json:"shares_per_lot" db:"shares_per_lot"`
	IssuePrice   decimal.Decimal `json:"issue_price" db:"issue_price"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}

// DematAccount is a shared brokerage account through which a group applies.
// Capacity bounds the pooled contribution per IPO; 0 means the service
// default applies.
type DematAccount struct {
	ID             string          `json:"id" db:"id"`
	AccountNumber  string          `json:"account_number" db:"account_number"`
	AccountName    string          `json:"account_name" db:"account_name"`
	OwnerName      string          `json:"owner_name" db:"owner_name"`
	CommissionRate decimal.Decimal `json:"commission_rate" db:"commission_rate"` // percent
	Capacity       decimal.Decimal `json:"capacity" db:"capacity"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
}

// Participant is one contributor to the pool on one demat account for one
// IPO. Pool membership is this back-reference; pools themselves are derived
// by filtering, never stored.
type Participant struct {
	ID               string          `json:"id" db:"id"`
	IPOID            string          `json:"ipo_id" db:"ipo_id"`
	Name             string          `json:"name" db:"name"`
	InvestmentAmount decimal.Decimal `json:"investment_amount" db:"investment_amount"`
	DematAccountID   string          `json:"demat_account_id" db:"demat_account_id"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
}

// AllotmentResult is the recorded settlement of one account's pool for one
// IPO. ParticipantIDs is a snapshot of the pool membership at recording
// time; later roster edits do not rewrite it. At most one result exists per
// (IPO, account); editing an outcome replaces the whole row.
type AllotmentResult struct {
	ID                 string           `json:"id" db:"id"`
	IPOID              string           `json:"ipo_id" db:"ipo_id"`
	DematAccountID     string           `json:"demat_account_id" db:"demat_account_id"`
	IsAllotted         bool             `json:"is_allotted" db:"is_allotted"`
	SellingPrice       *decimal.Decimal `json:"selling_price,omitempty" db:"selling_price"`
	LotsWon            int64            `json:"lots_won" db:"lots_won"`
	SharesWon          int64            `json:"shares_won" db:"shares_won"`
	UsedInvestment     decimal.Decimal  `json:"used_investment" db:"used_investment"`
	UnusedRemainder    decimal.Decimal  `json:"unused_remainder" db:"unused_remainder"`
	SaleValue          decimal.Decimal  `json:"sale_value" db:"sale_value"`
	GrossProfit        decimal.Decimal  `json:"gross_profit" db:"gross_profit"`
	CommissionDeducted decimal.Decimal  `json:"commission_deducted" db:"commission_deducted"`
	FinalAmount        decimal.Decimal  `json:"final_amount" db:"final_amount"`
	TotalContribution  decimal.Decimal  `json:"total_contribution" db:"total_contribution"`
	ParticipantIDs     []string         `json:"participant_ids" db:"participant_ids"`
	RecordedAt         time.Time        `json:"recorded_at" db:"recorded_at"`
}

// ParticipantReturn is one report row: a participant's slice of a settled
// pool.
type ParticipantReturn struct {
	ParticipantID    string          `json:"participant_id"`
	Name             string          `json:"name"`
	DematAccountID   string          `json:"demat_account_id"`
	AccountName      string          `json:"account_name"`
	OwnerName        string          `json:"owner_name"`
	IsAllotted       bool            `json:"is_allotted"`
	InvestmentAmount decimal.Decimal `json:"investment_amount"`
	ShareFraction    decimal.Decimal `json:"share_fraction"`
	IndividualReturn decimal.Decimal `json:"individual_return"`
	IndividualProfit decimal.Decimal `json:"individual_profit"`
}

// Report aggregates all settled pools of one IPO with per-participant rows.
type Report struct {
	IPO             IPO                 `json:"ipo"`
	Rows            []ParticipantReturn `json:"rows"`
	TotalInvestment decimal.Decimal     `json:"total_investment"`
	TotalReturned   decimal.Decimal     `json:"total_returned"`
	TotalCommission decimal.Decimal     `json:"total_commission"`
	NetProfit       decimal.Decimal     `json:"net_profit"`
	ResultsRecorded int                 `json:"results_recorded"`
}

// ConsolidatedRow is one line of the cross-IPO participant view: totals for
// one (name, account) pair over every IPO they joined.
type ConsolidatedRow struct {
	Name            string          `json:"name"`
	DematAccountID  string          `json:"demat_account_id"`
	AccountName     string          `json:"account_name"`
	OwnerName       string          `json:"owner_name"`
	IPOCount        int             `json:"ipo_count"`
	TotalInvested   decimal.Decimal `json:"total_invested"`
	TotalReturned   decimal.Decimal `json:"total_returned"`
	NetProfit       decimal.Decimal `json:"net_profit"`
	SettledIPOCount int             `json:"settled_ipo_count"`
}
