package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/ipopool/pool-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// --- IPO operations ---

func (s *PostgresStore) CreateIPO(ctx context.Context, ipo *model.IPO) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO ipos (id, name, lot_price, shares_per_lot, issue_price, created_at)
		 VALUES ($1, $2, $3::NUMERIC, $4, $5::NUMERIC, $6)`,
		ipo.ID, ipo.Name, ipo.LotPrice.String(), ipo.SharesPerLot,
		ipo.IssuePrice.String(), ipo.CreatedAt,
	)
	return err
}

func (s *PostgresStore) GetIPO(ctx context.Context, id string) (*model.IPO, error) {
	var ipo model.IPO
	var lotPrice, issuePrice string

	err := s.pool.QueryRow(ctx,
		`SELECT id, name, lot_price::TEXT, shares_per_lot, issue_price::TEXT, created_at
		 FROM ipos WHERE id = $1`, id).
		Scan(&ipo.ID, &ipo.Name, &lotPrice, &ipo.SharesPerLot, &issuePrice, &ipo.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: ipo %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get ipo %s: %w", id, err)
	}

	ipo.LotPrice, _ = decimal.NewFromString(lotPrice)
	ipo.IssuePrice, _ = decimal.NewFromString(issuePrice)
	return &ipo, nil
}

func (s *PostgresStore) ListIPOs(ctx context.Context) ([]model.IPO, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, lot_price::TEXT, shares_per_lot, issue_price::TEXT, created_at
		 FROM ipos ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ipos []model.IPO
	for rows.Next() {
		var ipo model.IPO
		var lotPrice, issuePrice string
		if err := rows.Scan(&ipo.ID, &ipo.Name, &lotPrice, &ipo.SharesPerLot,
			&issuePrice, &ipo.CreatedAt); err != nil {
			return nil, err
		}
		ipo.LotPrice, _ = decimal.NewFromString(lotPrice)
		ipo.IssuePrice, _ = decimal.NewFromString(issuePrice)
		ipos = append(ipos, ipo)
	}
	return ipos, rows.Err()
}

func (s *PostgresStore) UpdateIPO(ctx context.Context, ipo *model.IPO) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE ipos
		 SET name = $2, lot_price = $3::NUMERIC, shares_per_lot = $4,
		     issue_price = $5::NUMERIC
		 WHERE id = $1`,
		ipo.ID, ipo.Name, ipo.LotPrice.String(), ipo.SharesPerLot,
		ipo.IssuePrice.String(),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: ipo %s", ErrNotFound, ipo.ID)
	}
	return nil
}

func (s *PostgresStore) DeleteIPO(ctx context.Context, id string) error {
	// participants and allotment_results cascade via FK.
	tag, err := s.pool.Exec(ctx, `DELETE FROM ipos WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: ipo %s", ErrNotFound, id)
	}
	return nil
}

// --- Demat account operations ---

func (s *PostgresStore) CreateAccount(ctx context.Context, a *model.DematAccount) error {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM demat_accounts WHERE account_number = $1)`,
		a.AccountNumber).Scan(&exists)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: account number %s", ErrDuplicate, a.AccountNumber)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO demat_accounts (id, account_number, account_name, owner_name,
		                             commission_rate, capacity, created_at)
		 VALUES ($1, $2, $3, $4, $5::NUMERIC, $6::NUMERIC, $7)`,
		a.ID, a.AccountNumber, a.AccountName, a.OwnerName,
		a.CommissionRate.String(), a.Capacity.String(), a.CreatedAt,
	)
	return err
}

func (s *PostgresStore) GetAccount(ctx context.Context, id string) (*model.DematAccount, error) {
	var a model.DematAccount
	var commissionRate, capacity string

	err := s.pool.QueryRow(ctx,
		`SELECT id, account_number, account_name, owner_name,
		        commission_rate::TEXT, capacity::TEXT, created_at
		 FROM demat_accounts WHERE id = $1`, id).
		Scan(&a.ID, &a.AccountNumber, &a.AccountName, &a.OwnerName,
			&commissionRate, &capacity, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: account %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get account %s: %w", id, err)
	}

	a.CommissionRate, _ = decimal.NewFromString(commissionRate)
	a.Capacity, _ = decimal.NewFromString(capacity)
	return &a, nil
}

func (s *PostgresStore) ListAccounts(ctx context.Context) ([]model.DematAccount, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, account_number, account_name, owner_name,
		        commission_rate::TEXT, capacity::TEXT, created_at
		 FROM demat_accounts ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []model.DematAccount
	for rows.Next() {
		var a model.DematAccount
		var commissionRate, capacity string
		if err := rows.Scan(&a.ID, &a.AccountNumber, &a.AccountName, &a.OwnerName,
			&commissionRate, &capacity, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.CommissionRate, _ = decimal.NewFromString(commissionRate)
		a.Capacity, _ = decimal.NewFromString(capacity)
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (s *PostgresStore) DeleteAccount(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM demat_accounts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: account %s", ErrNotFound, id)
	}
	return nil
}

// --- Participant operations ---

func (s *PostgresStore) CreateParticipant(ctx context.Context, p *model.Participant) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO participants (id, ipo_id, name, investment_amount, demat_account_id, created_at)
		 VALUES ($1, $2, $3, $4::NUMERIC, $5, $6)`,
		p.ID, p.IPOID, p.Name, p.InvestmentAmount.String(), p.DematAccountID, p.CreatedAt,
	)
	return err
}

func (s *PostgresStore) ListParticipantsByIPO(ctx context.Context, ipoID string) ([]model.Participant, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, ipo_id, name, investment_amount::TEXT, demat_account_id, created_at
		 FROM participants WHERE ipo_id = $1 ORDER BY created_at, id`, ipoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanParticipants(rows)
}

func (s *PostgresStore) ListParticipantsByAccount(ctx context.Context, ipoID, accountID string) ([]model.Participant, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, ipo_id, name, investment_amount::TEXT, demat_account_id, created_at
		 FROM participants WHERE ipo_id = $1 AND demat_account_id = $2
		 ORDER BY created_at, id`, ipoID, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanParticipants(rows)
}

func (s *PostgresStore) ListAllParticipants(ctx context.Context) ([]model.Participant, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, ipo_id, name, investment_amount::TEXT, demat_account_id, created_at
		 FROM participants ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanParticipants(rows)
}

func (s *PostgresStore) DeleteParticipant(ctx context.Context, ipoID, participantID string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM participants WHERE id = $1 AND ipo_id = $2`, participantID, ipoID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: participant %s", ErrNotFound, participantID)
	}
	return nil
}

func (s *PostgresStore) CountParticipantsByAccount(ctx context.Context, accountID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM participants WHERE demat_account_id = $1`, accountID).
		Scan(&count)
	return count, err
}

func (s *PostgresStore) AccountTotals(ctx context.Context, ipoID string) (map[string]decimal.Decimal, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT demat_account_id, COALESCE(SUM(investment_amount), 0)::TEXT
		 FROM participants WHERE ipo_id = $1
		 GROUP BY demat_account_id`, ipoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	totals := make(map[string]decimal.Decimal)
	for rows.Next() {
		var accountID, totalStr string
		if err := rows.Scan(&accountID, &totalStr); err != nil {
			return nil, err
		}
		total, _ := decimal.NewFromString(totalStr)
		totals[accountID] = total
	}
	return totals, rows.Err()
}

// --- Allotment results ---

const resultColumns = `id, ipo_id, demat_account_id, is_allotted,
	selling_price::TEXT, lots_won, shares_won,
	used_investment::TEXT, unused_remainder::TEXT, sale_value::TEXT,
	gross_profit::TEXT, commission_deducted::TEXT, final_amount::TEXT,
	total_contribution::TEXT, participant_ids, recorded_at`

func (s *PostgresStore) CreateResult(ctx context.Context, r *model.AllotmentResult) error {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM allotment_results
		  WHERE ipo_id = $1 AND demat_account_id = $2)`,
		r.IPOID, r.DematAccountID).Scan(&exists)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: result for account %s in ipo %s",
			ErrDuplicate, r.DematAccountID, r.IPOID)
	}

	return s.insertResult(ctx, r)
}

func (s *PostgresStore) ReplaceResult(ctx context.Context, r *model.AllotmentResult) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM allotment_results WHERE id = $1 AND ipo_id = $2`, r.ID, r.IPOID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: result %s", ErrNotFound, r.ID)
	}
	return s.insertResult(ctx, r)
}

func (s *PostgresStore) insertResult(ctx context.Context, r *model.AllotmentResult) error {
	var sellingPrice *string
	if r.SellingPrice != nil {
		v := r.SellingPrice.String()
		sellingPrice = &v
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO allotment_results
		 (id, ipo_id, demat_account_id, is_allotted, selling_price,
		  lots_won, shares_won, used_investment, unused_remainder, sale_value,
		  gross_profit, commission_deducted, final_amount, total_contribution,
		  participant_ids, recorded_at)
		 VALUES ($1, $2, $3, $4, $5::NUMERIC,
		         $6, $7, $8::NUMERIC, $9::NUMERIC, $10::NUMERIC,
		         $11::NUMERIC, $12::NUMERIC, $13::NUMERIC, $14::NUMERIC,
		         $15, $16)`,
		r.ID, r.IPOID, r.DematAccountID, r.IsAllotted, sellingPrice,
		r.LotsWon, r.SharesWon, r.UsedInvestment.String(),
		r.UnusedRemainder.String(), r.SaleValue.String(),
		r.GrossProfit.String(), r.CommissionDeducted.String(),
		r.FinalAmount.String(), r.TotalContribution.String(),
		r.ParticipantIDs, r.RecordedAt,
	)
	return err
}

func (s *PostgresStore) GetResult(ctx context.Context, ipoID, resultID string) (*model.AllotmentResult, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+resultColumns+`
		 FROM allotment_results WHERE id = $1 AND ipo_id = $2`, resultID, ipoID)

	r, err := scanResult(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: result %s", ErrNotFound, resultID)
	}
	return r, err
}

func (s *PostgresStore) ListResultsByIPO(ctx context.Context, ipoID string) ([]model.AllotmentResult, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+resultColumns+`
		 FROM allotment_results WHERE ipo_id = $1 ORDER BY recorded_at, id`, ipoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanResults(rows)
}

func (s *PostgresStore) ListAllResults(ctx context.Context) ([]model.AllotmentResult, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+resultColumns+`
		 FROM allotment_results ORDER BY recorded_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanResults(rows)
}

// --- Row scanning helpers ---

func scanParticipants(rows pgx.Rows) ([]model.Participant, error) {
	var participants []model.Participant
	for rows.Next() {
		var p model.Participant
		var amount string
		if err := rows.Scan(&p.ID, &p.IPOID, &p.Name, &amount,
			&p.DematAccountID, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.InvestmentAmount, _ = decimal.NewFromString(amount)
		participants = append(participants, p)
	}
	return participants, rows.Err()
}

func scanResult(row pgx.Row) (*model.AllotmentResult, error) {
	var r model.AllotmentResult
	var sellingPrice *string
	var usedInvestment, unusedRemainder, saleValue string
	var grossProfit, commission, finalAmount, totalContribution string

	if err := row.Scan(&r.ID, &r.IPOID, &r.DematAccountID, &r.IsAllotted,
		&sellingPrice, &r.LotsWon, &r.SharesWon,
		&usedInvestment, &unusedRemainder, &saleValue,
		&grossProfit, &commission, &finalAmount,
		&totalContribution, &r.ParticipantIDs, &r.RecordedAt); err != nil {
		return nil, err
	}

	if sellingPrice != nil {
		v, _ := decimal.NewFromString(*sellingPrice)
		r.SellingPrice = &v
	}
	r.UsedInvestment, _ = decimal.NewFromString(usedInvestment)
	r.UnusedRemainder, _ = decimal.NewFromString(unusedRemainder)
	r.SaleValue, _ = decimal.NewFromString(saleValue)
	r.GrossProfit, _ = decimal.NewFromString(grossProfit)
	r.CommissionDeducted, _ = decimal.NewFromString(commission)
	r.FinalAmount, _ = decimal.NewFromString(finalAmount)
	r.TotalContribution, _ = decimal.NewFromString(totalContribution)
	return &r, nil
}

func scanResults(rows pgx.Rows) ([]model.AllotmentResult, error) {
	var results []model.AllotmentResult
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *r)
	}
	return results, rows.Err()
}
