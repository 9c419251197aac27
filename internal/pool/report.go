package pool

import (
	"encoding/csv"
	"encoding/json"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/ipopool/pool-engine/internal/metrics"
	"github.com/ipopool/pool-engine/internal/model"
	"github.com/ipopool/pool-engine/internal/settle"
)

// buildReport assembles the per-participant distribution rows for one IPO
// from its recorded results. Each result's distribution runs over the
// membership snapshot taken when that result was recorded; participants
// removed since then are skipped.
func (s *Service) buildReport(r *http.Request, ipoID string) (*model.Report, int, error) {
	ctx := r.Context()

	ipo, err := s.store.GetIPO(ctx, ipoID)
	if err != nil {
		return nil, http.StatusNotFound, err
	}

	participants, err := s.store.ListParticipantsByIPO(ctx, ipoID)
	if err != nil {
		return nil, http.StatusInternalServerError, err
	}
	byID := make(map[string]*model.Participant, len(participants))
	for i := range participants {
		byID[participants[i].ID] = &participants[i]
	}

	accounts, err := s.store.ListAccounts(ctx)
	if err != nil {
		return nil, http.StatusInternalServerError, err
	}
	accByID := make(map[string]*model.DematAccount, len(accounts))
	for i := range accounts {
		accByID[accounts[i].ID] = &accounts[i]
	}

	results, err := s.store.ListResultsByIPO(ctx, ipoID)
	if err != nil {
		return nil, http.StatusInternalServerError, err
	}

	report := &model.Report{
		IPO:             *ipo,
		Rows:            []model.ParticipantReturn{},
		TotalInvestment: decimal.Zero,
		TotalReturned:   decimal.Zero,
		TotalCommission: decimal.Zero,
		NetProfit:       decimal.Zero,
		ResultsRecorded: len(results),
	}

	for _, p := range participants {
		report.TotalInvestment = report.TotalInvestment.Add(p.InvestmentAmount)
	}

	for _, res := range results {
		contributors := make([]settle.Contributor, 0, len(res.ParticipantIDs))
		for _, pid := range res.ParticipantIDs {
			p, ok := byID[pid]
			if !ok {
				continue // removed from the roster after recording
			}
			contributors = append(contributors, settle.Contributor{
				ParticipantID: p.ID,
				Investment:    p.InvestmentAmount,
			})
		}
		if len(contributors) == 0 {
			continue
		}

		shares, err := settle.Distribute(res.FinalAmount, contributors)
		if err != nil {
			continue // degenerate pool (all zero stakes); nothing to distribute
		}

		var accountName, ownerName string
		if a, ok := accByID[res.DematAccountID]; ok {
			accountName = a.AccountName
			ownerName = a.OwnerName
		}

		for _, sh := range shares {
			p := byID[sh.ParticipantID]
			report.Rows = append(report.Rows, model.ParticipantReturn{
				ParticipantID:    p.ID,
				Name:             p.Name,
				DematAccountID:   res.DematAccountID,
				AccountName:      accountName,
				OwnerName:        ownerName,
				IsAllotted:       res.IsAllotted,
				InvestmentAmount: p.InvestmentAmount,
				ShareFraction:    sh.Fraction,
				IndividualReturn: sh.Return,
				IndividualProfit: sh.Profit,
			})
		}

		report.TotalReturned = report.TotalReturned.Add(res.FinalAmount)
		report.TotalCommission = report.TotalCommission.Add(res.CommissionDeducted)
	}

	report.NetProfit = report.TotalReturned.Sub(report.TotalInvestment)
	return report, 0, nil
}

// GetReport handles GET /api/v1/ipos/{ipoID}/report
func (s *Service) GetReport(w http.ResponseWriter, r *http.Request) {
	report, status, err := s.buildReport(r, chi.URLParam(r, "ipoID"))
	if err != nil {
		if status == http.StatusNotFound {
			writeError(w, "ipo not found", status)
			return
		}
		writeError(w, "failed to build report", status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(report)
}

// ExportReportCSV handles GET /api/v1/ipos/{ipoID}/report/csv
// Streams the distribution rows as a CSV download.
func (s *Service) ExportReportCSV(w http.ResponseWriter, r *http.Request) {
	report, status, err := s.buildReport(r, chi.URLParam(r, "ipoID"))
	if err != nil {
		if status == http.StatusNotFound {
			writeError(w, "ipo not found", status)
			return
		}
		writeError(w, "failed to build report", status)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="ipo-final-report-`+report.IPO.Name+`.csv"`)

	cw := csv.NewWriter(w)
	cw.Write([]string{
		"Participant Name", "Investment Amount", "Demat Account",
		"Account Owner", "Status", "Individual Return", "Profit/Loss",
	})
	for _, row := range report.Rows {
		allotment := "Not Allotted"
		if row.IsAllotted {
			allotment = "Allotted"
		}
		cw.Write([]string{
			row.Name,
			row.InvestmentAmount.StringFixed(settle.MoneyScale),
			row.AccountName,
			row.OwnerName,
			allotment,
			row.IndividualReturn.StringFixed(settle.MoneyScale),
			row.IndividualProfit.StringFixed(settle.MoneyScale),
		})
	}
	cw.Flush()

	metrics.CSVExports.Inc()
}

// consolidatedKey identifies one participant identity on one account.
type consolidatedKey struct {
	name      string
	accountID string
}

// GetConsolidated handles GET /api/v1/participants/consolidated
// Aggregates every participant's invested and returned totals across all
// IPOs, keyed by (name, demat account).
func (s *Service) GetConsolidated(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	participants, err := s.store.ListAllParticipants(ctx)
	if err != nil {
		writeError(w, "failed to load participants", http.StatusInternalServerError)
		return
	}
	byID := make(map[string]*model.Participant, len(participants))
	for i := range participants {
		byID[participants[i].ID] = &participants[i]
	}

	accounts, err := s.store.ListAccounts(ctx)
	if err != nil {
		writeError(w, "failed to load accounts", http.StatusInternalServerError)
		return
	}
	accByID := make(map[string]*model.DematAccount, len(accounts))
	for i := range accounts {
		accByID[accounts[i].ID] = &accounts[i]
	}

	results, err := s.store.ListAllResults(ctx)
	if err != nil {
		writeError(w, "failed to load results", http.StatusInternalServerError)
		return
	}

	rows := make(map[consolidatedKey]*model.ConsolidatedRow)
	ipoSets := make(map[consolidatedKey]map[string]bool)
	settledSets := make(map[consolidatedKey]map[string]bool)

	rowFor := func(p *model.Participant) *model.ConsolidatedRow {
		key := consolidatedKey{name: p.Name, accountID: p.DematAccountID}
		row, ok := rows[key]
		if !ok {
			row = &model.ConsolidatedRow{
				Name:           p.Name,
				DematAccountID: p.DematAccountID,
				TotalInvested:  decimal.Zero,
				TotalReturned:  decimal.Zero,
				NetProfit:      decimal.Zero,
			}
			if a, ok := accByID[p.DematAccountID]; ok {
				row.AccountName = a.AccountName
				row.OwnerName = a.OwnerName
			}
			rows[key] = row
			ipoSets[key] = make(map[string]bool)
			settledSets[key] = make(map[string]bool)
		}
		return row
	}

	for i := range participants {
		p := &participants[i]
		row := rowFor(p)
		row.TotalInvested = row.TotalInvested.Add(p.InvestmentAmount)
		ipoSets[consolidatedKey{p.Name, p.DematAccountID}][p.IPOID] = true
	}

	for _, res := range results {
		contributors := make([]settle.Contributor, 0, len(res.ParticipantIDs))
		for _, pid := range res.ParticipantIDs {
			if p, ok := byID[pid]; ok {
				contributors = append(contributors, settle.Contributor{
					ParticipantID: p.ID,
					Investment:    p.InvestmentAmount,
				})
			}
		}
		if len(contributors) == 0 {
			continue
		}

		shares, err := settle.Distribute(res.FinalAmount, contributors)
		if err != nil {
			continue
		}

		for _, sh := range shares {
			p := byID[sh.ParticipantID]
			key := consolidatedKey{p.Name, p.DematAccountID}
			row := rowFor(p)
			row.TotalReturned = row.TotalReturned.Add(sh.Return)
			settledSets[key][res.IPOID] = true
		}
	}

	out := make([]model.ConsolidatedRow, 0, len(rows))
	for key, row := range rows {
		row.IPOCount = len(ipoSets[key])
		row.SettledIPOCount = len(settledSets[key])
		row.NetProfit = row.TotalReturned.Sub(row.TotalInvested)
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].DematAccountID < out[j].DematAccountID
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}
