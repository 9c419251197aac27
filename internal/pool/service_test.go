package pool_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/ipopool/pool-engine/internal/capacity"
	"github.com/ipopool/pool-engine/internal/model"
	"github.com/ipopool/pool-engine/internal/pool"
	"github.com/ipopool/pool-engine/internal/store"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func dp(f float64) *decimal.Decimal {
	v := decimal.NewFromFloat(f)
	return &v
}

// newTestEnv creates a test Service with in-memory store and chi router.
func newTestEnv(t *testing.T) (*pool.Service, *store.MemoryStore, chi.Router) {
	t.Helper()
	ms := store.NewMemoryStore()
	limiter := capacity.NewLimiter(d(200000), d(500000))
	svc := pool.NewService(ms, limiter, nil)

	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/ipos", svc.CreateIPO)
		r.Get("/ipos", svc.ListIPOs)
		r.Get("/ipos/{ipoID}", svc.GetIPO)
		r.Put("/ipos/{ipoID}", svc.UpdateIPO)
		r.Delete("/ipos/{ipoID}", svc.DeleteIPO)

		r.Post("/accounts", svc.CreateAccount)
		r.Get("/accounts", svc.ListAccounts)
		r.Get("/accounts/{accountID}", svc.GetAccount)
		r.Delete("/accounts/{accountID}", svc.DeleteAccount)

		r.Post("/ipos/{ipoID}/participants", svc.AddParticipant)
		r.Get("/ipos/{ipoID}/participants", svc.ListParticipants)
		r.Delete("/ipos/{ipoID}/participants/{participantID}", svc.DeleteParticipant)

		r.Post("/ipos/{ipoID}/results", svc.RecordResult)
		r.Get("/ipos/{ipoID}/results", svc.ListResults)
		r.Put("/ipos/{ipoID}/results/{resultID}", svc.ReplaceResult)

		r.Get("/ipos/{ipoID}/report", svc.GetReport)
		r.Get("/ipos/{ipoID}/report/csv", svc.ExportReportCSV)
		r.Get("/participants/consolidated", svc.GetConsolidated)
	})

	return svc, ms, r
}

// seedIPO creates a test IPO directly in the store.
func seedIPO(t *testing.T, ms *store.MemoryStore, name string, lotPrice float64, sharesPerLot int64) *model.IPO {
	t.Helper()
	ipo := &model.IPO{
		ID:           "ipo-" + name,
		Name:         name,
		LotPrice:     d(lotPrice),
		SharesPerLot: sharesPerLot,
		IssuePrice:   d(lotPrice).Div(decimal.NewFromInt(sharesPerLot)),
		CreatedAt:    time.Now().UTC(),
	}
	if err := ms.CreateIPO(context.Background(), ipo); err != nil {
		t.Fatalf("failed to seed ipo: %v", err)
	}
	return ipo
}

// seedAccount creates a demat account directly in the store.
func seedAccount(t *testing.T, ms *store.MemoryStore, id, number, owner string, commissionPct float64) *model.DematAccount {
	t.Helper()
	account := &model.DematAccount{
		ID:             id,
		AccountNumber:  number,
		AccountName:    id + "-name",
		OwnerName:      owner,
		CommissionRate: d(commissionPct),
		Capacity:       decimal.Zero,
		CreatedAt:      time.Now().UTC(),
	}
	if err := ms.CreateAccount(context.Background(), account); err != nil {
		t.Fatalf("failed to seed account: %v", err)
	}
	return account
}

// seedParticipant adds a participant directly in the store, bypassing
// capacity checks.
func seedParticipant(t *testing.T, ms *store.MemoryStore, id, ipoID, accountID, name string, amount float64) *model.Participant {
	t.Helper()
	p := &model.Participant{
		ID:               id,
		IPOID:            ipoID,
		Name:             name,
		InvestmentAmount: d(amount),
		DematAccountID:   accountID,
		CreatedAt:        time.Now().UTC(),
	}
	if err := ms.CreateParticipant(context.Background(), p); err != nil {
		t.Fatalf("failed to seed participant: %v", err)
	}
	return p
}

func doJSON(t *testing.T, router chi.Router, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// --- IPO tests ---

func TestCreateIPO_DerivesIssuePrice(t *testing.T) {
	_, _, router := newTestEnv(t)

	w := doJSON(t, router, "POST", "/api/v1/ipos", pool.IPORequest{
		Name:         "Acme Industries",
		LotPrice:     d(14000),
		SharesPerLot: 10,
	})

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var ipo model.IPO
	json.Unmarshal(w.Body.Bytes(), &ipo)

	if ipo.ID == "" {
		t.Error("expected non-empty id")
	}
	if !ipo.IssuePrice.Equal(d(1400)) {
		t.Errorf("expected issue price 1400, got %s", ipo.IssuePrice)
	}
}

func TestCreateIPO_MissingName(t *testing.T) {
	_, _, router := newTestEnv(t)

	w := doJSON(t, router, "POST", "/api/v1/ipos", pool.IPORequest{
		LotPrice:     d(14000),
		SharesPerLot: 10,
	})

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestUpdateIPO_RecomputesIssuePrice(t *testing.T) {
	_, ms, router := newTestEnv(t)
	ipo := seedIPO(t, ms, "acme", 14000, 10)

	w := doJSON(t, router, "PUT", "/api/v1/ipos/"+ipo.ID, pool.IPORequest{
		Name:         "acme",
		LotPrice:     d(15000),
		SharesPerLot: 30,
	})

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var updated model.IPO
	json.Unmarshal(w.Body.Bytes(), &updated)

	if !updated.IssuePrice.Equal(d(500)) {
		t.Errorf("expected issue price 500 after edit, got %s", updated.IssuePrice)
	}
}

// --- Demat account tests ---

func TestCreateAccount_ValidNSDL(t *testing.T) {
	_, _, router := newTestEnv(t)

	w := doJSON(t, router, "POST", "/api/v1/accounts", pool.AccountRequest{
		AccountNumber:  "IN300126 10254879",
		AccountName:    "Family Joint",
		OwnerName:      "Asha",
		CommissionRate: d(5),
	})

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var account model.DematAccount
	json.Unmarshal(w.Body.Bytes(), &account)

	if account.AccountNumber != "IN30012610254879" {
		t.Errorf("expected normalized account number, got %q", account.AccountNumber)
	}
}

func TestCreateAccount_InvalidNumber(t *testing.T) {
	_, _, router := newTestEnv(t)

	w := doJSON(t, router, "POST", "/api/v1/accounts", pool.AccountRequest{
		AccountNumber:  "XX123",
		AccountName:    "Bad",
		OwnerName:      "Asha",
		CommissionRate: d(5),
	})

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed account number, got %d", w.Code)
	}
}

func TestCreateAccount_DuplicateNumber(t *testing.T) {
	_, ms, router := newTestEnv(t)
	seedAccount(t, ms, "acc1", "IN30012610254879", "Asha", 5)

	w := doJSON(t, router, "POST", "/api/v1/accounts", pool.AccountRequest{
		AccountNumber:  "IN30012610254879",
		AccountName:    "Second",
		OwnerName:      "Ravi",
		CommissionRate: d(5),
	})

	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate account number, got %d", w.Code)
	}
}

func TestDeleteAccount_WithParticipants(t *testing.T) {
	_, ms, router := newTestEnv(t)
	ipo := seedIPO(t, ms, "acme", 14000, 10)
	acc := seedAccount(t, ms, "acc1", "IN30012610254879", "Asha", 5)
	seedParticipant(t, ms, "p1", ipo.ID, acc.ID, "Ravi", 50000)

	w := doJSON(t, router, "DELETE", "/api/v1/accounts/"+acc.ID, nil)

	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 while participants reference the account, got %d", w.Code)
	}
}

// --- Participant tests ---

func TestAddParticipant(t *testing.T) {
	_, ms, router := newTestEnv(t)
	ipo := seedIPO(t, ms, "acme", 14000, 10)
	acc := seedAccount(t, ms, "acc1", "IN30012610254879", "Asha", 5)

	w := doJSON(t, router, "POST", "/api/v1/ipos/"+ipo.ID+"/participants", pool.ParticipantRequest{
		Name:             "Ravi",
		InvestmentAmount: d(50000),
		DematAccountID:   acc.ID,
	})

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var p model.Participant
	json.Unmarshal(w.Body.Bytes(), &p)
	if p.IPOID != ipo.ID || p.DematAccountID != acc.ID {
		t.Errorf("participant not linked correctly: %+v", p)
	}
}

func TestAddParticipant_AccountCapExceeded(t *testing.T) {
	_, ms, router := newTestEnv(t)
	ipo := seedIPO(t, ms, "acme", 14000, 10)
	acc := seedAccount(t, ms, "acc1", "IN30012610254879", "Asha", 5)
	seedParticipant(t, ms, "p1", ipo.ID, acc.ID, "Ravi", 180000)

	// Default per-account cap is 200000; 180000 + 50000 breaches it.
	w := doJSON(t, router, "POST", "/api/v1/ipos/"+ipo.ID+"/participants", pool.ParticipantRequest{
		Name:             "Meera",
		InvestmentAmount: d(50000),
		DematAccountID:   acc.ID,
	})

	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 when pooled total exceeds account cap, got %d: %s", w.Code, w.Body.String())
	}
}

func TestAddParticipant_OwnerCapExceeded(t *testing.T) {
	_, ms, router := newTestEnv(t)
	ipo := seedIPO(t, ms, "acme", 14000, 10)
	acc1 := seedAccount(t, ms, "acc1", "IN30012610254879", "Asha", 5)
	acc2 := seedAccount(t, ms, "acc2", "IN30012610254880", "Asha", 5)
	seedParticipant(t, ms, "p1", ipo.ID, acc1.ID, "Ravi", 200000)
	seedParticipant(t, ms, "p2", ipo.ID, acc2.ID, "Meera", 200000)

	// A fresh account of the same owner has room under its own cap, but
	// the owner aggregate (400000 + 150000) breaches the 500000 limit.
	acc3 := seedAccount(t, ms, "acc3", "IN30012610254881", "Asha", 5)
	w := doJSON(t, router, "POST", "/api/v1/ipos/"+ipo.ID+"/participants", pool.ParticipantRequest{
		Name:             "Kiran",
		InvestmentAmount: d(150000),
		DematAccountID:   acc3.ID,
	})

	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 when owner aggregate exceeds cap, got %d: %s", w.Code, w.Body.String())
	}
}

func TestAddParticipant_UnknownAccount(t *testing.T) {
	_, ms, router := newTestEnv(t)
	ipo := seedIPO(t, ms, "acme", 14000, 10)

	w := doJSON(t, router, "POST", "/api/v1/ipos/"+ipo.ID+"/participants", pool.ParticipantRequest{
		Name:             "Ravi",
		InvestmentAmount: d(50000),
		DematAccountID:   "nope",
	})

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown account, got %d", w.Code)
	}
}

// --- Allotment result tests ---

func TestRecordResult_Allotted(t *testing.T) {
	_, ms, router := newTestEnv(t)
	ipo := seedIPO(t, ms, "acme", 14000, 10)
	acc := seedAccount(t, ms, "acc1", "IN30012610254879", "Asha", 5)
	seedParticipant(t, ms, "p1", ipo.ID, acc.ID, "Ravi", 50000)
	seedParticipant(t, ms, "p2", ipo.ID, acc.ID, "Meera", 50000)
	seedParticipant(t, ms, "p3", ipo.ID, acc.ID, "Kiran", 50000)

	w := doJSON(t, router, "POST", "/api/v1/ipos/"+ipo.ID+"/results", pool.ResultRequest{
		DematAccountID: acc.ID,
		IsAllotted:     true,
		SellingPrice:   dp(1600),
	})

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var res model.AllotmentResult
	json.Unmarshal(w.Body.Bytes(), &res)

	if res.LotsWon != 10 {
		t.Errorf("expected 10 lots for 150000 at 14000/lot, got %d", res.LotsWon)
	}
	if res.SharesWon != 100 {
		t.Errorf("expected 100 shares, got %d", res.SharesWon)
	}
	if !res.UnusedRemainder.Equal(d(10000)) {
		t.Errorf("expected remainder 10000, got %s", res.UnusedRemainder)
	}
	if !res.FinalAmount.Equal(d(169000)) {
		t.Errorf("expected final amount 169000, got %s", res.FinalAmount)
	}
	if len(res.ParticipantIDs) != 3 {
		t.Errorf("expected snapshot of 3 participants, got %d", len(res.ParticipantIDs))
	}
}

func TestRecordResult_NotAllotted(t *testing.T) {
	_, ms, router := newTestEnv(t)
	ipo := seedIPO(t, ms, "acme", 14000, 10)
	acc := seedAccount(t, ms, "acc1", "IN30012610254879", "Asha", 5)
	seedParticipant(t, ms, "p1", ipo.ID, acc.ID, "Ravi", 50000)

	w := doJSON(t, router, "POST", "/api/v1/ipos/"+ipo.ID+"/results", pool.ResultRequest{
		DematAccountID: acc.ID,
		IsAllotted:     false,
	})

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var res model.AllotmentResult
	json.Unmarshal(w.Body.Bytes(), &res)

	if !res.FinalAmount.Equal(d(50000)) {
		t.Errorf("non-allotment must refund everything, got %s", res.FinalAmount)
	}
	if !res.CommissionDeducted.IsZero() {
		t.Errorf("no commission on non-allotment, got %s", res.CommissionDeducted)
	}
}

func TestRecordResult_Duplicate(t *testing.T) {
	_, ms, router := newTestEnv(t)
	ipo := seedIPO(t, ms, "acme", 14000, 10)
	acc := seedAccount(t, ms, "acc1", "IN30012610254879", "Asha", 5)
	seedParticipant(t, ms, "p1", ipo.ID, acc.ID, "Ravi", 50000)

	req := pool.ResultRequest{DematAccountID: acc.ID, IsAllotted: false}
	if w := doJSON(t, router, "POST", "/api/v1/ipos/"+ipo.ID+"/results", req); w.Code != http.StatusCreated {
		t.Fatalf("first record failed: %d", w.Code)
	}

	w := doJSON(t, router, "POST", "/api/v1/ipos/"+ipo.ID+"/results", req)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 for second result on same account, got %d", w.Code)
	}
}

func TestRecordResult_EmptyPool(t *testing.T) {
	_, ms, router := newTestEnv(t)
	ipo := seedIPO(t, ms, "acme", 14000, 10)
	acc := seedAccount(t, ms, "acc1", "IN30012610254879", "Asha", 5)

	w := doJSON(t, router, "POST", "/api/v1/ipos/"+ipo.ID+"/results", pool.ResultRequest{
		DematAccountID: acc.ID,
		IsAllotted:     true,
		SellingPrice:   dp(1600),
	})

	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 for account without participants, got %d", w.Code)
	}
}

func TestReplaceResult_Recomputes(t *testing.T) {
	_, ms, router := newTestEnv(t)
	ipo := seedIPO(t, ms, "acme", 14000, 10)
	acc := seedAccount(t, ms, "acc1", "IN30012610254879", "Asha", 5)
	seedParticipant(t, ms, "p1", ipo.ID, acc.ID, "Ravi", 150000)

	w := doJSON(t, router, "POST", "/api/v1/ipos/"+ipo.ID+"/results", pool.ResultRequest{
		DematAccountID: acc.ID,
		IsAllotted:     true,
		SellingPrice:   dp(1600),
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("record failed: %d", w.Code)
	}
	var first model.AllotmentResult
	json.Unmarshal(w.Body.Bytes(), &first)

	w = doJSON(t, router, "PUT", "/api/v1/ipos/"+ipo.ID+"/results/"+first.ID, pool.ResultRequest{
		DematAccountID: acc.ID,
		IsAllotted:     true,
		SellingPrice:   dp(1200),
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var replaced model.AllotmentResult
	json.Unmarshal(w.Body.Bytes(), &replaced)

	// Loss run: sale 120000 + remainder 10000, no commission.
	if !replaced.FinalAmount.Equal(d(130000)) {
		t.Errorf("expected recomputed final amount 130000, got %s", replaced.FinalAmount)
	}
	if replaced.ID != first.ID {
		t.Errorf("replacement must keep the result id")
	}
}

// --- Report tests ---

func TestGetReport_ConservesFinalAmount(t *testing.T) {
	_, ms, router := newTestEnv(t)
	ipo := seedIPO(t, ms, "acme", 14000, 10)
	acc := seedAccount(t, ms, "acc1", "IN30012610254879", "Asha", 5)
	seedParticipant(t, ms, "p1", ipo.ID, acc.ID, "Ravi", 50000)
	seedParticipant(t, ms, "p2", ipo.ID, acc.ID, "Meera", 50000)
	seedParticipant(t, ms, "p3", ipo.ID, acc.ID, "Kiran", 50000)

	if w := doJSON(t, router, "POST", "/api/v1/ipos/"+ipo.ID+"/results", pool.ResultRequest{
		DematAccountID: acc.ID,
		IsAllotted:     true,
		SellingPrice:   dp(1600),
	}); w.Code != http.StatusCreated {
		t.Fatalf("record failed: %d", w.Code)
	}

	w := doJSON(t, router, "GET", "/api/v1/ipos/"+ipo.ID+"/report", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var report model.Report
	json.Unmarshal(w.Body.Bytes(), &report)

	if len(report.Rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(report.Rows))
	}

	sum := decimal.Zero
	for _, row := range report.Rows {
		sum = sum.Add(row.IndividualReturn)
	}
	if !sum.Equal(d(169000)) {
		t.Errorf("distributed returns must sum to the final amount, got %s", sum)
	}
	if !report.TotalInvestment.Equal(d(150000)) {
		t.Errorf("expected total investment 150000, got %s", report.TotalInvestment)
	}
	if !report.NetProfit.Equal(d(19000)) {
		t.Errorf("expected net profit 19000, got %s", report.NetProfit)
	}
}

func TestGetReport_SkipsRemovedParticipants(t *testing.T) {
	_, ms, router := newTestEnv(t)
	ipo := seedIPO(t, ms, "acme", 14000, 10)
	acc := seedAccount(t, ms, "acc1", "IN30012610254879", "Asha", 5)
	seedParticipant(t, ms, "p1", ipo.ID, acc.ID, "Ravi", 100000)
	seedParticipant(t, ms, "p2", ipo.ID, acc.ID, "Meera", 50000)

	if w := doJSON(t, router, "POST", "/api/v1/ipos/"+ipo.ID+"/results", pool.ResultRequest{
		DematAccountID: acc.ID,
		IsAllotted:     false,
	}); w.Code != http.StatusCreated {
		t.Fatalf("record failed: %d", w.Code)
	}

	if w := doJSON(t, router, "DELETE", "/api/v1/ipos/"+ipo.ID+"/participants/p2", nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete failed: %d", w.Code)
	}

	w := doJSON(t, router, "GET", "/api/v1/ipos/"+ipo.ID+"/report", nil)
	var report model.Report
	json.Unmarshal(w.Body.Bytes(), &report)

	if len(report.Rows) != 1 {
		t.Fatalf("expected 1 row after removal, got %d", len(report.Rows))
	}
	if report.Rows[0].ParticipantID != "p1" {
		t.Errorf("expected remaining row for p1, got %s", report.Rows[0].ParticipantID)
	}
	// The surviving contributor takes the whole distribution.
	if !report.Rows[0].IndividualReturn.Equal(d(150000)) {
		t.Errorf("expected full final amount 150000, got %s", report.Rows[0].IndividualReturn)
	}
}

func TestExportReportCSV(t *testing.T) {
	_, ms, router := newTestEnv(t)
	ipo := seedIPO(t, ms, "acme", 14000, 10)
	acc := seedAccount(t, ms, "acc1", "IN30012610254879", "Asha", 5)
	seedParticipant(t, ms, "p1", ipo.ID, acc.ID, "Ravi", 150000)

	if w := doJSON(t, router, "POST", "/api/v1/ipos/"+ipo.ID+"/results", pool.ResultRequest{
		DematAccountID: acc.ID,
		IsAllotted:     true,
		SellingPrice:   dp(1600),
	}); w.Code != http.StatusCreated {
		t.Fatalf("record failed: %d", w.Code)
	}

	w := doJSON(t, router, "GET", "/api/v1/ipos/"+ipo.ID+"/report/csv", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("expected text/csv, got %q", ct)
	}

	body := w.Body.String()
	if !strings.HasPrefix(body, "Participant Name,Investment Amount,Demat Account") {
		t.Errorf("unexpected CSV header: %q", strings.SplitN(body, "\n", 2)[0])
	}
	if !strings.Contains(body, "Ravi,150000.00") {
		t.Errorf("expected Ravi's row in CSV, got: %s", body)
	}
	if !strings.Contains(body, "169000.00") {
		t.Errorf("expected final return in CSV, got: %s", body)
	}
}

// --- Consolidated view tests ---

func TestGetConsolidated_AcrossIPOs(t *testing.T) {
	_, ms, router := newTestEnv(t)
	ipo1 := seedIPO(t, ms, "acme", 14000, 10)
	ipo2 := seedIPO(t, ms, "zenith", 15000, 30)
	acc := seedAccount(t, ms, "acc1", "IN30012610254879", "Asha", 5)
	seedParticipant(t, ms, "p1", ipo1.ID, acc.ID, "Ravi", 150000)
	seedParticipant(t, ms, "p2", ipo2.ID, acc.ID, "Ravi", 50000)

	if w := doJSON(t, router, "POST", "/api/v1/ipos/"+ipo1.ID+"/results", pool.ResultRequest{
		DematAccountID: acc.ID,
		IsAllotted:     true,
		SellingPrice:   dp(1600),
	}); w.Code != http.StatusCreated {
		t.Fatalf("record failed: %d", w.Code)
	}

	w := doJSON(t, router, "GET", "/api/v1/participants/consolidated", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var rows []model.ConsolidatedRow
	json.Unmarshal(w.Body.Bytes(), &rows)

	if len(rows) != 1 {
		t.Fatalf("expected one consolidated row for Ravi, got %d", len(rows))
	}
	row := rows[0]
	if row.IPOCount != 2 {
		t.Errorf("expected 2 IPOs joined, got %d", row.IPOCount)
	}
	if row.SettledIPOCount != 1 {
		t.Errorf("expected 1 settled IPO, got %d", row.SettledIPOCount)
	}
	if !row.TotalInvested.Equal(d(200000)) {
		t.Errorf("expected total invested 200000, got %s", row.TotalInvested)
	}
	if !row.TotalReturned.Equal(d(169000)) {
		t.Errorf("expected total returned 169000, got %s", row.TotalReturned)
	}
	if !row.NetProfit.Equal(d(-31000)) {
		t.Errorf("expected net -31000 with one IPO unsettled, got %s", row.NetProfit)
	}
}
