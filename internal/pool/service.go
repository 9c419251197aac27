// Package pool provides the HTTP handlers and business logic for
// managing IPO pools: IPOs, demat accounts, participant rosters,
// allotment settlement, and proportional distribution reports.
//
// All monetary values use shopspring/decimal — never float64 for money.
package pool

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ipopool/pool-engine/internal/capacity"
	"github.com/ipopool/pool-engine/internal/demat"
	"github.com/ipopool/pool-engine/internal/metrics"
	"github.com/ipopool/pool-engine/internal/model"
	"github.com/ipopool/pool-engine/internal/settle"
	"github.com/ipopool/pool-engine/internal/store"
)

// Service handles pool operations. Uses a mutex to serialize roster and
// settlement mutations (single-instance). For horizontal scaling, replace
// with distributed locking or database-level optimistic concurrency.
type Service struct {
	store   store.Store
	limiter *capacity.Limiter
	mu      sync.Mutex
	hub     *EventHub // optional WebSocket hub for real-time broadcasts
}

// NewService creates a new pool service.
// Pass nil for hub if WebSocket broadcasting is not needed.
func NewService(st store.Store, limiter *capacity.Limiter, hub *EventHub) *Service {
	return &Service{
		store:   st,
		limiter: limiter,
		hub:     hub,
	}
}

// --- Request/Response types ---

// IPORequest is the JSON body for IPO creation and updates.
type IPORequest struct {
	Name         string          `json:"name"`
	LotPrice     decimal.Decimal `json:"lot_price"`
	SharesPerLot int64           `json:"shares_per_lot"`
}

// AccountRequest is the JSON body for demat account creation.
type AccountRequest struct {
	AccountNumber  string          `json:"account_number"` // NSDL or CDSL format
	AccountName    string          `json:"account_name"`
	OwnerName      string          `json:"owner_name"`
	CommissionRate decimal.Decimal `json:"commission_rate"` // percent, e.g. 5 for 5%
	Capacity       decimal.Decimal `json:"capacity"`        // 0 = no per-account cap
}

// ParticipantRequest is the JSON body for adding a participant to a pool.
type ParticipantRequest struct {
	Name             string          `json:"name"`
	InvestmentAmount decimal.Decimal `json:"investment_amount"`
	DematAccountID   string          `json:"demat_account_id"`
}

// ResultRequest is the JSON body for recording or replacing an
// allotment result for one demat account's pool.
type ResultRequest struct {
	DematAccountID string           `json:"demat_account_id"`
	IsAllotted     bool             `json:"is_allotted"`
	SellingPrice   *decimal.Decimal `json:"selling_price,omitempty"` // nil = not yet sold
}

// --- IPO handlers ---

// CreateIPO handles POST /api/v1/ipos
func (s *Service) CreateIPO(w http.ResponseWriter, r *http.Request) {
	var req IPORequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.Name == "" {
		writeError(w, "name is required", http.StatusBadRequest)
		return
	}
	if req.LotPrice.IsNegative() || req.SharesPerLot < 0 {
		writeError(w, "lot_price and shares_per_lot must be non-negative", http.StatusBadRequest)
		return
	}

	terms := settle.LotTerms{LotPrice: req.LotPrice, SharesPerLot: req.SharesPerLot}
	ipo := &model.IPO{
		ID:           uuid.New().String(),
		Name:         req.Name,
		LotPrice:     req.LotPrice,
		SharesPerLot: req.SharesPerLot,
		IssuePrice:   terms.IssuePrice(),
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.store.CreateIPO(r.Context(), ipo); err != nil {
		writeError(w, "failed to create ipo", http.StatusInternalServerError)
		return
	}

	metrics.ActiveIPOs.Inc()
	slog.Info("ipo created", "id", ipo.ID, "name", ipo.Name, "lot_price", ipo.LotPrice)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(ipo)
}

// ListIPOs handles GET /api/v1/ipos
func (s *Service) ListIPOs(w http.ResponseWriter, r *http.Request) {
	ipos, err := s.store.ListIPOs(r.Context())
	if err != nil {
		writeError(w, "failed to list ipos", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ipos)
}

// GetIPO handles GET /api/v1/ipos/{ipoID}
func (s *Service) GetIPO(w http.ResponseWriter, r *http.Request) {
	ipo, err := s.store.GetIPO(r.Context(), chi.URLParam(r, "ipoID"))
	if err != nil {
		writeError(w, "ipo not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ipo)
}

// UpdateIPO handles PUT /api/v1/ipos/{ipoID}
// The issue price is recomputed from the updated lot terms.
func (s *Service) UpdateIPO(w http.ResponseWriter, r *http.Request) {
	var req IPORequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		writeError(w, "name is required", http.StatusBadRequest)
		return
	}
	if req.LotPrice.IsNegative() || req.SharesPerLot < 0 {
		writeError(w, "lot_price and shares_per_lot must be non-negative", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	ipo, err := s.store.GetIPO(ctx, chi.URLParam(r, "ipoID"))
	if err != nil {
		writeError(w, "ipo not found", http.StatusNotFound)
		return
	}

	terms := settle.LotTerms{LotPrice: req.LotPrice, SharesPerLot: req.SharesPerLot}
	ipo.Name = req.Name
	ipo.LotPrice = req.LotPrice
	ipo.SharesPerLot = req.SharesPerLot
	ipo.IssuePrice = terms.IssuePrice()

	if err := s.store.UpdateIPO(ctx, ipo); err != nil {
		writeError(w, "failed to update ipo", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ipo)
}

// DeleteIPO handles DELETE /api/v1/ipos/{ipoID}
// Cascades to the IPO's participants and results.
func (s *Service) DeleteIPO(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteIPO(r.Context(), chi.URLParam(r, "ipoID")); err != nil {
		writeError(w, "ipo not found", http.StatusNotFound)
		return
	}

	metrics.ActiveIPOs.Dec()
	w.WriteHeader(http.StatusNoContent)
}

// --- Demat account handlers ---

// CreateAccount handles POST /api/v1/accounts
func (s *Service) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req AccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	parsed, err := demat.ParseAccountNumber(req.AccountNumber)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.AccountName == "" || req.OwnerName == "" {
		writeError(w, "account_name and owner_name are required", http.StatusBadRequest)
		return
	}
	if req.CommissionRate.IsNegative() || req.CommissionRate.GreaterThan(decimal.NewFromInt(100)) {
		writeError(w, "commission_rate must be between 0 and 100", http.StatusBadRequest)
		return
	}
	if req.Capacity.IsNegative() {
		writeError(w, "capacity must be non-negative", http.StatusBadRequest)
		return
	}

	account := &model.DematAccount{
		ID:             uuid.New().String(),
		AccountNumber:  parsed.Number,
		AccountName:    req.AccountName,
		OwnerName:      req.OwnerName,
		CommissionRate: req.CommissionRate,
		Capacity:       req.Capacity,
		CreatedAt:      time.Now().UTC(),
	}

	if err := s.store.CreateAccount(r.Context(), account); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			writeError(w, "account number already registered", http.StatusConflict)
			return
		}
		writeError(w, "failed to create account", http.StatusInternalServerError)
		return
	}

	slog.Info("demat account created",
		"id", account.ID, "depository", parsed.Depository, "owner", account.OwnerName)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(account)
}

// ListAccounts handles GET /api/v1/accounts
func (s *Service) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.store.ListAccounts(r.Context())
	if err != nil {
		writeError(w, "failed to list accounts", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(accounts)
}

// GetAccount handles GET /api/v1/accounts/{accountID}
func (s *Service) GetAccount(w http.ResponseWriter, r *http.Request) {
	account, err := s.store.GetAccount(r.Context(), chi.URLParam(r, "accountID"))
	if err != nil {
		writeError(w, "account not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(account)
}

// DeleteAccount handles DELETE /api/v1/accounts/{accountID}
// Refuses deletion while any participant references the account.
func (s *Service) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	accountID := chi.URLParam(r, "accountID")

	count, err := s.store.CountParticipantsByAccount(ctx, accountID)
	if err != nil {
		writeError(w, "failed to check account usage", http.StatusInternalServerError)
		return
	}
	if count > 0 {
		writeError(w, "account has participants assigned to it", http.StatusConflict)
		return
	}

	if err := s.store.DeleteAccount(ctx, accountID); err != nil {
		writeError(w, "account not found", http.StatusNotFound)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// --- Participant handlers ---

// AddParticipant handles POST /api/v1/ipos/{ipoID}/participants
// Enforces per-account and per-owner capacity limits before admission.
func (s *Service) AddParticipant(w http.ResponseWriter, r *http.Request) {
	var req ParticipantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.Name == "" {
		writeError(w, "name is required", http.StatusBadRequest)
		return
	}
	if req.InvestmentAmount.IsNegative() {
		writeError(w, "investment_amount must be non-negative", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	ipoID := chi.URLParam(r, "ipoID")

	// Serialize roster mutations so capacity checks see a consistent view.
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.store.GetIPO(ctx, ipoID); err != nil {
		writeError(w, "ipo not found", http.StatusNotFound)
		return
	}

	account, err := s.store.GetAccount(ctx, req.DematAccountID)
	if err != nil {
		writeError(w, "demat account not found", http.StatusBadRequest)
		return
	}

	// --- Capacity check ---
	totals, err := s.store.AccountTotals(ctx, ipoID)
	if err != nil {
		writeError(w, "failed to check capacity", http.StatusInternalServerError)
		return
	}

	accounts, err := s.store.ListAccounts(ctx)
	if err != nil {
		writeError(w, "failed to check capacity", http.StatusInternalServerError)
		return
	}
	owners := make(map[string]string, len(accounts))
	for _, a := range accounts {
		owners[a.ID] = a.OwnerName
	}

	if err := s.limiter.Check(account.ID, account.OwnerName, account.Capacity, req.InvestmentAmount, totals, owners); err != nil {
		metrics.CapacityRejections.Inc()
		writeError(w, err.Error(), http.StatusConflict)
		return
	}

	participant := &model.Participant{
		ID:               uuid.New().String(),
		IPOID:            ipoID,
		Name:             req.Name,
		InvestmentAmount: req.InvestmentAmount,
		DematAccountID:   account.ID,
		CreatedAt:        time.Now().UTC(),
	}

	if err := s.store.CreateParticipant(ctx, participant); err != nil {
		writeError(w, "failed to add participant", http.StatusInternalServerError)
		return
	}

	if s.hub != nil {
		s.hub.Broadcast(Event{
			Type:           EventParticipantAdded,
			IPOID:          ipoID,
			DematAccountID: account.ID,
			ParticipantID:  participant.ID,
		})
	}
	slog.Info("participant added",
		"ipo", ipoID, "participant", participant.ID, "amount", participant.InvestmentAmount)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(participant)
}

// ListParticipants handles GET /api/v1/ipos/{ipoID}/participants
func (s *Service) ListParticipants(w http.ResponseWriter, r *http.Request) {
	participants, err := s.store.ListParticipantsByIPO(r.Context(), chi.URLParam(r, "ipoID"))
	if err != nil {
		writeError(w, "failed to list participants", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(participants)
}

// DeleteParticipant handles DELETE /api/v1/ipos/{ipoID}/participants/{participantID}
// Recorded results keep their membership snapshot; removing a participant
// does not rewrite past settlements.
func (s *Service) DeleteParticipant(w http.ResponseWriter, r *http.Request) {
	ipoID := chi.URLParam(r, "ipoID")
	participantID := chi.URLParam(r, "participantID")

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.DeleteParticipant(r.Context(), ipoID, participantID); err != nil {
		writeError(w, "participant not found", http.StatusNotFound)
		return
	}

	if s.hub != nil {
		s.hub.Broadcast(Event{
			Type:          EventParticipantRemoved,
			IPOID:         ipoID,
			ParticipantID: participantID,
		})
	}

	w.WriteHeader(http.StatusNoContent)
}

// --- Allotment result handlers ---

// RecordResult handles POST /api/v1/ipos/{ipoID}/results
// Runs the settlement for one demat account's pool and records the
// outcome with an immutable snapshot of the pool membership.
func (s *Service) RecordResult(w http.ResponseWriter, r *http.Request) {
	var req ResultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	ipoID := chi.URLParam(r, "ipoID")

	s.mu.Lock()
	defer s.mu.Unlock()

	result, status, err := s.settleAccount(ctx, ipoID, uuid.New().String(), &req)
	if err != nil {
		metrics.ResultsRecorded.WithLabelValues("rejected").Inc()
		writeError(w, err.Error(), status)
		return
	}

	if err := s.store.CreateResult(ctx, result); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			metrics.ResultsRecorded.WithLabelValues("rejected").Inc()
			writeError(w, "result already recorded for this account", http.StatusConflict)
			return
		}
		writeError(w, "failed to record result", http.StatusInternalServerError)
		return
	}

	metrics.ResultsRecorded.WithLabelValues("recorded").Inc()
	if s.hub != nil {
		s.hub.Broadcast(Event{
			Type:           EventResultRecorded,
			IPOID:          ipoID,
			DematAccountID: result.DematAccountID,
			ResultID:       result.ID,
			FinalAmount:    result.FinalAmount.String(),
			Allotted:       result.IsAllotted,
		})
	}
	slog.Info("allotment result recorded",
		"ipo", ipoID, "account", result.DematAccountID,
		"allotted", result.IsAllotted, "final_amount", result.FinalAmount)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(result)
}

// ReplaceResult handles PUT /api/v1/ipos/{ipoID}/results/{resultID}
// Recomputes the settlement from current inputs and replaces the stored
// result, taking a fresh membership snapshot.
func (s *Service) ReplaceResult(w http.ResponseWriter, r *http.Request) {
	var req ResultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	ipoID := chi.URLParam(r, "ipoID")
	resultID := chi.URLParam(r, "resultID")

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.store.GetResult(ctx, ipoID, resultID)
	if err != nil {
		writeError(w, "result not found", http.StatusNotFound)
		return
	}
	if req.DematAccountID == "" {
		req.DematAccountID = existing.DematAccountID
	}
	if req.DematAccountID != existing.DematAccountID {
		writeError(w, "result cannot be moved to a different account", http.StatusBadRequest)
		return
	}

	result, status, err := s.settleAccount(ctx, ipoID, resultID, &req)
	if err != nil {
		writeError(w, err.Error(), status)
		return
	}

	if err := s.store.ReplaceResult(ctx, result); err != nil {
		writeError(w, "failed to replace result", http.StatusInternalServerError)
		return
	}

	metrics.ResultsRecorded.WithLabelValues("replaced").Inc()
	if s.hub != nil {
		s.hub.Broadcast(Event{
			Type:           EventResultReplaced,
			IPOID:          ipoID,
			DematAccountID: result.DematAccountID,
			ResultID:       result.ID,
			FinalAmount:    result.FinalAmount.String(),
			Allotted:       result.IsAllotted,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// ListResults handles GET /api/v1/ipos/{ipoID}/results
func (s *Service) ListResults(w http.ResponseWriter, r *http.Request) {
	results, err := s.store.ListResultsByIPO(r.Context(), chi.URLParam(r, "ipoID"))
	if err != nil {
		writeError(w, "failed to list results", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(results)
}

// settleAccount runs the settlement for one demat account's pool within
// an IPO and builds the AllotmentResult. Returns an HTTP status on error.
// Caller holds s.mu.
func (s *Service) settleAccount(ctx context.Context, ipoID, resultID string, req *ResultRequest) (*model.AllotmentResult, int, error) {
	ipo, err := s.store.GetIPO(ctx, ipoID)
	if err != nil {
		return nil, http.StatusNotFound, errors.New("ipo not found")
	}

	account, err := s.store.GetAccount(ctx, req.DematAccountID)
	if err != nil {
		return nil, http.StatusBadRequest, errors.New("demat account not found")
	}

	pool, err := s.store.ListParticipantsByAccount(ctx, ipoID, account.ID)
	if err != nil {
		return nil, http.StatusInternalServerError, errors.New("failed to load pool")
	}
	if len(pool) == 0 {
		return nil, http.StatusConflict, errors.New("no participants in this account's pool")
	}

	total := decimal.Zero
	snapshot := make([]string, 0, len(pool))
	for _, p := range pool {
		total = total.Add(p.InvestmentAmount)
		snapshot = append(snapshot, p.ID)
	}

	terms := settle.LotTerms{LotPrice: ipo.LotPrice, SharesPerLot: ipo.SharesPerLot}
	outcome := settle.Outcome{
		Allotted:       req.IsAllotted,
		SellingPrice:   req.SellingPrice,
		CommissionRate: account.CommissionRate,
	}

	settlement, err := settle.Settle(total, terms, outcome)
	if err != nil {
		return nil, http.StatusBadRequest, err
	}

	return &model.AllotmentResult{
		ID:                 resultID,
		IPOID:              ipoID,
		DematAccountID:     account.ID,
		IsAllotted:         settlement.Allotted,
		SellingPrice:       req.SellingPrice,
		LotsWon:            settlement.LotsWon,
		SharesWon:          settlement.SharesWon,
		UsedInvestment:     settlement.UsedInvestment,
		UnusedRemainder:    settlement.UnusedRemainder,
		SaleValue:          settlement.SaleValue,
		GrossProfit:        settlement.GrossProfit,
		CommissionDeducted: settlement.CommissionDeducted,
		FinalAmount:        settlement.FinalAmount,
		TotalContribution:  total,
		ParticipantIDs:     snapshot,
		RecordedAt:         time.Now().UTC(),
	}, 0, nil
}

// Health handles GET /health
func Health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "ok",
		"service": "pool-engine",
	})
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
