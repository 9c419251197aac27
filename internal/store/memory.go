package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/ipopool/pool-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu           sync.RWMutex
	ipos         map[string]*model.IPO
	accounts     map[string]*model.DematAccount
	participants map[string]*model.Participant
	results      map[string]*model.AllotmentResult
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		ipos:         make(map[string]*model.IPO),
		accounts:     make(map[string]*model.DematAccount),
		participants: make(map[string]*model.Participant),
		results:      make(map[string]*model.AllotmentResult),
	}
}

// --- IPO operations ---

func (s *MemoryStore) CreateIPO(_ context.Context, ipo *model.IPO) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Store a copy to avoid external mutation.
	copy := *ipo
	s.ipos[ipo.ID] = &copy
	return nil
}

func (s *MemoryStore) GetIPO(_ context.Context, id string) (*model.IPO, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ipo, ok := s.ipos[id]
	if !ok {
		return nil, fmt.Errorf("%w: ipo %s", ErrNotFound, id)
	}
	copy := *ipo
	return &copy, nil
}

func (s *MemoryStore) ListIPOs(_ context.Context) ([]model.IPO, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ipos := make([]model.IPO, 0, len(s.ipos))
	for _, ipo := range s.ipos {
		ipos = append(ipos, *ipo)
	}
	sort.Slice(ipos, func(i, j int) bool {
		return ipos[i].CreatedAt.After(ipos[j].CreatedAt)
	})
	return ipos, nil
}

func (s *MemoryStore) UpdateIPO(_ context.Context, ipo *model.IPO) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.ipos[ipo.ID]
	if !ok {
		return fmt.Errorf("%w: ipo %s", ErrNotFound, ipo.ID)
	}
	existing.Name = ipo.Name
	existing.LotPrice = ipo.LotPrice
	existing.SharesPerLot = ipo.SharesPerLot
	existing.IssuePrice = ipo.IssuePrice
	return nil
}

func (s *MemoryStore) DeleteIPO(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ipos[id]; !ok {
		return fmt.Errorf("%w: ipo %s", ErrNotFound, id)
	}
	delete(s.ipos, id)
	for pid, p := range s.participants {
		if p.IPOID == id {
			delete(s.participants, pid)
		}
	}
	for rid, r := range s.results {
		if r.IPOID == id {
			delete(s.results, rid)
		}
	}
	return nil
}

// --- Demat account operations ---

func (s *MemoryStore) CreateAccount(_ context.Context, account *model.DematAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.accounts {
		if existing.AccountNumber == account.AccountNumber {
			return fmt.Errorf("%w: account number %s", ErrDuplicate, account.AccountNumber)
		}
	}

	copy := *account
	s.accounts[account.ID] = &copy
	return nil
}

func (s *MemoryStore) GetAccount(_ context.Context, id string) (*model.DematAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.accounts[id]
	if !ok {
		return nil, fmt.Errorf("%w: account %s", ErrNotFound, id)
	}
	copy := *account
	return &copy, nil
}

func (s *MemoryStore) ListAccounts(_ context.Context) ([]model.DematAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	accounts := make([]model.DematAccount, 0, len(s.accounts))
	for _, account := range s.accounts {
		accounts = append(accounts, *account)
	}
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].CreatedAt.Before(accounts[j].CreatedAt)
	})
	return accounts, nil
}

func (s *MemoryStore) DeleteAccount(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[id]; !ok {
		return fmt.Errorf("%w: account %s", ErrNotFound, id)
	}
	delete(s.accounts, id)
	return nil
}

// --- Participant operations ---

func (s *MemoryStore) CreateParticipant(_ context.Context, p *model.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *p
	s.participants[p.ID] = &copy
	return nil
}

func (s *MemoryStore) ListParticipantsByIPO(_ context.Context, ipoID string) ([]model.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Participant
	for _, p := range s.participants {
		if p.IPOID == ipoID {
			result = append(result, *p)
		}
	}
	sortParticipants(result)
	return result, nil
}

func (s *MemoryStore) ListParticipantsByAccount(_ context.Context, ipoID, accountID string) ([]model.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Participant
	for _, p := range s.participants {
		if p.IPOID == ipoID && p.DematAccountID == accountID {
			result = append(result, *p)
		}
	}
	sortParticipants(result)
	return result, nil
}

func (s *MemoryStore) ListAllParticipants(_ context.Context) ([]model.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]model.Participant, 0, len(s.participants))
	for _, p := range s.participants {
		result = append(result, *p)
	}
	sortParticipants(result)
	return result, nil
}

func (s *MemoryStore) DeleteParticipant(_ context.Context, ipoID, participantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.participants[participantID]
	if !ok || p.IPOID != ipoID {
		return fmt.Errorf("%w: participant %s", ErrNotFound, participantID)
	}
	delete(s.participants, participantID)
	return nil
}

func (s *MemoryStore) CountParticipantsByAccount(_ context.Context, accountID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, p := range s.participants {
		if p.DematAccountID == accountID {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) AccountTotals(_ context.Context, ipoID string) (map[string]decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	totals := make(map[string]decimal.Decimal)
	for _, p := range s.participants {
		if p.IPOID == ipoID {
			totals[p.DematAccountID] = totals[p.DematAccountID].Add(p.InvestmentAmount)
		}
	}
	return totals, nil
}

// --- Allotment results ---

func (s *MemoryStore) CreateResult(_ context.Context, r *model.AllotmentResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.results {
		if existing.IPOID == r.IPOID && existing.DematAccountID == r.DematAccountID {
			return fmt.Errorf("%w: result for account %s in ipo %s",
				ErrDuplicate, r.DematAccountID, r.IPOID)
		}
	}

	copy := *r
	copy.ParticipantIDs = append([]string(nil), r.ParticipantIDs...)
	s.results[r.ID] = &copy
	return nil
}

func (s *MemoryStore) ReplaceResult(_ context.Context, r *model.AllotmentResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.results[r.ID]; !ok {
		return fmt.Errorf("%w: result %s", ErrNotFound, r.ID)
	}
	copy := *r
	copy.ParticipantIDs = append([]string(nil), r.ParticipantIDs...)
	s.results[r.ID] = &copy
	return nil
}

func (s *MemoryStore) GetResult(_ context.Context, ipoID, resultID string) (*model.AllotmentResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.results[resultID]
	if !ok || r.IPOID != ipoID {
		return nil, fmt.Errorf("%w: result %s", ErrNotFound, resultID)
	}
	copy := *r
	copy.ParticipantIDs = append([]string(nil), r.ParticipantIDs...)
	return &copy, nil
}

func (s *MemoryStore) ListResultsByIPO(_ context.Context, ipoID string) ([]model.AllotmentResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []model.AllotmentResult
	for _, r := range s.results {
		if r.IPOID == ipoID {
			copy := *r
			copy.ParticipantIDs = append([]string(nil), r.ParticipantIDs...)
			results = append(results, copy)
		}
	}
	sortResults(results)
	return results, nil
}

func (s *MemoryStore) ListAllResults(_ context.Context) ([]model.AllotmentResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]model.AllotmentResult, 0, len(s.results))
	for _, r := range s.results {
		copy := *r
		copy.ParticipantIDs = append([]string(nil), r.ParticipantIDs...)
		results = append(results, copy)
	}
	sortResults(results)
	return results, nil
}

func sortParticipants(ps []model.Participant) {
	sort.Slice(ps, func(i, j int) bool {
		if ps[i].CreatedAt.Equal(ps[j].CreatedAt) {
			return ps[i].ID < ps[j].ID
		}
		return ps[i].CreatedAt.Before(ps[j].CreatedAt)
	})
}

func sortResults(rs []model.AllotmentResult) {
	sort.Slice(rs, func(i, j int) bool {
		if rs[i].RecordedAt.Equal(rs[j].RecordedAt) {
			return rs[i].ID < rs[j].ID
		}
		return rs[i].RecordedAt.Before(rs[j].RecordedAt)
	})
}
