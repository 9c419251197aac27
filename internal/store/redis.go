package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/ipopool/pool-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache. Writes go to the primary store and invalidate the cache; reads
// check Redis first then fall back to the primary. Report rendering hits
// the IPO and results reads hardest, so those are the cached paths.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, invalidate cache) ---

func (s *CachedStore) CreateIPO(ctx context.Context, ipo *model.IPO) error {
	if err := s.primary.CreateIPO(ctx, ipo); err != nil {
		return err
	}
	s.cacheIPO(ctx, ipo)
	return nil
}

func (s *CachedStore) UpdateIPO(ctx context.Context, ipo *model.IPO) error {
	if err := s.primary.UpdateIPO(ctx, ipo); err != nil {
		return err
	}
	// Invalidate; next read will re-populate.
	s.rdb.Del(ctx, ipoKey(ipo.ID))
	return nil
}

func (s *CachedStore) DeleteIPO(ctx context.Context, id string) error {
	if err := s.primary.DeleteIPO(ctx, id); err != nil {
		return err
	}
	s.rdb.Del(ctx, ipoKey(id), resultsKey(id))
	return nil
}

func (s *CachedStore) CreateParticipant(ctx context.Context, p *model.Participant) error {
	// Roster changes do not touch recorded results (snapshot semantics),
	// so only the roster-free caches stay valid.
	return s.primary.CreateParticipant(ctx, p)
}

func (s *CachedStore) DeleteParticipant(ctx context.Context, ipoID, participantID string) error {
	return s.primary.DeleteParticipant(ctx, ipoID, participantID)
}

func (s *CachedStore) CreateResult(ctx context.Context, r *model.AllotmentResult) error {
	if err := s.primary.CreateResult(ctx, r); err != nil {
		return err
	}
	s.rdb.Del(ctx, resultsKey(r.IPOID))
	return nil
}

func (s *CachedStore) ReplaceResult(ctx context.Context, r *model.AllotmentResult) error {
	if err := s.primary.ReplaceResult(ctx, r); err != nil {
		return err
	}
	s.rdb.Del(ctx, resultsKey(r.IPOID))
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetIPO(ctx context.Context, id string) (*model.IPO, error) {
	data, err := s.rdb.Get(ctx, ipoKey(id)).Bytes()
	if err == nil {
		var ipo model.IPO
		if json.Unmarshal(data, &ipo) == nil {
			return &ipo, nil
		}
	}

	ipo, err := s.primary.GetIPO(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cacheIPO(ctx, ipo)
	return ipo, nil
}

func (s *CachedStore) ListResultsByIPO(ctx context.Context, ipoID string) ([]model.AllotmentResult, error) {
	data, err := s.rdb.Get(ctx, resultsKey(ipoID)).Bytes()
	if err == nil {
		var results []model.AllotmentResult
		if json.Unmarshal(data, &results) == nil {
			return results, nil
		}
	}

	results, err := s.primary.ListResultsByIPO(ctx, ipoID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(results); err == nil {
		s.rdb.Set(ctx, resultsKey(ipoID), data, s.ttl)
	}
	return results, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) ListIPOs(ctx context.Context) ([]model.IPO, error) {
	return s.primary.ListIPOs(ctx)
}

func (s *CachedStore) CreateAccount(ctx context.Context, a *model.DematAccount) error {
	return s.primary.CreateAccount(ctx, a)
}

func (s *CachedStore) GetAccount(ctx context.Context, id string) (*model.DematAccount, error) {
	return s.primary.GetAccount(ctx, id)
}

func (s *CachedStore) ListAccounts(ctx context.Context) ([]model.DematAccount, error) {
	return s.primary.ListAccounts(ctx)
}

func (s *CachedStore) DeleteAccount(ctx context.Context, id string) error {
	return s.primary.DeleteAccount(ctx, id)
}

func (s *CachedStore) ListParticipantsByIPO(ctx context.Context, ipoID string) ([]model.Participant, error) {
	return s.primary.ListParticipantsByIPO(ctx, ipoID)
}

func (s *CachedStore) ListParticipantsByAccount(ctx context.Context, ipoID, accountID string) ([]model.Participant, error) {
	return s.primary.ListParticipantsByAccount(ctx, ipoID, accountID)
}

func (s *CachedStore) ListAllParticipants(ctx context.Context) ([]model.Participant, error) {
	return s.primary.ListAllParticipants(ctx)
}

func (s *CachedStore) CountParticipantsByAccount(ctx context.Context, accountID string) (int, error) {
	return s.primary.CountParticipantsByAccount(ctx, accountID)
}

func (s *CachedStore) AccountTotals(ctx context.Context, ipoID string) (map[string]decimal.Decimal, error) {
	return s.primary.AccountTotals(ctx, ipoID)
}

func (s *CachedStore) GetResult(ctx context.Context, ipoID, resultID string) (*model.AllotmentResult, error) {
	return s.primary.GetResult(ctx, ipoID, resultID)
}

func (s *CachedStore) ListAllResults(ctx context.Context) ([]model.AllotmentResult, error) {
	return s.primary.ListAllResults(ctx)
}

// --- Cache helpers ---

func (s *CachedStore) cacheIPO(ctx context.Context, ipo *model.IPO) {
	if data, err := json.Marshal(ipo); err == nil {
		s.rdb.Set(ctx, ipoKey(ipo.ID), data, s.ttl)
	}
}

func ipoKey(id string) string        { return fmt.Sprintf("ipo:%s", id) }
func resultsKey(ipoID string) string { return fmt.Sprintf("results:%s", ipoID) }
