// Package store defines the persistence interface for the pool engine.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing).
package store

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/ipopool/pool-engine/internal/model"
)

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrDuplicate is returned when a uniqueness rule is violated: a second
	// result for the same (IPO, account), or a reused account number.
	ErrDuplicate = errors.New("store: duplicate")
)

// Store is the persistence interface. PostgreSQL is the source of truth;
// Redis provides a read-through cache layer.
type Store interface {
	// --- IPO operations ---

	// CreateIPO persists a new IPO.
	CreateIPO(ctx context.Context, ipo *model.IPO) error

	// GetIPO retrieves an IPO by its ID.
	GetIPO(ctx context.Context, id string) (*model.IPO, error)

	// ListIPOs returns all IPOs, newest first.
	ListIPOs(ctx context.Context) ([]model.IPO, error)

	// UpdateIPO replaces an IPO's name and lot terms.
	UpdateIPO(ctx context.Context, ipo *model.IPO) error

	// DeleteIPO removes an IPO together with its participants and results.
	DeleteIPO(ctx context.Context, id string) error

	// --- Demat account operations ---

	// CreateAccount persists a new demat account. The account number must
	// be unique.
	CreateAccount(ctx context.Context, account *model.DematAccount) error

	// GetAccount retrieves a demat account by its ID.
	GetAccount(ctx context.Context, id string) (*model.DematAccount, error)

	// ListAccounts returns all demat accounts.
	ListAccounts(ctx context.Context) ([]model.DematAccount, error)

	// DeleteAccount removes a demat account. Callers must refuse deletion
	// while participants still reference the account.
	DeleteAccount(ctx context.Context, id string) error

	// --- Participant operations ---

	// CreateParticipant persists a new participant.
	CreateParticipant(ctx context.Context, p *model.Participant) error

	// ListParticipantsByIPO returns all participants of one IPO.
	ListParticipantsByIPO(ctx context.Context, ipoID string) ([]model.Participant, error)

	// ListParticipantsByAccount returns the pool: participants of one IPO
	// whose contributions sit on one demat account.
	ListParticipantsByAccount(ctx context.Context, ipoID, accountID string) ([]model.Participant, error)

	// ListAllParticipants returns every participant across all IPOs.
	ListAllParticipants(ctx context.Context) ([]model.Participant, error)

	// DeleteParticipant removes one participant from an IPO's roster.
	DeleteParticipant(ctx context.Context, ipoID, participantID string) error

	// CountParticipantsByAccount counts participants referencing an
	// account across all IPOs.
	CountParticipantsByAccount(ctx context.Context, accountID string) (int, error)

	// AccountTotals returns pooled contribution per demat account for one
	// IPO.
	AccountTotals(ctx context.Context, ipoID string) (map[string]decimal.Decimal, error)

	// --- Allotment results ---

	// CreateResult appends a settlement record. At most one result may
	// exist per (IPO, account).
	CreateResult(ctx context.Context, r *model.AllotmentResult) error

	// ReplaceResult overwrites an existing settlement record wholesale.
	ReplaceResult(ctx context.Context, r *model.AllotmentResult) error

	// GetResult retrieves one result by ID within an IPO.
	GetResult(ctx context.Context, ipoID, resultID string) (*model.AllotmentResult, error)

	// ListResultsByIPO returns all recorded results for one IPO.
	ListResultsByIPO(ctx context.Context, ipoID string) ([]model.AllotmentResult, error)

	// ListAllResults returns every recorded result across all IPOs.
	ListAllResults(ctx context.Context) ([]model.AllotmentResult, error)
}
