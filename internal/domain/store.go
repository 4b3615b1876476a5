package domain

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ListOpts provides pagination for list queries.
type ListOpts struct {
	Limit  int
	Offset int
}

// Ledger is the shared persistent state of the engine. Every public operation
// runs inside a single Update call: all mutations commit together or the
// whole operation rolls back with no partial writes observable. Operations
// against the same market are totally ordered by their commit order.
type Ledger interface {
	// Update runs fn inside a read-write transaction. If fn returns an
	// error the transaction is rolled back and the error is returned.
	Update(ctx context.Context, fn func(tx LedgerTx) error) error

	// View runs fn inside a read-only transaction.
	View(ctx context.Context, fn func(tx LedgerTx) error) error

	// Close releases the underlying resources.
	Close()
}

// LedgerTx is the transactional surface over the ledger's entities. Get
// methods return ErrNotFound (possibly wrapped) when no record exists.
type LedgerTx interface {
	// Markets.
	GetMarket(ctx context.Context, id string) (Market, error)
	PutMarket(ctx context.Context, m Market) error
	ListMarketsByStatus(ctx context.Context, status MarketStatus, opts ListOpts) ([]Market, error)
	ListMarketsSettledBefore(ctx context.Context, cutoff time.Time) ([]Market, error)
	CountMarkets(ctx context.Context) (int64, error)

	// Positions.
	GetPosition(ctx context.Context, marketID string, user common.Address) (Position, error)
	PutPosition(ctx context.Context, p Position) error
	ListPositions(ctx context.Context, marketID string) ([]Position, error)

	// AMM pools and LP positions.
	GetPool(ctx context.Context, marketID string) (AMMPool, error)
	PutPool(ctx context.Context, pool AMMPool) error
	GetLPPosition(ctx context.Context, marketID string, provider common.Address) (LPPosition, error)
	PutLPPosition(ctx context.Context, lp LPPosition) error

	// Disputes and votes.
	GetDispute(ctx context.Context, marketID string, index int) (Dispute, error)
	PutDispute(ctx context.Context, d Dispute) error
	ListDisputes(ctx context.Context, marketID string) ([]Dispute, error)
	HasVoted(ctx context.Context, marketID string, index int, voter common.Address) (bool, error)
	RecordVote(ctx context.Context, v DisputeVote) error

	// Profiles. Get returns a zero-valued profile (not ErrNotFound) for
	// addresses that have no record yet.
	GetResolverProfile(ctx context.Context, addr common.Address) (ResolverProfile, error)
	PutResolverProfile(ctx context.Context, p ResolverProfile) error
	GetUserProfile(ctx context.Context, addr common.Address) (UserProfile, error)
	PutUserProfile(ctx context.Context, p UserProfile) error

	// Protocol fee accrual counter.
	AccrueProtocolFees(ctx context.Context, amount uint64) error
	ProtocolFeesAccrued(ctx context.Context) (uint64, error)

	// Local half of the staking-bonus registry.
	StakedLevel(ctx context.Context, addr common.Address) (uint32, error)
	SetStakedLevel(ctx context.Context, addr common.Address, level uint32) error

	// Append-only audit log.
	AppendAudit(ctx context.Context, op string, detail map[string]any) error
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Op        string
	Detail    map[string]any
	CreatedAt time.Time
}
