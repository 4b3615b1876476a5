package domain

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// StakingOracle reports a user's staked-token level for bonus computation.
// Lookups are best-effort: callers collapse any error to level 0 and proceed;
// a failed lookup never blocks a bet.
type StakingOracle interface {
	BestStakedLevel(ctx context.Context, user common.Address) (uint32, error)
}

// PaymentRail moves value between players and the treasury. Calls are
// fail-fast: an error aborts the whole operation and the ledger transaction
// rolls back.
type PaymentRail interface {
	// CollectFee pulls amount from payer into the treasury.
	CollectFee(ctx context.Context, payer common.Address, amount uint64, tag string) error

	// TransferFromTreasury pays amount out of the treasury to recipient.
	TransferFromTreasury(ctx context.Context, recipient common.Address, amount uint64, tag string) error
}

// Authorizer is the capability predicate injected into every privileged
// operation, replacing inherited access-control wiring.
type Authorizer interface {
	// CanCreateMarkets reports whether addr may open new markets.
	CanCreateMarkets(addr common.Address) bool

	// IsAdmin reports whether addr may perform administrative overrides
	// (lock, cancel, forced resolution).
	IsAdmin(addr common.Address) bool

	// Paused reports whether the engine is globally paused. Mutating
	// operations are rejected while paused.
	Paused() bool
}
