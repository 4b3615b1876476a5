package domain

import "errors"

// Configuration / authorization errors.
var (
	ErrMarketsDisabled     = errors.New("markets are disabled")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrUnauthorizedCreator = errors.New("caller is not an authorized market creator")
	ErrNotResolver         = errors.New("caller is not the market resolver")
)

// Validation errors.
var (
	ErrInvalidOutcome      = errors.New("invalid outcome index")
	ErrInvalidOutcomeCount = errors.New("outcome count out of range")
	ErrInvalidTimeConfig   = errors.New("invalid time configuration")
	ErrInvalidCreatorFee   = errors.New("creator fee exceeds maximum")
	ErrBetTooSmall         = errors.New("bet below market minimum")
	ErrBetTooLarge         = errors.New("bet above market maximum")
	ErrInvalidAmount       = errors.New("amount must be positive")
)

// State-conflict errors.
var (
	ErrNotFound             = errors.New("not found")
	ErrMarketNotOpen        = errors.New("market is not open")
	ErrMarketNotLocked      = errors.New("market is not locked")
	ErrMarketNotResolved    = errors.New("market is not resolved")
	ErrMarketNotCancellable = errors.New("market cannot be cancelled")
	ErrMarketNotCancelled   = errors.New("market is not cancelled")
	ErrMarketDisputed       = errors.New("market is under dispute")
	ErrAlreadyClaimed       = errors.New("winnings already claimed")
	ErrAlreadyRefunded      = errors.New("stake already refunded")
	ErrAlreadyVoted         = errors.New("already voted on this dispute")
	ErrDisputeResolved      = errors.New("dispute already resolved")
	ErrDisputeWindowClosed  = errors.New("dispute window has closed")
)

// Economic-guard errors.
var (
	ErrStakeImbalance        = errors.New("stake imbalance too high")
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")
	ErrInsufficientShares    = errors.New("insufficient shares")
	ErrQuorumNotReached      = errors.New("dispute quorum not reached")
	ErrSameOutcomeSwap       = errors.New("cannot swap an outcome for itself")
	ErrAmountOverflow        = errors.New("amount overflows fixed-point range")
)

// Infrastructure errors.
var (
	ErrLockHeld      = errors.New("lock already held")
	ErrPaymentFailed = errors.New("payment rail call failed")
)
