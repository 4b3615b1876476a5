package service

import "time"

// Settings carries the engine tunables every service consults at runtime.
// Values come from config; DefaultSettings is the baseline used when a field
// is unset and by the test suites.
type Settings struct {
	// MarketsEnabled gates market creation. Existing markets keep running
	// when creation is disabled.
	MarketsEnabled bool

	// MaxCreatorFeeBps caps the creator fee accepted at market creation.
	MaxCreatorFeeBps uint32

	// ProtocolFeeBps is applied to every payout.
	ProtocolFeeBps uint32

	// BonusPerLevelBps converts a staked-token level into a share bonus.
	BonusPerLevelBps uint32

	// SwapFeeBps is the fee configured on newly created AMM pools.
	SwapFeeBps uint32

	// DisputeWindow is how long after resolution a market may be disputed.
	DisputeWindow time.Duration

	// VotingWindow is how long a filed dispute accepts votes before anyone
	// may force its resolution.
	VotingWindow time.Duration

	// LockTTL bounds how long a per-market operation lock may be held.
	LockTTL time.Duration
}

// DefaultSettings returns the baseline engine settings.
func DefaultSettings() Settings {
	return Settings{
		MarketsEnabled:   true,
		MaxCreatorFeeBps: 500,
		ProtocolFeeBps:   200,
		BonusPerLevelBps: 250,
		SwapFeeBps:       30,
		DisputeWindow:    24 * time.Hour,
		VotingWindow:     24 * time.Hour,
		LockTTL:          10 * time.Second,
	}
}
