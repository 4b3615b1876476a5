package domain

import "github.com/ethereum/go-ethereum/common"

// AMMPool is the opt-in liquidity venue attached to a market. Reserves are
// per-outcome and use the market's outcome indexing. InvariantK is the
// constant-product invariant for two-outcome pools; for three or more
// outcomes it holds the informational sum-style constant instead (swap
// pricing uses the reserve-ratio formula regardless).
type AMMPool struct {
	MarketID      string   `json:"market_id"`
	Reserves      []uint64 `json:"reserves"`
	Liquidity     uint64   `json:"liquidity"`
	TotalLPShares uint64   `json:"total_lp_shares"`
	InvariantK    uint64   `json:"invariant_k"`
	SwapFeeBps    uint32   `json:"swap_fee_bps"`
}

// LPPosition is one provider's ownership stake in a market's AMM pool.
type LPPosition struct {
	MarketID string         `json:"market_id"`
	Provider common.Address `json:"provider"`
	Shares   uint64         `json:"shares"`
}
