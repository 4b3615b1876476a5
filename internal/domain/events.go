package domain

import "time"

// EventType identifies a notification event emitted by the engine. Events are
// fire-and-observe: the engine never consumes a return value from a listener.
type EventType string

const (
	EventMarketCreated       EventType = "market.created"
	EventMarketStatusChanged EventType = "market.status_changed"
	EventMarketLocked        EventType = "market.locked"
	EventMarketResolved      EventType = "market.resolved"
	EventMarketCancelled     EventType = "market.cancelled"
	EventBetPlaced           EventType = "bet.placed"
	EventWinningsClaimed     EventType = "bet.winnings_claimed"
	EventRefundClaimed       EventType = "bet.refund_claimed"
	EventLiquidityAdded      EventType = "amm.liquidity_added"
	EventLiquidityRemoved    EventType = "amm.liquidity_removed"
	EventSharesSwapped       EventType = "amm.shares_swapped"
	EventMarketDisputed      EventType = "dispute.filed"
	EventDisputeVoteCast     EventType = "dispute.vote_cast"
	EventDisputeResolved     EventType = "dispute.resolved"
)

// Channel returns the signal-bus channel an event of this type is published
// on. Channels group events by component so subscribers can filter.
func (t EventType) Channel() string {
	switch t {
	case EventBetPlaced, EventWinningsClaimed, EventRefundClaimed:
		return "ch:bet"
	case EventLiquidityAdded, EventLiquidityRemoved, EventSharesSwapped:
		return "ch:amm"
	case EventMarketDisputed, EventDisputeVoteCast, EventDisputeResolved:
		return "ch:dispute"
	default:
		return "ch:market"
	}
}

// Event is the JSON payload published on the signal bus and broadcast to
// WebSocket clients after an operation commits.
type Event struct {
	Type     EventType      `json:"type"`
	MarketID string         `json:"market_id"`
	At       time.Time      `json:"at"`
	Data     map[string]any `json:"data,omitempty"`
}

// StreamMessage is a single durable message read back from an event stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}
