package memory

import (
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"github.com/colonyforge/marketd/internal/domain"
)

// Deep-copy helpers. Entities that carry slices are copied on every read and
// write so callers can never alias the store's internal state.

func cloneMarket(m domain.Market) domain.Market {
	out := m
	out.Outcomes = make([]domain.Outcome, len(m.Outcomes))
	copy(out.Outcomes, m.Outcomes)
	if m.ResolvedAt != nil {
		t := *m.ResolvedAt
		out.ResolvedAt = &t
	}
	if m.WinningOutcome != nil {
		w := *m.WinningOutcome
		out.WinningOutcome = &w
	}
	return out
}

func clonePosition(p domain.Position) domain.Position {
	out := p
	out.Stakes = make([]uint64, len(p.Stakes))
	copy(out.Stakes, p.Stakes)
	out.Shares = make([]uint64, len(p.Shares))
	copy(out.Shares, p.Shares)
	return out
}

func clonePool(p domain.AMMPool) domain.AMMPool {
	out := p
	out.Reserves = make([]uint64, len(p.Reserves))
	copy(out.Reserves, p.Reserves)
	return out
}

func (s *state) clone() *state {
	out := newState()
	for id, m := range s.markets {
		out.markets[id] = cloneMarket(m)
	}
	for id, byUser := range s.positions {
		inner := make(map[common.Address]domain.Position, len(byUser))
		for addr, p := range byUser {
			inner[addr] = clonePosition(p)
		}
		out.positions[id] = inner
	}
	for id, p := range s.pools {
		out.pools[id] = clonePool(p)
	}
	for id, byProvider := range s.lpPositions {
		inner := make(map[common.Address]domain.LPPosition, len(byProvider))
		for addr, lp := range byProvider {
			inner[addr] = lp
		}
		out.lpPositions[id] = inner
	}
	for id, list := range s.disputes {
		cp := make([]domain.Dispute, len(list))
		copy(cp, list)
		out.disputes[id] = cp
	}
	for key, byVoter := range s.votes {
		inner := make(map[common.Address]domain.DisputeVote, len(byVoter))
		for addr, v := range byVoter {
			inner[addr] = v
		}
		out.votes[key] = inner
	}
	for addr, p := range s.resolvers {
		out.resolvers[addr] = p
	}
	for addr, p := range s.users {
		out.users[addr] = p
	}
	for addr, lvl := range s.stakeLevels {
		out.stakeLevels[addr] = lvl
	}
	out.protocolFees = s.protocolFees
	out.audit = make([]domain.AuditEntry, len(s.audit))
	copy(out.audit, s.audit)
	out.auditSeq = s.auditSeq
	return out
}

func sortMarkets(markets []domain.Market) {
	sort.Slice(markets, func(i, j int) bool {
		if markets[i].CreatedAt.Equal(markets[j].CreatedAt) {
			return markets[i].ID < markets[j].ID
		}
		return markets[i].CreatedAt.Before(markets[j].CreatedAt)
	})
}
