package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/colonyforge/marketd/internal/domain"
	"github.com/colonyforge/marketd/internal/engine/arbitration"
	"github.com/colonyforge/marketd/internal/engine/fixedpoint"
)

// DisputeService runs the arbitration cycle nested inside the Resolved state:
// dispute filing, stake-weighted voting, and dispute resolution with its
// reputation and bond consequences.
type DisputeService struct {
	ledger   domain.Ledger
	locks    domain.LockManager
	cache    domain.MarketCache
	rail     domain.PaymentRail
	auth     domain.Authorizer
	events   *Publisher
	settings Settings
	logger   *slog.Logger
	now      func() time.Time
}

// NewDisputeService creates a DisputeService with all required dependencies.
func NewDisputeService(
	ledger domain.Ledger,
	locks domain.LockManager,
	cache domain.MarketCache,
	rail domain.PaymentRail,
	auth domain.Authorizer,
	events *Publisher,
	settings Settings,
	logger *slog.Logger,
) *DisputeService {
	return &DisputeService{
		ledger:   ledger,
		locks:    locks,
		cache:    cache,
		rail:     rail,
		auth:     auth,
		events:   events,
		settings: settings,
		logger:   logger,
		now:      time.Now,
	}
}

// DisputeResolution challenges a resolved market's winning outcome. The
// disputer posts a bond of 1% of the total pool and the market transitions to
// Disputed until the dispute resolves.
func (s *DisputeService) DisputeResolution(ctx context.Context, disputer common.Address, marketID string, proposedOutcome int) (domain.Dispute, error) {
	if s.auth.Paused() {
		return domain.Dispute{}, domain.ErrMarketsDisabled
	}

	unlock, err := s.locks.Acquire(ctx, lockKey(marketID), s.settings.LockTTL)
	if err != nil {
		return domain.Dispute{}, fmt.Errorf("dispute_service: acquire lock: %w", err)
	}
	defer unlock()

	now := s.now().UTC()
	var dispute domain.Dispute
	err = s.ledger.Update(ctx, func(tx domain.LedgerTx) error {
		m, err := tx.GetMarket(ctx, marketID)
		if err != nil {
			return err
		}
		if m.Status == domain.MarketStatusDisputed {
			return domain.ErrMarketDisputed
		}
		if m.Status != domain.MarketStatusResolved || m.WinningOutcome == nil {
			return domain.ErrMarketNotResolved
		}
		if now.After(m.DisputeDeadline()) {
			return domain.ErrDisputeWindowClosed
		}
		if !m.ValidOutcome(proposedOutcome) || proposedOutcome == *m.WinningOutcome {
			return domain.ErrInvalidOutcome
		}

		bond, err := arbitration.BondAmount(m.TotalPool)
		if err != nil {
			return err
		}
		if err := s.rail.CollectFee(ctx, disputer, bond, "dispute_bond:"+marketID); err != nil {
			return fmt.Errorf("collect dispute bond: %w", err)
		}

		dispute = domain.Dispute{
			MarketID:        marketID,
			Index:           m.DisputeCount,
			Disputer:        disputer,
			ProposedOutcome: proposedOutcome,
			Bond:            bond,
			CreatedAt:       now,
		}
		if err := tx.PutDispute(ctx, dispute); err != nil {
			return err
		}

		m.DisputeCount++
		m.Status = domain.MarketStatusDisputed
		m.UpdatedAt = now
		if err := tx.PutMarket(ctx, m); err != nil {
			return err
		}
		return tx.AppendAudit(ctx, "dispute.file", map[string]any{
			"market_id": marketID,
			"index":     dispute.Index,
			"disputer":  disputer.Hex(),
			"proposed":  proposedOutcome,
			"bond":      bond,
		})
	})
	if err != nil {
		return domain.Dispute{}, fmt.Errorf("dispute_service: dispute %q: %w", marketID, err)
	}

	s.cacheInvalidate(ctx, marketID)
	s.events.Emit(ctx, domain.EventMarketDisputed, marketID, map[string]any{
		"index":    dispute.Index,
		"disputer": disputer.Hex(),
		"proposed": proposedOutcome,
	})
	s.events.Emit(ctx, domain.EventMarketStatusChanged, marketID, map[string]any{
		"status": string(domain.MarketStatusDisputed),
	})
	return dispute, nil
}

// VoteOnDispute casts a vote weighted by the voter's total stake in the
// market. One vote per user per dispute.
func (s *DisputeService) VoteOnDispute(ctx context.Context, voter common.Address, marketID string, index int, voteFor bool) error {
	if s.auth.Paused() {
		return domain.ErrMarketsDisabled
	}

	unlock, err := s.locks.Acquire(ctx, lockKey(marketID), s.settings.LockTTL)
	if err != nil {
		return fmt.Errorf("dispute_service: acquire lock: %w", err)
	}
	defer unlock()

	now := s.now().UTC()
	var weight uint64
	err = s.ledger.Update(ctx, func(tx domain.LedgerTx) error {
		d, err := tx.GetDispute(ctx, marketID, index)
		if err != nil {
			return err
		}
		if d.Resolved {
			return domain.ErrDisputeResolved
		}
		if now.After(d.VotingDeadline(s.settings.VotingWindow)) {
			return domain.ErrDisputeWindowClosed
		}

		voted, err := tx.HasVoted(ctx, marketID, index, voter)
		if err != nil {
			return err
		}
		if voted {
			return domain.ErrAlreadyVoted
		}

		pos, err := tx.GetPosition(ctx, marketID, voter)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			// No position at all is the same guard as a zero stake.
			return domain.ErrInsufficientShares
		case err != nil:
			return err
		}
		weight = pos.TotalStaked
		if weight == 0 {
			return domain.ErrInsufficientShares
		}

		if voteFor {
			if d.VotesFor, err = fixedpoint.Add(d.VotesFor, weight); err != nil {
				return err
			}
		} else {
			if d.VotesAgainst, err = fixedpoint.Add(d.VotesAgainst, weight); err != nil {
				return err
			}
		}

		if err := tx.RecordVote(ctx, domain.DisputeVote{
			MarketID:     marketID,
			DisputeIndex: index,
			Voter:        voter,
			Weight:       weight,
			For:          voteFor,
			CastAt:       now,
		}); err != nil {
			return err
		}
		if err := tx.PutDispute(ctx, d); err != nil {
			return err
		}
		return tx.AppendAudit(ctx, "dispute.vote", map[string]any{
			"market_id": marketID,
			"index":     index,
			"voter":     voter.Hex(),
			"weight":    weight,
			"for":       voteFor,
		})
	})
	if err != nil {
		return fmt.Errorf("dispute_service: vote on %q/%d: %w", marketID, index, err)
	}

	s.events.Emit(ctx, domain.EventDisputeVoteCast, marketID, map[string]any{
		"index":  index,
		"voter":  voter.Hex(),
		"weight": weight,
		"for":    voteFor,
	})
	return nil
}

// ResolveDispute finalizes a dispute. Before the voting window elapses a
// quorum of 10% of the total pool is required; afterwards anyone may force
// resolution, with an abstention-only vote treated as rejection. An upheld
// dispute changes the winning outcome, rewards the disputer, and penalizes
// the resolver; a rejected one forfeits the bond to the resolver and raises
// their reputation. The market returns to Resolved either way.
func (s *DisputeService) ResolveDispute(ctx context.Context, marketID string, index int) (bool, error) {
	if s.auth.Paused() {
		return false, domain.ErrMarketsDisabled
	}

	unlock, err := s.locks.Acquire(ctx, lockKey(marketID), s.settings.LockTTL)
	if err != nil {
		return false, fmt.Errorf("dispute_service: acquire lock: %w", err)
	}
	defer unlock()

	now := s.now().UTC()
	var upheld bool
	err = s.ledger.Update(ctx, func(tx domain.LedgerTx) error {
		d, err := tx.GetDispute(ctx, marketID, index)
		if err != nil {
			return err
		}
		if d.Resolved {
			return domain.ErrDisputeResolved
		}
		m, err := tx.GetMarket(ctx, marketID)
		if err != nil {
			return err
		}

		if now.Before(d.VotingDeadline(s.settings.VotingWindow)) &&
			!arbitration.QuorumMet(d.VotesFor, d.VotesAgainst, m.TotalPool) {
			return domain.ErrQuorumNotReached
		}

		upheld = arbitration.Upheld(d.VotesFor, d.VotesAgainst)

		rp, err := tx.GetResolverProfile(ctx, m.Resolver)
		if err != nil {
			return err
		}
		rp.Address = m.Resolver

		if upheld {
			reward, err := arbitration.DisputerReward(d.Bond)
			if err != nil {
				return err
			}
			if err := s.rail.TransferFromTreasury(ctx, d.Disputer, reward, "dispute_reward:"+marketID); err != nil {
				return fmt.Errorf("transfer disputer reward: %w", err)
			}
			outcome := d.ProposedOutcome
			m.WinningOutcome = &outcome
			arbitration.ApplyLost(&rp)
		} else {
			if d.Bond > 0 {
				if err := s.rail.TransferFromTreasury(ctx, m.Resolver, d.Bond, "dispute_bond_forfeit:"+marketID); err != nil {
					return fmt.Errorf("transfer forfeited bond: %w", err)
				}
			}
			arbitration.ApplyDefended(&rp)
		}

		d.Resolved = true
		d.Upheld = upheld
		m.Status = domain.MarketStatusResolved
		m.UpdatedAt = now

		if err := tx.PutDispute(ctx, d); err != nil {
			return err
		}
		if err := tx.PutMarket(ctx, m); err != nil {
			return err
		}
		if err := tx.PutResolverProfile(ctx, rp); err != nil {
			return err
		}
		return tx.AppendAudit(ctx, "dispute.resolve", map[string]any{
			"market_id": marketID,
			"index":     index,
			"upheld":    upheld,
		})
	})
	if err != nil {
		return false, fmt.Errorf("dispute_service: resolve dispute %q/%d: %w", marketID, index, err)
	}

	s.cacheInvalidate(ctx, marketID)
	s.events.Emit(ctx, domain.EventDisputeResolved, marketID, map[string]any{
		"index":  index,
		"upheld": upheld,
	})
	s.events.Emit(ctx, domain.EventMarketStatusChanged, marketID, map[string]any{
		"status": string(domain.MarketStatusResolved),
	})
	return upheld, nil
}

// ListDisputes returns every dispute filed against a market, oldest first.
func (s *DisputeService) ListDisputes(ctx context.Context, marketID string) ([]domain.Dispute, error) {
	var disputes []domain.Dispute
	err := s.ledger.View(ctx, func(tx domain.LedgerTx) error {
		var err error
		disputes, err = tx.ListDisputes(ctx, marketID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("dispute_service: list disputes %q: %w", marketID, err)
	}
	return disputes, nil
}

// GetDispute returns a single dispute by market and index.
func (s *DisputeService) GetDispute(ctx context.Context, marketID string, index int) (domain.Dispute, error) {
	var d domain.Dispute
	err := s.ledger.View(ctx, func(tx domain.LedgerTx) error {
		var err error
		d, err = tx.GetDispute(ctx, marketID, index)
		return err
	})
	if err != nil {
		return domain.Dispute{}, fmt.Errorf("dispute_service: get dispute %q/%d: %w", marketID, index, err)
	}
	return d, nil
}

func (s *DisputeService) cacheInvalidate(ctx context.Context, id string) {
	if err := s.cache.Invalidate(ctx, id); err != nil {
		s.logger.WarnContext(ctx, "dispute_service: cache invalidate failed",
			slog.String("market_id", id),
			slog.String("error", err.Error()),
		)
	}
}
