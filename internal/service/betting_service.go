package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/colonyforge/marketd/internal/domain"
	"github.com/colonyforge/marketd/internal/engine/fixedpoint"
	"github.com/colonyforge/marketd/internal/engine/parimutuel"
	"github.com/colonyforge/marketd/internal/engine/timeweight"
)

// BettingService handles bet placement against the pari-mutuel share ledger
// and the claim paths for winnings and refunds.
type BettingService struct {
	ledger   domain.Ledger
	locks    domain.LockManager
	cache    domain.MarketCache
	rail     domain.PaymentRail
	oracle   domain.StakingOracle
	auth     domain.Authorizer
	events   *Publisher
	settings Settings
	logger   *slog.Logger
	now      func() time.Time
}

// NewBettingService creates a BettingService with all required dependencies.
func NewBettingService(
	ledger domain.Ledger,
	locks domain.LockManager,
	cache domain.MarketCache,
	rail domain.PaymentRail,
	oracle domain.StakingOracle,
	auth domain.Authorizer,
	events *Publisher,
	settings Settings,
	logger *slog.Logger,
) *BettingService {
	return &BettingService{
		ledger:   ledger,
		locks:    locks,
		cache:    cache,
		rail:     rail,
		oracle:   oracle,
		auth:     auth,
		events:   events,
		settings: settings,
		logger:   logger,
		now:      time.Now,
	}
}

// PlaceBet stakes amount on a market outcome and returns the share units
// issued. The pool and the imbalance guard see the raw amount; share issuance
// sees the time-weighted, bonus-inclusive amount.
func (s *BettingService) PlaceBet(ctx context.Context, bettor common.Address, marketID string, outcome int, amount uint64) (uint64, error) {
	if s.auth.Paused() {
		return 0, domain.ErrMarketsDisabled
	}
	if amount == 0 {
		return 0, domain.ErrInvalidAmount
	}

	// Best-effort external lookup before entering the transaction. A failed
	// call collapses to level 0 and never blocks the bet.
	oracleLevel := s.bestStakedLevel(ctx, bettor)

	unlock, err := s.locks.Acquire(ctx, lockKey(marketID), s.settings.LockTTL)
	if err != nil {
		return 0, fmt.Errorf("betting_service: acquire lock: %w", err)
	}
	defer unlock()

	now := s.now().UTC()
	var (
		shares uint64
		bonus  uint64
	)
	err = s.ledger.Update(ctx, func(tx domain.LedgerTx) error {
		m, err := tx.GetMarket(ctx, marketID)
		if err != nil {
			return err
		}
		if !m.Bettable(now) {
			return domain.ErrMarketNotOpen
		}
		if !m.ValidOutcome(outcome) {
			return domain.ErrInvalidOutcome
		}
		if amount < m.MinBet {
			return domain.ErrBetTooSmall
		}
		if m.MaxBet > 0 && amount > m.MaxBet {
			return domain.ErrBetTooLarge
		}

		pools := make([]uint64, len(m.Outcomes))
		for i, o := range m.Outcomes {
			pools[i] = o.Pool
		}
		if err := parimutuel.CheckBalance(pools, outcome, amount); err != nil {
			return err
		}

		// The effective level is the max of the external registry and the
		// local one.
		level := oracleLevel
		if local, err := tx.StakedLevel(ctx, bettor); err == nil && local > level {
			level = local
		}

		bonus, err = timeweight.BonusAmount(amount, level, s.settings.BonusPerLevelBps)
		if err != nil {
			return err
		}
		effective, err := fixedpoint.Add(amount, bonus)
		if err != nil {
			return err
		}
		weighted, err := timeweight.Weight(effective, now, m.OpenTime, m.LockTime)
		if err != nil {
			return err
		}
		shares, err = parimutuel.SharesForBet(weighted, m.Outcomes[outcome].Pool, m.Outcomes[outcome].Shares)
		if err != nil {
			return err
		}

		if err := s.rail.CollectFee(ctx, bettor, amount, "bet:"+marketID); err != nil {
			return fmt.Errorf("collect stake: %w", err)
		}

		if m.Outcomes[outcome].Pool, err = fixedpoint.Add(m.Outcomes[outcome].Pool, amount); err != nil {
			return err
		}
		if m.Outcomes[outcome].Shares, err = fixedpoint.Add(m.Outcomes[outcome].Shares, shares); err != nil {
			return err
		}
		if m.TotalPool, err = fixedpoint.Add(m.TotalPool, amount); err != nil {
			return err
		}
		refreshProbabilities(&m)
		m.UpdatedAt = now

		pos, err := tx.GetPosition(ctx, marketID, bettor)
		if errors.Is(err, domain.ErrNotFound) {
			pos = domain.NewPosition(marketID, bettor, len(m.Outcomes))
		} else if err != nil {
			return err
		}
		pos.Stakes[outcome] += amount
		pos.Shares[outcome] += shares
		pos.TotalStaked += amount
		pos.BonusAccrued += bonus
		pos.LastBetAt = now

		if err := tx.PutMarket(ctx, m); err != nil {
			return err
		}
		if err := tx.PutPosition(ctx, pos); err != nil {
			return err
		}
		return tx.AppendAudit(ctx, "bet.place", map[string]any{
			"market_id": marketID,
			"bettor":    bettor.Hex(),
			"outcome":   outcome,
			"amount":    amount,
			"shares":    shares,
		})
	})
	if err != nil {
		return 0, fmt.Errorf("betting_service: place bet on %q: %w", marketID, err)
	}

	s.cacheInvalidate(ctx, marketID)
	s.events.Emit(ctx, domain.EventBetPlaced, marketID, map[string]any{
		"bettor":  bettor.Hex(),
		"outcome": outcome,
		"amount":  amount,
		"shares":  shares,
		"bonus":   bonus,
	})
	return shares, nil
}

// ClaimWinnings pays out a user's position on a resolved market through the
// fee waterfall and returns the net amount transferred. A position with no
// winning shares is marked claimed and recorded as a loss with zero payout.
func (s *BettingService) ClaimWinnings(ctx context.Context, user common.Address, marketID string) (uint64, error) {
	if s.auth.Paused() {
		return 0, domain.ErrMarketsDisabled
	}

	unlock, err := s.locks.Acquire(ctx, lockKey(marketID), s.settings.LockTTL)
	if err != nil {
		return 0, fmt.Errorf("betting_service: acquire lock: %w", err)
	}
	defer unlock()

	var net uint64
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

		pos, err := tx.GetPosition(ctx, marketID, user)
		if err != nil {
			return err
		}
		if pos.Claimed {
			return domain.ErrAlreadyClaimed
		}
		if pos.Refunded {
			return domain.ErrAlreadyRefunded
		}

		profile, err := tx.GetUserProfile(ctx, user)
		if err != nil {
			return err
		}

		winning := *m.WinningOutcome
		userShares := pos.SharesOn(winning)
		if userShares == 0 {
			pos.Claimed = true
			profile.RecordLoss(pos.TotalStaked)
			if err := tx.PutPosition(ctx, pos); err != nil {
				return err
			}
			return tx.PutUserProfile(ctx, profile)
		}

		payout, err := parimutuel.Payout(userShares, m.TotalPool, m.Outcomes[winning].Shares)
		if err != nil {
			return err
		}
		fees, err := parimutuel.Waterfall(payout, m.ProtocolFeeBps, m.CreatorFeeBps)
		if err != nil {
			return err
		}

		if err := s.rail.TransferFromTreasury(ctx, user, fees.Net, "payout:"+marketID); err != nil {
			return fmt.Errorf("transfer payout: %w", err)
		}
		if fees.CreatorFee > 0 {
			if err := s.rail.TransferFromTreasury(ctx, m.Creator, fees.CreatorFee, "creator_fee:"+marketID); err != nil {
				return fmt.Errorf("transfer creator fee: %w", err)
			}
		}
		if err := tx.AccrueProtocolFees(ctx, fees.ProtocolFee); err != nil {
			return err
		}

		pos.Claimed = true
		profile.RecordWin(pos.TotalStaked, fees.Net)
		net = fees.Net

		if err := tx.PutPosition(ctx, pos); err != nil {
			return err
		}
		if err := tx.PutUserProfile(ctx, profile); err != nil {
			return err
		}
		return tx.AppendAudit(ctx, "bet.claim", map[string]any{
			"market_id":    marketID,
			"user":         user.Hex(),
			"payout":       payout,
			"net":          fees.Net,
			"protocol_fee": fees.ProtocolFee,
			"creator_fee":  fees.CreatorFee,
		})
	})
	if err != nil {
		return 0, fmt.Errorf("betting_service: claim winnings on %q: %w", marketID, err)
	}

	s.events.Emit(ctx, domain.EventWinningsClaimed, marketID, map[string]any{
		"user":   user.Hex(),
		"payout": net,
	})
	return net, nil
}

// ClaimRefund returns a user's raw total staked amount on a cancelled market.
func (s *BettingService) ClaimRefund(ctx context.Context, user common.Address, marketID string) (uint64, error) {
	if s.auth.Paused() {
		return 0, domain.ErrMarketsDisabled
	}

	unlock, err := s.locks.Acquire(ctx, lockKey(marketID), s.settings.LockTTL)
	if err != nil {
		return 0, fmt.Errorf("betting_service: acquire lock: %w", err)
	}
	defer unlock()

	var refund uint64
	err = s.ledger.Update(ctx, func(tx domain.LedgerTx) error {
		m, err := tx.GetMarket(ctx, marketID)
		if err != nil {
			return err
		}
		if m.Status != domain.MarketStatusCancelled {
			return domain.ErrMarketNotCancelled
		}

		pos, err := tx.GetPosition(ctx, marketID, user)
		if err != nil {
			return err
		}
		if pos.Refunded {
			return domain.ErrAlreadyRefunded
		}
		if pos.Claimed {
			return domain.ErrAlreadyClaimed
		}

		refund = pos.TotalStaked
		if refund > 0 {
			if err := s.rail.TransferFromTreasury(ctx, user, refund, "refund:"+marketID); err != nil {
				return fmt.Errorf("transfer refund: %w", err)
			}
		}

		pos.Refunded = true
		if err := tx.PutPosition(ctx, pos); err != nil {
			return err
		}
		return tx.AppendAudit(ctx, "bet.refund", map[string]any{
			"market_id": marketID,
			"user":      user.Hex(),
			"amount":    refund,
		})
	})
	if err != nil {
		return 0, fmt.Errorf("betting_service: claim refund on %q: %w", marketID, err)
	}

	s.events.Emit(ctx, domain.EventRefundClaimed, marketID, map[string]any{
		"user":   user.Hex(),
		"amount": refund,
	})
	return refund, nil
}

// GetPosition returns a user's position in a market.
func (s *BettingService) GetPosition(ctx context.Context, marketID string, user common.Address) (domain.Position, error) {
	var pos domain.Position
	err := s.ledger.View(ctx, func(tx domain.LedgerTx) error {
		var err error
		pos, err = tx.GetPosition(ctx, marketID, user)
		return err
	})
	if err != nil {
		return domain.Position{}, fmt.Errorf("betting_service: get position: %w", err)
	}
	return pos, nil
}

// EstimatePayout computes the gross payout a user would receive if the given
// outcome won with the pools as they stand. Zero for users with no shares on
// the outcome.
func (s *BettingService) EstimatePayout(ctx context.Context, marketID string, user common.Address, outcome int) (uint64, error) {
	var estimate uint64
	err := s.ledger.View(ctx, func(tx domain.LedgerTx) error {
		m, err := tx.GetMarket(ctx, marketID)
		if err != nil {
			return err
		}
		if !m.ValidOutcome(outcome) {
			return domain.ErrInvalidOutcome
		}
		pos, err := tx.GetPosition(ctx, marketID, user)
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		userShares := pos.SharesOn(outcome)
		if userShares == 0 {
			return nil
		}
		estimate, err = parimutuel.Payout(userShares, m.TotalPool, m.Outcomes[outcome].Shares)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("betting_service: estimate payout: %w", err)
	}
	return estimate, nil
}

func (s *BettingService) bestStakedLevel(ctx context.Context, user common.Address) uint32 {
	level, err := s.oracle.BestStakedLevel(ctx, user)
	if err != nil {
		s.logger.DebugContext(ctx, "betting_service: staking oracle lookup failed",
			slog.String("user", user.Hex()),
			slog.String("error", err.Error()),
		)
		return 0
	}
	return level
}

func (s *BettingService) cacheInvalidate(ctx context.Context, id string) {
	if err := s.cache.Invalidate(ctx, id); err != nil {
		s.logger.WarnContext(ctx, "betting_service: cache invalidate failed",
			slog.String("market_id", id),
			slog.String("error", err.Error()),
		)
	}
}

// refreshProbabilities recomputes every outcome's implied probability from
// the current share distribution.
func refreshProbabilities(m *domain.Market) {
	shares := make([]uint64, len(m.Outcomes))
	for i, o := range m.Outcomes {
		shares[i] = o.Shares
	}
	for i, p := range parimutuel.ImpliedProbabilities(shares) {
		m.Outcomes[i].ImpliedProbBps = p
	}
}
