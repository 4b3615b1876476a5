package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/colonyforge/marketd/internal/domain"
	"github.com/colonyforge/marketd/internal/engine/ammmath"
	"github.com/colonyforge/marketd/internal/engine/fixedpoint"
)

// LiquidityService operates the opt-in AMM venue attached to each market:
// liquidity provisioning, proportional removal, and outcome-share swaps.
type LiquidityService struct {
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

// NewLiquidityService creates a LiquidityService with all required dependencies.
func NewLiquidityService(
	ledger domain.Ledger,
	locks domain.LockManager,
	cache domain.MarketCache,
	rail domain.PaymentRail,
	auth domain.Authorizer,
	events *Publisher,
	settings Settings,
	logger *slog.Logger,
) *LiquidityService {
	return &LiquidityService{
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

// AddLiquidity deposits amount into the market's AMM pool and returns the LP
// shares minted. The first provider creates the pool with an equal reserve
// split; later deposits grow reserves proportionally.
func (s *LiquidityService) AddLiquidity(ctx context.Context, provider common.Address, marketID string, amount uint64) (uint64, error) {
	if s.auth.Paused() {
		return 0, domain.ErrMarketsDisabled
	}
	if amount == 0 {
		return 0, domain.ErrInvalidAmount
	}

	unlock, err := s.locks.Acquire(ctx, lockKey(marketID), s.settings.LockTTL)
	if err != nil {
		return 0, fmt.Errorf("liquidity_service: acquire lock: %w", err)
	}
	defer unlock()

	var lpShares uint64
	err = s.ledger.Update(ctx, func(tx domain.LedgerTx) error {
		m, err := tx.GetMarket(ctx, marketID)
		if err != nil {
			return err
		}
		if m.Status != domain.MarketStatusOpen {
			return domain.ErrMarketNotOpen
		}

		pool, err := tx.GetPool(ctx, marketID)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			pool = domain.AMMPool{
				MarketID:   marketID,
				Reserves:   ammmath.InitialReserves(amount, len(m.Outcomes)),
				SwapFeeBps: s.settings.SwapFeeBps,
			}
			pool.Liquidity = amount
			lpShares = amount
		case err != nil:
			return err
		case pool.TotalLPShares == 0:
			// The pool record outlives a full removal with zero shares and
			// zero reserves, so the next deposit re-seeds it like the first
			// provider's.
			pool.Reserves = ammmath.InitialReserves(amount, len(m.Outcomes))
			pool.Liquidity = amount
			lpShares = amount
		default:
			lpShares, err = ammmath.LPSharesForDeposit(amount, pool.TotalLPShares, pool.Liquidity)
			if err != nil {
				return err
			}
			added := uint64(0)
			for i, r := range pool.Reserves {
				grow, err := fixedpoint.MulDiv(r, amount, pool.Liquidity)
				if err != nil {
					return err
				}
				pool.Reserves[i] += grow
				added += grow
			}
			// Truncation remainder lands on the first reserve so the
			// reserves absorb exactly amount.
			pool.Reserves[0] += amount - added
			if pool.Liquidity, err = fixedpoint.Add(pool.Liquidity, amount); err != nil {
				return err
			}
		}
		if pool.TotalLPShares, err = fixedpoint.Add(pool.TotalLPShares, lpShares); err != nil {
			return err
		}
		if pool.InvariantK, err = ammmath.InvariantK(pool.Reserves); err != nil {
			return err
		}

		if err := s.rail.CollectFee(ctx, provider, amount, "liquidity:"+marketID); err != nil {
			return fmt.Errorf("collect deposit: %w", err)
		}

		lp, err := tx.GetLPPosition(ctx, marketID, provider)
		if errors.Is(err, domain.ErrNotFound) {
			lp = domain.LPPosition{MarketID: marketID, Provider: provider}
		} else if err != nil {
			return err
		}
		lp.Shares += lpShares

		if err := tx.PutPool(ctx, pool); err != nil {
			return err
		}
		if err := tx.PutLPPosition(ctx, lp); err != nil {
			return err
		}
		return tx.AppendAudit(ctx, "amm.add_liquidity", map[string]any{
			"market_id": marketID,
			"provider":  provider.Hex(),
			"amount":    amount,
			"lp_shares": lpShares,
		})
	})
	if err != nil {
		return 0, fmt.Errorf("liquidity_service: add liquidity to %q: %w", marketID, err)
	}

	s.events.Emit(ctx, domain.EventLiquidityAdded, marketID, map[string]any{
		"provider":  provider.Hex(),
		"amount":    amount,
		"lp_shares": lpShares,
	})
	return lpShares, nil
}

// RemoveLiquidity burns lpShares for a proportional slice of the pool's
// reserves and returns the amount paid back. Disallowed while the market is
// locked or under dispute.
func (s *LiquidityService) RemoveLiquidity(ctx context.Context, provider common.Address, marketID string, lpShares uint64) (uint64, error) {
	if s.auth.Paused() {
		return 0, domain.ErrMarketsDisabled
	}
	if lpShares == 0 {
		return 0, domain.ErrInvalidAmount
	}

	unlock, err := s.locks.Acquire(ctx, lockKey(marketID), s.settings.LockTTL)
	if err != nil {
		return 0, fmt.Errorf("liquidity_service: acquire lock: %w", err)
	}
	defer unlock()

	var returned uint64
	err = s.ledger.Update(ctx, func(tx domain.LedgerTx) error {
		m, err := tx.GetMarket(ctx, marketID)
		if err != nil {
			return err
		}
		switch m.Status {
		case domain.MarketStatusDisputed:
			return domain.ErrMarketDisputed
		case domain.MarketStatusLocked:
			return domain.ErrMarketNotOpen
		}

		pool, err := tx.GetPool(ctx, marketID)
		if err != nil {
			return err
		}
		lp, err := tx.GetLPPosition(ctx, marketID, provider)
		if err != nil {
			return err
		}
		if lpShares > lp.Shares {
			return domain.ErrInsufficientShares
		}

		removal, err := ammmath.RemovalFor(lpShares, pool.TotalLPShares, pool.Liquidity, pool.Reserves)
		if err != nil {
			return err
		}
		for i, take := range removal.ReserveTakes {
			if pool.Reserves[i], err = fixedpoint.Sub(pool.Reserves[i], take); err != nil {
				return err
			}
		}
		if pool.Liquidity, err = fixedpoint.Sub(pool.Liquidity, removal.Amount); err != nil {
			return err
		}
		if pool.TotalLPShares, err = fixedpoint.Sub(pool.TotalLPShares, lpShares); err != nil {
			return err
		}
		if pool.InvariantK, err = ammmath.InvariantK(pool.Reserves); err != nil {
			return err
		}
		lp.Shares -= lpShares
		returned = removal.Amount

		if err := s.rail.TransferFromTreasury(ctx, provider, removal.Amount, "liquidity_out:"+marketID); err != nil {
			return fmt.Errorf("transfer withdrawal: %w", err)
		}

		if err := tx.PutPool(ctx, pool); err != nil {
			return err
		}
		if err := tx.PutLPPosition(ctx, lp); err != nil {
			return err
		}
		return tx.AppendAudit(ctx, "amm.remove_liquidity", map[string]any{
			"market_id": marketID,
			"provider":  provider.Hex(),
			"lp_shares": lpShares,
			"returned":  removal.Amount,
		})
	})
	if err != nil {
		return 0, fmt.Errorf("liquidity_service: remove liquidity from %q: %w", marketID, err)
	}

	s.events.Emit(ctx, domain.EventLiquidityRemoved, marketID, map[string]any{
		"provider":  provider.Hex(),
		"lp_shares": lpShares,
		"returned":  returned,
	})
	return returned, nil
}

// SwapShares trades amountIn of the caller's shares on one outcome for shares
// of another through the pool's reserve-ratio pricing, and returns the output
// amount.
func (s *LiquidityService) SwapShares(ctx context.Context, user common.Address, marketID string, from, to int, amountIn uint64) (uint64, error) {
	if s.auth.Paused() {
		return 0, domain.ErrMarketsDisabled
	}
	if from == to {
		return 0, domain.ErrSameOutcomeSwap
	}
	if amountIn == 0 {
		return 0, domain.ErrInvalidAmount
	}

	unlock, err := s.locks.Acquire(ctx, lockKey(marketID), s.settings.LockTTL)
	if err != nil {
		return 0, fmt.Errorf("liquidity_service: acquire lock: %w", err)
	}
	defer unlock()

	now := s.now().UTC()
	var amountOut uint64
	err = s.ledger.Update(ctx, func(tx domain.LedgerTx) error {
		m, err := tx.GetMarket(ctx, marketID)
		if err != nil {
			return err
		}
		if !m.Bettable(now) {
			return domain.ErrMarketNotOpen
		}
		if !m.ValidOutcome(from) || !m.ValidOutcome(to) {
			return domain.ErrInvalidOutcome
		}

		pool, err := tx.GetPool(ctx, marketID)
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrInsufficientLiquidity
		}
		if err != nil {
			return err
		}

		pos, err := tx.GetPosition(ctx, marketID, user)
		if err != nil {
			return err
		}
		if pos.SharesOn(from) < amountIn {
			return domain.ErrInsufficientShares
		}

		amountOut, err = ammmath.SwapOutput(amountIn, pool.Reserves[from], pool.Reserves[to], pool.SwapFeeBps)
		if err != nil {
			return err
		}
		if amountOut == 0 || amountOut >= pool.Reserves[to] {
			return domain.ErrInsufficientLiquidity
		}

		if pool.Reserves[from], err = fixedpoint.Add(pool.Reserves[from], amountIn); err != nil {
			return err
		}
		pool.Reserves[to] -= amountOut
		if pool.InvariantK, err = ammmath.InvariantK(pool.Reserves); err != nil {
			return err
		}

		pos.Shares[from] -= amountIn
		if pos.Shares[to], err = fixedpoint.Add(pos.Shares[to], amountOut); err != nil {
			return err
		}

		// Outcome share totals move with the user's balances so implied
		// probabilities track the swap.
		if m.Outcomes[from].Shares, err = fixedpoint.Sub(m.Outcomes[from].Shares, amountIn); err != nil {
			return err
		}
		if m.Outcomes[to].Shares, err = fixedpoint.Add(m.Outcomes[to].Shares, amountOut); err != nil {
			return err
		}
		refreshProbabilities(&m)
		m.UpdatedAt = now

		if err := tx.PutPool(ctx, pool); err != nil {
			return err
		}
		if err := tx.PutPosition(ctx, pos); err != nil {
			return err
		}
		if err := tx.PutMarket(ctx, m); err != nil {
			return err
		}
		return tx.AppendAudit(ctx, "amm.swap", map[string]any{
			"market_id":  marketID,
			"user":       user.Hex(),
			"from":       from,
			"to":         to,
			"amount_in":  amountIn,
			"amount_out": amountOut,
		})
	})
	if err != nil {
		return 0, fmt.Errorf("liquidity_service: swap on %q: %w", marketID, err)
	}

	s.cacheInvalidate(ctx, marketID)
	s.events.Emit(ctx, domain.EventSharesSwapped, marketID, map[string]any{
		"user":       user.Hex(),
		"from":       from,
		"to":         to,
		"amount_in":  amountIn,
		"amount_out": amountOut,
	})
	return amountOut, nil
}

// EstimateSwapOutput prices a swap against the current reserves without
// executing it.
func (s *LiquidityService) EstimateSwapOutput(ctx context.Context, marketID string, from, to int, amountIn uint64) (uint64, error) {
	if from == to {
		return 0, domain.ErrSameOutcomeSwap
	}
	var out uint64
	err := s.ledger.View(ctx, func(tx domain.LedgerTx) error {
		pool, err := tx.GetPool(ctx, marketID)
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrInsufficientLiquidity
		}
		if err != nil {
			return err
		}
		if from < 0 || from >= len(pool.Reserves) || to < 0 || to >= len(pool.Reserves) {
			return domain.ErrInvalidOutcome
		}
		out, err = ammmath.SwapOutput(amountIn, pool.Reserves[from], pool.Reserves[to], pool.SwapFeeBps)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("liquidity_service: estimate swap on %q: %w", marketID, err)
	}
	return out, nil
}

// GetPool returns the market's AMM pool.
func (s *LiquidityService) GetPool(ctx context.Context, marketID string) (domain.AMMPool, error) {
	var pool domain.AMMPool
	err := s.ledger.View(ctx, func(tx domain.LedgerTx) error {
		var err error
		pool, err = tx.GetPool(ctx, marketID)
		return err
	})
	if err != nil {
		return domain.AMMPool{}, fmt.Errorf("liquidity_service: get pool %q: %w", marketID, err)
	}
	return pool, nil
}

func (s *LiquidityService) cacheInvalidate(ctx context.Context, id string) {
	if err := s.cache.Invalidate(ctx, id); err != nil {
		s.logger.WarnContext(ctx, "liquidity_service: cache invalidate failed",
			slog.String("market_id", id),
			slog.String("error", err.Error()),
		)
	}
}
