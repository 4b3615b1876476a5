package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"

	"github.com/colonyforge/marketd/internal/domain"
	"github.com/colonyforge/marketd/internal/engine/parimutuel"
)

// MarketService drives the market lifecycle state machine: creation, locking,
// resolution, and cancellation, plus the read-only market surface.
type MarketService struct {
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

// NewMarketService creates a MarketService with all required dependencies.
func NewMarketService(
	ledger domain.Ledger,
	locks domain.LockManager,
	cache domain.MarketCache,
	rail domain.PaymentRail,
	auth domain.Authorizer,
	events *Publisher,
	settings Settings,
	logger *slog.Logger,
) *MarketService {
	return &MarketService{
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

// CreateMarketParams are the caller-supplied fields for a new market.
type CreateMarketParams struct {
	Creator        common.Address
	Type           domain.MarketType
	Question       string
	Outcomes       []string
	LockTime       time.Time
	ResolutionTime time.Time
	Resolver       common.Address
	MinBet         uint64
	MaxBet         uint64
	CreatorFeeBps  uint32
	CreatorBond    uint64
	LinkedEntity   string
}

// CreateMarket validates the parameters, collects the creator bond, and opens
// a new market with equal implied probabilities across its outcomes.
func (s *MarketService) CreateMarket(ctx context.Context, p CreateMarketParams) (domain.Market, error) {
	if !s.settings.MarketsEnabled || s.auth.Paused() {
		return domain.Market{}, domain.ErrMarketsDisabled
	}
	if !s.auth.CanCreateMarkets(p.Creator) && !s.auth.IsAdmin(p.Creator) {
		return domain.Market{}, domain.ErrUnauthorizedCreator
	}
	if len(p.Outcomes) < domain.MinOutcomes || len(p.Outcomes) > domain.MaxOutcomes {
		return domain.Market{}, domain.ErrInvalidOutcomeCount
	}
	now := s.now().UTC()
	if !p.LockTime.After(now) || !p.LockTime.Before(p.ResolutionTime) {
		return domain.Market{}, domain.ErrInvalidTimeConfig
	}
	if p.CreatorFeeBps > s.settings.MaxCreatorFeeBps {
		return domain.Market{}, domain.ErrInvalidCreatorFee
	}

	id := uuid.NewString()

	unlock, err := s.locks.Acquire(ctx, lockKey(id), s.settings.LockTTL)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: acquire lock: %w", err)
	}
	defer unlock()

	outcomes := make([]domain.Outcome, len(p.Outcomes))
	for i, label := range p.Outcomes {
		outcomes[i] = domain.Outcome{Label: label}
	}
	for i, prob := range parimutuel.ImpliedProbabilities(make([]uint64, len(outcomes))) {
		outcomes[i].ImpliedProbBps = prob
	}

	m := domain.Market{
		ID:             id,
		Type:           p.Type,
		Status:         domain.MarketStatusOpen,
		QuestionHash:   ethcrypto.Keccak256Hash([]byte(p.Question)),
		Outcomes:       outcomes,
		OpenTime:       now,
		LockTime:       p.LockTime.UTC(),
		ResolutionTime: p.ResolutionTime.UTC(),
		Creator:        p.Creator,
		Resolver:       p.Resolver,
		CreatorFeeBps:  p.CreatorFeeBps,
		ProtocolFeeBps: s.settings.ProtocolFeeBps,
		CreatorBond:    p.CreatorBond,
		MinBet:         p.MinBet,
		MaxBet:         p.MaxBet,
		LinkedEntity:   p.LinkedEntity,
		DisputeWindow:  s.settings.DisputeWindow,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err = s.ledger.Update(ctx, func(tx domain.LedgerTx) error {
		if p.CreatorBond > 0 {
			if err := s.rail.CollectFee(ctx, p.Creator, p.CreatorBond, "market_bond:"+id); err != nil {
				return fmt.Errorf("collect creator bond: %w", err)
			}
		}
		if err := tx.PutMarket(ctx, m); err != nil {
			return err
		}
		return tx.AppendAudit(ctx, "market.create", map[string]any{
			"market_id": id,
			"creator":   p.Creator.Hex(),
			"outcomes":  len(outcomes),
			"bond":      p.CreatorBond,
		})
	})
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: create market: %w", err)
	}

	s.cacheSet(ctx, m)
	s.events.Emit(ctx, domain.EventMarketCreated, id, map[string]any{
		"type":     string(m.Type),
		"creator":  p.Creator.Hex(),
		"outcomes": len(outcomes),
	})
	s.logger.InfoContext(ctx, "market_service: market created",
		slog.String("market_id", id),
		slog.String("type", string(m.Type)),
		slog.Int("outcomes", len(outcomes)),
	)
	return m, nil
}

// ResolveMarket records the winning outcome. Callable by the market's
// designated resolver or an admin, once the market is locked or open past its
// lock time. Returns the creator bond and updates the resolver's record.
func (s *MarketService) ResolveMarket(ctx context.Context, caller common.Address, marketID string, winning int) error {
	if s.auth.Paused() {
		return domain.ErrMarketsDisabled
	}

	unlock, err := s.locks.Acquire(ctx, lockKey(marketID), s.settings.LockTTL)
	if err != nil {
		return fmt.Errorf("market_service: acquire lock: %w", err)
	}
	defer unlock()

	now := s.now().UTC()
	err = s.ledger.Update(ctx, func(tx domain.LedgerTx) error {
		m, err := tx.GetMarket(ctx, marketID)
		if err != nil {
			return err
		}
		if caller != m.Resolver && !s.auth.IsAdmin(caller) {
			return domain.ErrNotResolver
		}
		switch m.Status {
		case domain.MarketStatusLocked:
		case domain.MarketStatusOpen:
			if now.Before(m.LockTime) {
				return domain.ErrMarketNotLocked
			}
		default:
			return domain.ErrMarketNotLocked
		}
		if !m.ValidOutcome(winning) {
			return domain.ErrInvalidOutcome
		}

		if m.CreatorBond > 0 {
			if err := s.rail.TransferFromTreasury(ctx, m.Creator, m.CreatorBond, "bond_return:"+marketID); err != nil {
				return fmt.Errorf("return creator bond: %w", err)
			}
		}

		m.Status = domain.MarketStatusResolved
		m.WinningOutcome = &winning
		m.ResolvedAt = &now
		m.UpdatedAt = now
		if err := tx.PutMarket(ctx, m); err != nil {
			return err
		}

		rp, err := tx.GetResolverProfile(ctx, m.Resolver)
		if err != nil {
			return err
		}
		rp.MarketsResolved++
		rp.TotalVolume += m.TotalPool
		if err := tx.PutResolverProfile(ctx, rp); err != nil {
			return err
		}

		return tx.AppendAudit(ctx, "market.resolve", map[string]any{
			"market_id": marketID,
			"resolver":  caller.Hex(),
			"winning":   winning,
		})
	})
	if err != nil {
		return fmt.Errorf("market_service: resolve market %q: %w", marketID, err)
	}

	s.cacheInvalidate(ctx, marketID)
	s.events.Emit(ctx, domain.EventMarketResolved, marketID, map[string]any{
		"winning_outcome": winning,
	})
	s.emitStatusChange(ctx, marketID, domain.MarketStatusResolved)
	return nil
}

// LockMarket is the authorized early transition from Open to Locked.
func (s *MarketService) LockMarket(ctx context.Context, caller common.Address, marketID string) error {
	if s.auth.Paused() {
		return domain.ErrMarketsDisabled
	}
	if !s.auth.IsAdmin(caller) {
		return domain.ErrUnauthorized
	}

	unlock, err := s.locks.Acquire(ctx, lockKey(marketID), s.settings.LockTTL)
	if err != nil {
		return fmt.Errorf("market_service: acquire lock: %w", err)
	}
	defer unlock()

	if err := s.lockTx(ctx, marketID); err != nil {
		return fmt.Errorf("market_service: lock market %q: %w", marketID, err)
	}

	s.cacheInvalidate(ctx, marketID)
	s.events.Emit(ctx, domain.EventMarketLocked, marketID, nil)
	s.emitStatusChange(ctx, marketID, domain.MarketStatusLocked)
	return nil
}

func (s *MarketService) lockTx(ctx context.Context, marketID string) error {
	return s.ledger.Update(ctx, func(tx domain.LedgerTx) error {
		m, err := tx.GetMarket(ctx, marketID)
		if err != nil {
			return err
		}
		if m.Status != domain.MarketStatusOpen {
			return domain.ErrMarketNotOpen
		}
		m.Status = domain.MarketStatusLocked
		m.UpdatedAt = s.now().UTC()
		if err := tx.PutMarket(ctx, m); err != nil {
			return err
		}
		return tx.AppendAudit(ctx, "market.lock", map[string]any{"market_id": marketID})
	})
}

// CancelMarket cancels a non-resolved market, returns the creator bond, and
// opens the refund claim path for bettors.
func (s *MarketService) CancelMarket(ctx context.Context, caller common.Address, marketID, reason string) error {
	if s.auth.Paused() {
		return domain.ErrMarketsDisabled
	}
	if !s.auth.IsAdmin(caller) {
		return domain.ErrUnauthorized
	}

	unlock, err := s.locks.Acquire(ctx, lockKey(marketID), s.settings.LockTTL)
	if err != nil {
		return fmt.Errorf("market_service: acquire lock: %w", err)
	}
	defer unlock()

	err = s.ledger.Update(ctx, func(tx domain.LedgerTx) error {
		m, err := tx.GetMarket(ctx, marketID)
		if err != nil {
			return err
		}
		switch m.Status {
		case domain.MarketStatusPending, domain.MarketStatusOpen, domain.MarketStatusLocked:
		default:
			return domain.ErrMarketNotCancellable
		}

		if m.CreatorBond > 0 {
			if err := s.rail.TransferFromTreasury(ctx, m.Creator, m.CreatorBond, "bond_return:"+marketID); err != nil {
				return fmt.Errorf("return creator bond: %w", err)
			}
		}

		m.Status = domain.MarketStatusCancelled
		m.UpdatedAt = s.now().UTC()
		if err := tx.PutMarket(ctx, m); err != nil {
			return err
		}
		return tx.AppendAudit(ctx, "market.cancel", map[string]any{
			"market_id": marketID,
			"caller":    caller.Hex(),
			"reason":    reason,
		})
	})
	if err != nil {
		return fmt.Errorf("market_service: cancel market %q: %w", marketID, err)
	}

	s.cacheInvalidate(ctx, marketID)
	s.events.Emit(ctx, domain.EventMarketCancelled, marketID, map[string]any{"reason": reason})
	s.emitStatusChange(ctx, marketID, domain.MarketStatusCancelled)
	return nil
}

// CancelMarketsBatch cancels each listed market, skipping over per-market
// failures, and returns the ids that were cancelled.
func (s *MarketService) CancelMarketsBatch(ctx context.Context, caller common.Address, ids []string, reason string) ([]string, error) {
	if !s.auth.IsAdmin(caller) {
		return nil, domain.ErrUnauthorized
	}

	cancelled := make([]string, 0, len(ids))
	for _, id := range ids {
		if err := s.CancelMarket(ctx, caller, id, reason); err != nil {
			s.logger.WarnContext(ctx, "market_service: batch cancel skipped market",
				slog.String("market_id", id),
				slog.String("error", err.Error()),
			)
			continue
		}
		cancelled = append(cancelled, id)
	}
	return cancelled, nil
}

// LockDueMarkets transitions every open market past its lock time to Locked.
// Called by the maintenance loop; markets not yet due are left untouched.
func (s *MarketService) LockDueMarkets(ctx context.Context) (int, error) {
	var due []string
	err := s.ledger.View(ctx, func(tx domain.LedgerTx) error {
		markets, err := tx.ListMarketsByStatus(ctx, domain.MarketStatusOpen, domain.ListOpts{})
		if err != nil {
			return err
		}
		now := s.now().UTC()
		for _, m := range markets {
			if !now.Before(m.LockTime) {
				due = append(due, m.ID)
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("market_service: list due markets: %w", err)
	}

	locked := 0
	for _, id := range due {
		unlock, err := s.locks.Acquire(ctx, lockKey(id), s.settings.LockTTL)
		if err != nil {
			continue // another worker holds it; next tick retries
		}
		err = s.lockTx(ctx, id)
		unlock()
		if err != nil {
			s.logger.WarnContext(ctx, "market_service: auto-lock failed",
				slog.String("market_id", id),
				slog.String("error", err.Error()),
			)
			continue
		}
		s.cacheInvalidate(ctx, id)
		s.events.Emit(ctx, domain.EventMarketLocked, id, nil)
		s.emitStatusChange(ctx, id, domain.MarketStatusLocked)
		locked++
	}
	return locked, nil
}

// GetMarket retrieves a market by ID, checking the cache first and falling
// back to the ledger on a miss.
func (s *MarketService) GetMarket(ctx context.Context, id string) (domain.Market, error) {
	m, err := s.cache.Get(ctx, id)
	if err == nil {
		return m, nil
	}

	err = s.ledger.View(ctx, func(tx domain.LedgerTx) error {
		m, err = tx.GetMarket(ctx, id)
		return err
	})
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: get market %q: %w", id, err)
	}

	s.cacheSet(ctx, m)
	return m, nil
}

// ListByStatus returns markets in the given status directly from the ledger.
func (s *MarketService) ListByStatus(ctx context.Context, status domain.MarketStatus, opts domain.ListOpts) ([]domain.Market, error) {
	var markets []domain.Market
	err := s.ledger.View(ctx, func(tx domain.LedgerTx) error {
		var err error
		markets, err = tx.ListMarketsByStatus(ctx, status, opts)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("market_service: list by status %q: %w", status, err)
	}
	return markets, nil
}

// Count returns the total number of markets in the ledger.
func (s *MarketService) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.ledger.View(ctx, func(tx domain.LedgerTx) error {
		var err error
		count, err = tx.CountMarkets(ctx)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("market_service: count: %w", err)
	}
	return count, nil
}

func (s *MarketService) emitStatusChange(ctx context.Context, marketID string, status domain.MarketStatus) {
	s.events.Emit(ctx, domain.EventMarketStatusChanged, marketID, map[string]any{
		"status": string(status),
	})
}

func (s *MarketService) cacheSet(ctx context.Context, m domain.Market) {
	if err := s.cache.Set(ctx, m); err != nil {
		s.logger.WarnContext(ctx, "market_service: cache set failed",
			slog.String("market_id", m.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *MarketService) cacheInvalidate(ctx context.Context, id string) {
	if err := s.cache.Invalidate(ctx, id); err != nil {
		s.logger.WarnContext(ctx, "market_service: cache invalidate failed",
			slog.String("market_id", id),
			slog.String("error", err.Error()),
		)
	}
}

// lockKey is the per-market operation lock key shared by every service.
func lockKey(marketID string) string {
	return "market:" + marketID
}
