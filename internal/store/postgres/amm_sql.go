package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"

	"github.com/colonyforge/marketd/internal/domain"
)

func (t *ledgerTx) GetPool(ctx context.Context, marketID string) (domain.AMMPool, error) {
	var (
		p         domain.AMMPool
		reserves  []int64
		liquidity int64
		totalLP   int64
		kText     string
		fee       int32
	)
	err := t.tx.QueryRow(ctx, `
		SELECT market_id, reserves, liquidity, total_lp_shares, invariant_k, swap_fee_bps
		FROM amm_pools WHERE market_id = $1`,
		marketID,
	).Scan(&p.MarketID, &reserves, &liquidity, &totalLP, &kText, &fee)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.AMMPool{}, fmt.Errorf("postgres: pool %s: %w", marketID, domain.ErrNotFound)
		}
		return domain.AMMPool{}, fmt.Errorf("postgres: get pool %s: %w", marketID, err)
	}
	p.Reserves = toUint64s(reserves)
	p.Liquidity = uint64(liquidity)
	p.TotalLPShares = uint64(totalLP)
	p.InvariantK, err = strconv.ParseUint(kText, 10, 64)
	if err != nil {
		return domain.AMMPool{}, fmt.Errorf("postgres: parse invariant %s: %w", marketID, err)
	}
	p.SwapFeeBps = uint32(fee)
	return p, nil
}

func (t *ledgerTx) PutPool(ctx context.Context, pool domain.AMMPool) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO amm_pools (market_id, reserves, liquidity, total_lp_shares, invariant_k, swap_fee_bps)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (market_id) DO UPDATE SET
			reserves = EXCLUDED.reserves,
			liquidity = EXCLUDED.liquidity,
			total_lp_shares = EXCLUDED.total_lp_shares,
			invariant_k = EXCLUDED.invariant_k`,
		pool.MarketID, toInt64s(pool.Reserves), int64(pool.Liquidity),
		int64(pool.TotalLPShares), strconv.FormatUint(pool.InvariantK, 10), int32(pool.SwapFeeBps),
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert pool %s: %w", pool.MarketID, err)
	}
	return nil
}

func (t *ledgerTx) GetLPPosition(ctx context.Context, marketID string, provider common.Address) (domain.LPPosition, error) {
	var (
		lp     domain.LPPosition
		addr   []byte
		shares int64
	)
	err := t.tx.QueryRow(ctx, `
		SELECT market_id, provider, shares FROM lp_positions
		WHERE market_id = $1 AND provider = $2`,
		marketID, provider.Bytes(),
	).Scan(&lp.MarketID, &addr, &shares)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.LPPosition{}, fmt.Errorf("postgres: lp position %s/%s: %w", marketID, provider.Hex(), domain.ErrNotFound)
		}
		return domain.LPPosition{}, fmt.Errorf("postgres: get lp position: %w", err)
	}
	lp.Provider = common.BytesToAddress(addr)
	lp.Shares = uint64(shares)
	return lp, nil
}

func (t *ledgerTx) PutLPPosition(ctx context.Context, lp domain.LPPosition) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO lp_positions (market_id, provider, shares)
		VALUES ($1, $2, $3)
		ON CONFLICT (market_id, provider) DO UPDATE SET shares = EXCLUDED.shares`,
		lp.MarketID, lp.Provider.Bytes(), int64(lp.Shares),
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert lp position %s/%s: %w", lp.MarketID, lp.Provider.Hex(), err)
	}
	return nil
}
