package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"

	"github.com/colonyforge/marketd/internal/domain"
)

const marketCols = `id, type, status, question_hash,
	open_time, lock_time, resolution_time, resolved_at,
	creator, resolver, creator_fee_bps, protocol_fee_bps,
	total_pool, creator_bond, min_bet, max_bet,
	linked_entity, winning_outcome, dispute_window_secs, dispute_count,
	created_at, updated_at`

func (t *ledgerTx) GetMarket(ctx context.Context, id string) (domain.Market, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+marketCols+` FROM markets WHERE id = $1`, id)
	m, err := scanMarket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Market{}, fmt.Errorf("postgres: market %s: %w", id, domain.ErrNotFound)
		}
		return domain.Market{}, fmt.Errorf("postgres: get market %s: %w", id, err)
	}
	if m.Outcomes, err = t.marketOutcomes(ctx, id); err != nil {
		return domain.Market{}, err
	}
	return m, nil
}

func (t *ledgerTx) PutMarket(ctx context.Context, m domain.Market) error {
	var winning *int32
	if m.WinningOutcome != nil {
		w := int32(*m.WinningOutcome)
		winning = &w
	}

	_, err := t.tx.Exec(ctx, `
		INSERT INTO markets (`+marketCols+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			resolved_at = EXCLUDED.resolved_at,
			total_pool = EXCLUDED.total_pool,
			winning_outcome = EXCLUDED.winning_outcome,
			dispute_count = EXCLUDED.dispute_count,
			updated_at = EXCLUDED.updated_at`,
		m.ID, string(m.Type), string(m.Status), m.QuestionHash.Bytes(),
		m.OpenTime, m.LockTime, m.ResolutionTime, m.ResolvedAt,
		m.Creator.Bytes(), m.Resolver.Bytes(), int32(m.CreatorFeeBps), int32(m.ProtocolFeeBps),
		int64(m.TotalPool), int64(m.CreatorBond), int64(m.MinBet), int64(m.MaxBet),
		m.LinkedEntity, winning, int64(m.DisputeWindow/time.Second), int32(m.DisputeCount),
		m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert market %s: %w", m.ID, err)
	}

	for i, o := range m.Outcomes {
		_, err := t.tx.Exec(ctx, `
			INSERT INTO market_outcomes (market_id, idx, label, pool, shares, implied_prob_bps)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (market_id, idx) DO UPDATE SET
				pool = EXCLUDED.pool,
				shares = EXCLUDED.shares,
				implied_prob_bps = EXCLUDED.implied_prob_bps`,
			m.ID, int32(i), o.Label, int64(o.Pool), int64(o.Shares), int32(o.ImpliedProbBps),
		)
		if err != nil {
			return fmt.Errorf("postgres: upsert outcome %s/%d: %w", m.ID, i, err)
		}
	}
	return nil
}

func (t *ledgerTx) ListMarketsByStatus(ctx context.Context, status domain.MarketStatus, opts domain.ListOpts) ([]domain.Market, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	rows, err := t.tx.Query(ctx, `
		SELECT `+marketCols+` FROM markets
		WHERE status = $1 ORDER BY created_at, id LIMIT $2 OFFSET $3`,
		string(status), limit, opts.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list markets by status: %w", err)
	}
	return t.collectMarkets(ctx, rows)
}

func (t *ledgerTx) ListMarketsSettledBefore(ctx context.Context, cutoff time.Time) ([]domain.Market, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+marketCols+` FROM markets
		WHERE updated_at < $1 AND (
			status = $2 OR
			(status = $3 AND resolved_at IS NOT NULL
				AND resolved_at + dispute_window_secs * INTERVAL '1 second' < $1)
		)
		ORDER BY created_at, id`,
		cutoff, string(domain.MarketStatusCancelled), string(domain.MarketStatusResolved),
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list settled markets: %w", err)
	}
	return t.collectMarkets(ctx, rows)
}

func (t *ledgerTx) CountMarkets(ctx context.Context) (int64, error) {
	var count int64
	if err := t.tx.QueryRow(ctx, `SELECT COUNT(*) FROM markets`).Scan(&count); err != nil {
		return 0, fmt.Errorf("postgres: count markets: %w", err)
	}
	return count, nil
}

func (t *ledgerTx) collectMarkets(ctx context.Context, rows pgx.Rows) ([]domain.Market, error) {
	defer rows.Close()
	var list []domain.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan market: %w", err)
		}
		list = append(list, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range list {
		outcomes, err := t.marketOutcomes(ctx, list[i].ID)
		if err != nil {
			return nil, err
		}
		list[i].Outcomes = outcomes
	}
	return list, nil
}

func (t *ledgerTx) marketOutcomes(ctx context.Context, marketID string) ([]domain.Outcome, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT label, pool, shares, implied_prob_bps
		FROM market_outcomes WHERE market_id = $1 ORDER BY idx`,
		marketID,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: get outcomes %s: %w", marketID, err)
	}
	defer rows.Close()

	var outcomes []domain.Outcome
	for rows.Next() {
		var o domain.Outcome
		var pool, shares int64
		var prob int32
		if err := rows.Scan(&o.Label, &pool, &shares, &prob); err != nil {
			return nil, fmt.Errorf("postgres: scan outcome: %w", err)
		}
		o.Pool = uint64(pool)
		o.Shares = uint64(shares)
		o.ImpliedProbBps = uint32(prob)
		outcomes = append(outcomes, o)
	}
	return outcomes, rows.Err()
}

func scanMarket(row pgx.Row) (domain.Market, error) {
	var (
		m                          domain.Market
		typ, status                string
		questionHash               []byte
		creator, resolver          []byte
		creatorFee, protocolFee    int32
		pool, bond, minBet, maxBet int64
		winning                    *int32
		windowSecs                 int64
		disputeCount               int32
	)
	err := row.Scan(
		&m.ID, &typ, &status, &questionHash,
		&m.OpenTime, &m.LockTime, &m.ResolutionTime, &m.ResolvedAt,
		&creator, &resolver, &creatorFee, &protocolFee,
		&pool, &bond, &minBet, &maxBet,
		&m.LinkedEntity, &winning, &windowSecs, &disputeCount,
		&m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return domain.Market{}, err
	}
	m.Type = domain.MarketType(typ)
	m.Status = domain.MarketStatus(status)
	m.QuestionHash = common.BytesToHash(questionHash)
	m.Creator = common.BytesToAddress(creator)
	m.Resolver = common.BytesToAddress(resolver)
	m.CreatorFeeBps = uint32(creatorFee)
	m.ProtocolFeeBps = uint32(protocolFee)
	m.TotalPool = uint64(pool)
	m.CreatorBond = uint64(bond)
	m.MinBet = uint64(minBet)
	m.MaxBet = uint64(maxBet)
	if winning != nil {
		w := int(*winning)
		m.WinningOutcome = &w
	}
	m.DisputeWindow = time.Duration(windowSecs) * time.Second
	m.DisputeCount = int(disputeCount)
	return m, nil
}
