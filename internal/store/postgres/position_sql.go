package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"

	"github.com/colonyforge/marketd/internal/domain"
)

const positionCols = `market_id, bettor, stakes, shares, total_staked, bonus_accrued, last_bet_at, claimed, refunded`

func (t *ledgerTx) GetPosition(ctx context.Context, marketID string, user common.Address) (domain.Position, error) {
	row := t.tx.QueryRow(ctx,
		`SELECT `+positionCols+` FROM positions WHERE market_id = $1 AND bettor = $2`,
		marketID, user.Bytes(),
	)
	p, err := scanPosition(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Position{}, fmt.Errorf("postgres: position %s/%s: %w", marketID, user.Hex(), domain.ErrNotFound)
		}
		return domain.Position{}, fmt.Errorf("postgres: get position: %w", err)
	}
	return p, nil
}

func (t *ledgerTx) PutPosition(ctx context.Context, p domain.Position) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO positions (`+positionCols+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (market_id, bettor) DO UPDATE SET
			stakes = EXCLUDED.stakes,
			shares = EXCLUDED.shares,
			total_staked = EXCLUDED.total_staked,
			bonus_accrued = EXCLUDED.bonus_accrued,
			last_bet_at = EXCLUDED.last_bet_at,
			claimed = EXCLUDED.claimed,
			refunded = EXCLUDED.refunded`,
		p.MarketID, p.User.Bytes(), toInt64s(p.Stakes), toInt64s(p.Shares),
		int64(p.TotalStaked), int64(p.BonusAccrued), p.LastBetAt, p.Claimed, p.Refunded,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert position %s/%s: %w", p.MarketID, p.User.Hex(), err)
	}
	return nil
}

func (t *ledgerTx) ListPositions(ctx context.Context, marketID string) ([]domain.Position, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT `+positionCols+` FROM positions WHERE market_id = $1 ORDER BY bettor`,
		marketID,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list positions %s: %w", marketID, err)
	}
	defer rows.Close()

	var list []domain.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan position: %w", err)
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

func scanPosition(row pgx.Row) (domain.Position, error) {
	var (
		p              domain.Position
		user           []byte
		stakes, shares []int64
		staked, bonus  int64
	)
	err := row.Scan(&p.MarketID, &user, &stakes, &shares, &staked, &bonus, &p.LastBetAt, &p.Claimed, &p.Refunded)
	if err != nil {
		return domain.Position{}, err
	}
	p.User = common.BytesToAddress(user)
	p.Stakes = toUint64s(stakes)
	p.Shares = toUint64s(shares)
	p.TotalStaked = uint64(staked)
	p.BonusAccrued = uint64(bonus)
	return p, nil
}

func toInt64s(in []uint64) []int64 {
	out := make([]int64, len(in))
	for i, v := range in {
		out[i] = int64(v)
	}
	return out
}

func toUint64s(in []int64) []uint64 {
	out := make([]uint64, len(in))
	for i, v := range in {
		out[i] = uint64(v)
	}
	return out
}
