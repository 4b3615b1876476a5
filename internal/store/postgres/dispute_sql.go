package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"

	"github.com/colonyforge/marketd/internal/domain"
)

const disputeCols = `market_id, idx, disputer, proposed_outcome, bond, created_at, votes_for, votes_against, resolved, upheld`

func (t *ledgerTx) GetDispute(ctx context.Context, marketID string, index int) (domain.Dispute, error) {
	row := t.tx.QueryRow(ctx,
		`SELECT `+disputeCols+` FROM disputes WHERE market_id = $1 AND idx = $2`,
		marketID, int32(index),
	)
	d, err := scanDispute(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Dispute{}, fmt.Errorf("postgres: dispute %s/%d: %w", marketID, index, domain.ErrNotFound)
		}
		return domain.Dispute{}, fmt.Errorf("postgres: get dispute: %w", err)
	}
	return d, nil
}

func (t *ledgerTx) PutDispute(ctx context.Context, d domain.Dispute) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO disputes (`+disputeCols+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (market_id, idx) DO UPDATE SET
			votes_for = EXCLUDED.votes_for,
			votes_against = EXCLUDED.votes_against,
			resolved = EXCLUDED.resolved,
			upheld = EXCLUDED.upheld`,
		d.MarketID, int32(d.Index), d.Disputer.Bytes(), int32(d.ProposedOutcome),
		int64(d.Bond), d.CreatedAt, int64(d.VotesFor), int64(d.VotesAgainst),
		d.Resolved, d.Upheld,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert dispute %s/%d: %w", d.MarketID, d.Index, err)
	}
	return nil
}

func (t *ledgerTx) ListDisputes(ctx context.Context, marketID string) ([]domain.Dispute, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT `+disputeCols+` FROM disputes WHERE market_id = $1 ORDER BY idx`,
		marketID,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list disputes %s: %w", marketID, err)
	}
	defer rows.Close()

	var list []domain.Dispute
	for rows.Next() {
		d, err := scanDispute(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan dispute: %w", err)
		}
		list = append(list, d)
	}
	return list, rows.Err()
}

func (t *ledgerTx) HasVoted(ctx context.Context, marketID string, index int, voter common.Address) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM dispute_votes
			WHERE market_id = $1 AND dispute_idx = $2 AND voter = $3)`,
		marketID, int32(index), voter.Bytes(),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("postgres: has voted %s/%d: %w", marketID, index, err)
	}
	return exists, nil
}

func (t *ledgerTx) RecordVote(ctx context.Context, v domain.DisputeVote) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO dispute_votes (market_id, dispute_idx, voter, weight, vote_for, cast_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		v.MarketID, int32(v.DisputeIndex), v.Voter.Bytes(), int64(v.Weight), v.For, v.CastAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: record vote %s/%d: %w", v.MarketID, v.DisputeIndex, err)
	}
	return nil
}

func scanDispute(row pgx.Row) (domain.Dispute, error) {
	var (
		d                      domain.Dispute
		idx, proposed          int32
		disputer               []byte
		bond, vFor, vAgainst   int64
	)
	err := row.Scan(&d.MarketID, &idx, &disputer, &proposed, &bond, &d.CreatedAt, &vFor, &vAgainst, &d.Resolved, &d.Upheld)
	if err != nil {
		return domain.Dispute{}, err
	}
	d.Index = int(idx)
	d.Disputer = common.BytesToAddress(disputer)
	d.ProposedOutcome = int(proposed)
	d.Bond = uint64(bond)
	d.VotesFor = uint64(vFor)
	d.VotesAgainst = uint64(vAgainst)
	return d, nil
}
