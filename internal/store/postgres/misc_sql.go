package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
)

func (t *ledgerTx) AccrueProtocolFees(ctx context.Context, amount uint64) error {
	_, err := t.tx.Exec(ctx,
		`UPDATE protocol_fees SET accrued = accrued + $1 WHERE id = 1`,
		int64(amount),
	)
	if err != nil {
		return fmt.Errorf("postgres: accrue protocol fees: %w", err)
	}
	return nil
}

func (t *ledgerTx) ProtocolFeesAccrued(ctx context.Context) (uint64, error) {
	var accrued int64
	err := t.tx.QueryRow(ctx, `SELECT accrued FROM protocol_fees WHERE id = 1`).Scan(&accrued)
	if err != nil {
		return 0, fmt.Errorf("postgres: protocol fees accrued: %w", err)
	}
	return uint64(accrued), nil
}

func (t *ledgerTx) StakedLevel(ctx context.Context, addr common.Address) (uint32, error) {
	var level int32
	err := t.tx.QueryRow(ctx,
		`SELECT level FROM staking_levels WHERE address = $1`, addr.Bytes(),
	).Scan(&level)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("postgres: staked level: %w", err)
	}
	return uint32(level), nil
}

func (t *ledgerTx) SetStakedLevel(ctx context.Context, addr common.Address, level uint32) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO staking_levels (address, level) VALUES ($1, $2)
		ON CONFLICT (address) DO UPDATE SET level = EXCLUDED.level`,
		addr.Bytes(), int32(level),
	)
	if err != nil {
		return fmt.Errorf("postgres: set staked level: %w", err)
	}
	return nil
}

func (t *ledgerTx) AppendAudit(ctx context.Context, op string, detail map[string]any) error {
	var payload []byte
	if detail != nil {
		var err error
		payload, err = json.Marshal(detail)
		if err != nil {
			return fmt.Errorf("postgres: marshal audit detail: %w", err)
		}
	}
	_, err := t.tx.Exec(ctx,
		`INSERT INTO audit_log (op, detail) VALUES ($1, $2)`,
		op, payload,
	)
	if err != nil {
		return fmt.Errorf("postgres: append audit: %w", err)
	}
	return nil
}
