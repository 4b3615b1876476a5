package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"

	"github.com/colonyforge/marketd/internal/domain"
)

func (t *ledgerTx) GetResolverProfile(ctx context.Context, addr common.Address) (domain.ResolverProfile, error) {
	var (
		p                                      domain.ResolverProfile
		resolved, volume, lost, correct, repu  int64
	)
	err := t.tx.QueryRow(ctx, `
		SELECT markets_resolved, total_volume, disputes_lost, correct_resolutions, reputation, trusted
		FROM resolver_profiles WHERE address = $1`,
		addr.Bytes(),
	).Scan(&resolved, &volume, &lost, &correct, &repu, &p.Trusted)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ResolverProfile{Address: addr}, nil
		}
		return domain.ResolverProfile{}, fmt.Errorf("postgres: get resolver profile: %w", err)
	}
	p.Address = addr
	p.MarketsResolved = uint64(resolved)
	p.TotalVolume = uint64(volume)
	p.DisputesLost = uint64(lost)
	p.CorrectResolutions = uint64(correct)
	p.Reputation = uint32(repu)
	return p, nil
}

func (t *ledgerTx) PutResolverProfile(ctx context.Context, p domain.ResolverProfile) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO resolver_profiles (address, markets_resolved, total_volume, disputes_lost, correct_resolutions, reputation, trusted)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (address) DO UPDATE SET
			markets_resolved = EXCLUDED.markets_resolved,
			total_volume = EXCLUDED.total_volume,
			disputes_lost = EXCLUDED.disputes_lost,
			correct_resolutions = EXCLUDED.correct_resolutions,
			reputation = EXCLUDED.reputation,
			trusted = EXCLUDED.trusted`,
		p.Address.Bytes(), int64(p.MarketsResolved), int64(p.TotalVolume),
		int64(p.DisputesLost), int64(p.CorrectResolutions), int32(p.Reputation), p.Trusted,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert resolver profile: %w", err)
	}
	return nil
}

func (t *ledgerTx) GetUserProfile(ctx context.Context, addr common.Address) (domain.UserProfile, error) {
	var (
		p                                         domain.UserProfile
		wagered, won, lost, participated, mWon    int64
		curStreak, bestStreak, winRate            int32
	)
	err := t.tx.QueryRow(ctx, `
		SELECT total_wagered, total_won, total_lost, markets_participated, markets_won,
		       current_streak, best_streak, win_rate_bps
		FROM user_profiles WHERE address = $1`,
		addr.Bytes(),
	).Scan(&wagered, &won, &lost, &participated, &mWon, &curStreak, &bestStreak, &winRate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.UserProfile{Address: addr}, nil
		}
		return domain.UserProfile{}, fmt.Errorf("postgres: get user profile: %w", err)
	}
	p.Address = addr
	p.TotalWagered = uint64(wagered)
	p.TotalWon = uint64(won)
	p.TotalLost = uint64(lost)
	p.MarketsParticipated = uint64(participated)
	p.MarketsWon = uint64(mWon)
	p.CurrentStreak = uint32(curStreak)
	p.BestStreak = uint32(bestStreak)
	p.WinRateBps = uint32(winRate)
	return p, nil
}

func (t *ledgerTx) PutUserProfile(ctx context.Context, p domain.UserProfile) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO user_profiles (address, total_wagered, total_won, total_lost,
			markets_participated, markets_won, current_streak, best_streak, win_rate_bps)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (address) DO UPDATE SET
			total_wagered = EXCLUDED.total_wagered,
			total_won = EXCLUDED.total_won,
			total_lost = EXCLUDED.total_lost,
			markets_participated = EXCLUDED.markets_participated,
			markets_won = EXCLUDED.markets_won,
			current_streak = EXCLUDED.current_streak,
			best_streak = EXCLUDED.best_streak,
			win_rate_bps = EXCLUDED.win_rate_bps`,
		p.Address.Bytes(), int64(p.TotalWagered), int64(p.TotalWon), int64(p.TotalLost),
		int64(p.MarketsParticipated), int64(p.MarketsWon),
		int32(p.CurrentStreak), int32(p.BestStreak), int32(p.WinRateBps),
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert user profile: %w", err)
	}
	return nil
}
