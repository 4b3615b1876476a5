package service

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/colonyforge/marketd/internal/domain"
)

// ProfileService exposes the read-only profile surface: lifetime bettor
// statistics, resolver track records, and the accrued protocol fee counter.
type ProfileService struct {
	ledger domain.Ledger
}

// NewProfileService creates a ProfileService over the given ledger.
func NewProfileService(ledger domain.Ledger) *ProfileService {
	return &ProfileService{ledger: ledger}
}

// GetUserProfile returns a user's lifetime statistics. Users with no history
// get a zero-valued profile.
func (s *ProfileService) GetUserProfile(ctx context.Context, addr common.Address) (domain.UserProfile, error) {
	var p domain.UserProfile
	err := s.ledger.View(ctx, func(tx domain.LedgerTx) error {
		var err error
		p, err = tx.GetUserProfile(ctx, addr)
		return err
	})
	if err != nil {
		return domain.UserProfile{}, fmt.Errorf("profile_service: get user profile: %w", err)
	}
	return p, nil
}

// GetResolverProfile returns a resolver's track record.
func (s *ProfileService) GetResolverProfile(ctx context.Context, addr common.Address) (domain.ResolverProfile, error) {
	var p domain.ResolverProfile
	err := s.ledger.View(ctx, func(tx domain.LedgerTx) error {
		var err error
		p, err = tx.GetResolverProfile(ctx, addr)
		return err
	})
	if err != nil {
		return domain.ResolverProfile{}, fmt.Errorf("profile_service: get resolver profile: %w", err)
	}
	return p, nil
}

// ProtocolFeesAccrued returns the running protocol fee counter.
func (s *ProfileService) ProtocolFeesAccrued(ctx context.Context) (uint64, error) {
	var accrued uint64
	err := s.ledger.View(ctx, func(tx domain.LedgerTx) error {
		var err error
		accrued, err = tx.ProtocolFeesAccrued(ctx)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("profile_service: protocol fees accrued: %w", err)
	}
	return accrued, nil
}
