// Package memory implements the domain.Ledger interface entirely in memory.
// It backs the service test suites and mirrors the SQL ledger's atomicity
// contract: Update snapshots the state and restores it when the transaction
// function fails, so no partial writes are ever observable. A single mutex
// serializes all transactions, which also provides the engine's total
// ordering guarantee.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/colonyforge/marketd/internal/domain"
)

type state struct {
	markets      map[string]domain.Market
	positions    map[string]map[common.Address]domain.Position
	pools        map[string]domain.AMMPool
	lpPositions  map[string]map[common.Address]domain.LPPosition
	disputes     map[string][]domain.Dispute
	votes        map[string]map[common.Address]domain.DisputeVote
	resolvers    map[common.Address]domain.ResolverProfile
	users        map[common.Address]domain.UserProfile
	stakeLevels  map[common.Address]uint32
	protocolFees uint64
	audit        []domain.AuditEntry
	auditSeq     int64
}

func newState() *state {
	return &state{
		markets:     make(map[string]domain.Market),
		positions:   make(map[string]map[common.Address]domain.Position),
		pools:       make(map[string]domain.AMMPool),
		lpPositions: make(map[string]map[common.Address]domain.LPPosition),
		disputes:    make(map[string][]domain.Dispute),
		votes:       make(map[string]map[common.Address]domain.DisputeVote),
		resolvers:   make(map[common.Address]domain.ResolverProfile),
		users:       make(map[common.Address]domain.UserProfile),
		stakeLevels: make(map[common.Address]uint32),
	}
}

// Store is an in-memory ledger.
type Store struct {
	mu sync.Mutex
	st *state
}

// New creates an empty in-memory ledger.
func New() *Store {
	return &Store{st: newState()}
}

// Update runs fn under the store mutex against a working copy of the state.
// The copy replaces the live state only when fn succeeds.
func (s *Store) Update(ctx context.Context, fn func(tx domain.LedgerTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	working := s.st.clone()
	if err := fn(&tx{st: working}); err != nil {
		return err
	}
	s.st = working
	return nil
}

// View runs fn against a copy of the state, so fn can never mutate the store.
func (s *Store) View(ctx context.Context, fn func(tx domain.LedgerTx) error) error {
	s.mu.Lock()
	snapshot := s.st.clone()
	s.mu.Unlock()
	return fn(&tx{st: snapshot})
}

// Close is a no-op for the in-memory ledger.
func (s *Store) Close() {}

// Compile-time interface check.
var _ domain.Ledger = (*Store)(nil)

// tx implements domain.LedgerTx over a private state copy.
type tx struct {
	st *state
}

func (t *tx) GetMarket(_ context.Context, id string) (domain.Market, error) {
	m, ok := t.st.markets[id]
	if !ok {
		return domain.Market{}, fmt.Errorf("memory: market %s: %w", id, domain.ErrNotFound)
	}
	return cloneMarket(m), nil
}

func (t *tx) PutMarket(_ context.Context, m domain.Market) error {
	t.st.markets[m.ID] = cloneMarket(m)
	return nil
}

func (t *tx) ListMarketsByStatus(_ context.Context, status domain.MarketStatus, opts domain.ListOpts) ([]domain.Market, error) {
	var out []domain.Market
	for _, m := range t.st.markets {
		if m.Status == status {
			out = append(out, cloneMarket(m))
		}
	}
	sortMarkets(out)
	return paginate(out, opts), nil
}

func (t *tx) ListMarketsSettledBefore(_ context.Context, cutoff time.Time) ([]domain.Market, error) {
	var out []domain.Market
	for _, m := range t.st.markets {
		if m.Settled(cutoff) && m.UpdatedAt.Before(cutoff) {
			out = append(out, cloneMarket(m))
		}
	}
	sortMarkets(out)
	return out, nil
}

func (t *tx) CountMarkets(_ context.Context) (int64, error) {
	return int64(len(t.st.markets)), nil
}

func (t *tx) GetPosition(_ context.Context, marketID string, user common.Address) (domain.Position, error) {
	p, ok := t.st.positions[marketID][user]
	if !ok {
		return domain.Position{}, fmt.Errorf("memory: position %s/%s: %w", marketID, user.Hex(), domain.ErrNotFound)
	}
	return clonePosition(p), nil
}

func (t *tx) PutPosition(_ context.Context, p domain.Position) error {
	byUser, ok := t.st.positions[p.MarketID]
	if !ok {
		byUser = make(map[common.Address]domain.Position)
		t.st.positions[p.MarketID] = byUser
	}
	byUser[p.User] = clonePosition(p)
	return nil
}

func (t *tx) ListPositions(_ context.Context, marketID string) ([]domain.Position, error) {
	var out []domain.Position
	for _, p := range t.st.positions[marketID] {
		out = append(out, clonePosition(p))
	}
	return out, nil
}

func (t *tx) GetPool(_ context.Context, marketID string) (domain.AMMPool, error) {
	p, ok := t.st.pools[marketID]
	if !ok {
		return domain.AMMPool{}, fmt.Errorf("memory: pool %s: %w", marketID, domain.ErrNotFound)
	}
	return clonePool(p), nil
}

func (t *tx) PutPool(_ context.Context, pool domain.AMMPool) error {
	t.st.pools[pool.MarketID] = clonePool(pool)
	return nil
}

func (t *tx) GetLPPosition(_ context.Context, marketID string, provider common.Address) (domain.LPPosition, error) {
	lp, ok := t.st.lpPositions[marketID][provider]
	if !ok {
		return domain.LPPosition{}, fmt.Errorf("memory: lp position %s/%s: %w", marketID, provider.Hex(), domain.ErrNotFound)
	}
	return lp, nil
}

func (t *tx) PutLPPosition(_ context.Context, lp domain.LPPosition) error {
	byProvider, ok := t.st.lpPositions[lp.MarketID]
	if !ok {
		byProvider = make(map[common.Address]domain.LPPosition)
		t.st.lpPositions[lp.MarketID] = byProvider
	}
	byProvider[lp.Provider] = lp
	return nil
}

func (t *tx) GetDispute(_ context.Context, marketID string, index int) (domain.Dispute, error) {
	list := t.st.disputes[marketID]
	if index < 0 || index >= len(list) {
		return domain.Dispute{}, fmt.Errorf("memory: dispute %s/%d: %w", marketID, index, domain.ErrNotFound)
	}
	return list[index], nil
}

func (t *tx) PutDispute(_ context.Context, d domain.Dispute) error {
	list := t.st.disputes[d.MarketID]
	if d.Index == len(list) {
		t.st.disputes[d.MarketID] = append(list, d)
		return nil
	}
	if d.Index < 0 || d.Index > len(list) {
		return fmt.Errorf("memory: dispute %s/%d: %w", d.MarketID, d.Index, domain.ErrNotFound)
	}
	list[d.Index] = d
	return nil
}

func (t *tx) ListDisputes(_ context.Context, marketID string) ([]domain.Dispute, error) {
	list := t.st.disputes[marketID]
	out := make([]domain.Dispute, len(list))
	copy(out, list)
	return out, nil
}

func (t *tx) HasVoted(_ context.Context, marketID string, index int, voter common.Address) (bool, error) {
	_, ok := t.st.votes[voteKey(marketID, index)][voter]
	return ok, nil
}

func (t *tx) RecordVote(_ context.Context, v domain.DisputeVote) error {
	key := voteKey(v.MarketID, v.DisputeIndex)
	byVoter, ok := t.st.votes[key]
	if !ok {
		byVoter = make(map[common.Address]domain.DisputeVote)
		t.st.votes[key] = byVoter
	}
	byVoter[v.Voter] = v
	return nil
}

func (t *tx) GetResolverProfile(_ context.Context, addr common.Address) (domain.ResolverProfile, error) {
	p, ok := t.st.resolvers[addr]
	if !ok {
		return domain.ResolverProfile{Address: addr}, nil
	}
	return p, nil
}

func (t *tx) PutResolverProfile(_ context.Context, p domain.ResolverProfile) error {
	t.st.resolvers[p.Address] = p
	return nil
}

func (t *tx) GetUserProfile(_ context.Context, addr common.Address) (domain.UserProfile, error) {
	p, ok := t.st.users[addr]
	if !ok {
		return domain.UserProfile{Address: addr}, nil
	}
	return p, nil
}

func (t *tx) PutUserProfile(_ context.Context, p domain.UserProfile) error {
	t.st.users[p.Address] = p
	return nil
}

func (t *tx) AccrueProtocolFees(_ context.Context, amount uint64) error {
	t.st.protocolFees += amount
	return nil
}

func (t *tx) ProtocolFeesAccrued(_ context.Context) (uint64, error) {
	return t.st.protocolFees, nil
}

func (t *tx) StakedLevel(_ context.Context, addr common.Address) (uint32, error) {
	return t.st.stakeLevels[addr], nil
}

func (t *tx) SetStakedLevel(_ context.Context, addr common.Address, level uint32) error {
	t.st.stakeLevels[addr] = level
	return nil
}

func (t *tx) AppendAudit(_ context.Context, op string, detail map[string]any) error {
	t.st.auditSeq++
	t.st.audit = append(t.st.audit, domain.AuditEntry{
		ID:        t.st.auditSeq,
		Op:        op,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

func voteKey(marketID string, index int) string {
	return fmt.Sprintf("%s/%d", marketID, index)
}

func paginate(markets []domain.Market, opts domain.ListOpts) []domain.Market {
	if opts.Offset > 0 {
		if opts.Offset >= len(markets) {
			return nil
		}
		markets = markets[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(markets) {
		markets = markets[:opts.Limit]
	}
	return markets
}
