package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/colonyforge/marketd/internal/domain"
)

// Shared fakes for the service suites. The ledger itself is the real
// in-memory implementation; everything external is faked here.

type fakeLocks struct {
	mu   sync.Mutex
	held map[string]bool
}

func newFakeLocks() *fakeLocks {
	return &fakeLocks{held: make(map[string]bool)}
}

func (l *fakeLocks) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return nil, domain.ErrLockHeld
	}
	l.held[key] = true
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, key)
	}, nil
}

type fakeCache struct {
	mu      sync.Mutex
	entries map[string]domain.Market
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]domain.Market)}
}

func (c *fakeCache) Get(ctx context.Context, id string) (domain.Market, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.entries[id]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return m, nil
}

func (c *fakeCache) Set(ctx context.Context, m domain.Market) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[m.ID] = m
	return nil
}

func (c *fakeCache) Invalidate(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
	return nil
}

type railCall struct {
	Dir    string // "collect" or "transfer"
	Who    common.Address
	Amount uint64
	Tag    string
}

type fakeRail struct {
	mu    sync.Mutex
	calls []railCall
	fail  bool
}

func (r *fakeRail) CollectFee(ctx context.Context, payer common.Address, amount uint64, tag string) error {
	return r.record("collect", payer, amount, tag)
}

func (r *fakeRail) TransferFromTreasury(ctx context.Context, recipient common.Address, amount uint64, tag string) error {
	return r.record("transfer", recipient, amount, tag)
}

func (r *fakeRail) record(dir string, who common.Address, amount uint64, tag string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return domain.ErrPaymentFailed
	}
	r.calls = append(r.calls, railCall{Dir: dir, Who: who, Amount: amount, Tag: tag})
	return nil
}

func (r *fakeRail) transferred(tag string) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var total uint64
	for _, c := range r.calls {
		if c.Dir == "transfer" && c.Tag == tag {
			total += c.Amount
		}
	}
	return total
}

type fakeOracle struct {
	level uint32
	err   error
}

func (o *fakeOracle) BestStakedLevel(ctx context.Context, user common.Address) (uint32, error) {
	if o.err != nil {
		return 0, o.err
	}
	return o.level, nil
}

type fakeAuth struct {
	creators map[common.Address]bool
	admins   map[common.Address]bool
	paused   bool
}

func newFakeAuth(creators ...common.Address) *fakeAuth {
	a := &fakeAuth{
		creators: make(map[common.Address]bool),
		admins:   make(map[common.Address]bool),
	}
	for _, c := range creators {
		a.creators[c] = true
	}
	return a
}

func (a *fakeAuth) CanCreateMarkets(addr common.Address) bool { return a.creators[addr] }
func (a *fakeAuth) IsAdmin(addr common.Address) bool          { return a.admins[addr] }
func (a *fakeAuth) Paused() bool                              { return a.paused }

type fakeBus struct {
	mu       sync.Mutex
	messages map[string][][]byte
}

func newFakeBus() *fakeBus {
	return &fakeBus{messages: make(map[string][][]byte)}
}

func (b *fakeBus) Publish(ctx context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages[channel] = append(b.messages[channel], payload)
	return nil
}

func (b *fakeBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	ch := make(chan []byte)
	close(ch)
	return ch, nil
}

func (b *fakeBus) StreamAppend(ctx context.Context, stream string, payload []byte) error {
	return nil
}

func (b *fakeBus) StreamRead(ctx context.Context, stream, lastID string, count int) ([]domain.StreamMessage, error) {
	return nil, nil
}

func (b *fakeBus) published(channel string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.messages[channel])
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSettings() Settings {
	s := DefaultSettings()
	s.MaxCreatorFeeBps = 500
	s.ProtocolFeeBps = 200
	s.BonusPerLevelBps = 250
	s.SwapFeeBps = 30
	return s
}

func addr(b byte) common.Address {
	var a common.Address
	a[19] = b
	return a
}
