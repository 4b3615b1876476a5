package notify

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyforge/marketd/internal/domain"
)

// memorySender records delivered notifications.
type memorySender struct {
	mu   sync.Mutex
	sent []string
}

func (s *memorySender) Send(_ context.Context, title, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, title+"|"+message)
	return nil
}

func (s *memorySender) Name() string { return "memory" }

func (s *memorySender) titles() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.sent))
	copy(out, s.sent)
	return out
}

// chanBus is an in-process SignalBus for testing the relay.
type chanBus struct {
	mu   sync.Mutex
	subs map[string][]chan []byte
}

func newChanBus() *chanBus {
	return &chanBus{subs: make(map[string][]chan []byte)}
}

func (b *chanBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs[channel] {
		ch <- payload
	}
	return nil
}

func (b *chanBus) Subscribe(_ context.Context, channel string) (<-chan []byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan []byte, 16)
	b.subs[channel] = append(b.subs[channel], ch)
	return ch, nil
}

func (b *chanBus) StreamAppend(context.Context, string, []byte) error { return nil }

func (b *chanBus) StreamRead(context.Context, string, string, int) ([]domain.StreamMessage, error) {
	return nil, nil
}

func publishEvent(t *testing.T, bus *chanBus, ev domain.Event) {
	t.Helper()
	payload, err := json.Marshal(ev)
	require.NoError(t, err)
	require.NoError(t, bus.Publish(context.Background(), ev.Type.Channel(), payload))
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestRelayForwardsLifecycleEvents(t *testing.T) {
	bus := newChanBus()
	sender := &memorySender{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	notifier := NewNotifier([]Sender{sender}, nil, logger)
	relay := NewRelay(bus, notifier, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go relay.Run(ctx)

	// Give the subscriber goroutines a moment to attach.
	waitFor(t, func() bool {
		bus.mu.Lock()
		defer bus.mu.Unlock()
		return len(bus.subs["ch:market"]) == 1 && len(bus.subs["ch:dispute"]) == 1
	})

	publishEvent(t, bus, domain.Event{
		Type:     domain.EventMarketResolved,
		MarketID: "m1",
		At:       time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Data:     map[string]any{"winning_outcome": 1},
	})
	publishEvent(t, bus, domain.Event{
		Type:     domain.EventMarketDisputed,
		MarketID: "m1",
		At:       time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC),
	})

	waitFor(t, func() bool { return len(sender.titles()) == 2 })

	// The two channels are consumed concurrently, so arrival order is not
	// guaranteed.
	joined := ""
	for _, s := range sender.titles() {
		joined += s + "\n"
	}
	assert.Contains(t, joined, "Market resolved")
	assert.Contains(t, joined, "m1")
	assert.Contains(t, joined, "winning_outcome")
	assert.Contains(t, joined, "Resolution disputed")
}

func TestRelayRespectsEventFilter(t *testing.T) {
	bus := newChanBus()
	sender := &memorySender{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	notifier := NewNotifier([]Sender{sender}, []string{string(domain.EventMarketCancelled)}, logger)
	relay := NewRelay(bus, notifier, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go relay.Run(ctx)

	waitFor(t, func() bool {
		bus.mu.Lock()
		defer bus.mu.Unlock()
		return len(bus.subs["ch:market"]) == 1
	})

	publishEvent(t, bus, domain.Event{Type: domain.EventMarketResolved, MarketID: "m2"})
	publishEvent(t, bus, domain.Event{Type: domain.EventMarketCancelled, MarketID: "m2"})

	waitFor(t, func() bool { return len(sender.titles()) == 1 })
	assert.Contains(t, sender.titles()[0], "Market cancelled")
}

func TestNotifierCollectsSenderFailures(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	good := &memorySender{}
	n := NewNotifier([]Sender{failingSender{}, good}, nil, logger)

	err := n.NotifyAll(context.Background(), "title", "body")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Len(t, good.titles(), 1, "failure of one sender does not block others")
}

func TestNotifierFamilyWildcardFilter(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sender := &memorySender{}
	n := NewNotifier([]Sender{sender}, []string{"dispute.*"}, logger)

	require.NoError(t, n.Notify(context.Background(), "dispute.filed", "filed", "x"))
	require.NoError(t, n.Notify(context.Background(), "dispute.resolved", "resolved", "x"))
	require.NoError(t, n.Notify(context.Background(), "market.resolved", "ignored", "x"))

	assert.Len(t, sender.titles(), 2)
}

type failingSender struct{}

func (failingSender) Send(context.Context, string, string) error {
	return context.DeadlineExceeded
}

func (failingSender) Name() string { return "broken" }
