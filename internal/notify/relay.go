package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/colonyforge/marketd/internal/domain"
)

// Relay subscribes to the engine's signal-bus channels and forwards selected
// events to the notifier. It is the bridge between committed ledger events
// and operator alerting; delivery failures never propagate back to the
// engine.
type Relay struct {
	bus      domain.SignalBus
	notifier *Notifier
	logger   *slog.Logger
}

// NewRelay creates a Relay feeding the given notifier.
func NewRelay(bus domain.SignalBus, notifier *Notifier, logger *slog.Logger) *Relay {
	return &Relay{
		bus:      bus,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "notify_relay")),
	}
}

// relayChannels are the signal-bus channels the relay listens on. Bet and AMM
// traffic is high-volume and operator-irrelevant, so only lifecycle and
// dispute channels are subscribed.
var relayChannels = []string{"ch:market", "ch:dispute"}

// Run subscribes to the relay channels and forwards events until ctx is
// cancelled.
func (r *Relay) Run(ctx context.Context) error {
	for _, channel := range relayChannels {
		ch, err := r.bus.Subscribe(ctx, channel)
		if err != nil {
			return fmt.Errorf("notify: subscribe %s: %w", channel, err)
		}
		go r.consume(ctx, channel, ch)
	}
	<-ctx.Done()
	return ctx.Err()
}

func (r *Relay) consume(ctx context.Context, channel string, ch <-chan []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-ch:
			if !ok {
				return
			}
			r.handle(ctx, channel, payload)
		}
	}
}

func (r *Relay) handle(ctx context.Context, channel string, payload []byte) {
	var ev domain.Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		r.logger.WarnContext(ctx, "notify_relay: malformed event",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
		return
	}

	title, message := formatEvent(ev)
	if err := r.notifier.Notify(ctx, string(ev.Type), title, message); err != nil {
		r.logger.WarnContext(ctx, "notify_relay: delivery failed",
			slog.String("event", string(ev.Type)),
			slog.String("market_id", ev.MarketID),
			slog.String("error", err.Error()),
		)
	}
}

// formatEvent renders a domain event into a notification title and body.
func formatEvent(ev domain.Event) (title, message string) {
	switch ev.Type {
	case domain.EventMarketCreated:
		title = "Market created"
	case domain.EventMarketLocked:
		title = "Market locked"
	case domain.EventMarketResolved:
		title = "Market resolved"
	case domain.EventMarketCancelled:
		title = "Market cancelled"
	case domain.EventMarketDisputed:
		title = "Resolution disputed"
	case domain.EventDisputeResolved:
		title = "Dispute resolved"
	default:
		title = string(ev.Type)
	}

	message = fmt.Sprintf("market %s at %s", ev.MarketID, ev.At.Format("2006-01-02 15:04:05 MST"))
	if len(ev.Data) > 0 {
		if detail, err := json.Marshal(ev.Data); err == nil {
			message += "\n" + string(detail)
		}
	}
	return title, message
}
