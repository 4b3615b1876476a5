package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/colonyforge/marketd/internal/domain"
)

// Publisher fans committed engine events out to the signal bus: an ephemeral
// publish for live consumers plus a durable stream append for replay.
// Publication happens after the ledger transaction commits and is never
// fatal; bus failures are logged and dropped.
type Publisher struct {
	bus    domain.SignalBus
	logger *slog.Logger
}

// NewPublisher creates a Publisher over the given signal bus.
func NewPublisher(bus domain.SignalBus, logger *slog.Logger) *Publisher {
	return &Publisher{bus: bus, logger: logger}
}

// Emit publishes an event on the channel its type maps to.
func (p *Publisher) Emit(ctx context.Context, typ domain.EventType, marketID string, data map[string]any) {
	ev := domain.Event{
		Type:     typ,
		MarketID: marketID,
		At:       time.Now().UTC(),
		Data:     data,
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		p.logger.ErrorContext(ctx, "publisher: marshal event",
			slog.String("type", string(typ)),
			slog.String("error", err.Error()),
		)
		return
	}

	channel := typ.Channel()
	if err := p.bus.Publish(ctx, channel, payload); err != nil {
		p.logger.WarnContext(ctx, "publisher: publish failed",
			slog.String("channel", channel),
			slog.String("type", string(typ)),
			slog.String("error", err.Error()),
		)
	}
	if err := p.bus.StreamAppend(ctx, "stream:"+channel, payload); err != nil {
		p.logger.WarnContext(ctx, "publisher: stream append failed",
			slog.String("channel", channel),
			slog.String("type", string(typ)),
			slog.String("error", err.Error()),
		)
	}
}
