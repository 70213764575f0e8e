// Package bookkeeper keeps the latest order book snapshot per
// (exchange, pair) for operational visibility and optionally mirrors
// top-of-book to Redis for external consoles. It never feeds back into the
// decision pipeline.
package bookkeeper

import (
	"context"
	"log/slog"
	"sync"

	"github.com/quanthawk/arbot/internal/bus"
	"github.com/quanthawk/arbot/internal/domain"
)

// TopOfBookMirror receives best levels for external observers. Implemented by
// the Redis book mirror; nil disables mirroring.
type TopOfBookMirror interface {
	SetTopOfBook(ctx context.Context, snap domain.OrderBookSnapshot) error
}

type bookKey struct {
	Exchange domain.Exchange
	Pair     domain.Pair
}

// Bookkeeper is an OrderBookBus handler running alongside the engine.
type Bookkeeper struct {
	mu     sync.RWMutex
	latest map[bookKey]domain.OrderBookSnapshot
	mirror TopOfBookMirror
	logger *slog.Logger
}

// New creates a Bookkeeper. mirror may be nil.
func New(mirror TopOfBookMirror, logger *slog.Logger) *Bookkeeper {
	return &Bookkeeper{
		latest: make(map[bookKey]domain.OrderBookSnapshot),
		mirror: mirror,
		logger: logger.With(slog.String("component", "bookkeeper")),
	}
}

// Name implements bus.Handler.
func (b *Bookkeeper) Name() string { return "bookkeeper" }

// OnEvent records the snapshot and mirrors its best levels. Mirror failures
// are logged and dropped; the mirror is best-effort by design.
func (b *Bookkeeper) OnEvent(ctx context.Context, ev bus.Event[domain.OrderBookSnapshot]) {
	snap := ev.Payload

	b.mu.Lock()
	b.latest[bookKey{snap.Exchange, snap.Pair}] = snap
	b.mu.Unlock()

	if b.mirror == nil {
		return
	}
	if err := b.mirror.SetTopOfBook(ctx, snap); err != nil {
		b.logger.Warn("top-of-book mirror failed",
			slog.String("exchange", string(snap.Exchange)),
			slog.String("pair", snap.Pair.String()),
			slog.String("error", err.Error()),
		)
	}
}

// Latest returns the most recent snapshot for (exchange, pair), if any.
func (b *Bookkeeper) Latest(exchange domain.Exchange, pair domain.Pair) (domain.OrderBookSnapshot, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	snap, ok := b.latest[bookKey{exchange, pair}]
	return snap, ok
}

var _ bus.Handler[domain.OrderBookSnapshot] = (*Bookkeeper)(nil)
