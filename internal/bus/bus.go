// Package bus provides the bounded, sequenced event channels that connect the
// pipeline stages: market-data feeds -> matching engine and matching engine ->
// trade publisher. A Bus delivers every event to every registered handler in
// a single global order, isolates handler failures, and applies a
// spin-then-sleep backoff to producers when the buffer is full.
package bus

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/quanthawk/arbot/internal/domain"
)

// Event wraps a payload with its globally unique, strictly increasing
// sequence number.
type Event[T any] struct {
	Seq     uint64
	Payload T
}

// Handler consumes events from a Bus. Handlers for one bus run on the bus's
// dispatch goroutine and therefore observe events in sequence order.
type Handler[T any] interface {
	Name() string
	OnEvent(ctx context.Context, ev Event[T])
}

// Bus is a bounded multi-producer broadcast channel. Publish is safe for
// concurrent use; delivery order is the global publish order across all
// producers, not a per-key order.
type Bus[T any] struct {
	name     string
	ch       chan Event[T]
	handlers []Handler[T]
	logger   *slog.Logger

	mu     sync.Mutex // serialises seq assignment + enqueue, guards closed
	seq    uint64
	closed bool

	done chan struct{}
}

// waitStrategy is the producer backoff applied when the buffer is full:
// a bounded busy-wait escalating to short sleeps, capped at maxSleep.
type waitStrategy struct {
	spins    int
	sleep    time.Duration
	maxSleep time.Duration
}

func defaultWaitStrategy() waitStrategy {
	return waitStrategy{spins: 100, sleep: 50 * time.Microsecond, maxSleep: time.Millisecond}
}

// wait performs the n-th consecutive failed-publish backoff step.
func (w waitStrategy) wait(n int) {
	if n < w.spins {
		runtime.Gosched()
		return
	}
	d := w.sleep << uint(min(n-w.spins, 16))
	if d > w.maxSleep || d <= 0 {
		d = w.maxSleep
	}
	time.Sleep(d)
}

// New creates a Bus with the given buffer capacity and handler chain. Start
// must be called before events are delivered.
func New[T any](name string, capacity int, logger *slog.Logger, handlers ...Handler[T]) *Bus[T] {
	if capacity <= 0 {
		capacity = 1024
	}
	return &Bus[T]{
		name:     name,
		ch:       make(chan Event[T], capacity),
		handlers: handlers,
		logger:   logger.With(slog.String("component", "bus"), slog.String("bus", name)),
		done:     make(chan struct{}),
	}
}

// Start launches the dispatch goroutine. ctx is passed through to handlers;
// cancelling it does not stop delivery (use Shutdown), it only signals
// handlers that downstream work should wind down.
func (b *Bus[T]) Start(ctx context.Context) {
	go b.dispatch(ctx)
	b.logger.Info("bus started", slog.Int("capacity", cap(b.ch)), slog.Int("handlers", len(b.handlers)))
}

// Publish enqueues an event, assigning it the next global sequence number.
// When the buffer is full the calling producer backs off with the bus's wait
// strategy until capacity frees. Returns ErrBusClosed after Shutdown.
func (b *Bus[T]) Publish(payload T) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return domain.ErrBusClosed
	}
	b.seq++
	ev := Event[T]{Seq: b.seq, Payload: payload}

	ws := defaultWaitStrategy()
	for n := 0; ; n++ {
		select {
		case b.ch <- ev:
			return nil
		default:
			ws.wait(n)
		}
	}
}

// Shutdown stops accepting publishes, waits for buffered events to be
// delivered, and then stops the dispatch goroutine. Safe to call once.
func (b *Bus[T]) Shutdown() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	close(b.ch)
	b.mu.Unlock()

	<-b.done
	b.logger.Info("bus shut down", slog.Uint64("last_seq", b.seq))
}

func (b *Bus[T]) dispatch(ctx context.Context) {
	defer close(b.done)
	for ev := range b.ch {
		for _, h := range b.handlers {
			b.invoke(ctx, h, ev)
		}
	}
}

// invoke runs one handler for one event, converting panics into log records
// so a poisoned event cannot halt the bus.
func (b *Bus[T]) invoke(ctx context.Context, h Handler[T], ev Event[T]) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("handler panicked, continuing with next event",
				slog.String("handler", h.Name()),
				slog.Uint64("seq", ev.Seq),
				slog.Any("panic", r),
			)
		}
	}()
	h.OnEvent(ctx, ev)
}
