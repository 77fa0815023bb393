// Package stream serializes the events of all concurrently running
// tasks of a turn into one ordered output sequence, and keeps that
// sequence alive with heartbeats while generations are in flight.
//
// It provides best-effort delivery with no guarantees regarding
// durability or retries: once the sink is observed closed, every
// further emission is a silent no-op. Correctness is restored by the
// reconciliation read path, not by the stream.
package stream

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"panel-lab/contract"
	"panel-lab/domain/event"
)

// Sink handle states. The transition is a one-way latch: once a write
// attempt fails, or Close runs, the state never returns to open.
const (
	stateOpen int32 = iota
	stateClosing
	stateClosed
)

// Multiplexer wraps the raw output sink with a SafeEmit operation that
// never returns an error and never blocks past the emit timeout.
// Safe for concurrent use by all tasks of one turn.
type Multiplexer struct {
	mu    sync.Mutex
	log   *slog.Logger
	sink  contract.EventSink
	state atomic.Int32

	emitTimeout     time.Duration
	heartbeatEvery  time.Duration
	cancelHeartbeat context.CancelFunc
	heartbeatDone   chan struct{}
	closeOnce       sync.Once
}

func NewMultiplexer(log *slog.Logger, sink contract.EventSink,
	heartbeatEvery, emitTimeout time.Duration) *Multiplexer {
	return &Multiplexer{
		log:            log,
		sink:           sink,
		emitTimeout:    emitTimeout,
		heartbeatEvery: heartbeatEvery,
		heartbeatDone:  make(chan struct{}),
	}
}

// StartHeartbeat emits keep-alive frames while the sequence is open,
// independent of task activity. The ticker is tied to ctx and to the
// multiplexer lifetime; Close cancels it exactly once.
func (m *Multiplexer) StartHeartbeat(ctx context.Context) {
	heartbeatCtx, cancel := context.WithCancel(ctx)
	m.cancelHeartbeat = cancel

	go func() {
		defer close(m.heartbeatDone)
		ticker := time.NewTicker(m.heartbeatEvery)
		defer ticker.Stop()
		for {
			select {
			case <-heartbeatCtx.Done():
				return
			case <-ticker.C:
				m.SafeEmit(heartbeatCtx, event.Heartbeat{})
			}
		}
	}()
}

// SafeEmit pushes one event to the sink. It is a no-op once the sink
// has been observed closed; a failed write latches the closed state so
// later calls skip the write entirely instead of rediscovering the
// failure.
func (m *Multiplexer) SafeEmit(ctx context.Context, e event.StreamEvent) {
	if m.state.Load() != stateOpen {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Load() != stateOpen {
		return
	}

	emitCtx, cancel := context.WithTimeout(ctx, m.emitTimeout)
	defer cancel()

	if err := m.sink.Emit(emitCtx, e); err != nil {
		if m.state.CompareAndSwap(stateOpen, stateClosed) {
			m.log.Warn("Output sink lost, muting further emissions",
				"event", string(e.Kind()), "error", err)
		}
	}
}

// Closed reports whether the latch has tripped.
func (m *Multiplexer) Closed() bool {
	return m.state.Load() == stateClosed
}

// Close cancels the heartbeat, drains it, and closes the underlying
// sink. Idempotent; used on both normal completion and teardown after
// a transport failure.
func (m *Multiplexer) Close() {
	m.closeOnce.Do(func() {
		if m.cancelHeartbeat != nil {
			m.cancelHeartbeat()
			<-m.heartbeatDone
		}
		m.state.CompareAndSwap(stateOpen, stateClosing)

		m.mu.Lock()
		defer m.mu.Unlock()
		m.state.Store(stateClosed)
		if err := m.sink.Close(); err != nil {
			m.log.Debug("Sink close failed", "error", err)
		}
	})
}
