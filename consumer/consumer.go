// Package consumer maintains a client-side view of a session from the
// push stream: who is typing, which responses arrived, whether the
// turn settled. The view is advisory until reconciled against the
// transcript store.
package consumer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"panel-lab/domain"
	"panel-lab/domain/event"
	"panel-lab/projection"
)

// TypingInfo is the display state of one participant currently typing.
type TypingInfo struct {
	Name      string
	Color     string
	AvatarRef string
	Since     time.Time
}

// View is a snapshot of the consumer state for rendering.
type View struct {
	Typing   []TypingInfo
	Timeline []domain.TranscriptEntry
	Errors   []event.Error
	Stats    *event.CompletionStats
	Settled  bool
}

// Consumer applies push events to local state and repairs that state
// against the store when the turn settles or the stream drops. Safe for
// one reader goroutine plus concurrent View callers.
type Consumer struct {
	mu         sync.Mutex
	log        *slog.Logger
	sessionID  string
	reconciler projection.Reconciler

	typing   map[string]TypingInfo
	timeline []domain.TranscriptEntry
	errors   []event.Error
	stats    *event.CompletionStats
	settled  bool
}

func NewConsumer(log *slog.Logger, sessionID string, reconciler projection.Reconciler) *Consumer {
	return &Consumer{
		log:        log,
		sessionID:  sessionID,
		reconciler: reconciler,
		typing:     make(map[string]TypingInfo),
	}
}

// SeedUserEntry records the user's own message locally so the timeline
// has its split anchor before any push event arrives. It also resets
// the per-turn state: the previous turn's settled flag must not leak
// into the new stream.
func (c *Consumer) SeedUserEntry(content string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.settled = false
	c.stats = nil
	c.timeline = append(c.timeline, domain.TranscriptEntry{
		ID:        uuid.New(),
		SessionID: c.sessionID,
		Role:      domain.RoleUser,
		Content:   content,
		At:        time.Now().UTC(),
	})
}

// Apply folds one push event into the view. Unknown or keep-alive
// events are ignored.
func (c *Consumer) Apply(e event.StreamEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch evt := e.(type) {
	case event.TypingStart:
		c.typing[evt.ParticipantID] = TypingInfo{
			Name:      evt.ParticipantName,
			Color:     evt.ParticipantColor,
			AvatarRef: evt.AvatarRef,
			Since:     time.Now(),
		}
	case event.TypingStop:
		delete(c.typing, evt.ParticipantID)
	case event.CompleteResponse:
		delete(c.typing, evt.ParticipantID)
		c.timeline = append(c.timeline, domain.TranscriptEntry{
			ID:              uuid.New(),
			SessionID:       c.sessionID,
			Role:            domain.RoleParticipant,
			Content:         evt.Content,
			ParticipantID:   evt.ParticipantID,
			ParticipantName: evt.ParticipantName,
			At:              time.Now().UTC(),
		})
	case event.Error:
		delete(c.typing, evt.ParticipantID)
		c.errors = append(c.errors, evt)
	case event.CompletionStats:
		stats := evt
		c.stats = &stats
	case event.Done:
		c.settled = true
		// Tasks can't be typing after the turn settled; a lost
		// typing_stop frame must not leave a ghost indicator.
		c.typing = make(map[string]TypingInfo)
	}
}

// Settled reports whether the terminal event arrived.
func (c *Consumer) Settled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settled
}

// Reconcile repairs the local timeline from the transcript store. Run
// after Done or after a dropped stream; calling it twice is harmless.
func (c *Consumer) Reconcile(ctx context.Context) {
	c.mu.Lock()
	local := append([]domain.TranscriptEntry(nil), c.timeline...)
	c.mu.Unlock()

	repaired := c.reconciler.Reconcile(ctx, c.sessionID, local)

	c.mu.Lock()
	c.timeline = repaired
	c.typing = make(map[string]TypingInfo)
	c.mu.Unlock()
}

// View returns a copy of the current state for rendering.
func (c *Consumer) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	typing := make([]TypingInfo, 0, len(c.typing))
	for _, info := range c.typing {
		typing = append(typing, info)
	}
	view := View{
		Typing:   typing,
		Timeline: append([]domain.TranscriptEntry(nil), c.timeline...),
		Errors:   append([]event.Error(nil), c.errors...),
		Settled:  c.settled,
	}
	if c.stats != nil {
		stats := *c.stats
		view.Stats = &stats
	}
	return view
}
