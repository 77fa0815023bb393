package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"panel-lab/ai"
	"panel-lab/contract"
	"panel-lab/domain"
	"panel-lab/domain/event"
	"panel-lab/errors"
	"panel-lab/moderation"
	"panel-lab/observability"
	"panel-lab/stream"
)

// Orchestrator fans one user message out to N participants, streams
// their progress through the multiplexer, and persists each successful
// result. It waits for every task to settle; one bad participant never
// aborts or starves the others.
type Orchestrator struct {
	log          *slog.Logger
	gate         *Gate
	retrier      Retrier
	generator    contract.Generator
	transcripts  contract.ITranscriptRepository
	prompts      ai.PromptBuilder
	moderator    moderation.Moderator
	monitoring   *observability.Manager
	staggerDelta time.Duration
}

func NewOrchestrator(log *slog.Logger, gate *Gate, retrier Retrier,
	generator contract.Generator, transcripts contract.ITranscriptRepository,
	prompts ai.PromptBuilder, moderator moderation.Moderator,
	monitoring *observability.Manager, staggerDelta time.Duration) *Orchestrator {
	return &Orchestrator{
		log:          log,
		gate:         gate,
		retrier:      retrier,
		generator:    generator,
		transcripts:  transcripts,
		prompts:      prompts,
		moderator:    moderator,
		monitoring:   monitoring,
		staggerDelta: staggerDelta,
	}
}

// RunTurn executes one turn end to end and closes the multiplexer when
// the turn settles. The user entry is persisted before any task starts:
// it anchors the reconciliation split point. An empty participant list
// is a caller error rejected before any side effect.
func (o *Orchestrator) RunTurn(ctx context.Context, sessionID, content string,
	participants []domain.Participant, mux *stream.Multiplexer) ([]domain.TaskOutcome, error) {

	if len(participants) == 0 {
		return nil, errors.ErrNoParticipants
	}

	userEntry := domain.TranscriptEntry{
		ID:        uuid.New(),
		SessionID: sessionID,
		Role:      domain.RoleUser,
		Content:   content,
		At:        time.Now().UTC(),
	}
	if err := o.transcripts.Append(userEntry); err != nil {
		return nil, fmt.Errorf("persisting user entry: %w", err)
	}

	o.monitoring.IncrTurns()
	start := time.Now()

	mux.StartHeartbeat(ctx)

	// Settle-all join: one outcome per task, no short-circuit on the
	// first failure.
	outcomes := make([]domain.TaskOutcome, len(participants))
	var wg sync.WaitGroup
	for i, p := range participants {
		wg.Add(1)
		go func(i int, p domain.Participant) {
			defer wg.Done()
			outcomes[i] = o.runTask(ctx, sessionID, content, p, i, mux)
		}(i, p)
	}
	wg.Wait()

	summary := domain.Summarize(outcomes, time.Since(start))
	mux.SafeEmit(ctx, toCompletionStats(summary))
	mux.SafeEmit(ctx, event.Done{})
	mux.Close()

	o.log.Info("Turn settled",
		"session", sessionID,
		"total", summary.Total,
		"successful", summary.Successful,
		"failed", summary.Failed,
		"duration", summary.Duration)

	return outcomes, nil
}

// runTask drives a single participant: typing_start, gated and retried
// generation, then either typing_stop+complete_response+persistence or
// a scoped error event. The sink closing does not cancel the task; the
// transcript entry, not the live stream, is the durable contract.
func (o *Orchestrator) runTask(ctx context.Context, sessionID, content string,
	p domain.Participant, index int, mux *stream.Multiplexer) domain.TaskOutcome {

	// Small fixed stagger between typing_start emissions to avoid a
	// thundering-herd write burst on the sink. Cosmetic only.
	if o.staggerDelta > 0 && index > 0 {
		select {
		case <-ctx.Done():
			return domain.TaskOutcome{Participant: p, State: domain.TaskFailed, Err: ctx.Err()}
		case <-time.After(time.Duration(index) * o.staggerDelta):
		}
	}

	start := time.Now()
	mux.SafeEmit(ctx, event.TypingStart{
		ParticipantID:    p.ID,
		ParticipantName:  p.Name,
		ParticipantColor: p.Color,
		AvatarRef:        p.AvatarRef,
	})

	if err := o.gate.Acquire(ctx); err != nil {
		mux.SafeEmit(ctx, o.toErrorEvent(p, err))
		return domain.TaskOutcome{Participant: p, State: domain.TaskFailed, Err: err, Elapsed: time.Since(start)}
	}
	defer o.gate.Release()

	prompt := o.prompts.Build(p, content)
	output, attempts, err := o.retrier.Do(ctx, p.ID, func(ctx context.Context) (string, error) {
		return o.generator.Generate(ctx, prompt)
	})
	if err != nil {
		o.monitoring.IncrFailedGenerations()
		mux.SafeEmit(ctx, o.toErrorEvent(p, err))
		return domain.TaskOutcome{
			Participant: p,
			State:       domain.TaskFailed,
			Attempts:    attempts,
			Err:         err,
			Elapsed:     time.Since(start),
		}
	}

	censored, foundWords := o.moderator.Censor(output)
	if len(foundWords) > 0 {
		o.log.Warn("Moderated generated output",
			"participant", p.ID, "words", len(foundWords))
	}

	mux.SafeEmit(ctx, event.TypingStop{ParticipantID: p.ID})
	mux.SafeEmit(ctx, event.CompleteResponse{
		ParticipantID:    p.ID,
		ParticipantName:  p.Name,
		ParticipantColor: p.Color,
		Content:          censored,
	})

	entry := domain.TranscriptEntry{
		ID:              uuid.New(),
		SessionID:       sessionID,
		Role:            domain.RoleParticipant,
		Content:         censored,
		ParticipantID:   p.ID,
		ParticipantName: p.Name,
		At:              time.Now().UTC(),
	}
	if appendErr := o.transcripts.Append(entry); appendErr != nil {
		// Accepted asymmetry: the completion event is already out. The
		// reconciler simply won't find this entry later.
		o.log.Error("Failed to persist transcript entry",
			"session", sessionID, "participant", p.ID, "error", appendErr)
	}

	o.monitoring.IncrGenerations()
	return domain.TaskOutcome{
		Participant: p,
		State:       domain.TaskSucceeded,
		Output:      censored,
		Attempts:    attempts,
		Elapsed:     time.Since(start),
	}
}

func (o *Orchestrator) toErrorEvent(p domain.Participant, err error) event.Error {
	return event.Error{
		ParticipantID:   p.ID,
		ParticipantName: p.Name,
		Error:           err.Error(),
		FinalAttempt:    true,
	}
}

func toCompletionStats(s domain.TurnSummary) event.CompletionStats {
	stats := event.CompletionStats{
		Total:              s.Total,
		Successful:         s.Successful,
		Failed:             s.Failed,
		FailedParticipants: s.FailedParticipants,
		DurationMs:         s.Duration.Milliseconds(),
	}
	if s.Total > 0 {
		stats.AvgPerParticipantMs = s.Duration.Milliseconds() / int64(s.Total)
	}
	return stats
}
