package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"panel-lab/ai"
	"panel-lab/contract"
	"panel-lab/domain"
	"panel-lab/domain/event"
	"panel-lab/errors"
	"panel-lab/mocks"
	"panel-lab/moderation"
	"panel-lab/observability"
	"panel-lab/stream"
)

// recordingSink captures the emitted event sequence for assertions.
type recordingSink struct {
	mu     sync.Mutex
	events []event.StreamEvent
	closed bool
}

var _ contract.EventSink = (*recordingSink)(nil)

func (s *recordingSink) Emit(_ context.Context, e event.StreamEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *recordingSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *recordingSink) kinds() []event.Kind {
	s.mu.Lock()
	defer s.mu.Unlock()
	kinds := make([]event.Kind, 0, len(s.events))
	for _, e := range s.events {
		kinds = append(kinds, e.Kind())
	}
	return kinds
}

func newTestOrchestrator(t *testing.T, generator contract.Generator,
	transcripts contract.ITranscriptRepository, maxConcurrent int) *Orchestrator {
	t.Helper()
	log := slog.Default()
	moderator, err := moderation.NewModerator(nil, '*')
	require.NoError(t, err)
	return NewOrchestrator(
		log,
		NewGate(maxConcurrent),
		NewRetrier(log, 3, 200*time.Millisecond, time.Millisecond),
		generator,
		transcripts,
		ai.NewPromptBuilder("You are on a panel."),
		moderator,
		observability.NewManager(),
		0,
	)
}

func newTurnMux(sink contract.EventSink) *stream.Multiplexer {
	return stream.NewMultiplexer(slog.Default(), sink, time.Hour, 100*time.Millisecond)
}

func panel(ids ...string) []domain.Participant {
	participants := make([]domain.Participant, 0, len(ids))
	for _, id := range ids {
		participants = append(participants, domain.Participant{
			ID: id, Name: id, Persona: "answers as " + id,
		})
	}
	return participants
}

func TestOrchestrator_RejectsEmptyRosterBeforeAnySideEffect(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	// No EXPECT calls: any Append or Generate would fail the test.
	generator := mocks.NewMockGenerator(ctrl)
	transcripts := mocks.NewMockITranscriptRepository(ctrl)

	orchestrator := newTestOrchestrator(t, generator, transcripts, 2)
	sink := &recordingSink{}

	_, err := orchestrator.RunTurn(context.Background(), "s1", "hello?", nil, newTurnMux(sink))

	req.ErrorIs(err, errors.ErrNoParticipants)
	req.Empty(sink.events)
}

func TestOrchestrator_PersistsUserEntryBeforeFanOut(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	generator := mocks.NewMockGenerator(ctrl)
	generator.EXPECT().Generate(gomock.Any(), gomock.Any()).Return("noted", nil).Times(1)

	var mu sync.Mutex
	var appended []domain.TranscriptEntry
	transcripts := mocks.NewMockITranscriptRepository(ctrl)
	transcripts.EXPECT().Append(gomock.Any()).DoAndReturn(func(e domain.TranscriptEntry) error {
		mu.Lock()
		defer mu.Unlock()
		appended = append(appended, e)
		return nil
	}).Times(2)

	orchestrator := newTestOrchestrator(t, generator, transcripts, 2)
	sink := &recordingSink{}

	outcomes, err := orchestrator.RunTurn(context.Background(), "s1", "what do you think?",
		panel("analyst"), newTurnMux(sink))

	req.NoError(err)
	req.Len(outcomes, 1)
	req.Equal(domain.TaskSucceeded, outcomes[0].State)

	req.Len(appended, 2)
	req.Equal(domain.RoleUser, appended[0].Role)
	req.Equal("what do you think?", appended[0].Content)
	req.Equal(domain.RoleParticipant, appended[1].Role)
	req.Equal("analyst", appended[1].ParticipantID)
}

func TestOrchestrator_EventOrderingPerParticipant(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	generator := mocks.NewMockGenerator(ctrl)
	generator.EXPECT().Generate(gomock.Any(), gomock.Any()).Return("an answer", nil).Times(3)

	transcripts := mocks.NewMockITranscriptRepository(ctrl)
	transcripts.EXPECT().Append(gomock.Any()).Return(nil).Times(4)

	orchestrator := newTestOrchestrator(t, generator, transcripts, 2)
	sink := &recordingSink{}
	mux := newTurnMux(sink)

	_, err := orchestrator.RunTurn(context.Background(), "s1", "go",
		panel("a", "b", "c"), mux)
	req.NoError(err)
	req.True(sink.closed)

	kinds := sink.kinds()
	// Terminal pair closes the sequence.
	req.Equal(event.CompletionStatsKind, kinds[len(kinds)-2])
	req.Equal(event.DoneKind, kinds[len(kinds)-1])

	// Per participant: typing_start < typing_stop < complete_response.
	positions := map[event.Kind]map[string]int{}
	for i, e := range sink.events {
		switch evt := e.(type) {
		case event.TypingStart:
			index(positions, event.TypingStartKind)[evt.ParticipantID] = i
		case event.TypingStop:
			index(positions, event.TypingStopKind)[evt.ParticipantID] = i
		case event.CompleteResponse:
			index(positions, event.CompleteResponseKind)[evt.ParticipantID] = i
		}
	}
	for _, id := range []string{"a", "b", "c"} {
		req.Less(positions[event.TypingStartKind][id], positions[event.TypingStopKind][id], id)
		req.Less(positions[event.TypingStopKind][id], positions[event.CompleteResponseKind][id], id)
	}
}

func index(m map[event.Kind]map[string]int, k event.Kind) map[string]int {
	if m[k] == nil {
		m[k] = map[string]int{}
	}
	return m[k]
}

func TestOrchestrator_OneFailureNeverAbortsTheOthers(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	generator := mocks.NewMockGenerator(ctrl)
	generator.EXPECT().Generate(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, prompt domain.Prompt) (string, error) {
			// The pessimist's persona is baked into the system prompt.
			if strings.Contains(prompt.System, "pessimist") {
				return "", fmt.Errorf("backend rejected the request")
			}
			return "all good here", nil
		}).AnyTimes()

	transcripts := mocks.NewMockITranscriptRepository(ctrl)
	// User entry + the two survivors. The failed participant writes nothing.
	transcripts.EXPECT().Append(gomock.Any()).Return(nil).Times(3)

	orchestrator := newTestOrchestrator(t, generator, transcripts, 3)
	sink := &recordingSink{}

	outcomes, err := orchestrator.RunTurn(context.Background(), "s1", "status?",
		panel("optimist", "pessimist", "realist"), newTurnMux(sink))
	req.NoError(err)

	byID := map[string]domain.TaskOutcome{}
	for _, o := range outcomes {
		byID[o.Participant.ID] = o
	}
	req.Equal(domain.TaskSucceeded, byID["optimist"].State)
	req.Equal(domain.TaskSucceeded, byID["realist"].State)
	req.Equal(domain.TaskFailed, byID["pessimist"].State)
	req.Equal(3, byID["pessimist"].Attempts)
	req.ErrorIs(byID["pessimist"].Err, errors.ErrRetriesExhausted)

	var stats *event.CompletionStats
	var errorEvents []event.Error
	for _, e := range sink.events {
		switch evt := e.(type) {
		case event.CompletionStats:
			stats = &evt
		case event.Error:
			errorEvents = append(errorEvents, evt)
		}
	}
	req.NotNil(stats)
	req.Equal(3, stats.Total)
	req.Equal(2, stats.Successful)
	req.Equal(1, stats.Failed)
	req.Equal([]string{"pessimist"}, stats.FailedParticipants)

	req.Len(errorEvents, 1)
	req.Equal("pessimist", errorEvents[0].ParticipantID)
	req.True(errorEvents[0].FinalAttempt)
}

func TestOrchestrator_FailedUserPersistenceStopsTheTurn(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	generator := mocks.NewMockGenerator(ctrl)
	transcripts := mocks.NewMockITranscriptRepository(ctrl)
	transcripts.EXPECT().Append(gomock.Any()).Return(fmt.Errorf("disk full")).Times(1)

	orchestrator := newTestOrchestrator(t, generator, transcripts, 2)
	sink := &recordingSink{}

	_, err := orchestrator.RunTurn(context.Background(), "s1", "hello",
		panel("a"), newTurnMux(sink))

	req.Error(err)
	req.Contains(err.Error(), "disk full")
	req.Empty(sink.events)
}

func TestOrchestrator_ConcurrencyGateBoundsTheFanOut(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	var current, peak int32
	var mu sync.Mutex
	generator := mocks.NewMockGenerator(ctrl)
	generator.EXPECT().Generate(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ domain.Prompt) (string, error) {
			mu.Lock()
			current++
			if current > peak {
				peak = current
			}
			mu.Unlock()
			time.Sleep(20 * time.Millisecond)
			mu.Lock()
			current--
			mu.Unlock()
			return "done", nil
		}).Times(6)

	transcripts := mocks.NewMockITranscriptRepository(ctrl)
	transcripts.EXPECT().Append(gomock.Any()).Return(nil).Times(7)

	orchestrator := newTestOrchestrator(t, generator, transcripts, 2)
	sink := &recordingSink{}

	_, err := orchestrator.RunTurn(context.Background(), "s1", "all hands",
		panel("p1", "p2", "p3", "p4", "p5", "p6"), newTurnMux(sink))
	req.NoError(err)

	mu.Lock()
	defer mu.Unlock()
	req.LessOrEqual(peak, int32(2))
}

func TestOrchestrator_ModeratesGeneratedOutput(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	generator := mocks.NewMockGenerator(ctrl)
	generator.EXPECT().Generate(gomock.Any(), gomock.Any()).
		Return("that idea is rubbish", nil).Times(1)

	var stored []domain.TranscriptEntry
	var mu sync.Mutex
	transcripts := mocks.NewMockITranscriptRepository(ctrl)
	transcripts.EXPECT().Append(gomock.Any()).DoAndReturn(func(e domain.TranscriptEntry) error {
		mu.Lock()
		defer mu.Unlock()
		stored = append(stored, e)
		return nil
	}).Times(2)

	log := slog.Default()
	moderator, err := moderation.NewModerator([]string{"rubbish"}, '*')
	req.NoError(err)
	orchestrator := NewOrchestrator(
		log,
		NewGate(2),
		NewRetrier(log, 1, 200*time.Millisecond, time.Millisecond),
		generator,
		transcripts,
		ai.NewPromptBuilder(""),
		moderator,
		observability.NewManager(),
		0,
	)
	sink := &recordingSink{}

	_, err = orchestrator.RunTurn(context.Background(), "s1", "opinions?",
		panel("critic"), newTurnMux(sink))
	req.NoError(err)

	var response *event.CompleteResponse
	for _, e := range sink.events {
		if evt, ok := e.(event.CompleteResponse); ok {
			response = &evt
		}
	}
	req.NotNil(response)
	req.Equal("that idea is *******", response.Content)
	req.Equal("that idea is *******", stored[1].Content)
}
