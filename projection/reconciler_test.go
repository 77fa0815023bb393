package projection

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"panel-lab/domain"
	"panel-lab/mocks"
)

func userEntry(session, content string, at time.Time) domain.TranscriptEntry {
	return domain.TranscriptEntry{
		ID: uuid.New(), SessionID: session, Role: domain.RoleUser,
		Content: content, At: at,
	}
}

func participantEntry(session, participantID, content string, at time.Time) domain.TranscriptEntry {
	return domain.TranscriptEntry{
		ID: uuid.New(), SessionID: session, Role: domain.RoleParticipant,
		ParticipantID: participantID, ParticipantName: participantID,
		Content: content, At: at,
	}
}

func TestReconciler_RecoversLostResponse(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	base := time.Now().UTC()
	question := userEntry("s1", "thoughts?", base)

	// The consumer saw only one of the two responses.
	local := []domain.TranscriptEntry{
		question,
		participantEntry("s1", "a", "first in", base.Add(time.Second)),
	}
	// The store has both.
	stored := []domain.TranscriptEntry{
		question,
		participantEntry("s1", "a", "first in", base.Add(time.Second)),
		participantEntry("s1", "b", "lost on the wire", base.Add(2*time.Second)),
	}

	transcripts := mocks.NewMockITranscriptRepository(ctrl)
	transcripts.EXPECT().Fetch("s1").Return(stored, nil)

	repaired := NewReconciler(slog.Default(), transcripts).
		Reconcile(context.Background(), "s1", local)

	req.Len(repaired, 3)
	req.Equal("thoughts?", repaired[0].Content)
	req.Equal("first in", repaired[1].Content)
	req.Equal("lost on the wire", repaired[2].Content)
}

func TestReconciler_NeverDuplicatesResponses(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	base := time.Now().UTC()
	question := userEntry("s1", "thoughts?", base)
	// Same response on both sides, carrying different entry IDs: the
	// streamed copy and the stored copy are distinct records.
	local := []domain.TranscriptEntry{
		question,
		participantEntry("s1", "a", "same answer", base.Add(time.Second)),
	}
	stored := []domain.TranscriptEntry{
		question,
		participantEntry("s1", "a", "same answer", base.Add(time.Second)),
	}

	transcripts := mocks.NewMockITranscriptRepository(ctrl)
	transcripts.EXPECT().Fetch("s1").Return(stored, nil)

	repaired := NewReconciler(slog.Default(), transcripts).
		Reconcile(context.Background(), "s1", local)

	req.Len(repaired, 2)
}

func TestReconciler_IsIdempotent(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	base := time.Now().UTC()
	stored := []domain.TranscriptEntry{
		userEntry("s1", "q", base),
		participantEntry("s1", "a", "r1", base.Add(time.Second)),
		participantEntry("s1", "b", "r2", base.Add(2*time.Second)),
	}

	transcripts := mocks.NewMockITranscriptRepository(ctrl)
	transcripts.EXPECT().Fetch("s1").Return(stored, nil).Times(2)

	reconciler := NewReconciler(slog.Default(), transcripts)
	once := reconciler.Reconcile(context.Background(), "s1", stored)
	twice := reconciler.Reconcile(context.Background(), "s1", once)

	req.Equal(once, twice)
}

func TestReconciler_OnlyCurrentTurnIsRepaired(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	base := time.Now().UTC()
	// Two turns: the first turn's history must stay untouched even if
	// the store disagrees about it.
	local := []domain.TranscriptEntry{
		userEntry("s1", "first question", base),
		participantEntry("s1", "a", "old answer", base.Add(time.Second)),
		userEntry("s1", "second question", base.Add(time.Minute)),
	}
	stored := []domain.TranscriptEntry{
		userEntry("s1", "first question", base),
		userEntry("s1", "second question", base.Add(time.Minute)),
		participantEntry("s1", "a", "fresh answer", base.Add(time.Minute+time.Second)),
	}

	transcripts := mocks.NewMockITranscriptRepository(ctrl)
	transcripts.EXPECT().Fetch("s1").Return(stored, nil)

	repaired := NewReconciler(slog.Default(), transcripts).
		Reconcile(context.Background(), "s1", local)

	req.Len(repaired, 4)
	req.Equal("old answer", repaired[1].Content)
	req.Equal("fresh answer", repaired[3].Content)
}

func TestReconciler_KeepsLocalViewWhenStoreUnreachable(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	base := time.Now().UTC()
	local := []domain.TranscriptEntry{
		userEntry("s1", "q", base),
		participantEntry("s1", "a", "only local", base.Add(time.Second)),
	}

	transcripts := mocks.NewMockITranscriptRepository(ctrl)
	transcripts.EXPECT().Fetch("s1").Return(nil, fmt.Errorf("store down"))

	repaired := NewReconciler(slog.Default(), transcripts).
		Reconcile(context.Background(), "s1", local)

	// Stale beats empty.
	req.Equal(local, repaired)
}
