// Package projection rebuilds a consumer's view of a turn from the
// durable transcript. The live stream is lossy; the transcript is not.
// Reconciliation replaces everything the consumer accumulated after the
// last user entry with what the store actually holds.
package projection

import (
	"context"
	"log/slog"
	"sort"

	"panel-lab/contract"
	"panel-lab/domain"
)

// Reconciler performs the read-repair pass a consumer runs when a turn
// ends or its stream drops. It is idempotent: reconciling an already
// reconciled tail changes nothing.
type Reconciler struct {
	log         *slog.Logger
	transcripts contract.ITranscriptRepository
}

func NewReconciler(log *slog.Logger, transcripts contract.ITranscriptRepository) Reconciler {
	return Reconciler{log: log, transcripts: transcripts}
}

// Reconcile merges the locally observed tail of a session with the
// stored transcript. The split point is the last user entry: everything
// before it is kept as-is, everything after is the union of local and
// stored participant entries, deduplicated and re-sorted by timestamp.
// When the store is unreachable the local view is returned unchanged;
// stale beats empty.
func (r Reconciler) Reconcile(ctx context.Context, sessionID string, local []domain.TranscriptEntry) []domain.TranscriptEntry {
	if err := ctx.Err(); err != nil {
		return local
	}

	stored, err := r.transcripts.Fetch(sessionID)
	if err != nil {
		r.log.Warn("Transcript store unreachable, keeping local view",
			"session", sessionID, "error", err)
		return local
	}

	localHead, localTail := splitAtLastUserEntry(local)
	_, storedTail := splitAtLastUserEntry(stored)

	merged := dedupe(append(append([]domain.TranscriptEntry{}, localTail...), storedTail...))
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].At.Before(merged[j].At)
	})

	if repaired := len(merged) - len(localTail); repaired > 0 {
		r.log.Info("Read-repair recovered entries",
			"session", sessionID, "recovered", repaired)
	}

	// Full slice expression: never grow into the caller's backing array.
	return append(localHead[:len(localHead):len(localHead)], merged...)
}

// splitAtLastUserEntry cuts the timeline after the most recent user
// entry. The head (user entry included) is settled history; the tail is
// the current turn's responses, the only part eligible for repair.
func splitAtLastUserEntry(entries []domain.TranscriptEntry) (head, tail []domain.TranscriptEntry) {
	split := 0
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Role == domain.RoleUser {
			split = i + 1
			break
		}
	}
	return entries[:split], entries[split:]
}

// dedupe drops repeated responses. Identity is participant plus
// content: the stream copy and the stored copy of one response carry
// different entry IDs, so the ID cannot be the key.
func dedupe(entries []domain.TranscriptEntry) []domain.TranscriptEntry {
	type identity struct {
		participantID string
		content       string
	}
	seen := make(map[identity]struct{}, len(entries))
	out := entries[:0]
	for _, e := range entries {
		key := identity{participantID: e.ParticipantID, content: e.Content}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, e)
	}
	return out
}
