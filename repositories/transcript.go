//go:generate go run go.uber.org/mock/mockgen -source=transcript.go -destination=../mocks/mock_transcript_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"panel-lab/contract"
	"panel-lab/domain"
)

// TranscriptRepository persists transcript entries in BadgerDB.
// The key is formatted as "turn:{session_id}:{timestamp_padded}:{uuid}" to:
//  1. Ensure chronological sorting using 19-digit zero padding (lexicographical order).
//  2. Prevent data loss by using UUID as a collision disconnector if two entries
//     land on the same nanosecond.
type TranscriptRepository struct {
	db  *badger.DB
	log *slog.Logger
}

var _ contract.ITranscriptRepository = TranscriptRepository{}

func NewTranscriptRepository(db *badger.DB, log *slog.Logger) TranscriptRepository {
	return TranscriptRepository{db: db, log: log}
}

// diskEntry is the stored shape. Kept separate from the domain type so
// the on-disk schema can evolve without touching callers.
type diskEntry struct {
	ID              string `json:"id"`
	SessionID       string `json:"session_id"`
	Role            string `json:"role"`
	Content         string `json:"content"`
	ParticipantID   string `json:"participant_id,omitempty"`
	ParticipantName string `json:"participant_name,omitempty"`
	At              int64  `json:"at"`
}

func (t TranscriptRepository) Append(entry domain.TranscriptEntry) error {
	key := fmt.Sprintf("turn:%s:%019d:%s",
		entry.SessionID,
		entry.At.UnixNano(),
		entry.ID,
	)
	bytes, err := json.Marshal(fromEntry(entry))
	if err != nil {
		return err
	}
	return t.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), bytes)
	})
}

// Fetch returns every entry of a session in chronological order. The
// padded timestamp in the key makes a forward prefix scan come out
// already sorted.
func (t TranscriptRepository) Fetch(sessionID string) ([]domain.TranscriptEntry, error) {
	var rawValues [][]byte
	err := t.db.View(func(txn *badger.Txn) error {
		prefix := []byte(fmt.Sprintf("turn:%s:", sessionID))
		options := badger.DefaultIteratorOptions
		options.Prefix = prefix
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(value []byte) error {
				rawValues = append(rawValues, append([]byte(nil), value...))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	entries := make([]domain.TranscriptEntry, 0, len(rawValues))
	for _, raw := range rawValues {
		var stored diskEntry
		if err := json.Unmarshal(raw, &stored); err != nil {
			return nil, err
		}
		entry, err := toEntry(stored)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// RunGC triggers one value-log garbage collection cycle. Badger returns
// ErrNoRewrite when there was nothing to reclaim; that is not an error
// for us.
func (t TranscriptRepository) RunGC(discardRatio float64) error {
	err := t.db.RunValueLogGC(discardRatio)
	if err == badger.ErrNoRewrite {
		return nil
	}
	return err
}

func fromEntry(entry domain.TranscriptEntry) diskEntry {
	return diskEntry{
		ID:              entry.ID.String(),
		SessionID:       entry.SessionID,
		Role:            string(entry.Role),
		Content:         entry.Content,
		ParticipantID:   entry.ParticipantID,
		ParticipantName: entry.ParticipantName,
		At:              entry.At.UnixNano(),
	}
}

func toEntry(stored diskEntry) (domain.TranscriptEntry, error) {
	parsedID, err := uuid.Parse(stored.ID)
	if err != nil {
		return domain.TranscriptEntry{}, err
	}
	return domain.TranscriptEntry{
		ID:              parsedID,
		SessionID:       stored.SessionID,
		Role:            domain.Role(stored.Role),
		Content:         stored.Content,
		ParticipantID:   stored.ParticipantID,
		ParticipantName: stored.ParticipantName,
		At:              time.Unix(0, stored.At).UTC(),
	}, nil
}
