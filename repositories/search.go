package repositories

import (
	"context"
	"log/slog"

	"github.com/blugelabs/bluge"

	"panel-lab/domain"
)

// SearchRepository maintains a full-text index over transcript entries.
// Indexing piggybacks on Append through the composite repository below;
// a lost index entry costs search recall, never transcript durability.
type SearchRepository struct {
	writer *bluge.Writer
	log    *slog.Logger
	limit  int
}

func NewSearchRepository(writer *bluge.Writer, log *slog.Logger, limit int) *SearchRepository {
	if limit < 1 {
		limit = 50
	}
	return &SearchRepository{writer: writer, log: log, limit: limit}
}

// SearchHit is one matched transcript entry with its relevance score.
type SearchHit struct {
	EntryID         string  `json:"entryId"`
	SessionID       string  `json:"sessionId"`
	ParticipantName string  `json:"participantName,omitempty"`
	Content         string  `json:"content"`
	Score           float64 `json:"score"`
}

// Index adds one entry to the full-text index, keyed by entry ID so
// re-indexing the same entry is an overwrite, not a duplicate.
func (s *SearchRepository) Index(entry domain.TranscriptEntry) error {
	doc := bluge.NewDocument(entry.ID.String()).
		AddField(bluge.NewTextField("content", entry.Content).StoreValue()).
		AddField(bluge.NewKeywordField("session", entry.SessionID).StoreValue()).
		AddField(bluge.NewKeywordField("participant", entry.ParticipantName).StoreValue()).
		AddField(bluge.NewDateTimeField("at", entry.At))
	return s.writer.Update(doc.ID(), doc)
}

// Search runs a match query over entry contents, scoped to one session
// when sessionID is non-empty. Results come back best-match first.
func (s *SearchRepository) Search(ctx context.Context, query, sessionID string) ([]SearchHit, uint64, error) {
	contentQuery := bluge.NewMatchQuery(query).SetField("content")

	var finalQuery bluge.Query = contentQuery
	if sessionID != "" {
		finalQuery = bluge.NewBooleanQuery().
			AddMust(contentQuery).
			AddMust(bluge.NewTermQuery(sessionID).SetField("session"))
	}

	reader, err := s.writer.Reader()
	if err != nil {
		return nil, 0, err
	}
	defer reader.Close()

	req := bluge.NewTopNSearch(s.limit, finalQuery).WithStandardAggregations()
	iter, err := reader.Search(ctx, req)
	if err != nil {
		return nil, 0, err
	}

	var hits []SearchHit
	for {
		match, err := iter.Next()
		if err != nil {
			return nil, 0, err
		}
		if match == nil {
			break
		}

		hit := SearchHit{Score: match.Score}
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			switch field {
			case "_id":
				hit.EntryID = string(value)
			case "session":
				hit.SessionID = string(value)
			case "participant":
				hit.ParticipantName = string(value)
			case "content":
				hit.Content = string(value)
			}
			return true
		})
		if err != nil {
			return nil, 0, err
		}
		hits = append(hits, hit)
	}

	return hits, iter.Aggregations().Count(), nil
}

// IndexedTranscriptRepository couples the durable badger store with the
// search index. Append persists first, then indexes; an indexing error
// is logged and swallowed so persistence semantics stay those of the
// underlying store.
type IndexedTranscriptRepository struct {
	TranscriptRepository
	search *SearchRepository
	log    *slog.Logger
}

func NewIndexedTranscriptRepository(store TranscriptRepository, search *SearchRepository, log *slog.Logger) IndexedTranscriptRepository {
	return IndexedTranscriptRepository{TranscriptRepository: store, search: search, log: log}
}

func (r IndexedTranscriptRepository) Append(entry domain.TranscriptEntry) error {
	if err := r.TranscriptRepository.Append(entry); err != nil {
		return err
	}
	if err := r.search.Index(entry); err != nil {
		r.log.Warn("Failed to index transcript entry",
			"entry", entry.ID, "error", err)
	}
	return nil
}
