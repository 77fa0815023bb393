package workers

import (
	"context"
	"log/slog"
	"time"

	"panel-lab/repositories"
)

// StoreGCWorker periodically compacts the transcript store's value log.
// Badger never reclaims value-log space on its own; without this loop a
// long-lived server grows without bound.
type StoreGCWorker struct {
	log          *slog.Logger
	transcripts  repositories.TranscriptRepository
	interval     time.Duration
	discardRatio float64
}

func NewStoreGCWorker(log *slog.Logger, transcripts repositories.TranscriptRepository,
	interval time.Duration) *StoreGCWorker {
	return &StoreGCWorker{
		log:          log,
		transcripts:  transcripts,
		interval:     interval,
		discardRatio: 0.5,
	}
}

func (w *StoreGCWorker) Run(ctx context.Context) error {
	w.log.Info("Starting store GC worker", "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := w.transcripts.RunGC(w.discardRatio); err != nil {
				w.log.Warn("Value log GC failed", "error", err)
			}
		}
	}
}
