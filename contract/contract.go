//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"panel-lab/domain"
	"panel-lab/domain/event"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink is the destination push events are written to. It may
// become unusable independently of task progress; writers must treat a
// failed Emit as the sink being gone for good.
type EventSink interface {
	Emit(ctx context.Context, e event.StreamEvent) error
	Close() error
}

// Generator is the generative text service boundary. Any returned error
// is considered retryable by the retry layer.
type Generator interface {
	Generate(ctx context.Context, prompt domain.Prompt) (string, error)
}

// ITranscriptRepository is the persistence collaborator. Both methods
// are strongly consistent for a single session (read-your-writes).
type ITranscriptRepository interface {
	Append(entry domain.TranscriptEntry) error
	Fetch(sessionID string) ([]domain.TranscriptEntry, error)
}
