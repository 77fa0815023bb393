package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"panel-lab/contract"
	"panel-lab/domain/event"
	"panel-lab/errors"
)

// writerState tracks the lifecycle of one push connection.
type writerState int

const (
	writerIdle      writerState = iota // headers not sent yet
	writerStreaming                    // at least one frame written
	writerCompleted                    // terminal marker sent or Close called
)

// sseSink writes stream events to an HTTP response as server-sent
// events. It is the concrete EventSink behind every live turn:
//
//	event: {kind}\n
//	data: {json}\n
//	\n
//
// Heartbeats go out as comment frames so event-unaware proxies still
// see traffic; the Done event is followed by a [DONE] data frame.
type sseSink struct {
	w  http.ResponseWriter
	rc *http.ResponseController

	mu    sync.Mutex
	state writerState
}

var _ contract.EventSink = (*sseSink)(nil)

func newSSESink(w http.ResponseWriter) *sseSink {
	return &sseSink{
		w:  w,
		rc: http.NewResponseController(w),
	}
}

func (s *sseSink) Emit(ctx context.Context, e event.StreamEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == writerCompleted {
		return errors.ErrSinkClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if s.state == writerIdle {
		s.w.Header().Set("Content-Type", "text/event-stream")
		s.w.Header().Set("Cache-Control", "no-cache")
		s.w.Header().Set("Connection", "keep-alive")
		s.state = writerStreaming
	}

	if e.Kind() == event.HeartbeatKind {
		if _, err := fmt.Fprint(s.w, ": keep-alive\n\n"); err != nil {
			return fmt.Errorf("writing keep-alive: %w", err)
		}
		return s.rc.Flush()
	}

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshalling event: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", e.Kind(), data); err != nil {
		return fmt.Errorf("writing event: %w", err)
	}
	if err := s.rc.Flush(); err != nil {
		return fmt.Errorf("flushing event: %w", err)
	}

	if e.Kind() == event.DoneKind {
		if _, err := fmt.Fprint(s.w, "data: [DONE]\n\n"); err != nil {
			return fmt.Errorf("writing terminal marker: %w", err)
		}
		if err := s.rc.Flush(); err != nil {
			return fmt.Errorf("flushing terminal marker: %w", err)
		}
		s.state = writerCompleted
	}
	return nil
}

// Close marks the connection finished. The underlying ResponseWriter is
// owned by net/http; there is nothing to release here.
func (s *sseSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = writerCompleted
	return nil
}
