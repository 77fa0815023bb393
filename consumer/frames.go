package consumer

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"panel-lab/domain/event"
)

// Frame is one decoded push frame. Exactly one of Event or Terminal is
// meaningful; keep-alive comments are swallowed by the scanner.
type Frame struct {
	Event    event.StreamEvent
	Terminal bool
}

// ParseFrames reads server-push frames from body and sends decoded
// frames on ch. The channel is NOT closed by this function; the caller
// owns it. Malformed frames are skipped, not fatal: a lossy channel is
// the operating assumption, and the reconciler cleans up afterwards.
//
// Expected wire shape:
//
//	event: complete_response\n
//	data: {...}\n
//	\n
//	: keep-alive\n
//	\n
//	data: [DONE]\n
//	\n
func ParseFrames(ctx context.Context, body io.Reader, ch chan<- Frame) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	// A send must never outlive the caller: a consumer that stopped
	// reading cancels ctx, and a blocked send gives up with it.
	emit := func(f Frame) error {
		select {
		case ch <- f:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	var kind, data string
	flush := func() (terminal bool, err error) {
		defer func() { kind, data = "", "" }()
		if data == "[DONE]" {
			return true, emit(Frame{Terminal: true})
		}
		if kind == "" || data == "" {
			return false, nil
		}
		e, decodeErr := decodeEvent(event.Kind(kind), []byte(data))
		if decodeErr != nil {
			return false, nil
		}
		return false, emit(Frame{Event: e})
	}

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := scanner.Text()
		switch {
		case line == "":
			terminal, err := flush()
			if err != nil {
				return err
			}
			if terminal {
				return nil
			}
		case strings.HasPrefix(line, ":"):
			// comment frame, transport-level keep-alive
		case strings.HasPrefix(line, "event: "):
			kind = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		}
	}

	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("reading push stream: %w", err)
	}
	return io.EOF
}

func decodeEvent(kind event.Kind, data []byte) (event.StreamEvent, error) {
	switch kind {
	case event.TypingStartKind:
		return unmarshalEvent[event.TypingStart](data)
	case event.TypingStopKind:
		return unmarshalEvent[event.TypingStop](data)
	case event.CompleteResponseKind:
		return unmarshalEvent[event.CompleteResponse](data)
	case event.ErrorKind:
		return unmarshalEvent[event.Error](data)
	case event.CompletionStatsKind:
		return unmarshalEvent[event.CompletionStats](data)
	case event.HeartbeatKind:
		return event.Heartbeat{}, nil
	case event.DoneKind:
		return event.Done{}, nil
	default:
		return nil, fmt.Errorf("unknown event kind %q", kind)
	}
}

func unmarshalEvent[T event.StreamEvent](data []byte) (event.StreamEvent, error) {
	var e T
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return e, nil
}
