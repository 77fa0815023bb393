// Package event defines the push events streamed to a connected
// consumer while a turn is in flight. Events are transient: only the
// resulting transcript entries are persisted.
package event

type Kind string

const (
	TypingStartKind      Kind = "typing_start"
	TypingStopKind       Kind = "typing_stop"
	CompleteResponseKind Kind = "complete_response"
	ErrorKind            Kind = "error"
	CompletionStatsKind  Kind = "completion_stats"
	HeartbeatKind        Kind = "heartbeat"
	DoneKind             Kind = "done"
)

// StreamEvent is the discriminated union pushed on the output sequence.
type StreamEvent interface {
	Kind() Kind
}

type TypingStart struct {
	ParticipantID    string `json:"participantId"`
	ParticipantName  string `json:"participantName"`
	ParticipantColor string `json:"participantColor"`
	AvatarRef        string `json:"avatarRef,omitempty"`
}

func (TypingStart) Kind() Kind { return TypingStartKind }

type TypingStop struct {
	ParticipantID string `json:"participantId"`
}

func (TypingStop) Kind() Kind { return TypingStopKind }

type CompleteResponse struct {
	ParticipantID    string `json:"participantId"`
	ParticipantName  string `json:"participantName"`
	ParticipantColor string `json:"participantColor"`
	Content          string `json:"content"`
}

func (CompleteResponse) Kind() Kind { return CompleteResponseKind }

type Error struct {
	ParticipantID   string `json:"participantId"`
	ParticipantName string `json:"participantName"`
	Error           string `json:"error"`
	FinalAttempt    bool   `json:"finalAttempt"`
}

func (Error) Kind() Kind { return ErrorKind }

type CompletionStats struct {
	Total               int      `json:"total"`
	Successful          int      `json:"successful"`
	Failed              int      `json:"failed"`
	FailedParticipants  []string `json:"failedParticipants"`
	DurationMs          int64    `json:"durationMs"`
	AvgPerParticipantMs int64    `json:"avgPerParticipantMs"`
}

func (CompletionStats) Kind() Kind { return CompletionStatsKind }

// Heartbeat is a no-op keep-alive frame emitted while the sequence is
// open so that idle transports are not reclaimed by intermediaries.
type Heartbeat struct{}

func (Heartbeat) Kind() Kind { return HeartbeatKind }

// Done is the terminal marker: the turn has settled and the sequence
// closes right after it.
type Done struct{}

func (Done) Kind() Kind { return DoneKind }
