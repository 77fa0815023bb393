package domain

import "time"

// TaskState classifies one participant's work for one turn. TaskPending
// is the zero value of an outcome slot before the settle-all join
// writes it; in-flight progress is carried by the stream events
// (typing_start, typing_stop), not recorded here.
type TaskState int

const (
	TaskPending TaskState = iota
	TaskSucceeded
	TaskFailed
)

func (s TaskState) String() string {
	switch s {
	case TaskPending:
		return "pending"
	case TaskSucceeded:
		return "succeeded"
	case TaskFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// TaskOutcome is the tagged settle-all result for one participant.
// The coordinator collects one per task and never short-circuits on the
// first failure.
type TaskOutcome struct {
	Participant Participant
	State       TaskState
	Output      string
	Attempts    int
	Err         error
	Elapsed     time.Duration
}

// TurnSummary aggregates the settled outcomes of one turn.
type TurnSummary struct {
	Total              int
	Successful         int
	Failed             int
	FailedParticipants []string
	Duration           time.Duration
}

func Summarize(outcomes []TaskOutcome, duration time.Duration) TurnSummary {
	summary := TurnSummary{Total: len(outcomes), Duration: duration}
	for _, o := range outcomes {
		if o.State == TaskSucceeded {
			summary.Successful++
			continue
		}
		summary.Failed++
		summary.FailedParticipants = append(summary.FailedParticipants, o.Participant.ID)
	}
	return summary
}
