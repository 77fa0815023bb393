package domain

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTaskState_ZeroValueIsUnsettled(t *testing.T) {
	req := require.New(t)

	// An outcome slot that was never written must not read as a
	// success or a failure.
	var outcome TaskOutcome
	req.Equal(TaskPending, outcome.State)
	req.Equal("pending", outcome.State.String())
}

func TestSummarize(t *testing.T) {
	req := require.New(t)

	outcomes := []TaskOutcome{
		{Participant: Participant{ID: "a"}, State: TaskSucceeded},
		{Participant: Participant{ID: "b"}, State: TaskFailed, Err: fmt.Errorf("backend down")},
		{Participant: Participant{ID: "c"}, State: TaskSucceeded},
	}

	summary := Summarize(outcomes, 120*time.Millisecond)
	req.Equal(3, summary.Total)
	req.Equal(2, summary.Successful)
	req.Equal(1, summary.Failed)
	req.Equal([]string{"b"}, summary.FailedParticipants)
	req.Equal(120*time.Millisecond, summary.Duration)
}
