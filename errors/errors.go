package errors

import "fmt"

var (
	ErrWorkerPanic        = fmt.Errorf("worker panic")
	ErrNoParticipants     = fmt.Errorf("no participants selected for turn")
	ErrUnknownParticipant = fmt.Errorf("participant is not configured")
	ErrAttemptTimeout     = fmt.Errorf("generation attempt deadline exceeded")
	ErrRetriesExhausted   = fmt.Errorf("all generation attempts failed")
	ErrSinkClosed         = fmt.Errorf("event sink is closed")
	ErrEmptyContent       = fmt.Errorf("message content is empty")
	ErrEmptyRoster        = fmt.Errorf("participants file contains no participants")
)
