package domain

// FanOutMarker selects every configured participant for a turn.
const FanOutMarker = "*"

// PostTurnCommand is the inbound intent from the API boundary: one user
// message addressed to a single participant or to the whole panel.
type PostTurnCommand struct {
	SessionID     string `json:"sessionId"`
	Content       string `json:"content"`
	ParticipantID string `json:"participantId"`
}

// WantsFanOut reports whether the command targets the whole panel.
func (c PostTurnCommand) WantsFanOut() bool {
	return c.ParticipantID == "" || c.ParticipantID == FanOutMarker
}
