package runtime

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"

	"panel-lab/domain"
	"panel-lab/errors"
)

// Roster is the immutable set of configured participants for this
// deployment. Loaded once at startup; turns select from it.
type Roster struct {
	participants []domain.Participant
	byID         map[string]domain.Participant
}

// LoadRoster reads and validates the participants file. Duplicate IDs
// and invalid entries are startup errors, not runtime surprises.
func LoadRoster(path string, validate *validator.Validate) (*Roster, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading participants file: %w", err)
	}

	var participants []domain.Participant
	if err := json.Unmarshal(raw, &participants); err != nil {
		return nil, fmt.Errorf("parsing participants file: %w", err)
	}
	if len(participants) == 0 {
		return nil, errors.ErrEmptyRoster
	}

	byID := make(map[string]domain.Participant, len(participants))
	for i, p := range participants {
		if err := validate.Struct(p); err != nil {
			return nil, fmt.Errorf("participant %d (%s): %w", i, p.ID, err)
		}
		if _, dup := byID[p.ID]; dup {
			return nil, fmt.Errorf("duplicate participant id %q", p.ID)
		}
		byID[p.ID] = p
	}

	return &Roster{participants: participants, byID: byID}, nil
}

// Select resolves a turn command's target to concrete participants: the
// fan-out marker addresses everyone, a participant ID addresses that
// one participant.
func (r *Roster) Select(cmd domain.PostTurnCommand) ([]domain.Participant, error) {
	if cmd.WantsFanOut() {
		return r.All(), nil
	}
	p, ok := r.byID[cmd.ParticipantID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", errors.ErrUnknownParticipant, cmd.ParticipantID)
	}
	return []domain.Participant{p}, nil
}

// All returns a copy so callers can't mutate the roster.
func (r *Roster) All() []domain.Participant {
	return append([]domain.Participant(nil), r.participants...)
}

// IDs lists the configured participant IDs in file order.
func (r *Roster) IDs() []string {
	return lo.Map(r.participants, func(p domain.Participant, _ int) string {
		return p.ID
	})
}

func (r *Roster) Size() int {
	return len(r.participants)
}
