package queue

import (
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/outreach-engine/internal/domain"
)

// AttemptEvent is the broker payload announcing a recorded attempt.
type AttemptEvent struct {
	EventID   string    `json:"eventId"`
	RunID     string    `json:"runId,omitempty"`
	Profile   string    `json:"profile"`
	Outcome   string    `json:"outcome"`
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

func NewAttemptEvent(eventID, runID string, record domain.MessageAttemptRecord) AttemptEvent {
	return AttemptEvent{
		EventID:   eventID,
		RunID:     runID,
		Profile:   record.Profile.String(),
		Outcome:   record.Outcome.Label(),
		Status:    record.Outcome.String(),
		Message:   record.Message,
		Timestamp: record.Timestamp,
	}
}

func (e AttemptEvent) Validate() error {
	if strings.TrimSpace(e.EventID) == "" {
		return fmt.Errorf("eventId is required")
	}
	if strings.TrimSpace(e.Profile) == "" {
		return fmt.Errorf("profile is required")
	}
	outcome, err := domain.ParseOutcomeFromString(e.Status)
	if err != nil {
		return fmt.Errorf("invalid status %q", e.Status)
	}
	if outcome.Label() != e.Outcome {
		return fmt.Errorf("outcome %q does not match status %q", e.Outcome, e.Status)
	}
	if e.Timestamp.IsZero() {
		return fmt.Errorf("timestamp is required")
	}
	return nil
}

// Record converts the event back into a ledger record.
func (e AttemptEvent) Record() (domain.MessageAttemptRecord, error) {
	outcome, err := domain.ParseOutcomeFromString(e.Status)
	if err != nil {
		return domain.MessageAttemptRecord{}, err
	}
	return domain.MessageAttemptRecord{
		Profile:   domain.ProfileTarget(e.Profile),
		Outcome:   outcome,
		Message:   e.Message,
		Timestamp: e.Timestamp,
	}, nil
}
