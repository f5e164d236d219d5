package domain

import (
	"fmt"
	"strings"
	"time"
)

const TriggerTimeLayout = "15:04"

// ScheduleEntry triggers a full run once a day at TriggerTime.
type ScheduleEntry struct {
	ID            string
	TriggerTime   string
	Config        RunConfig
	ProfileSource string
	CreatedAt     time.Time
}

// ParseTriggerTime accepts HH:MM (24h) and returns it normalized.
func ParseTriggerTime(raw string) (string, error) {
	t, err := time.Parse(TriggerTimeLayout, strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("%w: trigger time must be HH:MM, got %q", ErrValidation, raw)
	}
	return t.Format(TriggerTimeLayout), nil
}

func (e ScheduleEntry) Validate() error {
	if _, err := ParseTriggerTime(e.TriggerTime); err != nil {
		return err
	}
	if strings.TrimSpace(e.ProfileSource) == "" {
		return fmt.Errorf("%w: profile source is required", ErrValidation)
	}
	return e.Config.Validate()
}

// MessagePreview returns the first 50 runes of the message for listings.
func (e ScheduleEntry) MessagePreview() string {
	runes := []rune(e.Config.Message)
	if len(runes) <= 50 {
		return e.Config.Message
	}
	return string(runes[:50]) + "..."
}
