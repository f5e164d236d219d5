package domain

import (
	"fmt"
	"strings"
	"time"
)

// OutcomeKind is the result of a single send attempt.
type OutcomeKind string

// Stored status strings are kept compatible with ledgers written by the
// earlier tooling.
const (
	OutcomeSuccess             OutcomeKind = "Success"
	OutcomeFailedNoOpenAction  OutcomeKind = "Failed (Button not found)"
	OutcomeFailedNoSendControl OutcomeKind = "Failed (Send button)"
)

func (o OutcomeKind) String() string { return string(o) }

func (o OutcomeKind) IsValid() bool {
	switch o {
	case OutcomeSuccess, OutcomeFailedNoOpenAction, OutcomeFailedNoSendControl:
		return true
	}
	return false
}

// Label is a short machine-friendly name, used for metrics and JSON.
func (o OutcomeKind) Label() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailedNoOpenAction:
		return "no_open_action"
	case OutcomeFailedNoSendControl:
		return "no_send_control"
	}
	return "unknown"
}

func ParseOutcomeFromString(s string) (OutcomeKind, error) {
	trimmed := strings.TrimSpace(s)
	for _, o := range []OutcomeKind{OutcomeSuccess, OutcomeFailedNoOpenAction, OutcomeFailedNoSendControl} {
		if strings.EqualFold(trimmed, o.String()) || strings.EqualFold(trimmed, o.Label()) {
			return o, nil
		}
	}
	return "", fmt.Errorf("%w: invalid outcome %q", ErrValidation, s)
}

// MessageAttemptRecord is one immutable ledger row.
type MessageAttemptRecord struct {
	Profile   ProfileTarget
	Outcome   OutcomeKind
	Message   string
	Timestamp time.Time
}

func (r MessageAttemptRecord) Validate() error {
	if strings.TrimSpace(r.Profile.String()) == "" {
		return fmt.Errorf("%w: profile is required", ErrValidation)
	}
	if !r.Outcome.IsValid() {
		return fmt.Errorf("%w: invalid outcome %q", ErrValidation, r.Outcome)
	}
	if r.Timestamp.IsZero() {
		return fmt.Errorf("%w: timestamp is required", ErrValidation)
	}
	return nil
}
