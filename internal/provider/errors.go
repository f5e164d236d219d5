package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// AutomationError classifies failures talking to the automation backend.
type AutomationError struct {
	Op         string
	StatusCode int
	Message    string
	Transient  bool
	Cause      error
}

func (e *AutomationError) Error() string {
	if e == nil {
		return "<nil>"
	}

	parts := make([]string, 0, 4)
	parts = append(parts, "automation error")

	if op := strings.TrimSpace(e.Op); op != "" {
		parts = append(parts, op)
	}
	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.StatusCode))
	}
	if msg := strings.TrimSpace(e.Message); msg != "" {
		parts = append(parts, msg)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}

	return strings.Join(parts, ": ")
}

func (e *AutomationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// IsTransient reports whether the backend might succeed on a later run.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var automationErr *AutomationError
	if errors.As(err, &automationErr) {
		return automationErr.Transient
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	return false
}
