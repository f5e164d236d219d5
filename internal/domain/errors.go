package domain

import "errors"

var (
	ErrValidation     = errors.New("validation error")
	ErrNotFound       = errors.New("not found")
	ErrConflict       = errors.New("conflict")
	ErrAutomationInit = errors.New("automation unavailable")
	ErrAuth           = errors.New("login failed")
	ErrRunInProgress  = errors.New("run already in progress")
)
