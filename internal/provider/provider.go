package provider

import (
	"context"

	"github.com/kursadbilgin/outreach-engine/internal/domain"
)

// Driver starts automation sessions. A Start failure means the capability is
// unavailable and the run cannot begin.
type Driver interface {
	Start(ctx context.Context) (Session, error)
}

// Session is one logged-in browser. Every page interaction lives behind it;
// callers only learn whether each step worked.
type Session interface {
	Login(ctx context.Context, credentials domain.Credentials) (bool, error)
	OpenMessageAction(ctx context.Context, profile domain.ProfileTarget) (bool, error)
	SendText(ctx context.Context, text string) (bool, error)
	Close(ctx context.Context) error
}
