package ledger

import (
	"context"
	"errors"

	"github.com/kursadbilgin/outreach-engine/internal/domain"
)

var (
	// ErrUnreadable means the storage exists but cannot be read as a ledger.
	ErrUnreadable = errors.New("ledger unreadable")
	// ErrMalformedRecord marks rows that were skipped while reading.
	ErrMalformedRecord = errors.New("malformed ledger record")
)

// Ledger is the append-only record of every send attempt.
//
// ReadAll returns an empty slice when nothing was written yet. When only some
// rows are malformed it returns the well-formed ones together with an error
// wrapping ErrMalformedRecord.
type Ledger interface {
	Append(ctx context.Context, record domain.MessageAttemptRecord) error
	ReadAll(ctx context.Context) ([]domain.MessageAttemptRecord, error)
}

// TimestampLayout is the persisted timestamp format.
const TimestampLayout = "2006-01-02 15:04:05"

// Header is the persisted column layout.
var Header = []string{"Profile URL", "Status", "message", "Timestamp"}
